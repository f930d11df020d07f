// Package cache connects to the Redis instance that persists verification
// sessions and deverified marks.
//
// Redis is optional. With an empty address the application keeps sessions
// and marks in memory and loses them on restart.
package cache
