// Package guild holds per-guild verification settings.
//
// A Config is passed explicitly into every engine, synchronizer and service
// call; nothing reads guild settings from package state. The Registry
// resolves a guild id to its Config and is loaded once from config.yaml.
package guild
