// Package utils provides small helpers shared by the command and HTTP layers,
// chiefly Discord snowflake parsing and formatting.
package utils
