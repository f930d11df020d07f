package links

import (
	"strings"
	"time"
)

// BaseTableName is the unprefixed name of the link table.
const BaseTableName = "discord_links"

// MarksBaseTableName is the unprefixed name of the deverified-users table.
const MarksBaseTableName = "deverified_users"

// Column limits of the link table.
const (
	MaxCkeyLength  = 32
	MaxTokenLength = 100
)

// LinkRecord is one row of the link table.
type LinkRecord struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Ckey      string    `gorm:"column:ckey;type:varchar(32);not null;index" json:"ckey"`
	DiscordID *int64    `gorm:"column:discord_id;index" json:"discord_id,string"`
	CreatedAt time.Time `gorm:"column:timestamp;not null;index" json:"created_at"`
	Token     string    `gorm:"column:one_time_token;type:varchar(100);not null;index" json:"-"`
	Valid     bool      `gorm:"column:valid;not null;default:false;index" json:"valid"`
}

// RequiredColumns is the column contract with the game server's table,
// keyed by column name with the expected type family.
var RequiredColumns = map[string]string{
	"id":             "int",
	"ckey":           "char",
	"discord_id":     "int",
	"timestamp":      "time",
	"one_time_token": "char",
	"valid":          "bool",
}

// TableName is used when no prefix is configured.
func (LinkRecord) TableName() string {
	return BaseTableName
}

// Claimed reports whether a Discord account has taken this record's token.
func (r LinkRecord) Claimed() bool {
	return r.DiscordID != nil
}

// HasDiscordID reports whether the record belongs to the given account.
func (r LinkRecord) HasDiscordID(id int64) bool {
	return r.DiscordID != nil && *r.DiscordID == id
}

// TableNameWithPrefix returns the link table name for a prefix, inserting an
// underscore separator when the prefix does not end with one.
func TableNameWithPrefix(prefix string) string {
	return withPrefix(prefix, BaseTableName)
}

// MarksTableNameWithPrefix returns the deverified-users table name for a prefix.
func MarksTableNameWithPrefix(prefix string) string {
	return withPrefix(prefix, MarksBaseTableName)
}

func withPrefix(prefix, base string) string {
	if prefix == "" {
		return base
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix + base
}

// DeverifiedUser marks a member a staff member deverified. The table lives
// next to the link table and shares its prefix.
type DeverifiedUser struct {
	DiscordID int64     `gorm:"column:discord_id;primaryKey;autoIncrement:false" json:"discord_id,string"`
	CreatedAt time.Time `gorm:"column:timestamp;not null" json:"created_at"`
}

// TableName is used when no prefix is configured.
func (DeverifiedUser) TableName() string {
	return MarksBaseTableName
}

// Int64Ptr is a small helper for building records in callers and tests.
func Int64Ptr(v int64) *int64 {
	return &v
}
