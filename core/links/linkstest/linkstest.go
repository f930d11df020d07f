// Package linkstest opens throwaway SQLite link stores for tests in other
// packages.
package linkstest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ckeytools/core/links"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the first timestamp handed out by Clock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock returns strictly increasing timestamps one second apart.
func Clock() func() time.Time {
	var mu sync.Mutex
	current := Epoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// OpenDB opens a SQLite file database in the test's temp dir.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "links.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewStore returns a ready store with the given table prefix.
func NewStore(t testing.TB, prefix string) *links.GormStore {
	t.Helper()
	s := links.NewGormStore(OpenDB(t), prefix, links.WithClock(Clock()))
	require.NoError(t, s.EnsureTable(t.Context()))
	return s
}

// Issue inserts an unclaimed token for ckey.
func Issue(t testing.TB, s links.Store, ckey, token string) *links.LinkRecord {
	t.Helper()
	rec, err := s.Insert(t.Context(), &links.LinkRecord{Ckey: ckey, Token: token})
	require.NoError(t, err)
	return rec
}

// Link inserts a claimed, valid record.
func Link(t testing.TB, s links.Store, ckey, token string, discordID int64) *links.LinkRecord {
	t.Helper()
	rec, err := s.Insert(t.Context(), &links.LinkRecord{
		Ckey:      ckey,
		Token:     token,
		DiscordID: links.Int64Ptr(discordID),
		Valid:     true,
	})
	require.NoError(t, err)
	return rec
}
