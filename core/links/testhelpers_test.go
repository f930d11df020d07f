package links

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
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

// stepClock returns strictly increasing timestamps one second apart.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestStore(t *testing.T, prefix string) *GormStore {
	t.Helper()
	s := NewGormStore(openTestDB(t), prefix, WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.EnsureTable(t.Context()))
	return s
}

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
