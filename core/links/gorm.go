package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ckeytools/core/keylock"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultQueryTimeout = 10 * time.Second

// GormStore implements Store on top of a gorm connection.
type GormStore struct {
	db      *gorm.DB
	table   string
	marks   string
	locks   *keylock.Locker
	timeout time.Duration
	now     func() time.Time
}

// Option customises a GormStore.
type Option func(*GormStore)

// WithQueryTimeout bounds every database round trip.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces the timestamp source used by Insert.
func WithClock(now func() time.Time) Option {
	return func(s *GormStore) {
		s.now = now
	}
}

// NewGormStore creates a store over the table for the given prefix.
func NewGormStore(db *gorm.DB, prefix string, opts ...Option) *GormStore {
	s := &GormStore{
		db:      db,
		table:   TableNameWithPrefix(prefix),
		marks:   MarksTableNameWithPrefix(prefix),
		locks:   &keylock.Locker{},
		timeout: defaultQueryTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the physical table name.
func (s *GormStore) Table() string {
	return s.table
}

// MarksTable returns the physical deverified-users table name.
func (s *GormStore) MarksTable() string {
	return s.marks
}

// EnsureTable creates the link and deverified-users tables when they do not
// exist yet. Existing tables are left untouched.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.createTable(ctx, s.table, &LinkRecord{}); err != nil {
		return err
	}
	return s.createTable(ctx, s.marks, &DeverifiedUser{})
}

func (s *GormStore) createTable(ctx context.Context, table string, model any) error {
	m := s.db.WithContext(ctx).Table(table).Migrator()
	if m.HasTable(table) {
		return nil
	}
	if err := m.CreateTable(model); err != nil {
		return unavailable("create table "+table, err)
	}
	return nil
}

func (s *GormStore) FindValidByDiscordID(ctx context.Context, discordID int64) (*LinkRecord, error) {
	return s.ops(s.db, false).FindValidByDiscordID(ctx, discordID)
}

func (s *GormStore) FindValidByCkey(ctx context.Context, ckey string) (*LinkRecord, error) {
	return s.ops(s.db, false).FindValidByCkey(ctx, ckey)
}

func (s *GormStore) FindByToken(ctx context.Context, token string) (*LinkRecord, error) {
	return s.ops(s.db, false).FindByToken(ctx, token)
}

func (s *GormStore) FindLatestByDiscordID(ctx context.Context, discordID int64) (*LinkRecord, error) {
	return s.ops(s.db, false).FindLatestByDiscordID(ctx, discordID)
}

func (s *GormStore) AllByDiscordID(ctx context.Context, discordID int64) ([]LinkRecord, error) {
	return s.ops(s.db, false).AllByDiscordID(ctx, discordID)
}

func (s *GormStore) AllByCkey(ctx context.Context, ckey string) ([]LinkRecord, error) {
	return s.ops(s.db, false).AllByCkey(ctx, ckey)
}

func (s *GormStore) AllValid(ctx context.Context) ([]LinkRecord, error) {
	return s.ops(s.db, false).AllValid(ctx)
}

// Insert runs in its own transaction so the write is all-or-nothing.
func (s *GormStore) Insert(ctx context.Context, rec *LinkRecord) (*LinkRecord, error) {
	return s.ops(s.db, false).Insert(ctx, rec)
}

func (s *GormStore) SetValid(ctx context.Context, id uint64, valid bool) error {
	return s.ops(s.db, false).SetValid(ctx, id, valid)
}

func (s *GormStore) SetDiscordID(ctx context.Context, id uint64, discordID int64) error {
	return s.ops(s.db, false).SetDiscordID(ctx, id, discordID)
}

// Atomic locks Discord ids and tokens first, then ckeys, and runs fn in one
// transaction. Every lock is taken before the transaction opens so a
// goroutine waiting on a key never holds a pooled connection.
func (s *GormStore) Atomic(ctx context.Context, keys Keys, fn func(tx Tx) error) error {
	release, err := s.locks.Acquire(ctx, Keys{DiscordIDs: keys.DiscordIDs, Tokens: keys.Tokens}.lockNames()...)
	if err != nil {
		return fmt.Errorf("acquire link locks: %w", err)
	}
	defer release()

	if len(keys.Ckeys) > 0 {
		releaseCkeys, err := s.locks.Acquire(ctx, Keys{Ckeys: keys.Ckeys}.lockNames()...)
		if err != nil {
			return fmt.Errorf("acquire ckey locks: %w", err)
		}
		defer releaseCkeys()
	}

	var fnErr error
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(s.ops(tx, true))
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return unavailable("commit", err)
	}
	return nil
}

func (s *GormStore) ops(db *gorm.DB, locking bool) *gormOps {
	return &gormOps{store: s, db: db, locking: locking}
}

// gormOps carries a connection or transaction handle. Inside Atomic the
// handle is the transaction and reads take row locks.
type gormOps struct {
	store   *GormStore
	db      *gorm.DB
	locking bool
}

func (o *gormOps) query(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, o.store.timeout)
	q := o.db.WithContext(ctx).Table(o.store.table)
	if o.locking {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q, cancel
}

func (o *gormOps) take(ctx context.Context, op string, build func(*gorm.DB) *gorm.DB) (*LinkRecord, error) {
	q, cancel := o.query(ctx)
	defer cancel()

	var rec LinkRecord
	err := build(q).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(op, err)
	}
	return &rec, nil
}

func (o *gormOps) list(ctx context.Context, op string, build func(*gorm.DB) *gorm.DB) ([]LinkRecord, error) {
	q, cancel := o.query(ctx)
	defer cancel()

	var recs []LinkRecord
	if err := build(q).Order("timestamp ASC").Order("id ASC").Find(&recs).Error; err != nil {
		return nil, unavailable(op, err)
	}
	return recs, nil
}

func newestFirst(q *gorm.DB) *gorm.DB {
	return q.Order("timestamp DESC").Order("id DESC")
}

func (o *gormOps) FindValidByDiscordID(ctx context.Context, discordID int64) (*LinkRecord, error) {
	return o.take(ctx, "find valid by discord id", func(q *gorm.DB) *gorm.DB {
		return newestFirst(q.Where("discord_id = ? AND valid = ?", discordID, true))
	})
}

func (o *gormOps) FindValidByCkey(ctx context.Context, ckey string) (*LinkRecord, error) {
	return o.take(ctx, "find valid by ckey", func(q *gorm.DB) *gorm.DB {
		return newestFirst(q.Where("ckey = ? AND valid = ?", ckey, true))
	})
}

func (o *gormOps) FindByToken(ctx context.Context, token string) (*LinkRecord, error) {
	return o.take(ctx, "find by token", func(q *gorm.DB) *gorm.DB {
		return newestFirst(q.Where("one_time_token = ?", token))
	})
}

func (o *gormOps) FindLatestByDiscordID(ctx context.Context, discordID int64) (*LinkRecord, error) {
	return o.take(ctx, "find latest by discord id", func(q *gorm.DB) *gorm.DB {
		return newestFirst(q.Where("discord_id = ?", discordID))
	})
}

func (o *gormOps) AllByDiscordID(ctx context.Context, discordID int64) ([]LinkRecord, error) {
	return o.list(ctx, "list by discord id", func(q *gorm.DB) *gorm.DB {
		return q.Where("discord_id = ?", discordID)
	})
}

func (o *gormOps) AllByCkey(ctx context.Context, ckey string) ([]LinkRecord, error) {
	return o.list(ctx, "list by ckey", func(q *gorm.DB) *gorm.DB {
		return q.Where("ckey = ?", ckey)
	})
}

func (o *gormOps) AllValid(ctx context.Context) ([]LinkRecord, error) {
	return o.list(ctx, "list valid", func(q *gorm.DB) *gorm.DB {
		return q.Where("discord_id IS NOT NULL AND valid = ?", true)
	})
}

func (o *gormOps) Insert(ctx context.Context, rec *LinkRecord) (*LinkRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("insert: nil record")
	}
	row := *rec
	row.ID = 0
	row.CreatedAt = o.store.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, o.store.timeout)
	defer cancel()

	if err := o.db.WithContext(ctx).Table(o.store.table).Create(&row).Error; err != nil {
		return nil, unavailable("insert", err)
	}
	return &row, nil
}

func (o *gormOps) update(ctx context.Context, op string, id uint64, column string, value any) error {
	ctx, cancel := context.WithTimeout(ctx, o.store.timeout)
	defer cancel()

	err := o.db.WithContext(ctx).Table(o.store.table).Where("id = ?", id).Update(column, value).Error
	if err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (o *gormOps) SetValid(ctx context.Context, id uint64, valid bool) error {
	return o.update(ctx, "set valid", id, "valid", valid)
}

func (o *gormOps) SetDiscordID(ctx context.Context, id uint64, discordID int64) error {
	return o.update(ctx, "set discord id", id, "discord_id", discordID)
}
