package links

import (
	"context"
	"strconv"
)

// Reader is the query side of the store.
type Reader interface {
	// FindValidByDiscordID returns the newest valid record for an account.
	FindValidByDiscordID(ctx context.Context, discordID int64) (*LinkRecord, error)
	// FindValidByCkey returns the newest valid record for a ckey.
	FindValidByCkey(ctx context.Context, ckey string) (*LinkRecord, error)
	// FindByToken matches regardless of claim or validity.
	FindByToken(ctx context.Context, token string) (*LinkRecord, error)
	// FindLatestByDiscordID returns the newest record for an account, valid or not.
	FindLatestByDiscordID(ctx context.Context, discordID int64) (*LinkRecord, error)
	// AllByDiscordID returns the full history for an account, oldest first.
	AllByDiscordID(ctx context.Context, discordID int64) ([]LinkRecord, error)
	// AllByCkey returns the full history for a ckey, oldest first.
	AllByCkey(ctx context.Context, ckey string) ([]LinkRecord, error)
	// AllValid returns every claimed, valid record, oldest first.
	AllValid(ctx context.Context) ([]LinkRecord, error)
}

// Writer is the mutation side of the store.
type Writer interface {
	// Insert assigns id and timestamp and stores the record.
	Insert(ctx context.Context, rec *LinkRecord) (*LinkRecord, error)
	SetValid(ctx context.Context, id uint64, valid bool) error
	SetDiscordID(ctx context.Context, id uint64, discordID int64) error
}

// Tx is the view of the store inside Atomic. Reads take row locks.
type Tx interface {
	Reader
	Writer
}

// Marks records members a staff member deverified. Marks are kept outside
// link transactions.
type Marks interface {
	IsDeverified(ctx context.Context, discordID int64) (bool, error)
	// MarkDeverified is idempotent.
	MarkDeverified(ctx context.Context, discordID int64) error
	ClearDeverified(ctx context.Context, discordID int64) error
}

// Store is the complete link store contract.
type Store interface {
	Reader
	Writer
	Marks
	// Atomic runs fn in a single transaction while holding the locks named
	// by keys. If fn returns an error every write is rolled back.
	Atomic(ctx context.Context, keys Keys, fn func(tx Tx) error) error
}

// Keys names the serialisation points an atomic operation needs. All of them
// must be known before the transaction starts; a ckey can be read ahead of
// time because a record's ckey never changes after insertion.
type Keys struct {
	DiscordIDs []int64
	Tokens     []string
	Ckeys      []string
}

func (k Keys) lockNames() []string {
	names := make([]string, 0, len(k.DiscordIDs)+len(k.Tokens)+len(k.Ckeys))
	for _, id := range k.DiscordIDs {
		names = append(names, discordKey(id))
	}
	for _, t := range k.Tokens {
		names = append(names, "token:"+t)
	}
	for _, c := range k.Ckeys {
		names = append(names, ckeyKey(c))
	}
	return names
}

func discordKey(id int64) string {
	return "discord:" + strconv.FormatInt(id, 10)
}

func ckeyKey(ckey string) string {
	return "ckey:" + ckey
}
