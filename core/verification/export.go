package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ckeytools/core/links"
	"ckeytools/core/storage"
	"ckeytools/core/utils"
)

// ErrExportDisabled is returned when no object storage is configured.
var ErrExportDisabled = errors.New("link export is not configured")

// ExportedLink is one valid link in a snapshot.
type ExportedLink struct {
	Ckey      string    `json:"ckey"`
	DiscordID string    `json:"discord_id"`
	LinkedAt  time.Time `json:"linked_at"`
}

// Snapshot is the exported document.
type Snapshot struct {
	GuildID     string         `json:"guild_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Links       []ExportedLink `json:"links"`
}

// ExportResult names the written object.
type ExportResult struct {
	Bucket string `json:"bucket"`
	Object string `json:"object"`
	Count  int    `json:"count"`
}

// Exporter writes link snapshots to object storage.
type Exporter struct {
	client storage.Client
	bucket string
	now    func() time.Time
}

// NewExporter creates an exporter for a bucket.
func NewExporter(client storage.Client, bucket string) *Exporter {
	return &Exporter{client: client, bucket: bucket, now: time.Now}
}

// Prefix returns the key prefix of a guild's snapshots.
func Prefix(guildID string) string {
	return fmt.Sprintf("exports/%s/", guildID)
}

// ObjectName returns the key a snapshot taken at t is stored under.
func ObjectName(guildID string, t time.Time) string {
	return fmt.Sprintf("%slinks-%d.json", Prefix(guildID), t.Unix())
}

// Write uploads the records as a snapshot.
func (e *Exporter) Write(ctx context.Context, guildID string, recs []links.LinkRecord) (ExportResult, error) {
	now := e.now().UTC()
	snap := Snapshot{GuildID: guildID, GeneratedAt: now, Links: make([]ExportedLink, 0, len(recs))}
	for _, rec := range recs {
		if rec.DiscordID == nil {
			continue
		}
		snap.Links = append(snap.Links, ExportedLink{
			Ckey:      rec.Ckey,
			DiscordID: utils.FormatDiscordID(*rec.DiscordID),
			LinkedAt:  rec.CreatedAt.UTC(),
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := storage.EnsureBucket(ctx, e.client, e.bucket); err != nil {
		return ExportResult{}, err
	}
	object := ObjectName(guildID, now)
	if err := storage.PutJSON(ctx, e.client, e.bucket, object, data); err != nil {
		return ExportResult{}, err
	}
	return ExportResult{Bucket: e.bucket, Object: object, Count: len(snap.Links)}, nil
}

// List returns the snapshots stored for a guild.
func (e *Exporter) List(ctx context.Context, guildID string) ([]storage.ObjectSummary, error) {
	return storage.List(ctx, e.client, e.bucket, Prefix(guildID))
}

// Read loads one snapshot by its file name, e.g. links-1700000000.json.
func (e *Exporter) Read(ctx context.Context, guildID, name string) (*Snapshot, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, storage.ErrObjectNotFound
	}
	var snap Snapshot
	if err := storage.GetJSON(ctx, e.client, e.bucket, Prefix(guildID)+name, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ExportValid writes every valid link of the guild to object storage.
func (s *Service) ExportValid(ctx context.Context, guildID string) (ExportResult, error) {
	if s.exporter == nil {
		return ExportResult{}, ErrExportDisabled
	}
	recs, err := s.ValidLinks(ctx, guildID)
	if err != nil {
		return ExportResult{}, err
	}
	return s.exporter.Write(ctx, guildID, recs)
}

// Exports lists the guild's stored snapshots.
func (s *Service) Exports(ctx context.Context, guildID string) ([]storage.ObjectSummary, error) {
	if _, err := s.guilds.Get(guildID); err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	return s.exporter.List(ctx, guildID)
}

// ReadExport loads one of the guild's stored snapshots.
func (s *Service) ReadExport(ctx context.Context, guildID, name string) (*Snapshot, error) {
	if _, err := s.guilds.Get(guildID); err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	return s.exporter.Read(ctx, guildID, name)
}
