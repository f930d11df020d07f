package cmd

import (
	"context"
	"fmt"

	"ckeytools/core/cache"
	"ckeytools/core/config"
	"ckeytools/core/database"
	"ckeytools/core/discord"
	"ckeytools/core/guild"
	"ckeytools/core/links"
	"ckeytools/core/logger"
	"ckeytools/core/reconcile"
	"ckeytools/core/rolesync"
	"ckeytools/core/session"
	"ckeytools/core/storage"
	"ckeytools/core/verification"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	guilds   *guild.Registry
	conns    *database.Registry
	links    *links.Provider
	redis    redis.UniversalClient
	discord  *discordgo.Session
	sessions *session.Manager
	service  *verification.Service
}

// bootstrap loads configuration and builds the service graph. Redis, the
// Discord connection and object storage are optional.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	guilds, err := guild.NewRegistry(cfg.Guilds)
	if err != nil {
		return nil, fmt.Errorf("invalid guild configuration: %w", err)
	}

	a := &app{cfg: cfg, logger: logg, guilds: guilds, conns: database.NewRegistry()}
	a.links = links.NewProvider(a.conns, cfg.Database, links.WithQueryTimeout(cfg.Verification.StoreTimeout()))

	backend, err := cfg.Verification.Marks()
	if err != nil {
		return nil, err
	}

	// A nil blocklist keeps marks in the guilds' link databases.
	var marks reconcile.Blocklist
	persist := session.Persister(session.NopPersister{})
	if cfg.Redis.Enabled() {
		client, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		persist = session.NewRedisStore(client, cfg.Redis.Prefix)
		if backend == verification.MarksRedis {
			marks = reconcile.NewRedisBlocklist(client, cfg.Redis.Prefix)
		}
	} else {
		if backend == verification.MarksRedis {
			return nil, fmt.Errorf("marks backend redis requires redis.addr")
		}
		logg.Warn("Redis not configured, verification sessions are kept in memory")
	}

	// Untyped nils keep the engine and service from calling a missing Discord API.
	var (
		roleSyncer reconcile.RoleSyncer
		roles      verification.Roles
		opts       []verification.Option
	)
	if cfg.Discord.Enabled() {
		s, err := discord.NewSession(cfg.Discord)
		if err != nil {
			return nil, err
		}
		a.discord = s
		client := discord.NewClient(s)
		syncer := rolesync.NewSynchronizer(a.links, client, logg,
			rolesync.WithLimiter(cfg.Discord.Limiter()),
			rolesync.WithCallTimeout(cfg.Discord.CallTimeout()))
		roleSyncer, roles = syncer, syncer
		opts = append(opts, verification.WithMemberRemover(client), verification.WithMemberChecker(client))
	} else {
		logg.Warn("Discord token not configured, roles will not be synchronised")
	}

	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
		opts = append(opts, verification.WithExporter(verification.NewExporter(client, cfg.Storage.Bucket)))
	}
	opts = append(opts, verification.WithRetryPolicy(cfg.Verification.RetryPolicy()))

	engine := reconcile.NewEngine(a.links, roleSyncer, marks, logg)
	a.sessions = session.NewManager(logg,
		session.WithTTL(cfg.Verification.SessionTTL()),
		session.WithPersister(persist))
	a.service = verification.NewService(guilds, engine, roles, a.sessions, logg, opts...)
	return a, nil
}

// close releases every connection the app opened.
func (a *app) close() {
	if a.discord != nil {
		_ = a.discord.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.conns.CloseAll(); err != nil {
		a.logger.Warn("Failed to close database connections", zap.Error(err))
	}
	_ = a.logger.Sync()
}
