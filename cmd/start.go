package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ckeytools/core/discord"
	"ckeytools/core/loader"
	"ckeytools/core/logger"
	"ckeytools/core/metrics"
	"ckeytools/core/middleware/auth"
	"ckeytools/core/middleware/rayid"
	"ckeytools/core/session"
	"ckeytools/feature/admin"
	"ckeytools/feature/verify"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "ckeytools/docs/swagger"
)

// @title ckeytools API
// @version 1.0
// @description Discord to ckey verification and link administration.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the verification server",
	Long:  `Starts the HTTP server, the session sweeper and, when enabled, the Discord gateway listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		logg := a.logger
		zap.ReplaceGlobals(logg)

		if _, err := a.sessions.Restore(ctx); err != nil {
			logg.Warn("Failed to restore sessions", zap.Error(err))
		}

		if a.cfg.Discord.Gateway {
			if a.discord == nil {
				return fmt.Errorf("discord gateway enabled without a bot token")
			}
			gw := discord.NewGateway(a.discord, a.service, a.cfg.Discord.CallTimeout(), logg)
			if err := gw.Open(); err != nil {
				return fmt.Errorf("failed to open discord gateway: %w", err)
			}
			logg.Info("Discord gateway connected")
		}

		go sweepSessions(ctx, a.sessions, a.cfg.Server.SweepInterval(), logg)

		app := newHTTPApp(a)

		// Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port), zap.Int("guilds", len(a.guilds.All())))
			if err := app.Listen(":" + a.cfg.Server.Port); err != nil {
				logg.Error("Server stopped", zap.Error(err))
				stop()
			}
		}()

		// Graceful Shutdown
		<-ctx.Done()
		logg.Info("Shutting down server...")
		return app.ShutdownWithTimeout(a.cfg.Server.ShutdownTimeout())
	},
}

// newHTTPApp builds the Fiber app with middleware and every feature.
func newHTTPApp(a *app) *fiber.App {
	logg := a.logger
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We will log our own startup message
	})

	// 1. RayID (Must be first to trace everything)
	app.Use(rayid.New())
	app.Use(metrics.Middleware())

	// 2. Logging Middleware (Custom to use Zap + RayID)
	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	// 3. Public endpoints
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())
	app.Get("/swagger/*", swagger.HandlerDefault)

	// 4. Auth (Protect API)
	if a.cfg.Server.ApiKey == "" {
		logg.Warn("server.api_key is empty, the API is unauthenticated")
	}
	app.Use(auth.New(auth.Config{
		ApiKey: a.cfg.Server.ApiKey,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/health" || p == "/metrics" || strings.HasPrefix(p, "/swagger/")
		},
	}))

	// 5. Load Features
	mgr := loader.NewManager(logg)
	mgr.Register(verify.NewFeature(a.service, logg))
	mgr.Register(admin.NewFeature(a.service, logg))
	if err := mgr.LoadAll(app); err != nil {
		logg.Fatal("Failed to load features", zap.Error(err))
	}
	return app
}

// sweepSessions expires stale verification sessions until ctx is done.
func sweepSessions(ctx context.Context, sessions *session.Manager, every time.Duration, logg *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Sweep(ctx)
			if err != nil {
				logg.Warn("Session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logg.Info("Expired stale sessions", zap.Int("count", n))
			}
		}
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
