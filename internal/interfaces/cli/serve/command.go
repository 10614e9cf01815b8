package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	appcapture "glint/internal/application/capture"
	appentitlement "glint/internal/application/entitlement"
	"glint/internal/infrastructure/browser"
	"glint/internal/infrastructure/cache"
	"glint/internal/infrastructure/classifier"
	"glint/internal/infrastructure/config"
	"glint/internal/infrastructure/database"
	"glint/internal/infrastructure/discord"
	"glint/internal/infrastructure/migration"
	"glint/internal/infrastructure/repository"
	"glint/internal/infrastructure/scheduler"
	"glint/internal/interfaces/bot"
	httpRouter "glint/internal/interfaces/http"
	"glint/internal/shared/biztime"
	"glint/internal/shared/logger"
)

var (
	env         string
	autoMigrate bool
)

// NewCommand builds the serve command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the admin API",
		Long:  `Connect to the chat gateway, serve the admin HTTP API, and run the entitlement expiry sweeper.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Run schema migration on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting glint", "environment", env, "auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = database.Close() }()

	if autoMigrate {
		if err := migration.Run(database.Get()); err != nil {
			return err
		}
		log.Infow("schema migration complete")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Entitlement gate.
	authRepo := repository.NewAuthorizationRepository(database.Get(), log)
	trialRepo := repository.NewTrialRepository(database.Get(), log)

	rest := discord.NewRestClient(cfg.Discord.BotToken)
	confirmer := discord.NewConfirmer(rest, log.Named("confirm"))
	guildGateway := discord.NewGuildGatewayAdapter(rest, confirmer, cfg.Discord, log.Named("discord"))

	gate := appentitlement.NewGateService(authRepo, trialRepo, guildGateway, appentitlement.Config{
		TrialLength:        biztime.Days(cfg.Entitlement.TrialDays),
		SubscriptionPeriod: biztime.Days(cfg.Entitlement.SubscriptionDays),
		TransferBudget:     cfg.Entitlement.OneTimeTransfers,
	}, log.Named("gate"))

	// Capture pipeline.
	runtime, err := browser.NewChromeRuntime(rootCtx, log.Named("browser"))
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() { _ = runtime.Stop() }()

	pool := browser.NewPagePool(runtime, log.Named("pool"))
	defer pool.Stop()

	captureService := appcapture.NewService(
		pool,
		browser.ContextOptions{
			Width:  cfg.Capture.ViewportWidth,
			Height: cfg.Capture.ViewportHeight,
		},
		classifier.NewClient(cfg.Capture.ClassifierURL, cfg.Capture.ClassifierConcurrency, log.Named("classifier")),
		newResultCache(rootCtx, cfg, log),
		log.Named("capture"),
		appcapture.WithNavigationTimeout(time.Duration(cfg.Capture.NavigationTimeoutSeconds)*time.Second),
		appcapture.WithCacheTTL(time.Duration(cfg.Capture.CacheTTLMinutes)*time.Minute),
	)

	// Bot surface.
	dispatcher := bot.NewDispatcher(gate, captureService, rest, confirmer, cfg.Discord, log.Named("bot"))
	if err := dispatcher.RegisterCommands(rootCtx); err != nil {
		log.Warnw("failed to register slash commands", "error", err)
	}

	gateway := discord.NewGatewayClient(rest, cfg.Discord.BotToken, dispatcher, log.Named("gateway"))
	gateway.Start(rootCtx)
	defer gateway.Stop()

	// Expiry sweeper.
	sweeper := scheduler.NewExpiryScheduler(gate,
		time.Duration(cfg.Entitlement.ExpirySweepMinutes)*time.Minute, log.Named("sweeper"))
	sweeper.Start(rootCtx)
	defer sweeper.Stop()

	// Admin API.
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      httpRouter.NewRouter(gate, cfg.Admin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("admin API listening", "address", cfg.Server.GetAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("admin API server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-rootCtx.Done():
	}

	log.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("admin API forced to shut down", "error", err)
	}

	log.Infow("glint exited")
	return nil
}

// newResultCache prefers redis so cached renders survive restarts and are
// shared between replicas; an unreachable redis degrades to process memory.
func newResultCache(ctx context.Context, cfg *config.Config, log logger.Interface) cache.ResultCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis unavailable, using in-memory render cache",
			"addr", cfg.Redis.GetAddr(), "error", err)
		_ = client.Close()
		return cache.NewMemoryResultCache(128)
	}

	log.Infow("render cache backed by redis", "addr", cfg.Redis.GetAddr())
	return cache.NewRedisResultCache(client, "glint:render:")
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
