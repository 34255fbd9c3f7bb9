package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"medibook-server/internal/agent"
	"medibook-server/internal/config"
	"medibook-server/internal/directory"
	"medibook-server/internal/external"
	"medibook-server/internal/jobs"
	"medibook-server/internal/logging"
	"medibook-server/internal/models"
	"medibook-server/internal/notify"
	"medibook-server/internal/routes"
	"medibook-server/internal/scheduling"
	"medibook-server/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "medibook-server",
		Short:        "Healthcare appointment booking API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(false)
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			skip, _ := cmd.Flags().GetBool("skip-migrate")
			return runServer(skip)
		},
	}
	cmd.Flags().Bool("skip-migrate", false, "Do not migrate the schema on start")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and seed roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Str("database", cfg.Database.Name).Msg("schema migrated")
			return nil
		},
	}
}

// bootstrap loads .env and the configuration and builds the logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("no .env file loaded, using process environment")
	}
	return cfg, logger, nil
}

func runServer(skipMigrate bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	if !skipMigrate {
		if err := models.Migrate(db); err != nil {
			logger.Error().Err(err).Msg("failed to migrate database")
			return err
		}
	}
	logger.Info().Msg("connected to database")

	// Tokens
	key := []byte(cfg.JWTSecret)
	if len(key) == 0 {
		key, err = utils.GenerateSigningKey()
		if err != nil {
			return err
		}
		logger.Warn().Msg("JWT_SECRET is not set; using a random key, tokens will not survive a restart")
	}
	tokens := utils.NewTokenService(key, cfg.TokenTTL())

	dir := directory.New(db)

	// Scheduling
	template, err := scheduling.ParseTemplate(cfg.Slots.DayStart, cfg.Slots.DayEnd, cfg.Slots.SlotMinutes)
	if err != nil {
		return err
	}
	engineOpts := []scheduling.Option{scheduling.WithTemplate(template)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
			return err
		}
		engineOpts = append(engineOpts, scheduling.WithLocker(scheduling.NewRedisLocker(rdb, 10*time.Second)))
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("slot locks shared through redis")
	}
	engine := scheduling.NewEngine(db, dir, engineOpts...)

	// Notifications
	var delivery notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Mailer.Host != "" {
		delivery = notify.NewMailer(cfg.Mailer.Host, cfg.Mailer.Port, cfg.Mailer.Username, cfg.Mailer.Password, cfg.Mailer.DefaultFrom)
		logger.Info().Str("host", cfg.Mailer.Host).Msg("appointment emails enabled")
	}
	async := notify.NewAsync(delivery, logger)

	// External services
	ext := cfg.External
	gemini := external.NewGemini(ext.GeminiAPIKey, ext.GeminiModel, ext.Timeout)
	serp := external.NewSerpAPI(ext.SerpAPIKey, ext.Timeout)
	graph := external.NewNeo4jHTTP(ext.Neo4jURL, ext.Neo4jUsername, ext.Neo4jPassword, ext.Timeout)
	storage := external.NewSupabaseStorage(ext.SupabaseURL, ext.SupabaseKey, ext.SupabaseBucket, ext.Timeout)
	speech := external.NewElevenLabs(ext.ElevenLabsAPIKey, ext.ElevenLabsVoice, ext.Timeout)

	router := routes.NewRouter(&routes.Services{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Directory: dir,
		Engine:    engine,
		Tokens:    tokens,
		Notifier:  async,
		Storage:   storage,
		Agent:     agent.New(gemini, serp, graph, dir),
		Speech:    speech,
	})

	// Background jobs
	runner, err := startJobs(cfg, db, engine, delivery, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	runner.Stop(ctx)
	async.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("server stopped")
	return nil
}

func startJobs(cfg *config.Config, db *gorm.DB, engine *scheduling.Engine, notifier notify.Notifier, logger zerolog.Logger) (*jobs.Runner, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	runner := jobs.NewRunner(logger)
	if err := runner.Add("pool-stats", cfg.PoolStatsSchedule, jobs.PoolStats(sqlDB, logger)); err != nil {
		return nil, err
	}
	if err := runner.Add("appointment-reminders", cfg.ReminderSchedule, jobs.Reminders(engine, notifier, time.Now, logger)); err != nil {
		return nil, err
	}
	runner.Start()
	return runner, nil
}
