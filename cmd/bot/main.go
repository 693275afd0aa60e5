package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/user/mentionbot/internal/config"
	"github.com/user/mentionbot/internal/discord"
	"github.com/user/mentionbot/internal/metrics"
	"github.com/user/mentionbot/internal/relay"
	"github.com/user/mentionbot/internal/storage"
	"github.com/user/mentionbot/internal/telegram"
	"github.com/user/mentionbot/pkg/logger"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Try to initialize basic logger for error output
		logger.Init("debug", "")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logger.Info().Msg("Starting Discord mention relay")

	// Initialize database
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	store := storage.NewSubscriberStore(db)
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	metrics.MustRegister()
	if count, err := store.CountSubscribers(); err == nil {
		metrics.Subscribers.Set(float64(count))
	}

	// Initialize Discord client and connect to the gateway
	dc, err := discord.NewClient(cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Discord client")
	}
	if err := dc.Open(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Discord gateway")
	}
	defer dc.Close()
	logger.Info().Str("username", dc.Username()).Msg("Discord gateway connected")

	// Initialize Telegram bot
	bot, err := telegram.NewBot(cfg, store, dc)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	// Create event channel between watcher and relay
	eventsCh := make(chan *discord.MessageEvent, 100)

	// Create relay and wire the admin broadcast
	rel := relay.New(bot, store)
	bot.SetBroadcaster(rel)

	// Start event processing goroutine
	go func() {
		for event := range eventsCh {
			if err := rel.HandleMessage(event); err != nil {
				logger.Error().Err(err).Msg("Failed to handle message")
			}
		}
	}()

	// Start gateway watcher
	watcher := discord.NewWatcher(dc, eventsCh)
	watcher.Start()

	// Schedule relay record cleanup
	c := cron.New()
	if _, err := c.AddFunc(cfg.Cleanup.Schedule, func() {
		removed, err := store.CleanupOldRelayRecords(cfg.Cleanup.RetentionDays)
		if err != nil {
			logger.Error().Err(err).Msg("Relay record cleanup failed")
			return
		}
		logger.Info().Int64("removed", removed).Msg("Relay record cleanup done")
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Cleanup.Schedule).Msg("Invalid cleanup schedule")
	}
	c.Start()

	// Set up HTTP router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("address", cfg.ServerAddress()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Start Telegram bot
	bot.Start()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop accepting new Discord messages
	watcher.Stop()

	// Stop cleanup scheduler
	c.Stop()

	// Stop HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Stop Telegram bot
	bot.Stop()

	logger.Info().Msg("Shutdown complete")
}
