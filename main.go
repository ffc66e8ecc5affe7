package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autorename/autorename/internal/access"
	"github.com/autorename/autorename/internal/auditlog"
	"github.com/autorename/autorename/internal/broadcast"
	"github.com/autorename/autorename/internal/config"
	"github.com/autorename/autorename/internal/conversation"
	"github.com/autorename/autorename/internal/database"
	"github.com/autorename/autorename/internal/logger"
	"github.com/autorename/autorename/internal/metrics"
	"github.com/autorename/autorename/internal/rename"
	"github.com/autorename/autorename/internal/sequence"
	"github.com/autorename/autorename/internal/session"
	"github.com/autorename/autorename/internal/telegram"
)

const (
	storeConnectTimeout = 30 * time.Second
	shutdownTimeout     = 15 * time.Second
	janitorInterval     = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("autorename is starting", map[string]interface{}{
		"log_level":   cfg.LogLevel,
		"store":       storeKind(cfg),
		"log_channel": cfg.HasLogChannel(),
		"metrics":     cfg.HasMetrics(),
		"session_ttl": cfg.SessionTTL.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Bot error", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	connectCtx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
	store, err := openStore(connectCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("Failed to close store", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	bot, err := telegram.NewBot(cfg)
	if err != nil {
		return err
	}

	// the expire hook and the gauge refer to each other
	var collector *metrics.Collector
	sessions := session.NewRegistry(cfg.SessionTTL, session.WithExpireHook(func(userID int64, s session.Session) {
		collector.RecordFlow(s.Flow.String(), "expired")
	}))
	collector = metrics.NewCollector(func() float64 { return float64(sessions.Len()) })

	go sessions.RunJanitor(ctx, janitorInterval)

	if cfg.HasMetrics() {
		srv := serveMetrics(cfg.MetricsAddr, collector.Handler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// closed after the router so a finishing broadcast can still audit
	audit := auditlog.NewSink(bot, cfg.LogChannelID)
	defer audit.Close()

	router := conversation.NewRouter(conversation.Deps{
		Store:    store,
		Sessions: sessions,
		Gate:     access.NewGate(cfg.OwnerID, store, store),
		Renamer: rename.NewPipeline(store, rename.Options{
			Quality:        cfg.RenameQuality,
			Audio:          cfg.RenameAudio,
			ExtractEpisode: true,
		}),
		Sequences:   sequence.NewCollector(store),
		Broadcaster: broadcast.NewBroadcaster(store, bot, cfg.BroadcastPageSize, cfg.BroadcastRate),
		Audit:       audit,
		Metrics:     collector,
		Sender:      bot,
		StartPic:    cfg.StartPic,
		MaxFileSize: cfg.MaxFileSize,
	})
	defer router.Close()

	logger.InfoMsg("📁 Ready to rename files!")

	defer bot.Stop()
	return bot.Start(ctx, router)
}

// openStore picks Mongo, then Postgres, then the in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch {
	case cfg.HasMongoConfig():
		store, err := database.NewMongoStore(ctx, cfg.MongoURL, cfg.DatabaseName)
		if err != nil {
			return nil, err
		}
		return store, nil
	case cfg.HasPostgresConfig():
		db, err := database.NewDB(ctx, cfg.PostgreDSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		logger.Warn("No database configured, state will not survive a restart", nil)
		return database.NewMemoryStore(), nil
	}
}

func storeKind(cfg *config.Config) string {
	switch {
	case cfg.HasMongoConfig():
		return "mongo"
	case cfg.HasPostgresConfig():
		return "postgres"
	default:
		return "memory"
	}
}

func serveMetrics(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", map[string]interface{}{
			"addr": addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
	return srv
}
