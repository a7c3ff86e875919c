package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/config"
	"vigilant-snatch-go/internal/database"
	"vigilant-snatch-go/internal/history"
	"vigilant-snatch-go/internal/logger"
	"vigilant-snatch-go/internal/marketplace"
	"vigilant-snatch-go/internal/notifications"
	"vigilant-snatch-go/internal/store"
	"vigilant-snatch-go/internal/triggers"
	"vigilant-snatch-go/internal/watchloop"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.Int("triggers", len(cfg.Triggers)))

	// Initialize the price store
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open price store", zap.Error(err))
	}
	priceStore := store.NewGormStore(db)
	log.Info("Price store opened and schema migrated.")

	// Initialize the marketplace
	market := marketplace.NewKrakenClient(&cfg.Kraken, log)

	// Assemble the historical price sources: the database first, then the
	// venue ticker, then the remote history API.
	tolerance := time.Duration(cfg.Watch.ToleranceMinutes) * time.Minute
	freshness := time.Duration(cfg.Watch.FreshnessMinutes) * time.Minute
	databaseSource := history.NewDatabaseSource(priceStore, tolerance)
	marketSource := history.NewMarketSource(market)
	cryptoCompareSource := history.NewCryptoCompareSource(&cfg.CryptoCompare, log)
	cachingSource := history.NewCachingSource(log, databaseSource,
		[]history.PriceSource{marketSource, cryptoCompareSource}, priceStore, freshness)

	// Build the triggers from configuration
	trigs, err := triggers.MakeBuyTriggers(log, cfg.Triggers, priceStore, cachingSource)
	if err != nil {
		log.Fatal("Failed to build triggers", zap.Error(err))
	}
	for _, trigger := range trigs {
		log.Info("Trigger active", zap.String("name", trigger.Name()))
	}

	// Initialize notifications
	var notifier notifications.Notifier = notifications.NopNotifier{}
	if cfg.Telegram.Token != "" {
		telegram := notifications.NewTelegramNotifier(&cfg.Telegram, log)
		defer telegram.Close()
		notifier = telegram
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Run the watch loop with its status server
	interval := time.Duration(cfg.Watch.PollingIntervalSeconds) * time.Second
	watcher := watchloop.NewWatcher(log, trigs, priceStore, market, notifier, interval)

	statusServer := watchloop.NewStatusServer(watcher, cfg.Watch.ApiPort, log)
	statusServer.Start()

	watcher.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := statusServer.Stop(shutdownCtx); err != nil {
		log.Warn("Status server shutdown failed", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
