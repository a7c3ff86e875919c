package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/config"
	"vigilant-snatch-go/internal/database"
	"vigilant-snatch-go/internal/logger"
	"vigilant-snatch-go/internal/store"
)

// The dashboard is a read-only companion process: it polls the same price
// store as the watch loop and serves its contents over HTTP.
func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the price store
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open price store", zap.Error(err))
	}
	priceStore := store.NewGormStore(db)

	// Setup HTTP server
	mux := http.NewServeMux()
	apiHandler := NewAPIHandler(log, priceStore, cfg.Triggers)

	// API endpoints
	mux.HandleFunc("/api/trades", apiHandler.TradesHandler)
	mux.HandleFunc("/api/prices", apiHandler.PricesHandler)

	addr := fmt.Sprintf(":%d", cfg.Watch.ApiPort+1)
	log.Info("Starting dashboard server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Dashboard server failed", zap.Error(err))
	}
}
