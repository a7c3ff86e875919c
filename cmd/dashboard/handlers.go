package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/store"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	store store.PriceStore
	pairs []models.AssetPair
}

// NewAPIHandler creates a new APIHandler watching the configured pairs.
func NewAPIHandler(log *zap.Logger, st store.PriceStore, specs []models.TriggerSpec) *APIHandler {
	seen := make(map[models.AssetPair]struct{})
	var pairs []models.AssetPair
	for _, spec := range specs {
		if _, ok := seen[spec.Pair()]; ok {
			continue
		}
		seen[spec.Pair()] = struct{}{}
		pairs = append(pairs, spec.Pair())
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })

	return &APIHandler{log: log, store: st, pairs: pairs}
}

// TradesHandler returns all recorded trades, most recent first.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.GetAllTrades(nil)
	if err != nil {
		h.log.Error("Failed to get trades from store", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Timestamp > trades[j].Timestamp })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// PairPrice is the latest stored price of one watched pair.
type PairPrice struct {
	Coin      string  `json:"coin"`
	Fiat      string  `json:"fiat"`
	Last      float64 `json:"last"`
	Timestamp int64   `json:"timestamp"`
}

// PricesHandler returns the most recent stored price per watched pair.
func (h *APIHandler) PricesHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	prices := make([]PairPrice, 0, len(h.pairs))

	for _, pair := range h.pairs {
		// A day of lookback is plenty for a display of "current" prices.
		price, err := h.store.GetPriceNear(pair, now, 24*time.Hour)
		if err != nil {
			h.log.Error("Failed to get price from store",
				zap.String("pair", pair.String()), zap.Error(err))
			http.Error(w, "Failed to get prices", http.StatusInternalServerError)
			return
		}
		if price == nil {
			continue
		}
		prices = append(prices, PairPrice{
			Coin:      price.Coin,
			Fiat:      price.Fiat,
			Last:      price.Last,
			Timestamp: price.Timestamp,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prices)
}
