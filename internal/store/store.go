package store

import (
	"errors"
	"time"

	"vigilant-snatch-go/internal/models"
)

// ErrStoreUnavailable is returned when the persistence layer cannot be
// reached. Absence of data is never an error; callers get nil results
// instead.
var ErrStoreUnavailable = errors.New("price store unavailable")

// PriceStore is the append-only record of observed prices and executed
// trades. Implementations must be safe for concurrent reads and appends and
// must never reorder or coalesce trade records.
type PriceStore interface {
	// AddPrice appends an observed price. Duplicates are acceptable, a
	// price is a fact rather than a mutable record.
	AddPrice(price models.Price) error

	// AddTrade appends an executed trade.
	AddTrade(trade models.Trade) error

	// GetPriceNear returns the stored price for the pair closest to the
	// given instant, or nil if none lies within the tolerance.
	GetPriceNear(pair models.AssetPair, at time.Time, tolerance time.Duration) (*models.Price, error)

	// GetAllPrices returns stored prices in insertion order, optionally
	// filtered by pair.
	GetAllPrices(pair *models.AssetPair) ([]models.Price, error)

	// GetAllTrades returns trades in insertion order, optionally filtered
	// by pair.
	GetAllTrades(pair *models.AssetPair) ([]models.Trade, error)

	// GetLatestTrade returns the most recent trade for the pair executed
	// by the named trigger, or nil if that trigger never traded.
	GetLatestTrade(pair models.AssetPair, triggerName string) (*models.Trade, error)
}
