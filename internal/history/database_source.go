package history

import (
	"context"
	"fmt"
	"time"

	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/store"
)

// DatabaseSource serves prices already recorded in the price store. It is
// the authoritative first stop of the caching source.
type DatabaseSource struct {
	store     store.PriceStore
	tolerance time.Duration
}

var _ PriceSource = (*DatabaseSource)(nil)

// NewDatabaseSource creates a source reading from the given store. A lookup
// succeeds when a stored price lies within tolerance of the requested
// instant.
func NewDatabaseSource(st store.PriceStore, tolerance time.Duration) *DatabaseSource {
	return &DatabaseSource{store: st, tolerance: tolerance}
}

func (s *DatabaseSource) Name() string {
	return "Database"
}

func (s *DatabaseSource) FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	price, err := s.store.GetPriceNear(pair, at, s.tolerance)
	if err != nil {
		return models.Price{}, fmt.Errorf("reading stored price: %w", err)
	}
	if price == nil {
		return models.Price{}, fmt.Errorf("no stored price for %s within %s of %s", pair, s.tolerance, at.Format(time.RFC3339))
	}
	return *price, nil
}
