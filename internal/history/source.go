package history

import (
	"context"
	"errors"
	"time"

	"vigilant-snatch-go/internal/models"
)

// ErrPriceUnavailable is returned when every configured source has been
// exhausted for a lookup. A stale or wrong price is never returned silently
// in its place.
var ErrPriceUnavailable = errors.New("price unavailable from all sources")

// PriceSource answers "what was the price of this pair at/near this time".
// Implementations are free to fail for instants they cannot serve; the
// caching source falls through an ordered list of them.
type PriceSource interface {
	// Name identifies the source in logs.
	Name() string

	// FetchPrice returns the price of the pair at or near the given
	// instant.
	FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error)
}
