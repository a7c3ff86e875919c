package history

import (
	"context"
	"fmt"
	"time"

	"vigilant-snatch-go/internal/marketplace"
	"vigilant-snatch-go/internal/models"
)

// marketWindow is how far a requested instant may lie from now and still be
// answered by the live ticker.
const marketWindow = 30 * time.Second

// MarketSource serves prices straight from the live venue ticker. A ticker
// has no history, so it only answers lookups for instants within a few
// seconds of now and lets the fallback chain handle everything older. The
// returned price carries the actual observation time, never the requested
// instant.
type MarketSource struct {
	market marketplace.Marketplace
}

var _ PriceSource = (*MarketSource)(nil)

// NewMarketSource creates a live-market source.
func NewMarketSource(market marketplace.Marketplace) *MarketSource {
	return &MarketSource{market: market}
}

func (s *MarketSource) Name() string {
	return s.market.Name() + " ticker"
}

func (s *MarketSource) FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	now := time.Now()
	if age := now.Sub(at); age > marketWindow || age < -marketWindow {
		return models.Price{}, fmt.Errorf("market source only serves current prices, %s is %s away", at.Format(time.RFC3339), age)
	}
	price, err := s.market.SpotPrice(ctx, pair, now)
	if err != nil {
		return models.Price{}, fmt.Errorf("fetching spot price: %w", err)
	}
	// The ticker observed the price now. Stamping the requested instant
	// instead would turn the current price into fake history.
	price.Timestamp = now.Unix()
	return price, nil
}
