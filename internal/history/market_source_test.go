package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigilant-snatch-go/internal/marketplace"
	"vigilant-snatch-go/internal/models"
)

// spotStub is a Marketplace serving a fixed ticker price.
type spotStub struct {
	last  float64
	calls int
}

func (s *spotStub) Name() string { return "stub" }

func (s *spotStub) SpotPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	s.calls++
	return models.Price{Coin: pair.Coin, Fiat: pair.Fiat, Timestamp: at.Unix(), Last: s.last}, nil
}

func (s *spotStub) PlaceMarketBuy(ctx context.Context, pair models.AssetPair, volumeFiat float64) (*marketplace.Order, error) {
	return nil, marketplace.ErrBuyFailed
}

func (s *spotStub) Balances(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func TestMarketSource_ServesCurrentLookup(t *testing.T) {
	stub := &spotStub{last: 40000}
	source := NewMarketSource(stub)

	price, err := source.FetchPrice(context.Background(), btcEur, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 40000.0, price.Last)
	assert.WithinDuration(t, time.Now(), price.Time(), 5*time.Second,
		"the price carries the observation time")
}

func TestMarketSource_RefusesPastLookup(t *testing.T) {
	// A ticker has no history. A lookup minutes in the past must go to the
	// fallback chain instead of being answered with the current price under
	// a past timestamp, which would make every drop look like 0%.
	stub := &spotStub{last: 40000}
	source := NewMarketSource(stub)

	_, err := source.FetchPrice(context.Background(), btcEur, time.Now().Add(-10*time.Minute))

	assert.Error(t, err)
	assert.Equal(t, 0, stub.calls, "the ticker is not even queried")
}
