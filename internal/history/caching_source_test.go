package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/store"
)

var btcEur = models.AssetPair{Coin: "BTC", Fiat: "EUR"}

// fixedSource answers every lookup with a fixed price and counts calls.
type fixedSource struct {
	last  float64
	calls int
}

func (s *fixedSource) Name() string { return "fixed" }

func (s *fixedSource) FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	s.calls++
	return models.Price{Coin: pair.Coin, Fiat: pair.Fiat, Timestamp: at.Unix(), Last: s.last}, nil
}

// failingSource refuses every lookup.
type failingSource struct {
	calls int
}

func (s *failingSource) Name() string { return "failing" }

func (s *failingSource) FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	s.calls++
	return models.Price{}, errors.New("connection refused")
}

func newCachingSource(fallbacks ...PriceSource) (*CachingSource, store.PriceStore) {
	st := store.NewMemoryStore()
	database := NewDatabaseSource(st, 10*time.Minute)
	caching := NewCachingSource(zap.NewNop(), database, fallbacks, st, 5*time.Minute)
	return caching, st
}

func TestFetchPrice_FallbackOrderAndWriteBack(t *testing.T) {
	// Arrange: the first source in the chain is down, the second works.
	market := &failingSource{}
	remote := &fixedSource{last: 50162.20}
	caching, st := newCachingSource(market, remote)

	// Act
	price, err := caching.FetchPrice(context.Background(), btcEur, time.Now())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 50162.20, price.Last)
	assert.Equal(t, 1, market.calls, "the failing source was attempted first")
	assert.Equal(t, 1, remote.calls)

	// The fallback result was written back to the store.
	stored, err := st.GetAllPrices(&btcEur)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 50162.20, stored[0].Last)
}

func TestFetchPrice_SecondLookupHitsCache(t *testing.T) {
	// Arrange
	remote := &fixedSource{last: 50000}
	caching, _ := newCachingSource(remote)
	now := time.Now()

	// Act: two lookups within tolerance and within the freshness window.
	first, err := caching.FetchPrice(context.Background(), btcEur, now)
	require.NoError(t, err)
	second, err := caching.FetchPrice(context.Background(), btcEur, now.Add(30*time.Second))
	require.NoError(t, err)

	// Assert: the second lookup was served from the store.
	assert.Equal(t, 1, remote.calls, "fallback must not be invoked twice for a fresh entry")
	assert.Equal(t, first.Last, second.Last)
}

func TestFetchPrice_AllSourcesExhausted(t *testing.T) {
	// Arrange
	first := &failingSource{}
	second := &failingSource{}
	caching, _ := newCachingSource(first, second)

	// Act
	_, err := caching.FetchPrice(context.Background(), btcEur, time.Now())

	// Assert
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestFetchPrice_StaleStoredPriceForcesRefetch(t *testing.T) {
	// Arrange: a price persisted by an earlier run has no recorded fetch
	// time, so it counts as stale even though it is within tolerance.
	remote := &fixedSource{last: 51000}
	caching, st := newCachingSource(remote)
	now := time.Now()
	require.NoError(t, st.AddPrice(models.Price{Coin: "BTC", Fiat: "EUR", Timestamp: now.Unix(), Last: 50000}))

	// Act
	price, err := caching.FetchPrice(context.Background(), btcEur, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 51000.0, price.Last)
	assert.Equal(t, 1, remote.calls)
}

func TestMarkFetched_SweepsIdlePairs(t *testing.T) {
	// Arrange: a freshness window so small every record expires right away.
	st := store.NewMemoryStore()
	database := NewDatabaseSource(st, 10*time.Minute)
	remote := &fixedSource{last: 50000}
	caching := NewCachingSource(zap.NewNop(), database, []PriceSource{remote}, st, time.Nanosecond)
	ethEur := models.AssetPair{Coin: "ETH", Fiat: "EUR"}

	// Act: fetch one pair, then another; the first is never touched again.
	_, err := caching.FetchPrice(context.Background(), btcEur, time.Now())
	require.NoError(t, err)
	_, err = caching.FetchPrice(context.Background(), ethEur, time.Now())
	require.NoError(t, err)

	// Assert: the expired record of the idle pair was swept out.
	caching.mu.Lock()
	defer caching.mu.Unlock()
	_, ok := caching.fetched[btcEur]
	assert.False(t, ok, "pairs no longer looked up must not keep bookkeeping")
	assert.Len(t, caching.fetched[ethEur], 1)
}

func TestDatabaseSource_MissIsAnError(t *testing.T) {
	st := store.NewMemoryStore()
	source := NewDatabaseSource(st, 10*time.Minute)

	_, err := source.FetchPrice(context.Background(), btcEur, time.Now())
	assert.Error(t, err)
}
