package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vigilant-snatch-go/internal/models"
)

var btcEur = models.AssetPair{Coin: "BTC", Fiat: "EUR"}

// newStores builds one instance of every PriceStore implementation so the
// same contract tests run against all of them.
func newStores(t *testing.T) map[string]PriceStore {
	// Use a new, non-shared in-memory database for each test to ensure isolation.
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	// Every pooled connection to a private in-memory sqlite database sees
	// its own empty database, so pin the pool to a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Price{}, &models.Trade{}))

	return map[string]PriceStore{
		"memory": NewMemoryStore(),
		"gorm":   NewGormStore(db),
	}
}

func TestGetPriceNear(t *testing.T) {
	now := time.Now()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.AddPrice(models.Price{Coin: "BTC", Fiat: "EUR", Timestamp: now.Add(-20 * time.Minute).Unix(), Last: 48000}))
			require.NoError(t, s.AddPrice(models.Price{Coin: "BTC", Fiat: "EUR", Timestamp: now.Add(-2 * time.Minute).Unix(), Last: 50000}))
			require.NoError(t, s.AddPrice(models.Price{Coin: "ETH", Fiat: "EUR", Timestamp: now.Unix(), Last: 3000}))

			// Closest entry for the right pair wins.
			price, err := s.GetPriceNear(btcEur, now, 10*time.Minute)
			require.NoError(t, err)
			require.NotNil(t, price)
			assert.Equal(t, 50000.0, price.Last)

			// Nothing within tolerance means nil, not an error.
			price, err = s.GetPriceNear(btcEur, now.Add(2*time.Hour), 10*time.Minute)
			require.NoError(t, err)
			assert.Nil(t, price)

			// A pair that was never stored is simply absent.
			price, err = s.GetPriceNear(models.AssetPair{Coin: "XMR", Fiat: "EUR"}, now, 10*time.Minute)
			require.NoError(t, err)
			assert.Nil(t, price)
		})
	}
}

func TestGetAllTrades_InsertionOrder(t *testing.T) {
	now := time.Now()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			first := models.Trade{Coin: "BTC", Fiat: "EUR", Timestamp: now.Unix(), TriggerName: "a", VolumeFiat: 25}
			second := models.Trade{Coin: "BTC", Fiat: "EUR", Timestamp: now.Add(-time.Hour).Unix(), TriggerName: "b", VolumeFiat: 50}
			other := models.Trade{Coin: "ETH", Fiat: "EUR", Timestamp: now.Unix(), TriggerName: "c", VolumeFiat: 10}
			require.NoError(t, s.AddTrade(first))
			require.NoError(t, s.AddTrade(second))
			require.NoError(t, s.AddTrade(other))

			// Insertion order, not timestamp order.
			trades, err := s.GetAllTrades(nil)
			require.NoError(t, err)
			require.Len(t, trades, 3)
			assert.Equal(t, "a", trades[0].TriggerName)
			assert.Equal(t, "b", trades[1].TriggerName)
			assert.Equal(t, "c", trades[2].TriggerName)

			filtered, err := s.GetAllTrades(&btcEur)
			require.NoError(t, err)
			require.Len(t, filtered, 2)
			assert.Equal(t, "a", filtered[0].TriggerName)
		})
	}
}

func TestGetLatestTrade(t *testing.T) {
	now := time.Now()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			latest, err := s.GetLatestTrade(btcEur, "drop")
			require.NoError(t, err)
			assert.Nil(t, latest, "no trades yet means nil, not an error")

			require.NoError(t, s.AddTrade(models.Trade{Coin: "BTC", Fiat: "EUR", Timestamp: now.Add(-2 * time.Hour).Unix(), TriggerName: "drop", VolumeFiat: 25}))
			require.NoError(t, s.AddTrade(models.Trade{Coin: "BTC", Fiat: "EUR", Timestamp: now.Unix(), TriggerName: "drop", VolumeFiat: 25}))
			require.NoError(t, s.AddTrade(models.Trade{Coin: "BTC", Fiat: "EUR", Timestamp: now.Add(time.Hour).Unix(), TriggerName: "other", VolumeFiat: 25}))

			latest, err = s.GetLatestTrade(btcEur, "drop")
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, now.Unix(), latest.Timestamp)
			assert.Equal(t, "drop", latest.TriggerName)
		})
	}
}

func TestConcurrentAppendAndRead(t *testing.T) {
	now := time.Now()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(offset int) {
					defer wg.Done()
					for j := 0; j < 10; j++ {
						_ = s.AddPrice(models.Price{Coin: "BTC", Fiat: "EUR", Timestamp: now.Unix() + int64(offset*10+j), Last: 50000})
						_, _ = s.GetPriceNear(btcEur, now, time.Hour)
					}
				}(i)
			}
			wg.Wait()

			prices, err := s.GetAllPrices(&btcEur)
			require.NoError(t, err)
			assert.Len(t, prices, 80)
		})
	}
}
