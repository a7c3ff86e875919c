package marketplace

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vigilant-snatch-go/internal/config"
	"vigilant-snatch-go/internal/models"
)

// setupTestClient creates a test server and a KrakenClient pointed at it.
func setupTestClient(handler http.Handler) (*KrakenClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	kc := &KrakenClient{
		client:    resty.New().SetBaseURL(server.URL),
		apiKey:    "test_api_key",
		secretKey: base64.StdEncoding.EncodeToString([]byte("test_secret_key")),
		logger:    zap.NewNop(),
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}
	return kc, server
}

func TestSpotPrice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/0/public/Ticker", r.URL.Path)
			assert.Equal(t, "XBTEUR", r.URL.Query().Get("pair"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZEUR":{"c":["50162.20000","0.00196431"]}}}`))
		})
		kc, server := setupTestClient(handler)
		defer server.Close()

		now := time.Now()

		// Act
		price, err := kc.SpotPrice(context.Background(), models.AssetPair{Coin: "BTC", Fiat: "EUR"}, now)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, 50162.20, price.Last)
		assert.Equal(t, "BTC", price.Coin)
		assert.Equal(t, "EUR", price.Fiat)
		assert.Equal(t, now.Unix(), price.Timestamp)
	})

	t.Run("KrakenError", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
		})
		kc, server := setupTestClient(handler)
		defer server.Close()

		// Act
		_, err := kc.SpotPrice(context.Background(), models.AssetPair{Coin: "DOGE", Fiat: "EUR"}, time.Now())

		// Assert
		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrTickerFailed)
		assert.Contains(t, err.Error(), "Unknown asset pair")
	})
}

func TestPlaceMarketBuy(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		var orderForm map[string]string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/0/public/Ticker":
				_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZEUR":{"c":["50000.0","1"]}}}`))
			case "/0/private/AddOrder":
				assert.NotEmpty(t, r.Header.Get("API-Key"))
				assert.NotEmpty(t, r.Header.Get("API-Sign"))
				require.NoError(t, r.ParseForm())
				orderForm = map[string]string{
					"pair":      r.PostFormValue("pair"),
					"ordertype": r.PostFormValue("ordertype"),
					"type":      r.PostFormValue("type"),
					"volume":    r.PostFormValue("volume"),
					"oflags":    r.PostFormValue("oflags"),
				}
				_, _ = w.Write([]byte(`{"error":[],"result":{"txid":["OABC123"]}}`))
			default:
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
		})
		kc, server := setupTestClient(handler)
		defer server.Close()

		// Act
		order, err := kc.PlaceMarketBuy(context.Background(), models.AssetPair{Coin: "BTC", Fiat: "EUR"}, 25.0)

		// Assert
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.InDelta(t, 0.0005, order.VolumeCoin, 1e-9) // 25 EUR / 50000 EUR per BTC
		assert.Equal(t, 25.0, order.VolumeFiat)
		assert.Equal(t, "XBTEUR", orderForm["pair"])
		assert.Equal(t, "market", orderForm["ordertype"])
		assert.Equal(t, "buy", orderForm["type"])
		assert.Equal(t, "0.0005", orderForm["volume"])
		assert.Equal(t, "fciq", orderForm["oflags"])
	})

	t.Run("OrderRejected", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/0/public/Ticker":
				_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZEUR":{"c":["50000.0","1"]}}}`))
			case "/0/private/AddOrder":
				_, _ = w.Write([]byte(`{"error":["EOrder:Insufficient funds"],"result":{}}`))
			}
		})
		kc, server := setupTestClient(handler)
		defer server.Close()

		// Act
		order, err := kc.PlaceMarketBuy(context.Background(), models.AssetPair{Coin: "BTC", Fiat: "EUR"}, 25.0)

		// Assert
		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrBuyFailed)
		assert.Nil(t, order)
	})
}

func TestBalances(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/private/Balance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBT":"0.5","ZEUR":"120.75"}}`))
	})
	kc, server := setupTestClient(handler)
	defer server.Close()

	// Act
	balances, err := kc.Balances(context.Background())

	// Assert
	require.NoError(t, err)
	// Kraken's X/Z prefixed codes come back normalized.
	assert.Equal(t, map[string]float64{"BTC": 0.5, "EUR": 120.75}, balances)
}

func TestAssetMapping(t *testing.T) {
	assert.Equal(t, "XBT", mapNormalToKraken("BTC"))
	assert.Equal(t, "ETH", mapNormalToKraken("ETH"))
	assert.Equal(t, "BTC", mapKrakenToNormal("XXBT"))
	assert.Equal(t, "EUR", mapKrakenToNormal("ZEUR"))
	assert.Equal(t, "ETH", mapKrakenToNormal("ETH"))
}

func TestNewKrakenClient(t *testing.T) {
	cfg := &config.Kraken{ApiKey: "k", SecretKey: "s", RateLimit: 1, RateLimitBurst: 1}
	kc := NewKrakenClient(cfg, zap.NewNop())
	assert.NotNil(t, kc)
	assert.Equal(t, "Kraken", kc.Name())
	assert.Equal(t, cfg.ApiKey, kc.apiKey)
	assert.Equal(t, cfg.SecretKey, kc.secretKey)
}
