package history

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vigilant-snatch-go/internal/config"
	"vigilant-snatch-go/internal/models"
)

const cryptoCompareBaseURL = "https://min-api.cryptocompare.com"

// CryptoCompareSource serves historical prices from the CryptoCompare API.
// It is the fallback for lookups the venue ticker cannot answer, such as
// the drop reference price a few minutes in the past.
type CryptoCompareSource struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ PriceSource = (*CryptoCompareSource)(nil)

// NewCryptoCompareSource creates a new CryptoCompare historical source.
func NewCryptoCompareSource(cfg *config.CryptoCompare, logger *zap.Logger) *CryptoCompareSource {
	client := resty.New().SetBaseURL(cryptoCompareBaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &CryptoCompareSource{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger,
		limiter: limiter,
	}
}

func (s *CryptoCompareSource) Name() string {
	return "CryptoCompare"
}

func (s *CryptoCompareSource) FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	const maxRetries = 3

	if err := s.limiter.Wait(ctx); err != nil {
		return models.Price{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	// pricehistorical answers with {"BTC": {"EUR": 50162.2}}.
	var result map[string]map[string]float64

	req := s.client.R().
		SetQueryParam("fsym", pair.Coin).
		SetQueryParam("tsyms", pair.Fiat).
		SetQueryParam("ts", strconv.FormatInt(at.Unix(), 10)).
		SetResult(&result)
	if s.apiKey != "" {
		req.SetQueryParam("api_key", s.apiKey)
	}

	var resp *resty.Response
	var err error
	for i := 0; i < maxRetries; i++ {
		resp, err = req.Execute("GET", "/data/pricehistorical")
		if err == nil && !resp.IsError() {
			break
		}

		shouldRetry := true
		if resp != nil {
			statusCode := resp.StatusCode()
			shouldRetry = statusCode == http.StatusTooManyRequests || statusCode >= 500
		}
		if !shouldRetry {
			return models.Price{}, fmt.Errorf("historical request failed with status %s: %s", resp.Status(), resp.String())
		}

		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		s.logger.Warn("Historical request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return models.Price{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Price{}, fmt.Errorf("historical request failed after %d attempts: %w", maxRetries, err)
	}
	if resp.IsError() {
		return models.Price{}, fmt.Errorf("historical request failed after %d attempts with status %s", maxRetries, resp.Status())
	}

	last, ok := result[pair.Coin][pair.Fiat]
	if !ok || last <= 0 {
		return models.Price{}, fmt.Errorf("no historical price for %s at %s", pair, at.Format(time.RFC3339))
	}

	s.logger.Debug("Retrieved historical price",
		zap.String("pair", pair.String()),
		zap.Time("at", at),
		zap.Float64("last", last))

	return models.Price{
		Coin:      pair.Coin,
		Fiat:      pair.Fiat,
		Timestamp: at.Unix(),
		Last:      last,
	}, nil
}
