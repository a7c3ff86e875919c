package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vigilant-snatch-go/internal/config"
	"vigilant-snatch-go/internal/models"
)

const krakenBaseURL = "https://api.kraken.com"

// Kraken uses its own asset codes for a few currencies.
var normalToKraken = map[string]string{"BTC": "XBT"}
var krakenToNormal = map[string]string{"XBT": "BTC"}

func mapNormalToKraken(coin string) string {
	if mapped, ok := normalToKraken[coin]; ok {
		return mapped
	}
	return coin
}

func mapKrakenToNormal(coin string) string {
	// Balance keys come back as e.g. XXBT or ZEUR.
	if len(coin) == 4 && (coin[0] == 'X' || coin[0] == 'Z') {
		coin = coin[1:]
	}
	if mapped, ok := krakenToNormal[coin]; ok {
		return mapped
	}
	return coin
}

// krakenResponse is the envelope every Kraken endpoint answers with.
type krakenResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// KrakenClient is the Marketplace adapter for the Kraken REST API.
type KrakenClient struct {
	client     *resty.Client
	apiKey     string
	secretKey  string
	logger     *zap.Logger
	limiter    *rate.Limiter
	withdrawal map[string]config.Withdrawal
	feeInBase  bool
}

var _ Marketplace = (*KrakenClient)(nil)

// NewKrakenClient creates a new Kraken marketplace adapter.
func NewKrakenClient(cfg *config.Kraken, logger *zap.Logger) *KrakenClient {
	client := resty.New().SetBaseURL(krakenBaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &KrakenClient{
		client:     client,
		apiKey:     cfg.ApiKey,
		secretKey:  cfg.SecretKey,
		logger:     logger,
		limiter:    limiter,
		withdrawal: cfg.Withdrawal,
		feeInBase:  cfg.PreferFeeInBaseCurrency,
	}
}

func (c *KrakenClient) Name() string {
	return "Kraken"
}

// sign creates the API-Sign header value for a private endpoint call:
// HMAC-SHA512 of (path + SHA256(nonce + postdata)) with the b64 secret.
func (c *KrakenClient) sign(path, nonce, postData string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.secretKey)
	if err != nil {
		return "", fmt.Errorf("decoding kraken secret: %w", err)
	}

	digest := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// doRequest executes a request with rate limiting and retry on transient
// failures, then unwraps the Kraken response envelope.
func (c *KrakenClient) doRequest(ctx context.Context, method, path string, req *resty.Request) (json.RawMessage, error) {
	const maxRetries = 3

	var resp *resty.Response
	var err error
	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("path", path))
		resp, err = req.Execute(method, path)

		if err == nil && !resp.IsError() {
			var envelope krakenResponse
			if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
				return nil, fmt.Errorf("decoding kraken response: %w", err)
			}
			if len(envelope.Error) > 0 {
				return nil, fmt.Errorf("kraken error: %s", strings.Join(envelope.Error, "; "))
			}
			return envelope.Result, nil
		}

		shouldRetry := true
		if resp != nil {
			statusCode := resp.StatusCode()
			shouldRetry = statusCode == http.StatusTooManyRequests || statusCode >= 500
		}
		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// Exponential backoff: 1s, 2s, 4s
		retryAfter := time.Duration(math.Pow(2, float64(i))) * time.Second
		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// queryPublic calls an unauthenticated endpoint.
func (c *KrakenClient) queryPublic(ctx context.Context, command string, params url.Values) (json.RawMessage, error) {
	req := c.client.R().SetQueryParamsFromValues(params)
	return c.doRequest(ctx, "GET", "/0/public/"+command, req)
}

// queryPrivate calls an authenticated endpoint with a signed request.
func (c *KrakenClient) queryPrivate(ctx context.Context, command string, params url.Values) (json.RawMessage, error) {
	path := "/0/private/" + command
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	params.Set("nonce", nonce)
	postData := params.Encode()

	signature, err := c.sign(path, nonce, postData)
	if err != nil {
		return nil, err
	}

	req := c.client.R().
		SetHeader("API-Key", c.apiKey).
		SetHeader("API-Sign", signature).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(postData)

	return c.doRequest(ctx, "POST", path, req)
}

// SpotPrice fetches the current ticker price for the pair.
func (c *KrakenClient) SpotPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	params := url.Values{}
	params.Set("pair", mapNormalToKraken(pair.Coin)+pair.Fiat)

	result, err := c.queryPublic(ctx, "Ticker", params)
	if err != nil {
		return models.Price{}, fmt.Errorf("%w: %v", ErrTickerFailed, err)
	}

	// The result is keyed by Kraken's internal pair name, e.g. XXBTZEUR.
	var tickers map[string]struct {
		Close []string `json:"c"`
	}
	if err := json.Unmarshal(result, &tickers); err != nil {
		return models.Price{}, fmt.Errorf("%w: decoding ticker: %v", ErrTickerFailed, err)
	}

	for _, ticker := range tickers {
		if len(ticker.Close) == 0 {
			break
		}
		last, err := strconv.ParseFloat(ticker.Close[0], 64)
		if err != nil {
			return models.Price{}, fmt.Errorf("%w: parsing close price %q: %v", ErrTickerFailed, ticker.Close[0], err)
		}
		c.logger.Debug("Retrieved spot price",
			zap.String("pair", pair.String()),
			zap.Float64("last", last))
		return models.Price{
			Coin:      pair.Coin,
			Fiat:      pair.Fiat,
			Timestamp: at.Unix(),
			Last:      last,
		}, nil
	}

	return models.Price{}, fmt.Errorf("%w: no ticker for %s", ErrTickerFailed, pair)
}

// PlaceMarketBuy spends volumeFiat on a market buy order. Kraken orders are
// denominated in coin volume, so the fiat volume is converted at the current
// spot price first. A configured withdrawal policy runs after the buy.
func (c *KrakenClient) PlaceMarketBuy(ctx context.Context, pair models.AssetPair, volumeFiat float64) (*Order, error) {
	price, err := c.SpotPrice(ctx, pair, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuyFailed, err)
	}
	if price.Last <= 0 {
		return nil, fmt.Errorf("%w: non-positive spot price for %s", ErrBuyFailed, pair)
	}
	volumeCoin := roundVolume(volumeFiat / price.Last)

	feeFlag := "fciq"
	if c.feeInBase {
		feeFlag = "fcib"
	}

	params := url.Values{}
	params.Set("pair", mapNormalToKraken(pair.Coin)+pair.Fiat)
	params.Set("ordertype", "market")
	params.Set("type", "buy")
	params.Set("volume", strconv.FormatFloat(volumeCoin, 'f', -1, 64))
	params.Set("oflags", feeFlag)

	if _, err := c.queryPrivate(ctx, "AddOrder", params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuyFailed, err)
	}

	c.logger.Info("Market buy placed",
		zap.String("pair", pair.String()),
		zap.Float64("volume_coin", volumeCoin),
		zap.Float64("volume_fiat", volumeFiat))

	if err := c.withdraw(ctx, pair.Coin); err != nil {
		// The buy succeeded, a failed withdrawal must not undo it.
		c.logger.Warn("Withdrawal after buy failed", zap.String("coin", pair.Coin), zap.Error(err))
	}

	// AddOrder does not report fills, so the volumes are the requested
	// ones converted at the spot price used for the order.
	return &Order{VolumeCoin: volumeCoin, VolumeFiat: volumeFiat}, nil
}

// Balances returns account balances keyed by normalized currency code.
func (c *KrakenClient) Balances(ctx context.Context) (map[string]float64, error) {
	result, err := c.queryPrivate(ctx, "Balance", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTickerFailed, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding balances: %v", ErrTickerFailed, err)
	}

	balances := make(map[string]float64, len(raw))
	for currency, value := range raw {
		amount, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		balances[mapKrakenToNormal(currency)] = amount
	}
	return balances, nil
}

// withdrawalFee asks Kraken what a withdrawal of the given volume would cost.
func (c *KrakenClient) withdrawalFee(ctx context.Context, coin string, volume float64, target string) (float64, error) {
	params := url.Values{}
	params.Set("asset", mapNormalToKraken(coin))
	params.Set("amount", strconv.FormatFloat(volume, 'f', -1, 64))
	params.Set("key", target)

	result, err := c.queryPrivate(ctx, "WithdrawInfo", params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWithdrawalFailed, err)
	}

	var info struct {
		Fee string `json:"fee"`
	}
	if err := json.Unmarshal(result, &info); err != nil {
		return 0, fmt.Errorf("%w: decoding withdraw info: %v", ErrWithdrawalFailed, err)
	}
	fee, err := strconv.ParseFloat(info.Fee, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing fee %q: %v", ErrWithdrawalFailed, info.Fee, err)
	}
	return fee, nil
}

// withdraw moves the full balance of the coin to the configured target when
// the relative fee is below the configured limit. Coins without a withdrawal
// entry are left on the venue.
func (c *KrakenClient) withdraw(ctx context.Context, coin string) error {
	policy, ok := c.withdrawal[coin]
	if !ok {
		c.logger.Debug("No withdrawal config for coin", zap.String("coin", coin))
		return nil
	}

	balances, err := c.Balances(ctx)
	if err != nil {
		return err
	}
	volume := balances[coin]
	if volume == 0 {
		return nil
	}

	fee, err := c.withdrawalFee(ctx, coin, volume, policy.Target)
	if err != nil {
		return err
	}
	if fee/volume > policy.FeeLimitPercent/100 {
		c.logger.Debug("Not withdrawing, fee above limit",
			zap.String("coin", coin),
			zap.Float64("volume", volume),
			zap.Float64("fee", fee))
		return nil
	}

	c.logger.Info("Withdrawing",
		zap.String("coin", coin),
		zap.Float64("volume", volume),
		zap.Float64("fee", fee))

	params := url.Values{}
	params.Set("asset", mapNormalToKraken(coin))
	params.Set("amount", strconv.FormatFloat(volume, 'f', -1, 64))
	params.Set("key", policy.Target)
	if _, err := c.queryPrivate(ctx, "Withdraw", params); err != nil {
		return fmt.Errorf("%w: %v", ErrWithdrawalFailed, err)
	}
	return nil
}

// roundVolume trims a coin volume to 8 decimal places, the finest
// granularity Kraken accepts.
func roundVolume(volume float64) float64 {
	return math.Round(volume*1e8) / 1e8
}
