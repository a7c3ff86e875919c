package marketplace

import (
	"context"
	"errors"
	"time"

	"vigilant-snatch-go/internal/models"
)

// Failure categories for marketplace calls. The watch loop treats any of
// them as recoverable for the current tick only.
var (
	ErrTickerFailed     = errors.New("marketplace ticker request failed")
	ErrBuyFailed        = errors.New("marketplace buy order failed")
	ErrWithdrawalFailed = errors.New("marketplace withdrawal failed")
)

// Order describes the fills reported for an executed market buy. Venues
// that do not report fills leave the volumes at zero and callers fall back
// to the requested volume.
type Order struct {
	VolumeCoin float64
	VolumeFiat float64
}

// Marketplace is the trade-execution collaborator: the single external
// venue the watch loop buys on. Withdrawal policy is configured opaquely on
// the adapter and applied after each buy.
type Marketplace interface {
	// Name identifies the venue for logs and notifications.
	Name() string

	// SpotPrice returns the venue's current price for the pair, stamped
	// with the given instant.
	SpotPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error)

	// PlaceMarketBuy spends volumeFiat on a market buy of the pair's coin.
	PlaceMarketBuy(ctx context.Context, pair models.AssetPair, volumeFiat float64) (*Order, error)

	// Balances returns the account balances by currency.
	Balances(ctx context.Context) (map[string]float64, error)
}
