package triggers

import (
	"context"
	"fmt"
	"time"

	"vigilant-snatch-go/internal/history"
	"vigilant-snatch-go/internal/models"
)

// TriggeredDelegate is one independently queryable sub-condition of a buy
// trigger. Exposing delegates by name lets a status display show "Waiting"
// vs "Ready" per condition without duplicating the evaluation logic.
type TriggeredDelegate interface {
	// Name identifies the condition, e.g. "Drop" or "Cooldown".
	Name() string

	// IsTriggered reports whether the condition holds at the given
	// instant. It is side-effect-free with respect to trigger state.
	IsTriggered(ctx context.Context, now time.Time) (bool, error)
}

// DropDelegate fires when the price dropped by at least a configured
// percentage over the lookback delay.
type DropDelegate struct {
	source history.PriceSource
	pair   models.AssetPair
	drop   float64
	delay  time.Duration
}

var _ TriggeredDelegate = (*DropDelegate)(nil)

// NewDropDelegate creates a drop detector reading current and reference
// prices from the given source.
func NewDropDelegate(source history.PriceSource, pair models.AssetPair, dropPercentage float64, delay time.Duration) *DropDelegate {
	return &DropDelegate{
		source: source,
		pair:   pair,
		drop:   dropPercentage,
		delay:  delay,
	}
}

func (d *DropDelegate) Name() string {
	return "Drop"
}

func (d *DropDelegate) IsTriggered(ctx context.Context, now time.Time) (bool, error) {
	current, err := d.source.FetchPrice(ctx, d.pair, now)
	if err != nil {
		return false, fmt.Errorf("fetching current price: %w", err)
	}
	reference, err := d.source.FetchPrice(ctx, d.pair, now.Add(-d.delay))
	if err != nil {
		return false, fmt.Errorf("fetching reference price: %w", err)
	}
	if reference.Last <= 0 {
		return false, nil
	}
	change := (reference.Last - current.Last) / reference.Last * 100
	return change >= d.drop, nil
}

// AlwaysDelegate is the price condition of a pure-schedule trigger: always
// ready, leaving the cadence entirely to the cooldown.
type AlwaysDelegate struct{}

var _ TriggeredDelegate = (*AlwaysDelegate)(nil)

func (d *AlwaysDelegate) Name() string {
	return "Schedule"
}

func (d *AlwaysDelegate) IsTriggered(ctx context.Context, now time.Time) (bool, error) {
	return true, nil
}
