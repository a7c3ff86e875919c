package triggers

import (
	"context"
	"time"

	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/store"
)

// CooldownChecker decides whether a trigger may trade again. The decision is
// derived freshly from the store's trade history on every call, never from
// in-memory counters, so it survives process restarts.
type CooldownChecker struct {
	store       store.PriceStore
	triggerName string
	pair        models.AssetPair
	cooldown    time.Duration
	start       *time.Time
}

var _ TriggeredDelegate = (*CooldownChecker)(nil)

// NewCooldownChecker creates a cooldown delegate. A non-nil start gates all
// activity before that instant.
func NewCooldownChecker(st store.PriceStore, triggerName string, pair models.AssetPair, cooldown time.Duration, start *time.Time) *CooldownChecker {
	return &CooldownChecker{
		store:       st,
		triggerName: triggerName,
		pair:        pair,
		cooldown:    cooldown,
		start:       start,
	}
}

func (c *CooldownChecker) Name() string {
	return "Cooldown"
}

// HasCooledOff reports whether the trigger may trade at the given instant:
// never before start, always when no trade exists yet, and otherwise once
// the cooldown since the latest trade has fully elapsed.
func (c *CooldownChecker) HasCooledOff(ctx context.Context, now time.Time) (bool, error) {
	if c.start != nil && now.Before(*c.start) {
		return false, nil
	}
	latest, err := c.store.GetLatestTrade(c.pair, c.triggerName)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return true, nil
	}
	return now.Sub(latest.Time()) >= c.cooldown, nil
}

// IsTriggered makes the cooldown introspectable as a named delegate.
func (c *CooldownChecker) IsTriggered(ctx context.Context, now time.Time) (bool, error) {
	return c.HasCooledOff(ctx, now)
}
