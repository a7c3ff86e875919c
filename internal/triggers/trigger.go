package triggers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/models"
)

// BuyTrigger is a named decision unit: it fires, meaning a buy is due, when
// all of its price delegates hold and its cooldown has elapsed. All
// persistent state lives in the price store; evaluating a trigger never
// mutates it.
type BuyTrigger struct {
	logger    *zap.Logger
	spec      models.TriggerSpec
	name      string
	cooldown  *CooldownChecker
	delegates []TriggeredDelegate
}

// NewBuyTrigger assembles a trigger from its delegates. The delegate order
// is preserved for display.
func NewBuyTrigger(logger *zap.Logger, spec models.TriggerSpec, cooldown *CooldownChecker, delegates []TriggeredDelegate) *BuyTrigger {
	return &BuyTrigger{
		logger:    logger.With(zap.String("trigger", spec.Name())),
		spec:      spec,
		name:      spec.Name(),
		cooldown:  cooldown,
		delegates: delegates,
	}
}

// Name returns the stable trigger name recorded on its trades.
func (t *BuyTrigger) Name() string {
	return t.name
}

// Pair returns the asset pair this trigger buys.
func (t *BuyTrigger) Pair() models.AssetPair {
	return t.spec.Pair()
}

// VolumeFiat returns the fiat volume to spend per buy.
func (t *BuyTrigger) VolumeFiat() float64 {
	return t.spec.VolumeFiat
}

// HasCooledOff reports whether the trigger may trade at the given instant.
// A store failure comes back as false plus the error, so a flaky store can
// never cause a double spend and the caller still sees the outage.
func (t *BuyTrigger) HasCooledOff(ctx context.Context, now time.Time) (bool, error) {
	cooled, err := t.cooldown.HasCooledOff(ctx, now)
	if err != nil {
		t.logger.Warn("Cooldown check failed", zap.Error(err))
		return false, err
	}
	return cooled, nil
}

// IsTriggered reports whether every price delegate holds at the given
// instant. A delegate failure, such as an unavailable price, means "not
// triggered"; the error is returned so callers can log it.
func (t *BuyTrigger) IsTriggered(ctx context.Context, now time.Time) (bool, error) {
	for _, delegate := range t.delegates {
		triggered, err := delegate.IsTriggered(ctx, now)
		if err != nil {
			return false, err
		}
		if !triggered {
			return false, nil
		}
	}
	return true, nil
}

// Delegates returns all named conditions, cooldown included, in display
// order. The slice is a copy; consumers iterate, never mutate.
func (t *BuyTrigger) Delegates() []TriggeredDelegate {
	all := make([]TriggeredDelegate, 0, len(t.delegates)+1)
	all = append(all, t.delegates...)
	all = append(all, t.cooldown)
	return all
}
