package triggers

import (
	"fmt"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/history"
	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/store"
)

// MakeBuyTrigger builds one trigger from its spec. Specs with a drop
// percentage get a drop detector; pure-schedule specs are always ready and
// paced by their cooldown alone.
func MakeBuyTrigger(logger *zap.Logger, spec models.TriggerSpec, st store.PriceStore, source history.PriceSource) (*BuyTrigger, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	start, err := spec.StartTime()
	if err != nil {
		return nil, err
	}

	var delegate TriggeredDelegate
	if spec.DropPercentage != nil {
		delegate = NewDropDelegate(source, spec.Pair(), *spec.DropPercentage, spec.Delay())
	} else {
		delegate = &AlwaysDelegate{}
	}

	cooldown := NewCooldownChecker(st, spec.Name(), spec.Pair(), spec.Cooldown(), start)
	return NewBuyTrigger(logger, spec, cooldown, []TriggeredDelegate{delegate}), nil
}

// MakeBuyTriggers builds all configured triggers in configuration order,
// which is also the order their buys execute within a tick.
func MakeBuyTriggers(logger *zap.Logger, specs []models.TriggerSpec, st store.PriceStore, source history.PriceSource) ([]*BuyTrigger, error) {
	triggers := make([]*BuyTrigger, 0, len(specs))
	for i, spec := range specs {
		trigger, err := MakeBuyTrigger(logger, spec, st, source)
		if err != nil {
			return nil, fmt.Errorf("building trigger %d: %w", i, err)
		}
		triggers = append(triggers, trigger)
	}
	return triggers, nil
}
