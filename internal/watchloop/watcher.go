package watchloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/marketplace"
	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/notifications"
	"vigilant-snatch-go/internal/store"
	"vigilant-snatch-go/internal/triggers"
)

// Watcher drives all active triggers on a fixed polling interval, executes
// buys and records trades. Trigger evaluation within a tick is sequential in
// configuration order so the order of posted trades is deterministic.
type Watcher struct {
	logger   *zap.Logger
	triggers []*triggers.BuyTrigger
	store    store.PriceStore
	market   marketplace.Marketplace
	notifier notifications.Notifier
	interval time.Duration
	events   chan notifications.Event
}

// NewWatcher creates a watcher over the given triggers.
func NewWatcher(logger *zap.Logger, trigs []*triggers.BuyTrigger, st store.PriceStore, market marketplace.Marketplace, notifier notifications.Notifier, interval time.Duration) *Watcher {
	return &Watcher{
		logger:   logger,
		triggers: trigs,
		store:    st,
		market:   market,
		notifier: notifier,
		interval: interval,
		events:   make(chan notifications.Event, 64),
	}
}

// Triggers returns the watched triggers in evaluation order, for status
// display.
func (w *Watcher) Triggers() []*triggers.BuyTrigger {
	trigs := make([]*triggers.BuyTrigger, len(w.triggers))
	copy(trigs, w.triggers)
	return trigs
}

// Events returns the stream of immutable tick-result events. Any
// presentation layer consumes it independently; when nobody reads, events
// are dropped rather than blocking the loop.
func (w *Watcher) Events() <-chan notifications.Event {
	return w.events
}

// Run executes the watch loop until the context is cancelled. Cancellation
// is honored at tick boundaries; in-flight venue calls complete so a placed
// order is never torn down blindly.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.events)

	w.logger.Info("Starting watch loop",
		zap.Duration("interval", w.interval),
		zap.Int("triggers", len(w.triggers)))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watch loop...")
			return
		case <-ticker.C:
			if err := w.tick(ctx, time.Now()); err != nil {
				// A failed tick is retried at the next interval.
				w.logger.Error("Tick failed", zap.Error(err))
			}
		}
	}
}

// tick evaluates every trigger once. One trigger's failure never prevents
// evaluation of the remaining triggers; only a store outage aborts the tick.
func (w *Watcher) tick(ctx context.Context, now time.Time) error {
	for _, trigger := range w.triggers {
		if err := w.processTrigger(ctx, trigger, now); err != nil {
			if errors.Is(err, store.ErrStoreUnavailable) {
				return fmt.Errorf("store unavailable, aborting tick: %w", err)
			}
			w.logger.Warn("Trigger evaluation failed",
				zap.String("trigger", trigger.Name()),
				zap.Error(err))
			w.emit(notifications.Event{
				Time:     now,
				Severity: notifications.SeverityWarning,
				Title:    "Trigger evaluation failed",
				Message:  fmt.Sprintf("%s: %v", trigger.Name(), err),
			})
		}
	}
	return nil
}

// processTrigger runs one trigger's decision and, when it fires, the buy.
func (w *Watcher) processTrigger(ctx context.Context, trigger *triggers.BuyTrigger, now time.Time) error {
	cooled, err := trigger.HasCooledOff(ctx, now)
	if err != nil {
		return fmt.Errorf("checking cooldown: %w", err)
	}
	if !cooled {
		return nil
	}

	triggered, err := trigger.IsTriggered(ctx, now)
	if err != nil {
		return fmt.Errorf("evaluating: %w", err)
	}
	if !triggered {
		return nil
	}

	l := w.logger.With(
		zap.String("trigger", trigger.Name()),
		zap.String("pair", trigger.Pair().String()),
		zap.Float64("volume_fiat", trigger.VolumeFiat()),
	)
	l.Info("Trigger fired, executing buy...")
	w.emit(notifications.Event{
		Time:     now,
		Severity: notifications.SeverityInfo,
		Title:    "Trigger fired",
		Message:  trigger.Name(),
	})

	order, err := w.market.PlaceMarketBuy(ctx, trigger.Pair(), trigger.VolumeFiat())
	if err != nil {
		return fmt.Errorf("executing buy: %w", err)
	}

	// Fall back to the requested volume when the venue reports no fills.
	volumeCoin := order.VolumeCoin
	volumeFiat := order.VolumeFiat
	if volumeFiat == 0 {
		volumeFiat = trigger.VolumeFiat()
	}

	trade := models.Trade{
		Coin:        trigger.Pair().Coin,
		Fiat:        trigger.Pair().Fiat,
		Timestamp:   now.Unix(),
		TriggerName: trigger.Name(),
		VolumeCoin:  volumeCoin,
		VolumeFiat:  volumeFiat,
	}
	if err := w.store.AddTrade(trade); err != nil {
		// The buy went through; losing the record would break the
		// cooldown, so the store failure has to surface.
		return fmt.Errorf("recording trade: %w", err)
	}

	l.Info("Trade recorded",
		zap.Float64("volume_coin", volumeCoin),
		zap.Float64("volume_fiat", volumeFiat))
	w.emit(notifications.Event{
		Time:     now,
		Severity: notifications.SeverityInfo,
		Title:    "Trade recorded",
		Message:  fmt.Sprintf("%s bought %g %s for %g %s", trigger.Name(), volumeCoin, trade.Coin, volumeFiat, trade.Fiat),
	})
	return nil
}

// emit forwards an event to the notifier and the event stream without ever
// blocking the loop.
func (w *Watcher) emit(event notifications.Event) {
	w.notifier.Notify(event)
	select {
	case w.events <- event:
	default:
	}
}
