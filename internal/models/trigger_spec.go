package models

import (
	"fmt"
	"time"
)

// TriggerSpec is the declarative configuration of a single buy trigger.
// It is loaded once at startup and never mutated at runtime; changing the
// configuration means rebuilding the trigger instances wholesale.
type TriggerSpec struct {
	Coin            string   `mapstructure:"coin"`
	Fiat            string   `mapstructure:"fiat"`
	VolumeFiat      float64  `mapstructure:"volume_fiat"`
	CooldownMinutes int      `mapstructure:"cooldown_minutes"`
	DelayMinutes    int      `mapstructure:"delay_minutes"`
	DropPercentage  *float64 `mapstructure:"drop_percentage"`
	Start           string   `mapstructure:"start"` // RFC3339 or YYYY-MM-DD, optional
}

// Pair returns the asset pair this spec trades.
func (s TriggerSpec) Pair() AssetPair {
	return AssetPair{Coin: s.Coin, Fiat: s.Fiat}
}

// Cooldown returns the minimum duration between successive trades.
func (s TriggerSpec) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes) * time.Minute
}

// Delay returns the lookback offset used to compute the drop reference price.
func (s TriggerSpec) Delay() time.Duration {
	return time.Duration(s.DelayMinutes) * time.Minute
}

// StartTime parses the optional activation instant. A nil result means the
// trigger is active from the beginning.
func (s TriggerSpec) StartTime() (*time.Time, error) {
	if s.Start == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s.Start); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("cannot parse trigger start %q", s.Start)
}

// Name derives the stable trigger name used as the trigger_name key on
// persisted trades. Renaming a trigger therefore resets its cooldown.
func (s TriggerSpec) Name() string {
	if s.DropPercentage != nil {
		return fmt.Sprintf("Drop %g%% %s %g %s", *s.DropPercentage, s.Pair(), s.VolumeFiat, s.Fiat)
	}
	return fmt.Sprintf("Every %dm %s %g %s", s.CooldownMinutes, s.Pair(), s.VolumeFiat, s.Fiat)
}

// Validate reports configuration mistakes that would make the trigger
// misbehave silently at runtime.
func (s TriggerSpec) Validate() error {
	if s.Coin == "" || s.Fiat == "" {
		return fmt.Errorf("trigger %q needs both coin and fiat", s.Name())
	}
	if s.VolumeFiat <= 0 {
		return fmt.Errorf("trigger %q needs a positive volume_fiat", s.Name())
	}
	if s.CooldownMinutes <= 0 {
		return fmt.Errorf("trigger %q needs a positive cooldown_minutes", s.Name())
	}
	if s.DropPercentage != nil && s.DelayMinutes <= 0 {
		return fmt.Errorf("trigger %q needs delay_minutes for drop detection", s.Name())
	}
	if _, err := s.StartTime(); err != nil {
		return err
	}
	return nil
}
