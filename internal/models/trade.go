package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade is the record of one executed purchase. It is created exactly once
// per successful buy and never updated; the trade history is the single
// source of truth for trigger cooldown state.
type Trade struct {
	gorm.Model
	Coin        string  `gorm:"index:idx_trades_pair" json:"coin"`
	Fiat        string  `gorm:"index:idx_trades_pair" json:"fiat"`
	Timestamp   int64   `gorm:"index" json:"timestamp"`
	TriggerName string  `gorm:"index" json:"trigger_name"`
	VolumeCoin  float64 `json:"volume_coin"`
	VolumeFiat  float64 `json:"volume_fiat"`
}

// Pair returns the asset pair this trade was executed on.
func (t Trade) Pair() AssetPair {
	return AssetPair{Coin: t.Coin, Fiat: t.Fiat}
}

// Time returns the execution timestamp as a time.Time.
func (t Trade) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}
