package models

import (
	"time"

	"gorm.io/gorm"
)

// Price is a single observed market price for an asset pair.
// Rows are append-only; a price is a fact and is never updated or deleted.
type Price struct {
	gorm.Model
	Coin      string  `gorm:"index:idx_prices_pair" json:"coin"`
	Fiat      string  `gorm:"index:idx_prices_pair" json:"fiat"`
	Timestamp int64   `gorm:"index" json:"timestamp"`
	Last      float64 `json:"last"`
}

// Pair returns the asset pair this price belongs to.
func (p Price) Pair() AssetPair {
	return AssetPair{Coin: p.Coin, Fiat: p.Fiat}
}

// Time returns the observation timestamp as a time.Time.
func (p Price) Time() time.Time {
	return time.Unix(p.Timestamp, 0)
}
