package store

import (
	"sync"
	"time"

	"vigilant-snatch-go/internal/models"
)

// MemoryStore is the in-memory PriceStore. It honors the same contract as
// GormStore and is used in tests and dry runs where persistence across
// restarts does not matter.
type MemoryStore struct {
	mu     sync.RWMutex
	prices []models.Price
	trades []models.Trade
}

var _ PriceStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AddPrice(price models.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, price)
	return nil
}

func (s *MemoryStore) AddTrade(trade models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

func (s *MemoryStore) GetPriceNear(pair models.AssetPair, at time.Time, tolerance time.Duration) (*models.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Price
	var bestDistance time.Duration
	for i := range s.prices {
		p := s.prices[i]
		if p.Pair() != pair {
			continue
		}
		distance := at.Sub(p.Time())
		if distance < 0 {
			distance = -distance
		}
		if distance > tolerance {
			continue
		}
		if best == nil || distance < bestDistance {
			copied := p
			best = &copied
			bestDistance = distance
		}
	}
	return best, nil
}

func (s *MemoryStore) GetAllPrices(pair *models.AssetPair) ([]models.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make([]models.Price, 0, len(s.prices))
	for _, p := range s.prices {
		if pair == nil || p.Pair() == *pair {
			prices = append(prices, p)
		}
	}
	return prices, nil
}

func (s *MemoryStore) GetAllTrades(pair *models.AssetPair) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]models.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if pair == nil || t.Pair() == *pair {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

func (s *MemoryStore) GetLatestTrade(pair models.AssetPair, triggerName string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Trade
	for i := range s.trades {
		t := s.trades[i]
		if t.Pair() != pair || t.TriggerName != triggerName {
			continue
		}
		if latest == nil || t.Timestamp >= latest.Timestamp {
			copied := t
			latest = &copied
		}
	}
	return latest, nil
}
