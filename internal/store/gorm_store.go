package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vigilant-snatch-go/internal/models"
)

// GormStore is the persisted PriceStore backed by a gorm sqlite database.
// It survives process restarts with the same contract as MemoryStore.
type GormStore struct {
	db *gorm.DB
}

var _ PriceStore = (*GormStore)(nil)

// NewGormStore creates a PriceStore on top of an already migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AddPrice(price models.Price) error {
	if err := s.db.Create(&price).Error; err != nil {
		return fmt.Errorf("%w: adding price: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *GormStore) AddTrade(trade models.Trade) error {
	if err := s.db.Create(&trade).Error; err != nil {
		return fmt.Errorf("%w: adding trade: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *GormStore) GetPriceNear(pair models.AssetPair, at time.Time, tolerance time.Duration) (*models.Price, error) {
	lower := at.Add(-tolerance).Unix()
	upper := at.Add(tolerance).Unix()

	var price models.Price
	err := s.db.
		Where("coin = ? AND fiat = ? AND timestamp BETWEEN ? AND ?", pair.Coin, pair.Fiat, lower, upper).
		Order(fmt.Sprintf("ABS(timestamp - %d) ASC", at.Unix())).
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying price: %v", ErrStoreUnavailable, err)
	}
	return &price, nil
}

func (s *GormStore) GetAllPrices(pair *models.AssetPair) ([]models.Price, error) {
	var prices []models.Price
	query := s.db.Order("id ASC")
	if pair != nil {
		query = query.Where("coin = ? AND fiat = ?", pair.Coin, pair.Fiat)
	}
	if err := query.Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("%w: listing prices: %v", ErrStoreUnavailable, err)
	}
	return prices, nil
}

func (s *GormStore) GetAllTrades(pair *models.AssetPair) ([]models.Trade, error) {
	var trades []models.Trade
	query := s.db.Order("id ASC")
	if pair != nil {
		query = query.Where("coin = ? AND fiat = ?", pair.Coin, pair.Fiat)
	}
	if err := query.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("%w: listing trades: %v", ErrStoreUnavailable, err)
	}
	return trades, nil
}

func (s *GormStore) GetLatestTrade(pair models.AssetPair, triggerName string) (*models.Trade, error) {
	var trade models.Trade
	err := s.db.
		Where("coin = ? AND fiat = ? AND trigger_name = ?", pair.Coin, pair.Fiat, triggerName).
		Order("timestamp DESC").
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying latest trade: %v", ErrStoreUnavailable, err)
	}
	return &trade, nil
}
