package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vigilant-snatch-go/internal/models"
	"vigilant-snatch-go/internal/store"
)

// fetchRecord remembers that a price for some target instant was fetched
// over the network, and when. It is the freshness half of a cache entry;
// the price itself lives in the store.
type fetchRecord struct {
	target    time.Time
	fetchedAt time.Time
}

// CachingSource answers price lookups with at most one network fetch per
// (pair, freshness window), favoring locally stored data. It composes the
// authoritative database source with an ordered list of fallback sources and
// writes every fallback result back into the store.
type CachingSource struct {
	logger    *zap.Logger
	database  *DatabaseSource
	fallbacks []PriceSource
	store     store.PriceStore
	freshness time.Duration
	tolerance time.Duration

	mu      sync.Mutex
	fetched map[models.AssetPair][]fetchRecord
}

var _ PriceSource = (*CachingSource)(nil)

// NewCachingSource creates the caching layer. Fallbacks are tried in the
// given order; the first one to answer wins.
func NewCachingSource(logger *zap.Logger, database *DatabaseSource, fallbacks []PriceSource, st store.PriceStore, freshness time.Duration) *CachingSource {
	return &CachingSource{
		logger:    logger,
		database:  database,
		fallbacks: fallbacks,
		store:     st,
		freshness: freshness,
		tolerance: database.tolerance,
		fetched:   make(map[models.AssetPair][]fetchRecord),
	}
}

func (s *CachingSource) Name() string {
	return "Caching"
}

// FetchPrice implements the lookup algorithm: stored-and-fresh first, then
// the fallback chain with write-back, then ErrPriceUnavailable. Two
// concurrent lookups for the same uncached entry may both reach the network;
// both write-backs are safe because prices are append-only facts.
func (s *CachingSource) FetchPrice(ctx context.Context, pair models.AssetPair, at time.Time) (models.Price, error) {
	price, err := s.database.FetchPrice(ctx, pair, at)
	if err == nil && s.isFresh(pair, at) {
		return price, nil
	}
	if err != nil {
		s.logger.Debug("No usable stored price, trying fallbacks",
			zap.String("pair", pair.String()),
			zap.Time("at", at))
	}

	for _, source := range s.fallbacks {
		fetched, ferr := source.FetchPrice(ctx, pair, at)
		if ferr != nil {
			// A single source failing only means moving on to the next.
			s.logger.Warn("Price source failed",
				zap.String("source", source.Name()),
				zap.String("pair", pair.String()),
				zap.Error(ferr))
			continue
		}

		s.markFetched(pair, at)
		if serr := s.store.AddPrice(fetched); serr != nil {
			// The price is still valid even if it could not be cached.
			s.logger.Warn("Failed to write price back to store",
				zap.String("pair", pair.String()),
				zap.Error(serr))
		}
		return fetched, nil
	}

	s.logger.Warn("All price sources exhausted",
		zap.String("pair", pair.String()),
		zap.Time("at", at))
	return models.Price{}, ErrPriceUnavailable
}

// isFresh reports whether a fetch covering this lookup happened within the
// freshness window. A record covers lookups strictly closer than the
// tolerance, so a lookup exactly one tolerance away is re-resolved instead
// of reusing a fetch made for a different instant. Entries persisted by
// earlier runs have no recorded fetch, count as stale, and force one
// re-fetch.
func (s *CachingSource) isFresh(pair models.AssetPair, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.fetched[pair] {
		distance := record.target.Sub(at)
		if distance < 0 {
			distance = -distance
		}
		if distance < s.tolerance && time.Since(record.fetchedAt) < s.freshness {
			return true
		}
	}
	return false
}

// markFetched records a completed network fetch and sweeps out records whose
// freshness window has already passed, across all pairs, so a pair that
// stops being looked up does not keep its bookkeeping forever.
func (s *CachingSource) markFetched(pair models.AssetPair, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p, records := range s.fetched {
		kept := records[:0]
		for _, record := range records {
			if time.Since(record.fetchedAt) < s.freshness {
				kept = append(kept, record)
			}
		}
		if len(kept) == 0 {
			delete(s.fetched, p)
		} else {
			s.fetched[p] = kept
		}
	}
	s.fetched[pair] = append(s.fetched[pair], fetchRecord{target: at, fetchedAt: time.Now()})
}
