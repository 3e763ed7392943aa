package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/rs/zerolog/log"
)

// MemoryCache is an in-process AnalysisCache with a fixed TTL. Entries may
// be evicted at any time, so it is only suitable in front of a durable tier.
type MemoryCache struct {
	cache *cache.Cache[[]byte]
	ttl   time.Duration
}

var _ AnalysisCache = (*MemoryCache)(nil)

// NewMemoryCache creates a ristretto-backed cache bounded to maxBytes.
func NewMemoryCache(maxBytes int64, ttl time.Duration) (*MemoryCache, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &MemoryCache{
		cache: cache.New[[]byte](ristretto_store.NewRistretto(ristrettoCache)),
		ttl:   ttl,
	}, nil
}

// GetAnalysis implements AnalysisCache.
func (m *MemoryCache) GetAnalysis(key string) ([]byte, error) {
	// The ristretto store only fails on a miss.
	payload, err := m.cache.Get(context.Background(), key)
	if err != nil {
		return nil, nil
	}
	return payload, nil
}

// SetAnalysis implements AnalysisCache.
func (m *MemoryCache) SetAnalysis(key string, payload []byte) error {
	return m.cache.Set(context.Background(), key, payload,
		store.WithExpiration(m.ttl),
		store.WithCost(int64(len(payload))),
	)
}

// TieredCache reads through its tiers in order and back-fills the faster
// tiers on a hit further down. Writes go to every tier.
type TieredCache struct {
	tiers []AnalysisCache
}

var _ AnalysisCache = (*TieredCache)(nil)

func NewTieredCache(tiers ...AnalysisCache) *TieredCache {
	return &TieredCache{tiers: tiers}
}

// GetAnalysis implements AnalysisCache.
func (t *TieredCache) GetAnalysis(key string) ([]byte, error) {
	for i, tier := range t.tiers {
		payload, err := tier.GetAnalysis(key)
		if err != nil {
			log.Warn().Err(err).Int("tier", i).Msg("analysis cache read failed")
			continue
		}
		if payload == nil {
			continue
		}
		for _, faster := range t.tiers[:i] {
			if err := faster.SetAnalysis(key, payload); err != nil {
				log.Warn().Err(err).Msg("failed to back-fill analysis cache")
			}
		}
		return payload, nil
	}
	return nil, nil
}

// SetAnalysis implements AnalysisCache.
func (t *TieredCache) SetAnalysis(key string, payload []byte) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.SetAnalysis(key, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
