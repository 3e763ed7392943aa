package studio

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// SweepInterval is the time between sweeps of idle sessions.
	SweepInterval = 5 * time.Minute

	// CachePruneInterval is how often old analysis cache rows are pruned.
	CachePruneInterval = 24 * time.Hour

	// CacheMaxAge is how long cached analyses are kept.
	CacheMaxAge = 30 * 24 * time.Hour // 30 days
)

// CachePruner deletes old analysis cache entries.
type CachePruner interface {
	PruneAnalysisCache(maxAge time.Duration) (int64, error)
}

// Sweeper is the background service that expires idle sessions and prunes
// the analysis cache.
type Sweeper struct {
	manager *Manager
	cache   CachePruner
}

// NewSweeper creates a sweeper. cache may be nil.
func NewSweeper(manager *Manager, cache CachePruner) *Sweeper {
	return &Sweeper{manager: manager, cache: cache}
}

// Run starts the sweep loop. It blocks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", SweepInterval).Msg("starting session sweeper")

	s.pruneCache()

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(CachePruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session sweeper stopped")
			return
		case now := <-ticker.C:
			s.sweep(now)
		case <-pruneTicker.C:
			s.pruneCache()
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	if n := s.manager.PruneIdle(now); n > 0 {
		log.Info().Int("count", n).Int("remaining", s.manager.Len()).Msg("expired idle sessions")
	}
}

func (s *Sweeper) pruneCache() {
	if s.cache == nil {
		return
	}
	n, err := s.cache.PruneAnalysisCache(CacheMaxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune analysis cache")
		return
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("pruned old analysis cache entries")
	}
}
