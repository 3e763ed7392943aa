package studio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockPruner struct {
	calls  []time.Duration
	result int64
	err    error
}

func (m *mockPruner) PruneAnalysisCache(maxAge time.Duration) (int64, error) {
	m.calls = append(m.calls, maxAge)
	return m.result, m.err
}

func TestSweeper_SweepExpiresIdleSessions(t *testing.T) {
	m := NewManager(time.Hour)
	s := m.Create()
	sw := NewSweeper(m, nil)

	sw.sweep(time.Now())
	assert.Equal(t, 1, m.Len())

	sw.sweep(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 0, m.Len())
	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweeper_PruneCache(t *testing.T) {
	pruner := &mockPruner{result: 3}
	sw := NewSweeper(NewManager(time.Hour), pruner)

	sw.pruneCache()
	assert.Equal(t, []time.Duration{CacheMaxAge}, pruner.calls)

	pruner.err = errors.New("database is locked")
	sw.pruneCache()
	assert.Len(t, pruner.calls, 2)

	NewSweeper(NewManager(time.Hour), nil).pruneCache()
}
