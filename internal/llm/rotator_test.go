package llm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRotator_RoundRobin(t *testing.T) {
	keys := []string{"k1", "k2", "k3"}
	r := NewKeyRotator(keys)

	var got []string
	for i := 0; i < 2*len(keys); i++ {
		k, err := r.Next()
		require.NoError(t, err)
		got = append(got, k)
	}
	assert.Equal(t, []string{"k1", "k2", "k3", "k1", "k2", "k3"}, got)
}

func TestKeyRotator_ConcurrentCallsUseEachKeyEqually(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	r := NewKeyRotator(keys)

	const rounds = 50
	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < rounds*len(keys); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k, err := r.Next()
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			counts[k]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, k := range keys {
		assert.Equal(t, rounds, counts[k], "key %s", k)
	}
}

func TestKeyRotator_EmptyPool(t *testing.T) {
	r := NewKeyRotator([]string{"", "  "})
	assert.Equal(t, 0, r.Len())

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestRotatingGenerator_EmptyPoolFailsFast(t *testing.T) {
	g := NewRotatingGenerator(NewKeyRotator(nil))
	_, err := g.GenerateContent(t.Context(), DefaultTextModel, nil, nil)
	assert.ErrorIs(t, err, ErrNoCredentials)
}
