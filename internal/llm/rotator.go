package llm

import (
	"errors"
	"strings"
	"sync/atomic"
)

// ErrNoCredentials is returned when the credential pool is empty.
var ErrNoCredentials = errors.New("no API keys configured")

// KeyRotator hands out API keys in round-robin order. Every call advances
// the cursor, so consecutive calls of one operation may use different keys.
type KeyRotator struct {
	keys   []string
	cursor atomic.Uint64
}

// NewKeyRotator creates a rotator over keys. Blank entries are dropped.
func NewKeyRotator(keys []string) *KeyRotator {
	pool := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			pool = append(pool, k)
		}
	}
	return &KeyRotator{keys: pool}
}

// Next returns the key at the current cursor and advances it.
func (r *KeyRotator) Next() (string, error) {
	if len(r.keys) == 0 {
		return "", ErrNoCredentials
	}
	n := r.cursor.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))], nil
}

// Len returns the pool size.
func (r *KeyRotator) Len() int {
	return len(r.keys)
}
