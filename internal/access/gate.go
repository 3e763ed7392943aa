package access

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"golang.org/x/crypto/bcrypt"
)

// ErrAccessDenied is returned when a gated tier is requested without the
// matching shared secret.
var ErrAccessDenied = errors.New("access denied: premium tier requires a valid access secret")

// Gate validates the shared secret that unlocks the premium resolution tier.
// The configured secret is either plaintext or a bcrypt hash.
type Gate struct {
	secret []byte
	hashed bool
}

// NewGate creates a gate for the configured secret. An empty secret denies
// every gated request.
func NewGate(secret string) *Gate {
	secret = strings.TrimSpace(secret)
	return &Gate{
		secret: []byte(secret),
		hashed: isBcryptHash(secret),
	}
}

// Verify reports whether candidate matches the configured secret.
func (g *Gate) Verify(candidate string) bool {
	if len(g.secret) == 0 || candidate == "" {
		return false
	}
	if g.hashed {
		return bcrypt.CompareHashAndPassword(g.secret, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(candidate)) == 1
}

// Authorize checks whether tier may be rendered with the supplied secret.
// Ungated tiers always pass.
func (g *Gate) Authorize(tier fitting.ResolutionTier, secret string) error {
	if !tier.RequiresSecret() {
		return nil
	}
	if !g.Verify(secret) {
		return ErrAccessDenied
	}
	return nil
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
