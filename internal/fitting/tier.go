package fitting

import (
	"fmt"
	"strings"
)

// ResolutionTier is the output quality level of a rendering.
type ResolutionTier string

const (
	TierStandard ResolutionTier = "1K"
	TierEnhanced ResolutionTier = "2K"
	TierPremium  ResolutionTier = "4K"
)

// ResolutionTiers lists the tiers from lowest to highest.
var ResolutionTiers = []ResolutionTier{TierStandard, TierEnhanced, TierPremium}

var tierAliases = map[string]ResolutionTier{
	"standard": TierStandard,
	"enhanced": TierEnhanced,
	"premium":  TierPremium,
	"1k":       TierStandard,
	"2k":       TierEnhanced,
	"4k":       TierPremium,
}

// ParseResolutionTier accepts either the size ("2K") or the tier name
// ("enhanced"). An empty string means TierStandard.
func ParseResolutionTier(s string) (ResolutionTier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TierStandard, nil
	}
	if t, ok := tierAliases[s]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// RequiresSecret reports whether the tier is gated by the shared secret.
func (t ResolutionTier) RequiresSecret() bool {
	return t == TierPremium
}

// ImageSize is the value sent to the image model.
func (t ResolutionTier) ImageSize() string {
	return string(t)
}

func (t ResolutionTier) Valid() bool {
	for _, tier := range ResolutionTiers {
		if tier == t {
			return true
		}
	}
	return false
}
