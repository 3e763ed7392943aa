package fitting

import (
	"fmt"
	"strings"
)

// BodyRegion identifies where on the body a garment is worn.
// Every clothing slot in an outfit is keyed by one of these.
type BodyRegion string

const (
	RegionHead       BodyRegion = "head"
	RegionFace       BodyRegion = "face"
	RegionTorsoInner BodyRegion = "torso_inner"
	RegionTorsoOuter BodyRegion = "torso_outer"
	RegionHands      BodyRegion = "hands"
	RegionWaist      BodyRegion = "waist"
	RegionLegs       BodyRegion = "legs"
	RegionFeet       BodyRegion = "feet"
	RegionAccessory  BodyRegion = "accessory"
)

// Regions lists every body region in slot-iteration order.
var Regions = []BodyRegion{
	RegionHead,
	RegionFace,
	RegionTorsoInner,
	RegionTorsoOuter,
	RegionHands,
	RegionWaist,
	RegionLegs,
	RegionFeet,
	RegionAccessory,
}

var regionLabels = map[BodyRegion]string{
	RegionHead:       "head (hats, caps, headwear)",
	RegionFace:       "face (glasses, masks)",
	RegionTorsoInner: "inner top (shirt, t-shirt, blouse worn underneath)",
	RegionTorsoOuter: "outerwear (jacket, coat, cardigan worn on top)",
	RegionHands:      "hands (gloves, bracelets, watches)",
	RegionWaist:      "waist (belts)",
	RegionLegs:       "legs (trousers, skirts, shorts)",
	RegionFeet:       "feet (shoes, boots, socks)",
	RegionAccessory:  "accessory (bags, scarves, jewellery)",
}

// ParseBodyRegion parses a region id. Hyphenated spellings such as
// "torso-inner" are accepted.
func ParseBodyRegion(s string) (BodyRegion, error) {
	r := BodyRegion(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, s)
	}
	return r, nil
}

// Valid reports whether r is one of the nine known regions.
func (r BodyRegion) Valid() bool {
	return r.Index() >= 0
}

// Index returns the position of r in slot-iteration order, or -1.
func (r BodyRegion) Index() int {
	for i, region := range Regions {
		if region == r {
			return i
		}
	}
	return -1
}

// Label returns a human readable description used inside model instructions.
func (r BodyRegion) Label() string {
	if label, ok := regionLabels[r]; ok {
		return label
	}
	return string(r)
}

func (r BodyRegion) String() string {
	return string(r)
}

// RegionValues returns the region ids as plain strings, e.g. for schema enums.
func RegionValues() []string {
	values := make([]string, len(Regions))
	for i, r := range Regions {
		values[i] = string(r)
	}
	return values
}
