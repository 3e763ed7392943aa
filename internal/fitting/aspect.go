package fitting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AspectRatio is a width:height ratio a caller may request. AspectAuto
// derives the ratio from the model image.
type AspectRatio string

const (
	AspectAuto AspectRatio = "Auto"
	Aspect9x16 AspectRatio = "9:16"
	Aspect2x3  AspectRatio = "2:3"
	Aspect3x4  AspectRatio = "3:4"
	Aspect1x1  AspectRatio = "1:1"
	Aspect4x3  AspectRatio = "4:3"
	Aspect3x2  AspectRatio = "3:2"
	Aspect16x9 AspectRatio = "16:9"
)

// AspectRatios lists every ratio accepted as input.
var AspectRatios = []AspectRatio{
	AspectAuto,
	Aspect9x16,
	Aspect2x3,
	Aspect3x4,
	Aspect1x1,
	Aspect4x3,
	Aspect3x2,
	Aspect16x9,
}

// supportedRatios are the ratios the image model renders. Order matters:
// on equal distance the earlier entry wins.
var supportedRatios = []AspectRatio{
	Aspect1x1,
	Aspect3x4,
	Aspect4x3,
	Aspect9x16,
	Aspect16x9,
}

// PoseAspectRatio is the fixed framing used for catalog pose variants.
const PoseAspectRatio = Aspect3x4

// ParseAspectRatio parses an input ratio. An empty string means AspectAuto.
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(AspectAuto)) {
		return AspectAuto, nil
	}
	for _, a := range AspectRatios {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, s)
}

// Supported reports whether the image model renders a directly.
func (a AspectRatio) Supported() bool {
	for _, s := range supportedRatios {
		if s == a {
			return true
		}
	}
	return false
}

// Value returns width divided by height.
func (a AspectRatio) Value() (float64, error) {
	w, h, ok := strings.Cut(string(a), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, a)
	}
	wf, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, a)
	}
	hf, err := strconv.ParseFloat(h, 64)
	if err != nil || hf == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, a)
	}
	return wf / hf, nil
}

func (a AspectRatio) String() string {
	return string(a)
}

// ResolveAspectRatio maps requested onto a ratio the image model supports.
// Supported ratios pass through unchanged. AspectAuto uses width/height of
// the source image, and the remaining input ratios snap to the nearest
// supported value. Non-positive dimensions are treated as square.
func ResolveAspectRatio(requested AspectRatio, width, height int) (AspectRatio, error) {
	var target float64
	switch {
	case requested == AspectAuto:
		if width <= 0 || height <= 0 {
			target = 1
		} else {
			target = float64(width) / float64(height)
		}
	case requested.Supported():
		return requested, nil
	default:
		v, err := requested.Value()
		if err != nil {
			return "", err
		}
		target = v
	}
	return nearestSupported(target), nil
}

func nearestSupported(target float64) AspectRatio {
	best := supportedRatios[0]
	bestDiff := math.Inf(1)
	for _, candidate := range supportedRatios {
		v, _ := candidate.Value()
		if diff := math.Abs(v - target); diff < bestDiff {
			best = candidate
			bestDiff = diff
		}
	}
	return best
}
