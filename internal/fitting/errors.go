package fitting

import "errors"

var (
	ErrInvalidRegion          = errors.New("invalid body region")
	ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")
	ErrUnknownTier            = errors.New("unknown resolution tier")
	ErrNoGarments             = errors.New("at least one garment image is required")
	ErrNoModelImage           = errors.New("model image is required")
	ErrNoModelAnalysis        = errors.New("model analysis is required")
	ErrEmptyImage             = errors.New("no image provided")
	ErrSlotEmpty              = errors.New("no garment in slot")
)
