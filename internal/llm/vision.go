package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/raine/virtual-fitting-room/internal/fitting"
)

var (
	// ErrGenerationFailed is returned when a model response carries no usable output.
	ErrGenerationFailed = errors.New("generation failed: no image produced")
	// ErrAnalysisFailed matches every *AnalysisError.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// AnalysisError reports a structured-extraction response that could not be
// turned into a valid analysis record. Callers may retry the analysis.
type AnalysisError struct {
	Kind     string // "model" or "clothing"
	Response string // raw model output, if any
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analysis failed: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func (e *AnalysisError) Is(target error) bool {
	return target == ErrAnalysisFailed
}

// Usage contains token usage and cost information from an LLM API call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Analyzer turns images into structured analysis records.
type Analyzer interface {
	// AnalyzeModel describes the person in a model photograph.
	AnalyzeModel(ctx context.Context, imageData []byte, mimeType string) (*fitting.ModelAnalysis, error)
	// AnalyzeClothing describes a garment. slotHint is the slot the garment
	// was placed in and is treated as a prior, not a constraint.
	AnalyzeClothing(ctx context.Context, imageData []byte, mimeType string, slotHint fitting.BodyRegion) (*fitting.ClothingAnalysis, error)
}

// Composer produces the natural-language edit instruction for a fitting.
type Composer interface {
	ComposeFittingPrompt(ctx context.Context, model *fitting.ModelAnalysis, items []fitting.ClothingItem) (string, error)
}

// Options configures the Gemini-backed components.
type Options struct {
	TextModel  string
	ImageModel string
	// Language is the English name of the working language used for
	// descriptive analysis fields, e.g. "Chinese".
	Language string
	// OutputLanguage is the language of the composed edit prompt.
	OutputLanguage string
}

const (
	DefaultTextModel      = "gemini-3-flash-preview"
	DefaultImageModel     = "gemini-3-pro-image-preview"
	DefaultLanguage       = "Chinese"
	DefaultOutputLanguage = "English"
)

func (o Options) withDefaults() Options {
	if o.TextModel == "" {
		o.TextModel = DefaultTextModel
	}
	if o.ImageModel == "" {
		o.ImageModel = DefaultImageModel
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.OutputLanguage == "" {
		o.OutputLanguage = DefaultOutputLanguage
	}
	return o
}
