package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Authorizer decides whether a resolution tier may be rendered.
type Authorizer interface {
	Authorize(tier fitting.ResolutionTier, secret string) error
}

// TryOnRequest is the input of a main try-on rendering.
type TryOnRequest struct {
	ModelImage   fitting.Image
	Garments     []fitting.ClothingItem
	Prompt       string
	AspectRatio  fitting.AspectRatio
	Tier         fitting.ResolutionTier
	AccessSecret string
}

// Rendering is a generated image with the parameters it was rendered at.
type Rendering struct {
	Image       fitting.Image
	AspectRatio fitting.AspectRatio
	Tier        fitting.ResolutionTier
	Usage       Usage
}

// Synthesizer renders try-on images with a multimodal image model.
type Synthesizer struct {
	gen  Generator
	gate Authorizer
	opts Options
}

func NewSynthesizer(gen Generator, gate Authorizer, opts Options) *Synthesizer {
	return &Synthesizer{gen: gen, gate: gate, opts: opts.withDefaults()}
}

// SynthesizeTryOn renders the model wearing the garments. The tier is
// authorized before anything is sent to the model.
func (s *Synthesizer) SynthesizeTryOn(ctx context.Context, req TryOnRequest) (*Rendering, error) {
	tier := req.Tier
	if tier == "" {
		tier = fitting.TierStandard
	}
	if err := s.gate.Authorize(tier, req.AccessSecret); err != nil {
		return nil, err
	}
	if len(req.Garments) == 0 {
		return nil, fitting.ErrNoGarments
	}
	if req.ModelImage.Empty() {
		return nil, fitting.ErrNoModelImage
	}

	ratio, err := resolveForImage(req.AspectRatio, req.ModelImage)
	if err != nil {
		return nil, err
	}

	garments := sortedGarments(req.Garments)
	instruction := buildTryOnInstruction(req.Prompt, garments)

	return s.render(ctx, "try-on", req.ModelImage, garments, instruction, ratio, tier)
}

// render sends one multimodal image request and extracts the first image.
func (s *Synthesizer) render(ctx context.Context, operation string, model fitting.Image, garments []fitting.ClothingItem, instruction string, ratio fitting.AspectRatio, tier fitting.ResolutionTier) (*Rendering, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(buildImageParts(model, garments, instruction), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityText), string(genai.ModalityImage)},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(ratio),
			ImageSize:   tier.ImageSize(),
		},
	}

	result, err := s.gen.GenerateContent(ctx, s.opts.ImageModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	usage := UsageFromResponse(s.opts.ImageModel, result)
	log.Info().
		Str("model", s.opts.ImageModel).
		Str("aspectRatio", string(ratio)).
		Str("tier", string(tier)).
		Int("garments", len(garments)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg(operation + " llm call")

	img, ok := extractImage(result)
	if !ok {
		if reason := blockReason(result); reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, reason)
		}
		return nil, ErrGenerationFailed
	}
	return &Rendering{Image: img, AspectRatio: ratio, Tier: tier, Usage: usage}, nil
}

// buildImageParts orders the request: model image, garments, instruction.
func buildImageParts(model fitting.Image, garments []fitting.ClothingItem, instruction string) []*genai.Part {
	parts := make([]*genai.Part, 0, len(garments)+2)
	parts = append(parts, imagePart(model))
	for _, g := range garments {
		parts = append(parts, imagePart(g.Image))
	}
	return append(parts, genai.NewPartFromText(instruction))
}

func imagePart(img fitting.Image) *genai.Part {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return &genai.Part{InlineData: &genai.Blob{Data: img.Data, MIMEType: mimeType}}
}

// imageLegend labels each image of the request by position.
func imageLegend(garments []fitting.ClothingItem) string {
	lines := []string{"Image 1 is the model photo."}
	for i, g := range garments {
		line := fmt.Sprintf("Image %d is the garment for the %s (%s).", i+2, g.Region().Label(), g.Region())
		if mod := strings.TrimSpace(g.Modifier); mod != "" {
			line += fmt.Sprintf(" The user asked for: %q.", mod)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func buildTryOnInstruction(prompt string, garments []fitting.ClothingItem) string {
	var b strings.Builder
	b.WriteString(imageLegend(garments))
	b.WriteString("\n\nEdit image 1 so the model wears the garments from the other images.\n\n")
	if prompt = strings.TrimSpace(prompt); prompt != "" {
		b.WriteString(prompt)
		b.WriteString("\n\n")
	}
	b.WriteString(formatPrompt(tryOnConstraints))
	return b.String()
}

// extractImage returns the first inline image among the response parts.
func extractImage(result *genai.GenerateContentResponse) (fitting.Image, bool) {
	if result == nil {
		return fitting.Image{}, false
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" || strings.HasPrefix(mimeType, "image/") {
				if mimeType == "" {
					mimeType = "image/png"
				}
				return fitting.Image{Data: part.InlineData.Data, MIMEType: mimeType}, true
			}
		}
	}
	return fitting.Image{}, false
}

func blockReason(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "prompt blocked: " + string(result.PromptFeedback.BlockReason)
	}
	if len(result.Candidates) > 0 && result.Candidates[0] != nil {
		if reason := result.Candidates[0].FinishReason; reason != "" && reason != genai.FinishReasonStop {
			return "finish reason " + string(reason)
		}
	}
	return ""
}

func sortedGarments(garments []fitting.ClothingItem) []fitting.ClothingItem {
	sorted := make([]fitting.ClothingItem, len(garments))
	copy(sorted, garments)
	fitting.SortItems(sorted)
	return sorted
}

// resolveForImage resolves ratio, reading the model image size for Auto.
func resolveForImage(ratio fitting.AspectRatio, model fitting.Image) (fitting.AspectRatio, error) {
	if ratio == "" {
		ratio = fitting.AspectAuto
	}
	var width, height int
	if ratio == fitting.AspectAuto {
		w, h, err := fitting.ImageDimensions(model.Data)
		if err != nil {
			log.Warn().Err(err).Msg("could not read model image size, assuming square")
		} else {
			width, height = w, h
		}
	}
	return fitting.ResolveAspectRatio(ratio, width, height)
}
