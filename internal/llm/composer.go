package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"google.golang.org/genai"
)

// PromptComposer merges analyses and user modifiers into one edit
// instruction via a text-generation call.
type PromptComposer struct {
	gen  Generator
	opts Options
}

func NewPromptComposer(gen Generator, opts Options) *PromptComposer {
	return &PromptComposer{gen: gen, opts: opts.withDefaults()}
}

var _ Composer = (*PromptComposer)(nil)

type composerItem struct {
	BodyPartID         fitting.BodyRegion        `json:"bodyPartId"`
	Analysis           *fitting.ClothingAnalysis `json:"analysis,omitempty"`
	UserCustomModifier string                    `json:"userCustomModifier,omitempty"`
}

type composerContext struct {
	ModelAnalysis *fitting.ModelAnalysis `json:"modelAnalysis"`
	ClothingItems []composerItem         `json:"clothingItems"`
}

// ComposeFittingPrompt implements the Composer interface.
func (c *PromptComposer) ComposeFittingPrompt(ctx context.Context, model *fitting.ModelAnalysis, items []fitting.ClothingItem) (string, error) {
	if model == nil {
		return "", fitting.ErrNoModelAnalysis
	}
	if len(items) == 0 {
		return "", fitting.ErrNoGarments
	}

	request, err := buildComposerRequest(model, items)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			formatPrompt(composerSystemInstruction, c.opts.OutputLanguage, styleModifiers), genai.RoleUser),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(request)}, genai.RoleUser),
	}

	result, err := c.gen.GenerateContent(ctx, c.opts.TextModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	logUsage("prompt composition", c.opts.TextModel, UsageFromResponse(c.opts.TextModel, result))

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, errEmptyResponse)
	}

	prompt := stripCodeFence(result.Text())
	if prompt == "" {
		return "", fmt.Errorf("%w: empty prompt from composer", ErrGenerationFailed)
	}
	if !strings.Contains(strings.ToLower(prompt), styleModifiers) {
		prompt = strings.TrimRight(prompt, " .") + ". " + styleModifiers
	}
	return prompt, nil
}

// buildComposerRequest renders the user turn: the JSON context followed by
// the modifier and layering directives restated in plain text.
func buildComposerRequest(model *fitting.ModelAnalysis, items []fitting.ClothingItem) (string, error) {
	sorted := make([]fitting.ClothingItem, len(items))
	copy(sorted, items)
	fitting.SortItems(sorted)

	payload := composerContext{ModelAnalysis: model}
	for _, item := range sorted {
		payload.ClothingItems = append(payload.ClothingItems, composerItem{
			BodyPartID:         item.Region(),
			Analysis:           item.Analysis,
			UserCustomModifier: strings.TrimSpace(item.Modifier),
		})
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode composer context: %w", err)
	}

	var b strings.Builder
	b.WriteString("Model and garment data:\n")
	b.Write(data)
	b.WriteString("\n")

	var overrides []string
	for _, item := range payload.ClothingItems {
		if item.UserCustomModifier != "" {
			overrides = append(overrides, fmt.Sprintf("- %s: %q (overrides the analysis where they conflict)", item.BodyPartID, item.UserCustomModifier))
		}
	}
	if len(overrides) > 0 {
		b.WriteString("\nMandatory user modifiers:\n")
		b.WriteString(strings.Join(overrides, "\n"))
		b.WriteString("\n")
	}
	if fitting.HasLayeredTorso(sorted) {
		b.WriteString("\nLayering: the torso_inner garment is worn underneath the torso_outer garment.\n")
	}
	return b.String(), nil
}
