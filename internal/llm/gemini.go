package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"google.golang.org/genai"
)

var errEmptyResponse = errors.New("no response from Gemini")

// GeminiAnalyzer uses Gemini structured output to analyze model and garment images.
type GeminiAnalyzer struct {
	gen      Generator
	opts     Options
	validate *validator.Validate
}

// NewGeminiAnalyzer creates an analyzer that sends requests through gen.
func NewGeminiAnalyzer(gen Generator, opts Options) *GeminiAnalyzer {
	return &GeminiAnalyzer{
		gen:      gen,
		opts:     opts.withDefaults(),
		validate: fitting.NewValidator(),
	}
}

var _ Analyzer = (*GeminiAnalyzer)(nil)

// AnalyzeModel implements the Analyzer interface.
func (g *GeminiAnalyzer) AnalyzeModel(ctx context.Context, imageData []byte, mimeType string) (*fitting.ModelAnalysis, error) {
	prompt := formatPrompt(modelAnalysisPrompt, regionList(), g.opts.Language)

	text, err := g.executeAnalysisRequest(ctx, "model", imageData, mimeType, prompt, modelAnalysisSchema())
	if err != nil {
		return nil, err
	}

	var analysis fitting.ModelAnalysis
	if err := g.decode(text, &analysis); err != nil {
		return nil, &AnalysisError{Kind: "model", Response: text, Err: err}
	}
	for i, item := range analysis.CurrentClothing {
		region, err := fitting.ParseBodyRegion(string(item.BodyPartID))
		if err != nil {
			return nil, &AnalysisError{Kind: "model", Response: text, Err: err}
		}
		analysis.CurrentClothing[i].BodyPartID = region
	}
	return &analysis, nil
}

// AnalyzeClothing implements the Analyzer interface. An empty region in the
// response falls back to slotHint.
func (g *GeminiAnalyzer) AnalyzeClothing(ctx context.Context, imageData []byte, mimeType string, slotHint fitting.BodyRegion) (*fitting.ClothingAnalysis, error) {
	prompt := formatPrompt(clothingAnalysisPrompt, slotHint, slotHint.Label(), regionList(), g.opts.Language)

	text, err := g.executeAnalysisRequest(ctx, "clothing", imageData, mimeType, prompt, clothingAnalysisSchema())
	if err != nil {
		return nil, err
	}

	var analysis fitting.ClothingAnalysis
	jsonStr, err := extractJSONObject(text)
	if err == nil {
		err = json.Unmarshal([]byte(jsonStr), &analysis)
	}
	if err != nil {
		return nil, &AnalysisError{Kind: "clothing", Response: text, Err: fmt.Errorf("failed to parse response JSON: %w", err)}
	}
	if analysis.BodyPartID == "" {
		analysis.BodyPartID = slotHint
	}
	if region, err := fitting.ParseBodyRegion(string(analysis.BodyPartID)); err == nil {
		analysis.BodyPartID = region
	}
	if err := g.validate.Struct(analysis); err != nil {
		return nil, &AnalysisError{Kind: "clothing", Response: text, Err: err}
	}
	return &analysis, nil
}

// executeAnalysisRequest sends one image plus the extraction prompt and
// returns the raw text of the response.
func (g *GeminiAnalyzer) executeAnalysisRequest(ctx context.Context, kind string, imageData []byte, mimeType, prompt string, schema *genai.Schema) (string, error) {
	if len(imageData) == 0 {
		return "", fitting.ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	result, err := g.gen.GenerateContent(ctx, g.opts.TextModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	usage := UsageFromResponse(g.opts.TextModel, result)
	logUsage(kind+" analysis", g.opts.TextModel, usage)

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", &AnalysisError{Kind: kind, Err: errEmptyResponse}
	}
	return result.Text(), nil
}

// decode parses a JSON object out of text into v and validates it.
func (g *GeminiAnalyzer) decode(text string, v any) error {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, jsonStr)
	}
	return g.validate.Struct(v)
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

func regionList() string {
	return strings.Join(fitting.RegionValues(), ", ")
}

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func regionSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeString,
		Description: "Body region id",
		Enum:        fitting.RegionValues(),
	}
}

func modelAnalysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"bodyType":  stringSchema("Build and proportions"),
			"skinTone":  stringSchema("Skin tone"),
			"hairStyle": stringSchema("Hair style"),
			"hairColor": stringSchema("Hair color"),
			"pose":      stringSchema("Pose description"),
			"currentClothing": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"bodyPartId":  regionSchema(),
						"description": stringSchema("What is worn in this region"),
						"isPresent":   {Type: genai.TypeBoolean},
					},
					Required:         []string{"bodyPartId", "description", "isPresent"},
					PropertyOrdering: []string{"bodyPartId", "description", "isPresent"},
				},
			},
			"distinctiveFeatures": {Type: genai.TypeArray, Items: stringSchema("")},
			"background":          stringSchema("Background description"),
		},
		Required: []string{"bodyType", "skinTone", "hairStyle", "hairColor", "pose", "currentClothing", "distinctiveFeatures", "background"},
		PropertyOrdering: []string{
			"bodyType", "skinTone", "hairStyle", "hairColor", "pose",
			"currentClothing", "distinctiveFeatures", "background",
		},
	}
}

func clothingAnalysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":       stringSchema("Kind of garment"),
			"category":   stringSchema("Garment category"),
			"bodyPartId": regionSchema(),
			"color":      stringSchema("Colors"),
			"material":   stringSchema("Material and texture"),
			"pattern":    stringSchema("Pattern"),
			"style":      stringSchema("Style"),
			"fit":        stringSchema("Fit and silhouette"),
			"details":    {Type: genai.TypeArray, Items: stringSchema("")},
		},
		Required: []string{"type", "category", "bodyPartId", "color", "material", "pattern", "style", "fit", "details"},
		PropertyOrdering: []string{
			"type", "category", "bodyPartId", "color", "material",
			"pattern", "style", "fit", "details",
		},
	}
}
