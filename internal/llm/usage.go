package llm

import (
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Gemini pricing (per million tokens)
type modelPrice struct {
	input  float64
	output float64
}

var modelPrices = map[string]modelPrice{
	"gemini-3-flash-preview":     {input: 0.50, output: 3.00},
	"gemini-2.5-flash":           {input: 0.30, output: 2.50},
	"gemini-2.5-flash-lite":      {input: 0.075, output: 0.30},
	"gemini-3-pro-image-preview": {input: 2.00, output: 120.00}, // image output tokens
	"gemini-2.5-flash-image":     {input: 0.30, output: 30.00},
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}

// UsageFromResponse extracts token usage and estimates the cost for model.
// Unknown models are reported with zero cost.
func UsageFromResponse(model string, result *genai.GenerateContentResponse) Usage {
	usage := Usage{}
	if result == nil || result.UsageMetadata == nil {
		return usage
	}
	usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
	usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
	usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
	if price, ok := modelPrices[model]; ok {
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, price.input, price.output)
	}
	return usage
}

func logUsage(operation, model string, usage Usage) {
	log.Info().
		Str("model", model).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg(operation + " llm call")
}
