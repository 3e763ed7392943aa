package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/raine/virtual-fitting-room/internal/config"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// usageRecorder sums token usage over every call made through it.
type usageRecorder struct {
	llm.Generator

	mu    sync.Mutex
	usage llm.Usage
}

func (r *usageRecorder) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	res, err := r.Generator.GenerateContent(ctx, model, contents, cfg)
	if err == nil {
		u := llm.UsageFromResponse(model, res)
		r.mu.Lock()
		r.usage.InputTokens += u.InputTokens
		r.usage.OutputTokens += u.OutputTokens
		r.usage.TotalTokens += u.TotalTokens
		r.usage.CostUSD += u.CostUSD
		r.mu.Unlock()
	}
	return res, err
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [model|clothing] [slot]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEYS   - Required, comma separated\n")
		fmt.Fprintf(os.Stderr, "  ANALYSIS_LANGUAGE - Language of descriptive fields (default %s)\n", config.DefaultLanguage)
		fmt.Fprintf(os.Stderr, "\nSlots: %s\n", strings.Join(fitting.RegionValues(), ", "))
		os.Exit(1)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	imagePath := os.Args[1]
	kind := "model"
	if len(os.Args) >= 3 {
		kind = os.Args[2]
	}
	slot := fitting.RegionTorsoInner
	if len(os.Args) >= 4 {
		var err error
		if slot, err = fitting.ParseBodyRegion(os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	mimeType := fitting.DetectMIMEType(imageData)
	if mimeType == "" {
		mimeType = getMimeType(imagePath)
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	recorder := &usageRecorder{Generator: llm.NewRotatingGenerator(llm.NewKeyRotator(cfg.APIKeys))}
	analyzer := llm.NewGeminiAnalyzer(recorder, llm.Options{
		TextModel: cfg.TextModel,
		Language:  cfg.LanguageName(),
	})

	ctx := context.Background()
	var result any
	switch kind {
	case "model":
		result, err = analyzer.AnalyzeModel(ctx, imageData, mimeType)
	case "clothing":
		result, err = analyzer.AnalyzeClothing(ctx, imageData, mimeType, slot)
	default:
		fmt.Fprintf(os.Stderr, "Unknown analysis kind: %s (use model or clothing)\n", kind)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error analyzing image: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	fmt.Println()
	fmt.Printf("Tokens:      %d in / %d out / %d total\n",
		recorder.usage.InputTokens, recorder.usage.OutputTokens, recorder.usage.TotalTokens)
	fmt.Printf("Cost:        $%.6f\n", recorder.usage.CostUSD)
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
