package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Generator is the subset of the Gemini models API used by this package.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// RotatingGenerator sends every request with the next key from a
// KeyRotator. Clients are created lazily and reused per key.
type RotatingGenerator struct {
	rotator *KeyRotator

	mu      sync.RWMutex
	clients map[string]*genai.Client
}

func NewRotatingGenerator(rotator *KeyRotator) *RotatingGenerator {
	return &RotatingGenerator{
		rotator: rotator,
		clients: make(map[string]*genai.Client),
	}
}

// GenerateContent implements Generator.
func (g *RotatingGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	key, err := g.rotator.Next()
	if err != nil {
		return nil, err
	}
	client, err := g.client(ctx, key)
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent(ctx, model, contents, config)
}

func (g *RotatingGenerator) client(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.RLock()
	client, ok := g.clients[key]
	g.mu.RUnlock()
	if ok {
		return client, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.clients[key]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.clients[key] = client
	return client, nil
}
