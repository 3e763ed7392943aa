package llm

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// MockGenerator is a test double for Generator.
// If GenerateContentFunc is not set, it answers with an empty text response.
// Thread-safe for use in concurrent tests.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	mu sync.Mutex

	// Calls tracks all method invocations for assertions
	Calls []MockCall
}

// MockCall records a method call for test assertions.
type MockCall struct {
	Method   string
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Ensure MockGenerator implements Generator
var _ Generator = (*MockGenerator)(nil)

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GenerateContent", Model: model, Contents: contents, Config: config})
	fn := m.GenerateContentFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, model, contents, config)
	}
	return TextResponse(""), nil
}

// CallCount returns the number of recorded calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsSnapshot returns a copy of the recorded calls.
func (m *MockGenerator) CallsSnapshot() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}

// TextResponse builds a response with a single text part.
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

// ImageResponse builds a response carrying one inline image.
func ImageResponse(data []byte, mimeType string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromText("Here is the image."),
				{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
			}, genai.RoleModel),
		}},
	}
}

// RequestText concatenates every text part of contents.
func RequestText(contents []*genai.Content) string {
	var texts []string
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
	}
	return strings.Join(texts, "\n")
}

// CountParts returns the number of inline image parts and text parts.
func CountParts(contents []*genai.Content) (images, texts int) {
	for _, c := range contents {
		for _, p := range c.Parts {
			switch {
			case p.InlineData != nil:
				images++
			case p.Text != "":
				texts++
			}
		}
	}
	return images, texts
}
