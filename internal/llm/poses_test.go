package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raine/virtual-fitting-room/internal/access"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func poseRequest(t *testing.T) PoseRequest {
	return PoseRequest{
		ModelImage: fitting.Image{Data: testPNG(t, 300, 400), MIMEType: "image/png"},
		Garments:   []fitting.ClothingItem{{Slot: fitting.RegionLegs, Image: fitting.Image{Data: []byte("jeans"), MIMEType: "image/jpeg"}}},
		Prompt:     "Replace the shorts with floor-length jeans.",
	}
}

func TestSynthesizePoses_PartialFailureKeepsOrder(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			text := RequestText(contents)
			switch {
			case strings.Contains(text, "Side Profile:"):
				return nil, errors.New("upstream timeout")
			case strings.Contains(text, "Casual Standing:"):
				return TextResponse("no image for you"), nil
			case strings.Contains(text, "Dynamic Walking:"):
				return ImageResponse([]byte("walking"), "image/png"), nil
			default:
				return ImageResponse([]byte("sitting"), "image/png"), nil
			}
		},
	}
	s := NewSynthesizer(gen, access.NewGate(""), Options{})

	variants := s.SynthesizePoses(context.Background(), poseRequest(t))
	require.Len(t, variants, 2)
	assert.Equal(t, "walking", variants[0].Pose)
	assert.Equal(t, []byte("walking"), variants[0].Image.Data)
	assert.Equal(t, "detail-sitting", variants[1].Pose)
	assert.Equal(t, []byte("sitting"), variants[1].Image.Data)
	assert.Equal(t, len(Poses), gen.CallCount())
}

func TestSynthesizePoses_FixedCatalogFraming(t *testing.T) {
	gen := imageGenerator()
	s := NewSynthesizer(gen, access.NewGate(""), Options{})

	variants := s.SynthesizePoses(context.Background(), poseRequest(t))
	require.Len(t, variants, len(Poses))
	for i, v := range variants {
		assert.Equal(t, Poses[i].Name, v.Pose)
	}

	for _, call := range gen.CallsSnapshot() {
		assert.Equal(t, "3:4", call.Config.ImageConfig.AspectRatio)
		images, texts := CountParts(call.Contents)
		assert.Equal(t, 2, images)
		assert.Equal(t, 1, texts)
		assert.Contains(t, RequestText(call.Contents), "floor-length jeans")
		assert.Contains(t, RequestText(call.Contents), "FASHION CATALOG")
	}
}

func TestSynthesizePoses_AllFailReturnsEmpty(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	s := NewSynthesizer(gen, access.NewGate(""), Options{})

	variants := s.SynthesizePoses(context.Background(), poseRequest(t))
	assert.Empty(t, variants)
}

func TestSynthesizePoses_PanicIsContained(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			if strings.Contains(RequestText(contents), "Dynamic Walking:") {
				panic("boom")
			}
			return ImageResponse([]byte("ok"), "image/png"), nil
		},
	}
	s := NewSynthesizer(gen, access.NewGate(""), Options{})

	variants := s.SynthesizePoses(context.Background(), poseRequest(t))
	require.Len(t, variants, 3)
	assert.Equal(t, "side-profile", variants[0].Pose)
}
