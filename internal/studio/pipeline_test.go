package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raine/virtual-fitting-room/internal/access"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const testModelJSON = `{"bodyType":"slim","skinTone":"fair","hairStyle":"bob","hairColor":"black","pose":"standing","currentClothing":[],"distinctiveFeatures":[],"background":"studio"}`

func pngImage(t *testing.T, w, h int) fitting.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return fitting.Image{Data: buf.Bytes(), MIMEType: "image/png"}
}

// fittingGenerator answers analysis, composition and rendering requests by
// looking at the request config.
type fittingGenerator struct {
	*llm.MockGenerator
	onRender func()
}

func newFittingGenerator() *fittingGenerator {
	fg := &fittingGenerator{}
	fg.MockGenerator = &llm.MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			switch {
			case config.ImageConfig != nil:
				if fg.onRender != nil {
					fg.onRender()
				}
				return llm.ImageResponse([]byte("rendered"), "image/png"), nil
			case config.SystemInstruction != nil:
				return llm.TextResponse("Replace the inner top with a white shirt worn underneath an unbuttoned blazer."), nil
			case config.ResponseSchema != nil && config.ResponseSchema.Properties["bodyType"] != nil:
				return llm.TextResponse(testModelJSON), nil
			default:
				garment := string(contents[0].Parts[0].InlineData.Data)
				if garment == "broken" {
					return llm.TextResponse("sorry"), nil
				}
				region := "torso_inner"
				if garment == "blazer" {
					region = "torso_outer"
				}
				return llm.TextResponse(`{"type":"` + garment + `","bodyPartId":"` + region + `"}`), nil
			}
		},
	}
	return fg
}

func (fg *fittingGenerator) callsOfKind(kind string) int {
	n := 0
	for _, c := range fg.CallsSnapshot() {
		switch {
		case c.Config.ImageConfig != nil:
			if kind == "render" {
				n++
			}
		case c.Config.SystemInstruction != nil:
			if kind == "compose" {
				n++
			}
		case c.Config.ResponseSchema.Properties["bodyType"] != nil:
			if kind == "model" {
				n++
			}
		default:
			if kind == "clothing" {
				n++
			}
		}
	}
	return n
}

func newTestPipeline(gen llm.Generator, secret string) *Pipeline {
	gate := access.NewGate(secret)
	opts := llm.Options{}
	return NewPipeline(
		llm.NewGeminiAnalyzer(gen, opts),
		llm.NewPromptComposer(gen, opts),
		llm.NewSynthesizer(gen, gate, opts),
		gate,
	)
}

func layeredSession(t *testing.T) *Session {
	s := newSession(time.Now())
	s.SetModelImage(pngImage(t, 1024, 768))
	_, err := s.PutItem(fitting.RegionTorsoInner, jpeg("shirt"), "")
	require.NoError(t, err)
	_, err = s.PutItem(fitting.RegionTorsoOuter, jpeg("blazer"), "unbuttoned")
	require.NoError(t, err)
	return s
}

func TestPipeline_FitLayeredOutfit(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	result, err := p.Fit(context.Background(), s, FitOptions{AspectRatio: fitting.AspectAuto})
	require.NoError(t, err)
	assert.Equal(t, fitting.Aspect4x3, result.Rendering.AspectRatio)
	assert.Equal(t, []byte("rendered"), result.Rendering.Image.Data)
	assert.Contains(t, result.Prompt, "unbuttoned")

	assert.Equal(t, 1, gen.callsOfKind("model"))
	assert.Equal(t, 2, gen.callsOfKind("clothing"))
	assert.Equal(t, 1, gen.callsOfKind("compose"))
	assert.Equal(t, 1, gen.callsOfKind("render"))

	calls := gen.CallsSnapshot()
	renderCall := calls[len(calls)-1]
	images, texts := llm.CountParts(renderCall.Contents)
	assert.Equal(t, 3, images)
	assert.Equal(t, 1, texts)

	composeRequest := ""
	for _, c := range calls {
		if c.Config.SystemInstruction != nil {
			composeRequest = llm.RequestText(c.Contents)
		}
	}
	assert.Contains(t, composeRequest, "torso_inner")
	assert.Contains(t, composeRequest, "torso_outer")
	assert.Contains(t, composeRequest, "Layering:")
	assert.Contains(t, composeRequest, "unbuttoned")

	snap := s.Snapshot()
	assert.NotNil(t, snap.ModelAnalysis)
	for _, item := range snap.Items {
		assert.True(t, item.Analyzed(), "slot %s", item.Slot)
	}
	assert.Equal(t, result.Rendering, snap.Rendering)
}

func TestPipeline_SecondFitReusesAnalysesAndPrompt(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	_, err := p.Fit(context.Background(), s, FitOptions{})
	require.NoError(t, err)
	_, err = p.Fit(context.Background(), s, FitOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.callsOfKind("model"))
	assert.Equal(t, 2, gen.callsOfKind("clothing"))
	assert.Equal(t, 1, gen.callsOfKind("compose"))
	assert.Equal(t, 2, gen.callsOfKind("render"))

	_, err = p.Fit(context.Background(), s, FitOptions{RegeneratePrompt: true})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.callsOfKind("compose"))
}

func TestPipeline_OnlyNewGarmentIsAnalyzed(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	_, err := p.Fit(context.Background(), s, FitOptions{})
	require.NoError(t, err)

	_, err = s.PutItem(fitting.RegionTorsoInner, jpeg("tee"), "")
	require.NoError(t, err)
	_, err = p.Fit(context.Background(), s, FitOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, gen.callsOfKind("clothing"))
	assert.Equal(t, 2, gen.callsOfKind("compose"))
	assert.Equal(t, 1, gen.callsOfKind("model"))
}

func TestPipeline_NewModelImageIsReanalyzed(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	_, err := p.Fit(context.Background(), s, FitOptions{})
	require.NoError(t, err)

	s.SetModelImage(pngImage(t, 900, 1600))
	result, err := p.Fit(context.Background(), s, FitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.callsOfKind("model"))
	assert.Equal(t, fitting.Aspect9x16, result.Rendering.AspectRatio)
}

func TestPipeline_PremiumWithWrongSecretMakesNoCalls(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "letmein")
	s := layeredSession(t)

	_, err := p.Fit(context.Background(), s, FitOptions{Tier: fitting.TierPremium, AccessSecret: "nope"})
	assert.ErrorIs(t, err, access.ErrAccessDenied)
	assert.Equal(t, 0, gen.CallCount())

	result, err := p.Fit(context.Background(), s, FitOptions{Tier: fitting.TierPremium, AccessSecret: "letmein"})
	require.NoError(t, err)
	assert.Equal(t, fitting.TierPremium, result.Rendering.Tier)
}

func TestPipeline_StaleRenderingIsDropped(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	var once atomic.Bool
	gen.onRender = func() {
		if once.CompareAndSwap(false, true) {
			_ = s.RemoveItem(fitting.RegionTorsoOuter)
		}
	}

	_, err := p.Fit(context.Background(), s, FitOptions{})
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Nil(t, s.Snapshot().Rendering)
}

func TestPipeline_AnalysisFailureSurfaces(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := newSession(time.Now())
	s.SetModelImage(pngImage(t, 100, 100))
	_, _ = s.PutItem(fitting.RegionTorsoInner, jpeg("shirt"), "")
	_, _ = s.PutItem(fitting.RegionLegs, jpeg("broken"), "")

	_, err := p.Fit(context.Background(), s, FitOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrAnalysisFailed)
	assert.True(t, strings.Contains(err.Error(), "legs"))
	assert.Equal(t, 0, gen.callsOfKind("render"))
}

func TestPipeline_Preconditions(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")

	s := newSession(time.Now())
	_, err := p.Fit(context.Background(), s, FitOptions{})
	assert.ErrorIs(t, err, fitting.ErrNoModelImage)

	s.SetModelImage(pngImage(t, 10, 10))
	_, err = p.Fit(context.Background(), s, FitOptions{})
	assert.ErrorIs(t, err, fitting.ErrNoGarments)
	assert.Equal(t, 0, gen.CallCount())
}

func TestPipeline_FitWithPoses(t *testing.T) {
	gen := newFittingGenerator()
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	result, err := p.Fit(context.Background(), s, FitOptions{Poses: true})
	require.NoError(t, err)
	require.Len(t, result.Poses, len(llm.Poses))
	assert.Equal(t, "walking", result.Poses[0].Pose)
	assert.Len(t, s.Snapshot().Poses, len(llm.Poses))
}

func TestPipeline_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	gen := &llm.MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, boom
		},
	}
	p := newTestPipeline(gen, "")
	s := layeredSession(t)

	_, err := p.Fit(context.Background(), s, FitOptions{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gen.CallCount())
}
