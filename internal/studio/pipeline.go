package studio

import (
	"context"
	"fmt"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Renderer produces try-on images.
type Renderer interface {
	SynthesizeTryOn(ctx context.Context, req llm.TryOnRequest) (*llm.Rendering, error)
	SynthesizePoses(ctx context.Context, req llm.PoseRequest) []llm.PoseVariant
}

// Pipeline runs a session through analysis, prompt composition and
// rendering, in that order.
type Pipeline struct {
	analyzer llm.Analyzer
	composer llm.Composer
	renderer Renderer
	gate     llm.Authorizer
}

func NewPipeline(analyzer llm.Analyzer, composer llm.Composer, renderer Renderer, gate llm.Authorizer) *Pipeline {
	return &Pipeline{
		analyzer: analyzer,
		composer: composer,
		renderer: renderer,
		gate:     gate,
	}
}

// FitOptions controls a fitting run.
type FitOptions struct {
	AspectRatio      fitting.AspectRatio
	Tier             fitting.ResolutionTier
	AccessSecret     string
	Poses            bool
	RegeneratePrompt bool
}

// FitResult is the outcome of a fitting run.
type FitResult struct {
	Revision  uint64
	Prompt    string
	Rendering *llm.Rendering
	Poses     []llm.PoseVariant
}

// Prepared is a session that has been analyzed and has a prompt.
type Prepared struct {
	Snapshot Snapshot
	Prompt   string
}

// Prepare analyzes whatever is not analyzed yet and composes the fitting
// prompt. A cached prompt is reused unless regenerate is set.
func (p *Pipeline) Prepare(ctx context.Context, s *Session, regenerate bool) (*Prepared, error) {
	snap := s.Snapshot()
	if !snap.HasModel() {
		return nil, fitting.ErrNoModelImage
	}
	if len(snap.Items) == 0 {
		return nil, fitting.ErrNoGarments
	}

	if snap.ModelAnalysis == nil {
		analysis, err := p.analyzer.AnalyzeModel(ctx, snap.ModelImage.Data, snap.ModelImage.MIMEType)
		if err != nil {
			return nil, err
		}
		s.attachModelAnalysis(snap.ModelImageID, analysis)
		snap.ModelAnalysis = analysis
	}

	if err := p.analyzeItems(ctx, s, snap.Items); err != nil {
		return nil, err
	}

	if snap.Prompt != "" && !regenerate {
		return &Prepared{Snapshot: snap, Prompt: snap.Prompt}, nil
	}

	prompt, err := p.composer.ComposeFittingPrompt(ctx, snap.ModelAnalysis, snap.Items)
	if err != nil {
		return nil, err
	}
	if !s.storePrompt(snap.Revision, prompt) {
		return nil, ErrStaleResult
	}
	snap.Prompt = prompt
	return &Prepared{Snapshot: snap, Prompt: prompt}, nil
}

// analyzeItems analyzes every item that has no analysis yet, concurrently.
// Results are written into items by index and attached to the session.
func (p *Pipeline) analyzeItems(ctx context.Context, s *Session, items []fitting.ClothingItem) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range items {
		if items[i].Analyzed() {
			continue
		}
		item := items[i]
		g.Go(func() error {
			analysis, err := p.analyzer.AnalyzeClothing(ctx, item.Image.Data, item.Image.MIMEType, item.Slot)
			if err != nil {
				return fmt.Errorf("failed to analyze %s garment: %w", item.Slot, err)
			}
			items[i].Analysis = analysis
			if !s.attachItemAnalysis(item.ID, analysis) {
				log.Debug().Str("itemID", item.ID).Msg("garment replaced during analysis")
			}
			return nil
		})
	}
	return g.Wait()
}

// Fit runs the whole pipeline. The tier is checked before any model call.
// If the session changes while the run is in flight the result is dropped
// and ErrStaleResult is returned.
func (p *Pipeline) Fit(ctx context.Context, s *Session, opts FitOptions) (*FitResult, error) {
	if err := p.gate.Authorize(opts.Tier, opts.AccessSecret); err != nil {
		return nil, err
	}

	prepared, err := p.Prepare(ctx, s, opts.RegeneratePrompt)
	if err != nil {
		return nil, err
	}
	snap := prepared.Snapshot

	rendering, err := p.renderer.SynthesizeTryOn(ctx, llm.TryOnRequest{
		ModelImage:   snap.ModelImage,
		Garments:     snap.Items,
		Prompt:       prepared.Prompt,
		AspectRatio:  opts.AspectRatio,
		Tier:         opts.Tier,
		AccessSecret: opts.AccessSecret,
	})
	if err != nil {
		return nil, err
	}
	if !s.storeRendering(snap.Revision, rendering) {
		log.Info().Str("sessionID", s.ID).Msg("discarding stale rendering")
		return nil, ErrStaleResult
	}

	result := &FitResult{Revision: snap.Revision, Prompt: prepared.Prompt, Rendering: rendering}
	if !opts.Poses {
		return result, nil
	}

	poses := p.renderer.SynthesizePoses(ctx, llm.PoseRequest{
		ModelImage: snap.ModelImage,
		Garments:   snap.Items,
		Prompt:     prepared.Prompt,
	})
	if !s.storePoses(snap.Revision, poses) {
		log.Info().Str("sessionID", s.ID).Msg("discarding stale pose variants")
		return nil, ErrStaleResult
	}
	result.Poses = poses
	return result, nil
}
