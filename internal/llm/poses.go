package llm

import (
	"context"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Pose is one of the fixed catalog pose instructions.
type Pose struct {
	Name        string
	Instruction string
}

// Poses are rendered in this order.
var Poses = []Pose{
	{
		Name:        "walking",
		Instruction: "Dynamic Walking: Full body shot, model walking towards camera, natural movement, fabric motion, high-end e-commerce style, studio white background.",
	},
	{
		Name:        "side-profile",
		Instruction: "Side Profile: Standing side profile, highlighting the silhouette of the outfit, hand elegantly placed, fashion catalog style, soft lighting.",
	},
	{
		Name:        "casual-standing",
		Instruction: "Casual Standing: Relaxed standing pose, weight on one leg, hands in pockets or natural gesture, engaging eye contact, clean commercial look.",
	},
	{
		Name:        "detail-sitting",
		Instruction: "Detail/Sitting: Model sitting on a minimal stool or posing to show lower body details/shoes, artistic fashion composition, sharp focus.",
	},
}

// PoseRequest is the input of a pose-variant batch.
type PoseRequest struct {
	ModelImage fitting.Image
	Garments   []fitting.ClothingItem
	Prompt     string
}

// PoseVariant is a successfully rendered pose.
type PoseVariant struct {
	Pose  string
	Image fitting.Image
}

// SynthesizePoses renders every pose concurrently at the catalog aspect
// ratio. Failed poses are logged and left out; the result keeps pose order
// and may be empty.
func (s *Synthesizer) SynthesizePoses(ctx context.Context, req PoseRequest) []PoseVariant {
	if len(req.Garments) == 0 || req.ModelImage.Empty() {
		log.Warn().Int("garments", len(req.Garments)).Msg("pose variants skipped: missing images")
		return nil
	}
	garments := sortedGarments(req.Garments)
	legend := imageLegend(garments)

	results := make([]*PoseVariant, len(Poses))
	g := new(errgroup.Group)
	for i, pose := range Poses {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("pose", pose.Name).Msg("pose variant panicked")
				}
			}()

			instruction := legend + "\n\n" + formatPrompt(poseInstructionTemplate, pose.Instruction, req.Prompt)
			rendering, err := s.render(ctx, "pose "+pose.Name, req.ModelImage, garments, instruction, fitting.PoseAspectRatio, fitting.TierStandard)
			if err != nil {
				log.Warn().Err(err).Str("pose", pose.Name).Msg("pose variant failed")
				return nil
			}
			results[i] = &PoseVariant{Pose: pose.Name, Image: rendering.Image}
			return nil
		})
	}
	_ = g.Wait()

	variants := make([]PoseVariant, 0, len(results))
	for _, r := range results {
		if r != nil {
			variants = append(variants, *r)
		}
	}
	log.Info().
		Int("requested", len(Poses)).
		Int("succeeded", len(variants)).
		Msg("pose variants rendered")
	return variants
}
