package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/raine/virtual-fitting-room/internal/studio"
)

// ImagePayload carries an image inline as base64 or by URL. Data may also
// be a data URL.
type ImagePayload struct {
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty" validate:"omitempty,url"`
}

type GarmentPayload struct {
	Slot     string                    `json:"slot" validate:"required,bodyregion"`
	Image    ImagePayload              `json:"image"`
	Modifier string                    `json:"modifier" validate:"max=500"`
	Analysis *fitting.ClothingAnalysis `json:"analysis,omitempty"`
}

type AnalyzeModelIn struct {
	Image ImagePayload `json:"image"`
}

type AnalyzeClothingIn struct {
	Image    ImagePayload `json:"image"`
	SlotHint string       `json:"slotHint" validate:"required,bodyregion"`
}

type PromptItemIn struct {
	Slot     string                    `json:"slot" validate:"required,bodyregion"`
	Analysis *fitting.ClothingAnalysis `json:"analysis,omitempty"`
	Modifier string                    `json:"modifier" validate:"max=500"`
}

type ComposePromptIn struct {
	ModelAnalysis *fitting.ModelAnalysis `json:"modelAnalysis" validate:"required"`
	Items         []PromptItemIn         `json:"items" validate:"required,min=1,dive"`
}

type PromptOut struct {
	Prompt string `json:"prompt"`
}

type TryOnIn struct {
	ModelImage   ImagePayload     `json:"modelImage"`
	Garments     []GarmentPayload `json:"garments" validate:"required,min=1,max=9,dive"`
	Prompt       string           `json:"prompt"`
	AspectRatio  string           `json:"aspectRatio" validate:"omitempty,aspectratio"`
	Tier         string           `json:"tier" validate:"omitempty,tier"`
	AccessSecret string           `json:"accessSecret"`
}

type RenderingOut struct {
	Image       ImagePayload `json:"image"`
	AspectRatio string       `json:"aspectRatio"`
	Tier        string       `json:"tier"`
	CostUSD     float64      `json:"costUsd"`
}

type PosesIn struct {
	ModelImage ImagePayload     `json:"modelImage"`
	Garments   []GarmentPayload `json:"garments" validate:"required,min=1,max=9,dive"`
	Prompt     string           `json:"prompt"`
}

type PoseOut struct {
	Pose  string       `json:"pose"`
	Image ImagePayload `json:"image"`
}

type PosesOut struct {
	Images []PoseOut `json:"images"`
}

type VerifyAccessIn struct {
	Secret string `json:"secret"`
}

type ImageIn struct {
	Image ImagePayload `json:"image"`
}

type PutItemIn struct {
	Image    ImagePayload `json:"image"`
	Modifier string       `json:"modifier" validate:"max=500"`
}

type UpdateItemIn struct {
	Modifier string `json:"modifier" validate:"max=500"`
}

type ResetIn struct {
	Scope string `json:"scope" validate:"omitempty,oneof=all clothing"`
}

type FitIn struct {
	AspectRatio      string `json:"aspectRatio" validate:"omitempty,aspectratio"`
	Tier             string `json:"tier" validate:"omitempty,tier"`
	AccessSecret     string `json:"accessSecret"`
	Poses            bool   `json:"poses"`
	RegeneratePrompt bool   `json:"regeneratePrompt"`
}

type FitOut struct {
	Revision  uint64        `json:"revision"`
	Prompt    string        `json:"prompt"`
	Rendering *RenderingOut `json:"rendering"`
	Poses     []PoseOut     `json:"poses"`
}

type ItemOut struct {
	ID       string                    `json:"id"`
	Slot     fitting.BodyRegion        `json:"slot"`
	Region   fitting.BodyRegion        `json:"region"`
	Label    string                    `json:"label"`
	MIMEType string                    `json:"mimeType"`
	Modifier string                    `json:"modifier,omitempty"`
	Analysis *fitting.ClothingAnalysis `json:"analysis,omitempty"`
}

type SessionOut struct {
	ID            string                 `json:"id"`
	Revision      uint64                 `json:"revision"`
	ModelImageID  string                 `json:"modelImageId,omitempty"`
	ModelAnalysis *fitting.ModelAnalysis `json:"modelAnalysis,omitempty"`
	Items         []ItemOut              `json:"items"`
	Prompt        string                 `json:"prompt,omitempty"`
	Rendering     *RenderingOut          `json:"rendering,omitempty"`
	Poses         []PoseOut              `json:"poses"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// resolveImage decodes an inline payload or downloads it by URL.
func (s *Server) resolveImage(ctx context.Context, p ImagePayload) (fitting.Image, error) {
	if p.Data == "" && p.URL == "" {
		return fitting.Image{}, fmt.Errorf("%w: data or url is required", errInvalidImage)
	}
	if p.Data == "" {
		if s.Fetcher == nil {
			return fitting.Image{}, fmt.Errorf("%w: image urls are not supported", errInvalidImage)
		}
		img, err := s.Fetcher.Fetch(ctx, p.URL)
		if err != nil {
			return fitting.Image{}, fmt.Errorf("%w: %v", errInvalidImage, err)
		}
		return img, nil
	}
	return decodeImage(p)
}

func decodeImage(p ImagePayload) (fitting.Image, error) {
	data, mimeType := p.Data, p.MIMEType
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return fitting.Image{}, fmt.Errorf("%w: malformed data url", errInvalidImage)
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		data = payload
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fitting.Image{}, fmt.Errorf("%w: %v", errInvalidImage, err)
	}
	if len(raw) == 0 {
		return fitting.Image{}, fmt.Errorf("%w: empty image", errInvalidImage)
	}
	if sniffed := fitting.DetectMIMEType(raw); sniffed != "" {
		mimeType = sniffed
	}
	if mimeType == "" {
		return fitting.Image{}, fmt.Errorf("%w: unknown image type", errInvalidImage)
	}
	return fitting.Image{Data: raw, MIMEType: mimeType}, nil
}

func encodeImage(img fitting.Image) ImagePayload {
	return ImagePayload{
		Data:     base64.StdEncoding.EncodeToString(img.Data),
		MIMEType: img.MIMEType,
	}
}

// mustRegion parses a region that has already passed the bodyregion tag.
func mustRegion(s string) fitting.BodyRegion {
	region, _ := fitting.ParseBodyRegion(s)
	return region
}

func renderingOut(r *llm.Rendering) *RenderingOut {
	if r == nil {
		return nil
	}
	return &RenderingOut{
		Image:       encodeImage(r.Image),
		AspectRatio: string(r.AspectRatio),
		Tier:        string(r.Tier),
		CostUSD:     r.Usage.CostUSD,
	}
}

func posesOut(variants []llm.PoseVariant) []PoseOut {
	out := make([]PoseOut, 0, len(variants))
	for _, v := range variants {
		out = append(out, PoseOut{Pose: v.Pose, Image: encodeImage(v.Image)})
	}
	return out
}

func sessionOut(snap studio.Snapshot) SessionOut {
	items := make([]ItemOut, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, ItemOut{
			ID:       item.ID,
			Slot:     item.Slot,
			Region:   item.Region(),
			Label:    item.Slot.Label(),
			MIMEType: item.Image.MIMEType,
			Modifier: item.Modifier,
			Analysis: item.Analysis,
		})
	}
	return SessionOut{
		ID:            snap.ID,
		Revision:      snap.Revision,
		ModelImageID:  snap.ModelImageID,
		ModelAnalysis: snap.ModelAnalysis,
		Items:         items,
		Prompt:        snap.Prompt,
		Rendering:     renderingOut(snap.Rendering),
		Poses:         posesOut(snap.Poses),
		UpdatedAt:     snap.UpdatedAt,
	}
}
