package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/raine/virtual-fitting-room/internal/access"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
)

func (s *Server) AnalyzeModel(c echo.Context) error {
	var req AnalyzeModelIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	img, err := s.resolveImage(c.Request().Context(), req.Image)
	if err != nil {
		return err
	}

	analysis, err := s.Analyzer.AnalyzeModel(c.Request().Context(), img.Data, img.MIMEType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, analysis)
}

func (s *Server) AnalyzeClothing(c echo.Context) error {
	var req AnalyzeClothingIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	img, err := s.resolveImage(c.Request().Context(), req.Image)
	if err != nil {
		return err
	}

	analysis, err := s.Analyzer.AnalyzeClothing(c.Request().Context(), img.Data, img.MIMEType, mustRegion(req.SlotHint))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, analysis)
}

func (s *Server) ComposePrompt(c echo.Context) error {
	var req ComposePromptIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	outfit := fitting.NewOutfit()
	for _, in := range req.Items {
		item := fitting.ClothingItem{Slot: mustRegion(in.Slot), Analysis: in.Analysis, Modifier: in.Modifier}
		if _, err := outfit.Put(item); err != nil {
			return err
		}
	}

	prompt, err := s.Composer.ComposeFittingPrompt(c.Request().Context(), req.ModelAnalysis, outfit.Items())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PromptOut{Prompt: prompt})
}

func (s *Server) TryOn(c echo.Context) error {
	var req TryOnIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ratio, _ := fitting.ParseAspectRatio(req.AspectRatio)
	tier, _ := fitting.ParseResolutionTier(req.Tier)

	// Checked before any image is fetched.
	if err := s.Gate.Authorize(tier, req.AccessSecret); err != nil {
		return err
	}

	model, garments, err := s.resolveOutfit(c, req.ModelImage, req.Garments)
	if err != nil {
		return err
	}

	rendering, err := s.Renderer.SynthesizeTryOn(c.Request().Context(), llm.TryOnRequest{
		ModelImage:   model,
		Garments:     garments,
		Prompt:       req.Prompt,
		AspectRatio:  ratio,
		Tier:         tier,
		AccessSecret: req.AccessSecret,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, renderingOut(rendering))
}

func (s *Server) Poses(c echo.Context) error {
	var req PosesIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	model, garments, err := s.resolveOutfit(c, req.ModelImage, req.Garments)
	if err != nil {
		return err
	}

	variants := s.Renderer.SynthesizePoses(c.Request().Context(), llm.PoseRequest{
		ModelImage: model,
		Garments:   garments,
		Prompt:     req.Prompt,
	})
	return c.JSON(http.StatusOK, PosesOut{Images: posesOut(variants)})
}

func (s *Server) VerifyAccess(c echo.Context) error {
	var req VerifyAccessIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if !s.Gate.Verify(req.Secret) {
		return access.ErrAccessDenied
	}
	return c.NoContent(http.StatusNoContent)
}

// resolveOutfit loads the model image and garments. A later garment in the
// same slot replaces an earlier one.
func (s *Server) resolveOutfit(c echo.Context, modelPayload ImagePayload, payloads []GarmentPayload) (fitting.Image, []fitting.ClothingItem, error) {
	ctx := c.Request().Context()
	model, err := s.resolveImage(ctx, modelPayload)
	if err != nil {
		return fitting.Image{}, nil, err
	}

	outfit := fitting.NewOutfit()
	for _, p := range payloads {
		img, err := s.resolveImage(ctx, p.Image)
		if err != nil {
			return fitting.Image{}, nil, err
		}
		item := fitting.ClothingItem{Slot: mustRegion(p.Slot), Image: img, Modifier: p.Modifier, Analysis: p.Analysis}
		if _, err := outfit.Put(item); err != nil {
			return fitting.Image{}, nil, err
		}
	}
	return model, outfit.Items(), nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}
	return c.Validate(req)
}
