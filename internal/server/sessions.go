package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/studio"
)

func (s *Server) CreateSession(c echo.Context) error {
	session := s.Sessions.Create()
	return c.JSON(http.StatusCreated, sessionOut(session.Snapshot()))
}

func (s *Server) GetSession(c echo.Context) error {
	session, err := s.Sessions.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionOut(session.Snapshot()))
}

func (s *Server) DeleteSession(c echo.Context) error {
	if !s.Sessions.Delete(c.Param("id")) {
		return studio.ErrSessionNotFound
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) SetModelImage(c echo.Context) error {
	session, err := s.Sessions.Get(c.Param("id"))
	if err != nil {
		return err
	}
	var req ImageIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	img, err := s.resolveImage(c.Request().Context(), req.Image)
	if err != nil {
		return err
	}

	session.SetModelImage(img)
	return c.JSON(http.StatusOK, sessionOut(session.Snapshot()))
}

func (s *Server) PutItem(c echo.Context) error {
	session, slot, err := s.sessionSlot(c)
	if err != nil {
		return err
	}
	var req PutItemIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	img, err := s.resolveImage(c.Request().Context(), req.Image)
	if err != nil {
		return err
	}

	if _, err := session.PutItem(slot, img, req.Modifier); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionOut(session.Snapshot()))
}

func (s *Server) UpdateItem(c echo.Context) error {
	session, slot, err := s.sessionSlot(c)
	if err != nil {
		return err
	}
	var req UpdateItemIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := session.SetModifier(slot, req.Modifier); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionOut(session.Snapshot()))
}

func (s *Server) RemoveItem(c echo.Context) error {
	session, slot, err := s.sessionSlot(c)
	if err != nil {
		return err
	}
	if err := session.RemoveItem(slot); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionOut(session.Snapshot()))
}

func (s *Server) ResetSession(c echo.Context) error {
	session, err := s.Sessions.Get(c.Param("id"))
	if err != nil {
		return err
	}
	var req ResetIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if req.Scope == "clothing" {
		session.ResetClothing()
	} else {
		session.Reset()
	}
	return c.JSON(http.StatusOK, sessionOut(session.Snapshot()))
}

func (s *Server) Fit(c echo.Context) error {
	session, err := s.Sessions.Get(c.Param("id"))
	if err != nil {
		return err
	}
	var req FitIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ratio, _ := fitting.ParseAspectRatio(req.AspectRatio)
	tier, _ := fitting.ParseResolutionTier(req.Tier)

	result, err := s.Pipeline.Fit(c.Request().Context(), session, studio.FitOptions{
		AspectRatio:      ratio,
		Tier:             tier,
		AccessSecret:     req.AccessSecret,
		Poses:            req.Poses,
		RegeneratePrompt: req.RegeneratePrompt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FitOut{
		Revision:  result.Revision,
		Prompt:    result.Prompt,
		Rendering: renderingOut(result.Rendering),
		Poses:     posesOut(result.Poses),
	})
}

func (s *Server) sessionSlot(c echo.Context) (*studio.Session, fitting.BodyRegion, error) {
	slot, err := fitting.ParseBodyRegion(c.Param("slot"))
	if err != nil {
		return nil, "", err
	}
	session, err := s.Sessions.Get(c.Param("id"))
	if err != nil {
		return nil, "", err
	}
	return session, slot, nil
}
