package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/raine/virtual-fitting-room/internal/studio"
	"github.com/rs/zerolog/log"

	sentryecho "github.com/getsentry/sentry-go/echo"
)

// DefaultBodyLimit allows a model photo plus a full outfit as base64.
const DefaultBodyLimit = "64M"

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ImageFetcher downloads images referenced by URL in request payloads.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (fitting.Image, error)
}

// Gate checks the premium access secret.
type Gate interface {
	llm.Authorizer
	Verify(candidate string) bool
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Analyzer llm.Analyzer
	Composer llm.Composer
	Renderer studio.Renderer
	Gate     Gate
	Pipeline *studio.Pipeline
	Sessions *studio.Manager
	Fetcher  ImageFetcher
}

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins []string
	BodyLimit   string
	// Sentry enables the sentry echo integration. sentry.Init must have
	// been called.
	Sentry bool
}

type Server struct {
	Deps
}

// SetupServer builds the echo instance with every route registered.
func SetupServer(deps Deps, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: fitting.NewValidator()}
	e.HTTPErrorHandler = errorHandler

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = DefaultBodyLimit
	}

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	if opts.Sentry {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(mapErrors)

	s := &Server{Deps: deps}
	e.GET("/healthz", s.Health)

	api := e.Group("/api")
	s.FittingRoutes(api)
	s.SessionRoutes(api.Group("/sessions"))

	return e
}

func (s *Server) FittingRoutes(g *echo.Group) {
	g.POST("/analyze/model", s.AnalyzeModel)
	g.POST("/analyze/clothing", s.AnalyzeClothing)
	g.POST("/prompt", s.ComposePrompt)
	g.POST("/tryon", s.TryOn)
	g.POST("/poses", s.Poses)
	g.POST("/access/verify", s.VerifyAccess)
}

func (s *Server) SessionRoutes(g *echo.Group) {
	g.POST("", s.CreateSession)
	g.GET("/:id", s.GetSession)
	g.DELETE("/:id", s.DeleteSession)
	g.PUT("/:id/model", s.SetModelImage)
	g.PUT("/:id/items/:slot", s.PutItem)
	g.PATCH("/:id/items/:slot", s.UpdateItem)
	g.DELETE("/:id/items/:slot", s.RemoveItem)
	g.POST("/:id/reset", s.ResetSession)
	g.POST("/:id/fit", s.Fit)
}

func (s *Server) Health(c echo.Context) error {
	sessions := 0
	if s.Sessions != nil {
		sessions = s.Sessions.Len()
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "sessions": sessions})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			} else if v.Status >= http.StatusBadRequest {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency.Round(time.Millisecond)).
				Msg("http request")
			return nil
		},
	})
}
