package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/raine/virtual-fitting-room/internal/access"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
	"github.com/raine/virtual-fitting-room/internal/studio"
	"github.com/rs/zerolog/log"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusClientClosedRequest is the nginx convention for a request whose
// client went away before a response was written. It only shows up in
// request logs; the client never reads it.
const statusClientClosedRequest = 499

// errInvalidImage marks image payloads that could not be decoded or fetched.
var errInvalidImage = errors.New("invalid image")

// mapErrors turns domain errors into HTTP errors so the request logger
// sees the final status.
func mapErrors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := next(c); err != nil {
			return toHTTPError(err)
		}
		return nil
	}
}

func toHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if _, ok := he.Message.(errorBody); ok {
			return he
		}
		return &echo.HTTPError{
			Code:     he.Code,
			Message:  errorBody{Error: fmt.Sprint(he.Message), Code: codeForStatus(he.Code)},
			Internal: he.Internal,
		}
	}

	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	if code == "analysis_failed" {
		body.Retryable = true
	}
	if status >= http.StatusInternalServerError && code == "upstream_error" {
		body.Error = "upstream model request failed"
	}
	return &echo.HTTPError{Code: status, Message: body, Internal: err}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, access.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, studio.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, fitting.ErrSlotEmpty):
		return http.StatusNotFound, "slot_empty"
	case errors.Is(err, studio.ErrStaleResult):
		return http.StatusConflict, "stale_result"
	case errors.Is(err, llm.ErrAnalysisFailed):
		return http.StatusUnprocessableEntity, "analysis_failed"
	case errors.Is(err, llm.ErrGenerationFailed):
		return http.StatusBadGateway, "generation_failed"
	case errors.Is(err, llm.ErrNoCredentials):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, errInvalidImage),
		errors.Is(err, fitting.ErrNoModelImage),
		errors.Is(err, fitting.ErrNoModelAnalysis),
		errors.Is(err, fitting.ErrEmptyImage),
		errors.Is(err, fitting.ErrNoGarments),
		errors.Is(err, fitting.ErrInvalidRegion),
		errors.Is(err, fitting.ErrUnsupportedAspectRatio),
		errors.Is(err, fitting.ErrUnknownTier):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusForbidden:
		return "access_denied"
	default:
		if status >= http.StatusInternalServerError {
			return "internal"
		}
		return "http_error"
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he := toHTTPError(err)

	if he.Code >= http.StatusInternalServerError {
		cause := err
		if he.Internal != nil {
			cause = he.Internal
		}
		if hub := sentryecho.GetHubFromContext(c); hub != nil {
			hub.CaptureException(cause)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, he.Message)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to write error response")
	}
}
