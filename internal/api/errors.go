package api

import (
	"errors"
	"fmt"
	"net/http"

	forecaster "github.com/aouyang1/go-ndvi-forecaster"
	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/region"
	"github.com/aouyang1/go-ndvi-forecaster/series"
	"github.com/labstack/echo/v4"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

const (
	msgPredictionFailed = "prediction failed"
	msgInternal         = "internal error"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestError reports a request field that failed validation
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}

// classify maps an error to a status code and the message exposed to clients. Inference and
// unclassified failures are redacted.
func classify(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, series.ErrArity),
		errors.Is(err, series.ErrParse),
		errors.Is(err, series.ErrRange),
		errors.Is(err, region.ErrUnknown),
		errors.Is(err, backend.ErrUnknownBackend):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, forecaster.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, backend.ErrInference), errors.Is(err, forecaster.ErrPrediction):
		return http.StatusInternalServerError, msgPredictionFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// outcome labels the result of a forecast for metrics
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch status, _ := classify(err); status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "status", status, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Error("unable to write error response", "error", err)
	}
}
