// Package backend contains the interchangeable forecasting strategies. Every backend turns a
// validated historical series into a raw, unclamped sequence of future values; bounding and
// rounding of the output is left to the caller so all backends share one policy.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aouyang1/go-ndvi-forecaster/series"
)

var (
	ErrInference      = errors.New("model inference failed")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrInvalidOptions = errors.New("invalid backend options")
)

// Backend produces a raw forecast of series.Horizon values from a historical series
type Backend interface {
	Predict(h series.Historical) ([]float64, error)
}

// Kind selects which backend variant serves a forecast
type Kind string

const (
	KindStatistical Kind = "statistical"
	KindLearned     Kind = "learned"
)

// ParseKind normalizes a backend selector. An empty token selects the statistical backend.
func ParseKind(token string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(token))); k {
	case "":
		return KindStatistical, nil
	case KindStatistical, KindLearned:
		return k, nil
	default:
		return "", fmt.Errorf("%q, %w", token, ErrUnknownBackend)
	}
}

func (k Kind) String() string {
	return string(k)
}

// InferenceError reports a failed invocation of a learned model
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return ErrInference.Error()
	}
	return fmt.Sprintf("%s, %s", ErrInference.Error(), e.Err.Error())
}

func (e *InferenceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInference}
	}
	return []error{ErrInference, e.Err}
}
