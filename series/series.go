// Package series contains the fixed-length NDVI series the forecaster consumes and produces
// along with the validation applied to raw input before any forecasting is attempted.
package series

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

const (
	// HistoryLen is the number of consecutive observations a forecast is generated from
	HistoryLen = 5

	// Horizon is the number of future values in a forecast
	Horizon = 3

	MinNDVI = -1.0
	MaxNDVI = 1.0
)

var (
	ErrArity = errors.New("wrong number of historical values")
	ErrParse = errors.New("historical value is not numeric")
	ErrRange = errors.New("NDVI values must be between -1 and 1")
)

// ParseError reports the input field that could not be parsed as a real number
type ParseError struct {
	Field string
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: could not convert %q to a number", e.Field, e.Token)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// RangeError reports the first value found outside of [-1, 1]
type RangeError struct {
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s, got %v", ErrRange.Error(), e.Value)
}

func (e *RangeError) Unwrap() error {
	return ErrRange
}

// Historical is an ordered series of consecutive NDVI observations, oldest first. Being an
// array it is copied by value and cannot be mutated by the forecaster.
type Historical [HistoryLen]float64

// NewHistorical checks the arity and range of already typed values and returns a Historical
// series.
func NewHistorical(values []float64) (Historical, error) {
	var h Historical
	if len(values) != HistoryLen {
		return h, fmt.Errorf("expected %d values, but got %d, %w", HistoryLen, len(values), ErrArity)
	}
	for i, v := range values {
		if !InRange(v) {
			return h, &RangeError{Value: v}
		}
		h[i] = v
	}
	return h, nil
}

// Slice returns a copy of the series as a slice
func (h Historical) Slice() []float64 {
	dst := make([]float64, HistoryLen)
	copy(dst, h[:])
	return dst
}

// Last returns the most recent observation
func (h Historical) Last() float64 {
	return h[HistoryLen-1]
}

// Forecast is an ordered series of future NDVI values where index 0 is the nearest step
type Forecast [Horizon]float64

type forecastJSON struct {
	Year1 float64 `json:"year1"`
	Year2 float64 `json:"year2"`
	Year3 float64 `json:"year3"`
}

// MarshalJSON encodes the forecast as an object keyed year1, year2, year3
func (f Forecast) MarshalJSON() ([]byte, error) {
	return json.Marshal(forecastJSON{Year1: f[0], Year2: f[1], Year3: f[2]})
}

func (f *Forecast) UnmarshalJSON(b []byte) error {
	var fj forecastJSON
	if err := json.Unmarshal(b, &fj); err != nil {
		return err
	}
	*f = Forecast{fj.Year1, fj.Year2, fj.Year3}
	return nil
}

// Slice returns a copy of the forecast as a slice
func (f Forecast) Slice() []float64 {
	dst := make([]float64, Horizon)
	copy(dst, f[:])
	return dst
}

// InRange reports whether v is a valid NDVI value. NaN is never in range.
func InRange(v float64) bool {
	return !math.IsNaN(v) && v >= MinNDVI && v <= MaxNDVI
}
