package backend

import (
	"fmt"

	"github.com/aouyang1/go-ndvi-forecaster/series"
	"gonum.org/v1/gonum/floats"
)

// StatisticalOptions configures the recency weighting of differences and the per-horizon
// dampening of the projected trend.
type StatisticalOptions struct {
	// Weights apply to the series.HistoryLen-1 first order differences, oldest first
	Weights []float64 `json:"weights"`

	// Damping discounts the trend at each of the series.Horizon steps, nearest first
	Damping []float64 `json:"damping"`
}

// NewDefaultStatisticalOptions weights the most recent change highest and discounts the
// projection further out.
func NewDefaultStatisticalOptions() *StatisticalOptions {
	return &StatisticalOptions{
		Weights: []float64{0.1, 0.2, 0.3, 0.4},
		Damping: []float64{1.0, 0.9, 0.8},
	}
}

// Validate checks the option lengths match the series sizes and the weights do not sum to 0
func (o *StatisticalOptions) Validate() error {
	if o == nil {
		return fmt.Errorf("no options, %w", ErrInvalidOptions)
	}
	if len(o.Weights) != series.HistoryLen-1 {
		return fmt.Errorf("expected %d weights, but got %d, %w", series.HistoryLen-1, len(o.Weights), ErrInvalidOptions)
	}
	if len(o.Damping) != series.Horizon {
		return fmt.Errorf("expected %d damping values, but got %d, %w", series.Horizon, len(o.Damping), ErrInvalidOptions)
	}
	if floats.Sum(o.Weights) == 0 {
		return fmt.Errorf("weights sum to zero, %w", ErrInvalidOptions)
	}
	return nil
}

// Statistical extrapolates a recency weighted trend from the most recent observation. It is
// deterministic and holds no state beyond its options and calibration factor.
type Statistical struct {
	opt       *StatisticalOptions
	factor    float64
	weightSum float64
}

// NewStatistical creates a statistical backend scaling the trend by the calibration factor.
// If no options are provided the defaults are used.
func NewStatistical(opt *StatisticalOptions, factor float64) (*Statistical, error) {
	if opt == nil {
		opt = NewDefaultStatisticalOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if factor <= 0 {
		return nil, fmt.Errorf("calibration factor must be positive, got %v, %w", factor, ErrInvalidOptions)
	}
	return &Statistical{
		opt:       opt,
		factor:    factor,
		weightSum: floats.Sum(opt.Weights),
	}, nil
}

// Trend returns the weighted average of the first order differences of the series
func (s *Statistical) Trend(h series.Historical) float64 {
	diffs := make([]float64, series.HistoryLen-1)
	floats.SubTo(diffs, h[1:], h[:series.HistoryLen-1])
	return floats.Dot(diffs, s.opt.Weights) / s.weightSum
}

// Predict projects the trend forward from the last observation with
// raw[i] = last + trend*(i+1)*damping[i]*factor.
func (s *Statistical) Predict(h series.Historical) ([]float64, error) {
	trend := s.Trend(h)
	base := h.Last()

	raw := make([]float64, series.Horizon)
	for i := range raw {
		raw[i] = base + trend*float64(i+1)*s.opt.Damping[i]*s.factor
	}
	return raw, nil
}

// Factor returns the calibration factor the trend is scaled by
func (s *Statistical) Factor() float64 {
	return s.factor
}
