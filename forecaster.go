// Package forecaster generates short horizon NDVI forecasts from a fixed window of historical
// observations. A forecast is served by one of the interchangeable backends, either a closed
// form statistical extrapolator calibrated per region or a learned sequence model trained per
// region, and every result is bounded to the valid NDVI range.
package forecaster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/region"
	"github.com/aouyang1/go-ndvi-forecaster/series"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Decimals is the precision forecasts are rounded to
	Decimals = 4

	tracerName = "github.com/aouyang1/go-ndvi-forecaster"
)

var (
	ErrUninitializedEngine = errors.New("uninitialized forecast engine")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrPrediction          = errors.New("prediction failed")
)

// BackendUnavailableError reports a learned backend requested for a region that has no model
type BackendUnavailableError struct {
	Region region.Region
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("no learned model available for region %s", e.Region)
}

func (e *BackendUnavailableError) Unwrap() error {
	return ErrBackendUnavailable
}

// PredictionError wraps an unclassified failure raised by a backend
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s, %s", ErrPrediction.Error(), e.Err.Error())
}

func (e *PredictionError) Unwrap() []error {
	return []error{ErrPrediction, e.Err}
}

// Engine validates input, resolves a backend and bounds its output. It holds no per call
// state and is safe for concurrent use.
type Engine struct {
	opt         *Options
	statistical map[region.Region]*backend.Statistical
	tracer      trace.Tracer
}

// New creates a forecast engine with the provided options. If no options are provided the
// defaults are used.
func New(opt *Options) (*Engine, error) {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	if opt.StatisticalOptions == nil {
		opt.StatisticalOptions = backend.NewDefaultStatisticalOptions()
	}

	statistical := make(map[region.Region]*backend.Statistical)
	for _, r := range region.All() {
		s, err := backend.NewStatistical(opt.StatisticalOptions, region.Factor(r))
		if err != nil {
			return nil, fmt.Errorf("unable to initialize statistical backend for %s, %w", r, err)
		}
		statistical[r] = s
	}

	return &Engine{
		opt:         opt,
		statistical: statistical,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// Forecast validates the raw historical tokens and region and forecasts the next
// series.Horizon values with the selected backend.
func (e *Engine) Forecast(ctx context.Context, raw []string, regionToken string, kind backend.Kind) (series.Forecast, error) {
	if e == nil {
		return series.Forecast{}, ErrUninitializedEngine
	}

	h, r, err := series.Validate(raw, regionToken)
	if err != nil {
		return series.Forecast{}, err
	}
	return e.ForecastSeries(ctx, h, r, kind)
}

// ForecastSeries forecasts an already validated series. The learned backend never falls back
// to the statistical backend when no model is loaded for the region.
func (e *Engine) ForecastSeries(ctx context.Context, h series.Historical, r region.Region, kind backend.Kind) (series.Forecast, error) {
	if e == nil {
		return series.Forecast{}, ErrUninitializedEngine
	}

	_, span := e.tracer.Start(ctx, "forecaster.Forecast",
		trace.WithAttributes(
			attribute.String("ndvi.region", r.String()),
			attribute.String("ndvi.backend", kind.String()),
		),
	)
	defer span.End()

	f, err := e.forecast(h, r, kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return series.Forecast{}, err
	}
	span.SetAttributes(attribute.Float64Slice("ndvi.forecast", f.Slice()))
	return f, nil
}

func (e *Engine) forecast(h series.Historical, r region.Region, kind backend.Kind) (series.Forecast, error) {
	if !r.Valid() {
		return series.Forecast{}, &region.UnknownError{Token: r.String()}
	}
	b, err := e.Backend(r, kind)
	if err != nil {
		return series.Forecast{}, err
	}

	raw, err := invoke(b, h)
	if err != nil {
		return series.Forecast{}, err
	}
	return bound(raw)
}

// Backend resolves the backend serving the region
func (e *Engine) Backend(r region.Region, kind backend.Kind) (backend.Backend, error) {
	if e == nil {
		return nil, ErrUninitializedEngine
	}

	switch kind {
	case backend.KindStatistical, "":
		s, exists := e.statistical[r]
		if !exists {
			return nil, &region.UnknownError{Token: r.String()}
		}
		return s, nil
	case backend.KindLearned:
		l, exists := e.opt.Registry.Get(r)
		if !exists {
			return nil, &BackendUnavailableError{Region: r}
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%q, %w", kind, backend.ErrUnknownBackend)
	}
}

// Registry returns the learned model registry the engine was created with
func (e *Engine) Registry() *Registry {
	if e == nil {
		return nil
	}
	return e.opt.Registry
}

// invoke runs the backend, classifying any error that is not already an inference failure
// and converting panics into prediction errors.
func invoke(b backend.Backend, h series.Historical) (raw []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = &PredictionError{Err: fmt.Errorf("backend panic: %v", r)}
		}
	}()

	raw, err = b.Predict(h)
	if err != nil {
		if errors.Is(err, backend.ErrInference) {
			return nil, err
		}
		return nil, &PredictionError{Err: err}
	}
	if len(raw) != series.Horizon {
		return nil, &PredictionError{Err: fmt.Errorf("expected %d values, but got %d", series.Horizon, len(raw))}
	}
	return raw, nil
}

// bound clamps every raw value to the NDVI range and rounds it for presentation
func bound(raw []float64) (series.Forecast, error) {
	var f series.Forecast
	for i, v := range raw {
		if math.IsNaN(v) {
			return series.Forecast{}, &backend.InferenceError{Err: fmt.Errorf("non-numeric output at step %d", i+1)}
		}
		f[i] = Round(Clamp(v), Decimals)
	}
	return f, nil
}

// Clamp bounds v to [series.MinNDVI, series.MaxNDVI]
func Clamp(v float64) float64 {
	return math.Min(math.Max(v, series.MinNDVI), series.MaxNDVI)
}

// Round rounds v half away from zero to the number of decimals. Negative zero is normalized.
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	res := math.Round(v*scale) / scale
	if res == 0 {
		return 0
	}
	return res
}
