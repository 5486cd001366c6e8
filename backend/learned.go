package backend

import (
	"fmt"
	"sync"

	"github.com/aouyang1/go-ndvi-forecaster/models"
	"github.com/aouyang1/go-ndvi-forecaster/series"
	"gonum.org/v1/gonum/mat"
)

// Learned wraps a pre-trained sequence model for a single region. Regional behavior is
// captured by the model weights so no calibration factor is applied. Calls to the same
// instance are serialized; separate instances run independently.
type Learned struct {
	mu    sync.Mutex
	model models.SequenceModel
}

// NewLearned wraps the model. The model must accept series.HistoryLen timesteps with a single
// feature.
func NewLearned(m models.SequenceModel) (*Learned, error) {
	if m == nil {
		return nil, fmt.Errorf("no model, %w", ErrInvalidOptions)
	}
	steps, features := m.InputShape()
	if steps != series.HistoryLen || features != 1 {
		return nil, fmt.Errorf("model expects input (%d, %d), %w", steps, features, models.ErrInputShape)
	}
	return &Learned{model: m}, nil
}

// Predict reshapes the series as one sample of series.HistoryLen timesteps by 1 feature and
// runs the model. Model failures, panics and outputs that are not series.Horizon long are
// reported as an InferenceError.
func (l *Learned) Predict(h series.Historical) (raw []float64, err error) {
	x := mat.NewDense(series.HistoryLen, 1, h.Slice())

	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = &InferenceError{Err: fmt.Errorf("model runtime panic: %v", r)}
		}
	}()

	out, err := l.model.Predict(x)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if len(out) != series.Horizon {
		return nil, &InferenceError{Err: fmt.Errorf("expected %d output values, but got %d", series.Horizon, len(out))}
	}
	return out, nil
}

// Model returns the wrapped sequence model
func (l *Learned) Model() models.SequenceModel {
	return l.model
}
