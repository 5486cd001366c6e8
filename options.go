package forecaster

import (
	"github.com/aouyang1/go-ndvi-forecaster/backend"
)

// Options configures the forecast engine
type Options struct {
	// StatisticalOptions tunes the closed form extrapolator shared by every region
	StatisticalOptions *backend.StatisticalOptions `json:"statistical_options"`

	// Registry holds the learned models available per region. A nil registry means the
	// learned backend is unavailable for every region.
	Registry *Registry `json:"-"`
}

// NewDefaultOptions returns the default statistical options with no learned models
func NewDefaultOptions() *Options {
	return &Options{
		StatisticalOptions: backend.NewDefaultStatisticalOptions(),
	}
}
