package forecaster

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"text/tabwriter"

	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/models"
	"github.com/aouyang1/go-ndvi-forecaster/region"
)

// DefaultModelFile returns the file name a region's learned model is looked up by
func DefaultModelFile(r region.Region) string {
	return fmt.Sprintf("ndvi_predictor_%s.json", r)
}

// ModelState describes whether a region's learned model could be loaded
type ModelState string

const (
	ModelLoaded  ModelState = "loaded"
	ModelMissing ModelState = "missing"
	ModelInvalid ModelState = "invalid"
)

// ModelStatus summarizes the learned model slot of a single region
type ModelStatus struct {
	Region  region.Region `json:"region"`
	State   ModelState    `json:"state"`
	Path    string        `json:"path,omitempty"`
	Type    models.Type   `json:"type,omitempty"`
	Version string        `json:"version,omitempty"`
	Error   string        `json:"error,omitempty"`

	InputSteps  int `json:"input_steps,omitempty"`
	OutputSteps int `json:"output_steps,omitempty"`
}

// Registry holds at most one learned backend per region. It is populated once and read only
// afterwards.
type Registry struct {
	learned map[region.Region]*backend.Learned
	status  map[region.Region]ModelStatus
}

// NewRegistry wraps already built sequence models. A nil model leaves the region without a
// learned backend.
func NewRegistry(m map[region.Region]models.SequenceModel) (*Registry, error) {
	reg := newRegistry()
	for r, model := range m {
		if !r.Valid() {
			return nil, &region.UnknownError{Token: r.String()}
		}
		if model == nil {
			continue
		}
		l, err := backend.NewLearned(model)
		if err != nil {
			return nil, fmt.Errorf("unable to register model for %s, %w", r, err)
		}
		steps, _ := model.InputShape()
		reg.learned[r] = l
		reg.status[r] = ModelStatus{Region: r, State: ModelLoaded, InputSteps: steps, OutputSteps: model.OutputLen()}
	}
	return reg, nil
}

// LoadRegistry loads the learned model of every region from dir. Files default to
// DefaultModelFile and may be overridden per region. A missing or unloadable file is logged and
// leaves the region without a learned backend; loading itself never fails.
func LoadRegistry(dir string, files map[region.Region]string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := newRegistry()
	for _, r := range region.All() {
		name, exists := files[r]
		if !exists || name == "" {
			name = DefaultModelFile(r)
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, name)
		}

		status := ModelStatus{Region: r, Path: path}
		model, file, err := models.LoadFile(path)
		if err != nil {
			status.State = ModelInvalid
			if errors.Is(err, fs.ErrNotExist) {
				status.State = ModelMissing
			}
			status.Error = err.Error()
			reg.status[r] = status
			logger.Warn("learned model unavailable", "region", r, "path", path, "state", status.State, "error", err)
			continue
		}

		l, err := backend.NewLearned(model)
		if err != nil {
			status.State = ModelInvalid
			status.Error = err.Error()
			reg.status[r] = status
			logger.Warn("learned model unavailable", "region", r, "path", path, "state", status.State, "error", err)
			continue
		}

		status.State = ModelLoaded
		status.Type = file.Type
		status.Version = file.Version
		status.InputSteps, _ = model.InputShape()
		status.OutputSteps = model.OutputLen()
		reg.learned[r] = l
		reg.status[r] = status
		logger.Info("loaded learned model", "region", r, "path", path, "type", file.Type, "version", file.Version)
	}
	return reg
}

func newRegistry() *Registry {
	return &Registry{
		learned: make(map[region.Region]*backend.Learned),
		status:  make(map[region.Region]ModelStatus),
	}
}

// Get returns the learned backend of the region if one was loaded
func (r *Registry) Get(reg region.Region) (*backend.Learned, bool) {
	if r == nil {
		return nil, false
	}
	l, exists := r.learned[reg]
	return l, exists
}

// Regions returns the regions with a loaded learned model in canonical order
func (r *Registry) Regions() []region.Region {
	if r == nil {
		return nil
	}
	res := make([]region.Region, 0, len(r.learned))
	for _, reg := range region.All() {
		if _, exists := r.learned[reg]; exists {
			res = append(res, reg)
		}
	}
	return res
}

// Status returns the learned model status of every region in canonical order
func (r *Registry) Status() []ModelStatus {
	res := make([]ModelStatus, 0, len(region.All()))
	for _, reg := range region.All() {
		status := ModelStatus{Region: reg, State: ModelMissing}
		if r != nil {
			if s, exists := r.status[reg]; exists {
				status = s
			}
		}
		res = append(res, status)
	}
	return res
}

// TablePrint writes the learned model status of every region as a table
func (r *Registry) TablePrint(w io.Writer) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tbl, "Region\tState\tType\tVersion\tShape\tPath\t\n")
	for _, s := range r.Status() {
		shape := "-"
		if s.State == ModelLoaded {
			shape = fmt.Sprintf("%dx1->%d", s.InputSteps, s.OutputSteps)
		}
		fmt.Fprintf(tbl, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Region, s.State, orDash(string(s.Type)), orDash(s.Version), shape, orDash(s.Path))
	}
	if err := tbl.Flush(); err != nil {
		return err
	}

	for _, s := range r.Status() {
		if s.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", s.Region, s.Error)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
