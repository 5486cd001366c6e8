package models

import (
	"fmt"

	mat_ "github.com/aouyang1/go-ndvi-forecaster/mat"
	"gonum.org/v1/gonum/mat"
)

// DenseWeights stores a fully connected layer where kernel has one row per input unit and one
// column per output unit.
type DenseWeights struct {
	Kernel [][]float64 `json:"kernel"`
	Bias   []float64   `json:"bias"`
}

type denseLayer struct {
	kernelT mat.Matrix // (out, in)
	bias    *mat.VecDense
	in      int
	out     int
}

func newDenseLayer(w DenseWeights, in int) (*denseLayer, error) {
	if len(w.Kernel) == 0 {
		return nil, fmt.Errorf("dense kernel, %w", ErrNoWeights)
	}
	out := len(w.Kernel[0])
	kernel, err := mat_.NewShapedDense(w.Kernel, in, out)
	if err != nil {
		return nil, fmt.Errorf("dense kernel, %w", err)
	}
	bias, err := mat_.NewShapedVec(w.Bias, out)
	if err != nil {
		return nil, fmt.Errorf("dense bias, %w", err)
	}
	return &denseLayer{
		kernelT: kernel.T(),
		bias:    bias,
		in:      in,
		out:     out,
	}, nil
}

func (d *denseLayer) forward(x mat.Vector) *mat.VecDense {
	y := mat.NewVecDense(d.out, nil)
	y.MulVec(d.kernelT, x)
	y.AddVec(y, d.bias)
	return y
}

// Dense is a single linear layer applied to the flattened input sequence
type Dense struct {
	steps    int
	features int
	layer    *denseLayer
}

// NewDense creates a dense sequence model for inputs of shape (steps, features)
func NewDense(steps, features int, w DenseWeights) (*Dense, error) {
	if steps <= 0 || features <= 0 {
		return nil, fmt.Errorf("steps %d, features %d, %w", steps, features, ErrInputShape)
	}
	layer, err := newDenseLayer(w, steps*features)
	if err != nil {
		return nil, err
	}
	return &Dense{
		steps:    steps,
		features: features,
		layer:    layer,
	}, nil
}

// Predict flattens the input in row order and applies the linear layer
func (d *Dense) Predict(x mat.Matrix) ([]float64, error) {
	if d == nil || d.layer == nil {
		return nil, ErrNoWeights
	}
	if err := checkInput(x, d.steps, d.features); err != nil {
		return nil, err
	}

	flat := make([]float64, 0, d.steps*d.features)
	for i := 0; i < d.steps; i++ {
		flat = append(flat, mat.Row(nil, i, x)...)
	}
	y := d.layer.forward(mat.NewVecDense(len(flat), flat))
	return y.RawVector().Data, nil
}

func (d *Dense) InputShape() (int, int) {
	return d.steps, d.features
}

func (d *Dense) OutputLen() int {
	return d.layer.out
}
