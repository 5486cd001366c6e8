package models

import (
	"fmt"
	"math"

	mat_ "github.com/aouyang1/go-ndvi-forecaster/mat"
	"gonum.org/v1/gonum/mat"
)

// number of gates stacked in the LSTM kernels
const lstmGates = 4

// LSTMWeights stores a single LSTM layer. Gate blocks are concatenated along the columns in
// the order input, forget, cell, output.
type LSTMWeights struct {
	Units           int         `json:"units"`
	Kernel          [][]float64 `json:"kernel"`           // (features, 4*units)
	RecurrentKernel [][]float64 `json:"recurrent_kernel"` // (units, 4*units)
	Bias            []float64   `json:"bias"`             // (4*units)
}

// LSTM is a single LSTM layer returning its last hidden state into a dense output layer
type LSTM struct {
	steps    int
	features int
	units    int

	kernelT    mat.Matrix // (4*units, features)
	recurrentT mat.Matrix // (4*units, units)
	bias       *mat.VecDense

	output *denseLayer
}

// NewLSTM creates an LSTM sequence model for inputs of shape (steps, features)
func NewLSTM(steps, features int, lw LSTMWeights, dw DenseWeights) (*LSTM, error) {
	if steps <= 0 || features <= 0 {
		return nil, fmt.Errorf("steps %d, features %d, %w", steps, features, ErrInputShape)
	}
	if lw.Units <= 0 {
		return nil, fmt.Errorf("lstm units, %w", ErrNoWeights)
	}
	width := lstmGates * lw.Units

	kernel, err := mat_.NewShapedDense(lw.Kernel, features, width)
	if err != nil {
		return nil, fmt.Errorf("lstm kernel, %w", err)
	}
	recurrent, err := mat_.NewShapedDense(lw.RecurrentKernel, lw.Units, width)
	if err != nil {
		return nil, fmt.Errorf("lstm recurrent kernel, %w", err)
	}
	bias, err := mat_.NewShapedVec(lw.Bias, width)
	if err != nil {
		return nil, fmt.Errorf("lstm bias, %w", err)
	}
	output, err := newDenseLayer(dw, lw.Units)
	if err != nil {
		return nil, err
	}

	return &LSTM{
		steps:      steps,
		features:   features,
		units:      lw.Units,
		kernelT:    kernel.T(),
		recurrentT: recurrent.T(),
		bias:       bias,
		output:     output,
	}, nil
}

// Predict runs the recurrence over every timestep of x and projects the final hidden state
// through the output layer. State is allocated per call so a model can be shared.
func (l *LSTM) Predict(x mat.Matrix) ([]float64, error) {
	if l == nil || l.output == nil {
		return nil, ErrNoWeights
	}
	if err := checkInput(x, l.steps, l.features); err != nil {
		return nil, err
	}

	u := l.units
	h := mat.NewVecDense(u, nil)
	c := make([]float64, u)

	z := mat.NewVecDense(lstmGates*u, nil)
	rec := mat.NewVecDense(lstmGates*u, nil)
	xt := mat.NewVecDense(l.features, nil)
	for t := 0; t < l.steps; t++ {
		for j := 0; j < l.features; j++ {
			xt.SetVec(j, x.At(t, j))
		}

		z.MulVec(l.kernelT, xt)
		rec.MulVec(l.recurrentT, h)
		z.AddVec(z, rec)
		z.AddVec(z, l.bias)

		gates := z.RawVector().Data
		for k := 0; k < u; k++ {
			i := sigmoid(gates[k])
			f := sigmoid(gates[u+k])
			g := math.Tanh(gates[2*u+k])
			o := sigmoid(gates[3*u+k])

			c[k] = f*c[k] + i*g
			h.SetVec(k, o*math.Tanh(c[k]))
		}
	}

	y := l.output.forward(h)
	return y.RawVector().Data, nil
}

func (l *LSTM) InputShape() (int, int) {
	return l.steps, l.features
}

func (l *LSTM) OutputLen() int {
	return l.output.out
}

// Units returns the size of the hidden state
func (l *LSTM) Units() int {
	return l.units
}

func sigmoid(v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}
