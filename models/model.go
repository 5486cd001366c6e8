// Package models is a collection of pre-trained sequence model runtimes used by the learned
// forecasting backend. Models are loaded from serialized weights and only support inference.
package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownModelType = errors.New("unknown model type")
	ErrNoWeights        = errors.New("no model weights")
	ErrInputShape       = errors.New("input shape does not match model")
	ErrNilInput         = errors.New("no input matrix for inference")
)

// Type identifies the architecture stored in a model file
type Type string

const (
	TypeLSTM  Type = "lstm"
	TypeDense Type = "dense"
)

// SequenceModel maps one sample of shape (timesteps, features) to a sequence of output
// values.
type SequenceModel interface {
	Predict(x mat.Matrix) ([]float64, error)
	InputShape() (steps, features int)
	OutputLen() int
}

// checkInput validates the input matrix against the expected steps and features
func checkInput(x mat.Matrix, steps, features int) error {
	if x == nil {
		return ErrNilInput
	}
	m, n := x.Dims()
	if m != steps || n != features {
		return &ShapeError{Expected: [2]int{steps, features}, Got: [2]int{m, n}}
	}
	return nil
}

// ShapeError reports a mismatch between the input and the shape the model was trained with
type ShapeError struct {
	Expected [2]int
	Got      [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("expected input of shape (%d, %d), but got (%d, %d)",
		e.Expected[0], e.Expected[1], e.Got[0], e.Got[1])
}

func (e *ShapeError) Unwrap() error {
	return ErrInputShape
}
