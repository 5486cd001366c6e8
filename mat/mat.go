// Package mat converts the nested slices found in serialized model files into gonum matrices
package mat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyArray  = errors.New("empty array")
	ErrColMismatch = errors.New("column size mismatch")
	ErrShape       = errors.New("unexpected matrix shape")
)

// NewDenseFromArray builds a row major dense matrix where each inner slice is a row
func NewDenseFromArray(x [][]float64) (*mat.Dense, error) {
	m := len(x)
	if m == 0 {
		return nil, ErrEmptyArray
	}

	n := len(x[0])
	for i, row := range x {
		if len(row) != n {
			return nil, fmt.Errorf("at row %d, %w", i, ErrColMismatch)
		}
	}
	if n == 0 {
		return nil, ErrEmptyArray
	}

	// flatten to row order
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data), nil
}

// NewShapedDense builds a dense matrix from the nested slice and checks it has m rows and
// n columns.
func NewShapedDense(x [][]float64, m, n int) (*mat.Dense, error) {
	d, err := NewDenseFromArray(x)
	if err != nil {
		return nil, err
	}
	if dm, dn := d.Dims(); dm != m || dn != n {
		return nil, fmt.Errorf("expected %dx%d, but got %dx%d, %w", m, n, dm, dn, ErrShape)
	}
	return d, nil
}

// NewShapedVec builds a vector from the slice and checks its length is n
func NewShapedVec(x []float64, n int) (*mat.VecDense, error) {
	if len(x) == 0 {
		return nil, ErrEmptyArray
	}
	if len(x) != n {
		return nil, fmt.Errorf("expected length %d, but got %d, %w", n, len(x), ErrShape)
	}
	data := make([]float64, n)
	copy(data, x)
	return mat.NewVecDense(n, data), nil
}
