package models

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// File is the serialized form of a pre-trained sequence model
type File struct {
	Type        Type         `json:"type"`
	Region      string       `json:"region,omitempty"`
	Version     string       `json:"version,omitempty"`
	InputSteps  int          `json:"input_steps"`
	Features    int          `json:"features"`
	OutputSteps int          `json:"output_steps"`
	LSTM        *LSTMWeights `json:"lstm,omitempty"`
	Dense       DenseWeights `json:"dense"`
}

// Build constructs the runtime model described by the file
func (f *File) Build() (SequenceModel, error) {
	if f == nil {
		return nil, ErrNoWeights
	}
	features := f.Features
	if features == 0 {
		features = 1
	}

	var m SequenceModel
	switch f.Type {
	case TypeLSTM:
		if f.LSTM == nil {
			return nil, fmt.Errorf("lstm layer, %w", ErrNoWeights)
		}
		lstm, err := NewLSTM(f.InputSteps, features, *f.LSTM, f.Dense)
		if err != nil {
			return nil, err
		}
		m = lstm
	case TypeDense:
		dense, err := NewDense(f.InputSteps, features, f.Dense)
		if err != nil {
			return nil, err
		}
		m = dense
	default:
		return nil, fmt.Errorf("%q, %w", f.Type, ErrUnknownModelType)
	}

	if f.OutputSteps != 0 && m.OutputLen() != f.OutputSteps {
		return nil, fmt.Errorf("declared %d output steps, but output layer has %d, %w",
			f.OutputSteps, m.OutputLen(), ErrInputShape)
	}
	return m, nil
}

// Load decodes a model file from r and builds it
func Load(r io.Reader) (SequenceModel, *File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("unable to decode model file, %w", err)
	}
	m, err := f.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to build %s model, %w", f.Type, err)
	}
	return m, &f, nil
}

// LoadFile opens the model file at path and builds it
func LoadFile(path string) (SequenceModel, *File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return Load(file)
}
