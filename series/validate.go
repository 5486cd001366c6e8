package series

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aouyang1/go-ndvi-forecaster/region"
)

// FieldName returns the input field name of the i-th historical value, e.g. ndvi1
func FieldName(i int) string {
	return fmt.Sprintf("ndvi%d", i+1)
}

// Validate parses the raw historical tokens and region token. The checks run in order of
// arity, numeric parse, value range and region membership and the first failure is returned.
func Validate(raw []string, regionToken string) (Historical, region.Region, error) {
	var h Historical
	if len(raw) != HistoryLen {
		return h, "", fmt.Errorf("expected %d values, but got %d, %w", HistoryLen, len(raw), ErrArity)
	}

	values := make([]float64, HistoryLen)
	for i, token := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil {
			return h, "", &ParseError{Field: FieldName(i), Token: token}
		}
		values[i] = v
	}

	h, err := NewHistorical(values)
	if err != nil {
		return h, "", err
	}

	r, err := region.Parse(regionToken)
	if err != nil {
		return h, "", err
	}
	return h, r, nil
}
