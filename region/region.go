// Package region defines the closed set of geographic regions a forecast can be calibrated
// for along with the growth-rate multiplier observed for each of them.
package region

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknown = errors.New("unknown region")

// Region is a canonical, lower-case region identifier
type Region string

const (
	North Region = "north"
	South Region = "south"
	East  Region = "east"
	West  Region = "west"
)

// NeutralFactor is applied to regions without calibration data
const NeutralFactor = 1.0

var canonical = []Region{North, South, East, West}

// slower growth dynamics in the north and east, faster in the south and west
var factors = map[Region]float64{
	North: 0.95,
	South: 1.05,
	East:  0.98,
	West:  1.02,
}

// UnknownError reports the raw token that could not be resolved to a region
type UnknownError struct {
	Token string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("invalid region: %s", e.Token)
}

func (e *UnknownError) Unwrap() error {
	return ErrUnknown
}

// Parse normalizes the token to its lower-case form and resolves it against the canonical
// region set.
func Parse(token string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(token)))
	if !r.Valid() {
		return "", &UnknownError{Token: token}
	}
	return r, nil
}

// Valid reports whether r is one of the canonical regions
func (r Region) Valid() bool {
	for _, c := range canonical {
		if r == c {
			return true
		}
	}
	return false
}

func (r Region) String() string {
	return string(r)
}

// All returns the canonical regions in a fixed order
func All() []Region {
	dst := make([]Region, len(canonical))
	copy(dst, canonical)
	return dst
}

// Factor returns the growth-rate multiplier for the region. Regions without calibration data
// get the neutral factor so the trend is applied unscaled.
func Factor(r Region) float64 {
	if f, exists := factors[r]; exists {
		return f
	}
	return NeutralFactor
}
