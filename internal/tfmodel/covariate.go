// Public domain.

package tfmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Scale selects how a covariate is rescaled before interpolation.
type Scale int

const (
	// NoScale leaves values as they are.  Used for roll angle harmonics.
	NoScale Scale = iota
	// MaxScale maps values to (x - min)/ptp, range [0, 1].
	MaxScale
	// RangeScale maps values to (x - median)/ptp, a range of width 1
	// around 0.
	RangeScale
)

var (
	ErrMisaligned = errors.New("arrays differ in length")
	ErrUnsorted   = errors.New("times not ordered")
)

// Covariate is a function of time.
type Covariate interface {
	Predict(t float64) float64
}

// MakeInterp returns a piecewise-linear interpolant of the scaled values of
// x against t.  Queries outside the range of t return the first or last
// value.  t need not be sorted; values at a repeated time are averaged.
//
// A constant covariate has zero peak-to-peak and scales to all zeros.
func MakeInterp(t, x []float64, s Scale) (Covariate, error) {
	if len(t) != len(x) {
		return nil, fmt.Errorf("%w: time %d, covariate %d",
			ErrMisaligned, len(t), len(x))
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrMisaligned)
	}
	for i, ti := range t {
		if math.IsNaN(ti) {
			return nil, fmt.Errorf("%w: t[%d] is NaN", ErrUnsorted, i)
		}
	}
	ts, z := mergeTimes(t, ScaleValues(x, s))
	if len(ts) == 1 {
		return constant(z[0]), nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(ts, z); err != nil {
		return nil, err
	}
	return &pl, nil
}

// mergeTimes sorts (t, z) pairs by t, stable, and replaces each run of
// equal times with one point at the mean of its values.
func mergeTimes(t, z []float64) (ts, zs []float64) {
	idx := make([]int, len(t))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return t[idx[a]] < t[idx[b]] })
	for i := 0; i < len(idx); {
		j, sum := i, 0.
		for ; j < len(idx) && t[idx[j]] == t[idx[i]]; j++ {
			sum += z[idx[j]]
		}
		ts = append(ts, t[idx[i]])
		zs = append(zs, sum/float64(j-i))
		i = j
	}
	return ts, zs
}

type constant float64

func (c constant) Predict(float64) float64 { return float64(c) }

// ScaleValues returns a scaled copy of x.
func ScaleValues(x []float64, s Scale) []float64 {
	z := append([]float64{}, x...)
	if s == NoScale || len(x) == 0 {
		return z
	}
	lo, hi := floats.Min(x), floats.Max(x)
	ptp := hi - lo
	var ref float64
	switch s {
	case MaxScale:
		ref = lo
	case RangeScale:
		ref = Median(x)
	}
	for i, v := range x {
		if ptp == 0 {
			z[i] = 0
			continue
		}
		z[i] = (v - ref) / ptp
	}
	return z
}

// Median of x, the mean of the two central values for even length.
// NaN for empty input.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return nan
	}
	s := append([]float64{}, x...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
