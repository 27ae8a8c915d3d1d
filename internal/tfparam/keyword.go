// Public domain.

package tfparam

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Keyword is one of the four ways to specify a parameter: Fixed, Range,
// RangeInit or Gaussian.
type Keyword interface {
	param(name string) (*Param, error)
}

// Fixed is a parameter held at a constant value.
type Fixed float64

// Range is a free parameter starting at the midpoint of [Lo, Hi].
type Range struct {
	Lo, Hi float64
}

// RangeInit is a free parameter in [Lo, Hi] starting at Init.
type RangeInit struct {
	Lo, Init, Hi float64
}

// Gaussian is a free parameter starting at Mean with a Gaussian prior
// Mean ± Sigma and no hard bounds.
type Gaussian struct {
	Mean, Sigma float64
}

func (f Fixed) param(name string) (*Param, error) {
	v := float64(f)
	if math.IsNaN(v) {
		return nil, fmt.Errorf("%w: %s: NaN", ErrInvalidKeyword, name)
	}
	return newParam(name, v, false, math.Inf(-1), math.Inf(1)), nil
}

func (r Range) param(name string) (*Param, error) {
	if math.IsNaN(r.Lo) || math.IsNaN(r.Hi) {
		return nil, fmt.Errorf("%w: %s: NaN bound", ErrInvalidKeyword, name)
	}
	lo, hi := math.Min(r.Lo, r.Hi), math.Max(r.Lo, r.Hi)
	return newParam(name, lo+(hi-lo)/2, true, lo, hi), nil
}

func (r RangeInit) param(name string) (*Param, error) {
	lo, hi := math.Min(r.Lo, r.Hi), math.Max(r.Lo, r.Hi)
	if !(r.Init >= lo && r.Init <= hi) {
		return nil, fmt.Errorf("%w: %s: initial value %g outside [%g, %g]",
			ErrInvalidKeyword, name, r.Init, lo, hi)
	}
	return newParam(name, r.Init, true, lo, hi), nil
}

func (g Gaussian) param(name string) (*Param, error) {
	if math.IsNaN(g.Mean) || math.IsInf(g.Mean, 0) || !(g.Sigma > 0) ||
		math.IsInf(g.Sigma, 0) {
		return nil, fmt.Errorf("%w: %s: prior %g ± %g",
			ErrInvalidKeyword, name, g.Mean, g.Sigma)
	}
	p := newParam(name, g.Mean, true, math.Inf(-1), math.Inf(1))
	p.Prior = &Prior{Mean: g.Mean, Sigma: g.Sigma}
	return p, nil
}

// ParseKeyword parses the text form of a keyword:
//
//   1.5            Fixed
//   (0, 1)         Range
//   (0, 0.2, 1)    RangeInit
//   0.3 +/- 0.01   Gaussian (also 0.3±0.01)
func ParseKeyword(s string) (Keyword, error) {
	t := strings.TrimSpace(s)
	bad := func() (Keyword, error) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyword, s)
	}
	if strings.HasPrefix(t, "(") {
		if !strings.HasSuffix(t, ")") {
			return bad()
		}
		f := strings.Split(t[1:len(t)-1], ",")
		v := make([]float64, len(f))
		for i, fs := range f {
			x, err := strconv.ParseFloat(strings.TrimSpace(fs), 64)
			if err != nil {
				return bad()
			}
			v[i] = x
		}
		switch len(v) {
		case 2:
			return Range{v[0], v[1]}, nil
		case 3:
			return RangeInit{v[0], v[1], v[2]}, nil
		}
		return bad()
	}
	for _, sep := range []string{"+/-", "±"} {
		if i := strings.Index(t, sep); i >= 0 {
			m, err1 := strconv.ParseFloat(strings.TrimSpace(t[:i]), 64)
			sd, err2 := strconv.ParseFloat(strings.TrimSpace(t[i+len(sep):]), 64)
			if err1 != nil || err2 != nil {
				return bad()
			}
			return Gaussian{m, sd}, nil
		}
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return bad()
	}
	return Fixed(v), nil
}
