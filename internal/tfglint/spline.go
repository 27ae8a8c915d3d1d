// Public domain.

package tfglint

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrSpline = errors.New("spline fit failed")

// Spline is a least squares cubic regression spline with fixed interior
// knots, constant outside the range of the fitted data.
//
// Represented in the truncated power basis 1, u, u², u³, (u-κⱼ)³₊ with
// u = (x - lo)/(hi - lo).
type Spline struct {
	lo, hi float64
	knots  []float64 // in u
	coef   []float64
}

// FitSpline fits y(x) with nKnots interior knots equally spaced over the
// range of x.  x need not be sorted.  Every knot interval must contain
// data.
func FitSpline(x, y []float64, nKnots int) (*Spline, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d x, %d y", ErrSpline, len(x), len(y))
	}
	nc := 4 + nKnots
	if len(x) < nc {
		return nil, fmt.Errorf("%w: %d points for %d coefficients",
			ErrSpline, len(x), nc)
	}
	s := &Spline{lo: floats.Min(x), hi: floats.Max(x)}
	if !(s.hi > s.lo) {
		return nil, fmt.Errorf("%w: zero range", ErrSpline)
	}
	s.knots = make([]float64, nKnots)
	for j := range s.knots {
		s.knots[j] = float64(j+1) / float64(nKnots+1)
	}
	if err := s.checkCoverage(x); err != nil {
		return nil, err
	}
	a := mat.NewDense(len(x), nc, nil)
	for i, xi := range x {
		a.SetRow(i, s.basis(s.u(xi), make([]float64, nc)))
	}
	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(len(y), append([]float64{}, y...))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpline, err)
	}
	s.coef = make([]float64, nc)
	for j := range s.coef {
		s.coef[j] = c.AtVec(j)
	}
	return s, nil
}

// checkCoverage requires a data point strictly inside each knot interval.
func (s *Spline) checkCoverage(x []float64) error {
	u := make([]float64, len(x))
	for i, xi := range x {
		u[i] = s.u(xi)
	}
	sort.Float64s(u)
	edges := append(append([]float64{0}, s.knots...), 1)
	for j := 1; j < len(edges); j++ {
		k := sort.SearchFloat64s(u, edges[j-1])
		for k < len(u) && u[k] == edges[j-1] {
			k++
		}
		if k == len(u) || u[k] >= edges[j] {
			return fmt.Errorf("%w: no data between knots %d and %d",
				ErrSpline, j-1, j)
		}
	}
	return nil
}

func (s *Spline) u(x float64) float64 {
	return (x - s.lo) / (s.hi - s.lo)
}

func (s *Spline) basis(u float64, b []float64) []float64 {
	b[0], b[1], b[2], b[3] = 1, u, u*u, u*u*u
	for j, k := range s.knots {
		if d := u - k; d > 0 {
			b[4+j] = d * d * d
		} else {
			b[4+j] = 0
		}
	}
	return b
}

// Predict evaluates the spline, clamping x to the fitted range.
func (s *Spline) Predict(x float64) float64 {
	switch {
	case x < s.lo:
		x = s.lo
	case x > s.hi:
		x = s.hi
	}
	return floats.Dot(s.coef, s.basis(s.u(x), make([]float64, len(s.coef))))
}
