// Public domain.

// Package tfglint builds the glint model, a smooth empirical function of
// spacecraft roll angle fitted to residuals, for scaling by the fitter.
package tfglint

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/transitfit/internal/tfmodel"
)

var ErrMisaligned = errors.New("arrays differ in length")

// Options for Build.  The zero value is not useful, start from
// DefaultOptions.
type Options struct {
	NSpline int     // number of interior spline knots
	Mask    []bool  // if not nil, points where true are not fitted
	Angle0  float64 // angle origin in degrees, NaN to choose automatically
	GapMax  float64 // degrees; a larger gap in roll angle sets Angle0

	// Moon measures angles relative to the direction of the Moon from
	// Target.  BJDRef is added to times to get BJD.
	Moon   bool
	Target Target
	BJDRef float64
}

func DefaultOptions() Options {
	return Options{NSpline: 8, Angle0: math.NaN(), GapMax: 30}
}

// Result is the glint model with the angle origin used.
type Result struct {
	Glint  *tfmodel.Glint
	Angle0 float64
}

// Build fits a glint function to y, the residuals at times t of a
// light curve with roll angles roll in degrees.  y is offset by its median
// before fitting.
func Build(t, roll, y []float64, o Options) (*Result, error) {
	n := len(t)
	if len(roll) != n || len(y) != n || (o.Mask != nil && len(o.Mask) != n) {
		return nil, fmt.Errorf("%w: %d times, %d angles, %d residuals, %d mask",
			ErrMisaligned, n, len(roll), len(y), len(o.Mask))
	}
	angle := roll
	if o.Moon {
		bjd := make([]float64, n)
		for i, ti := range t {
			bjd[i] = ti + o.BJDRef
		}
		angle = MoonAngles(bjd, roll, o.Target)
	}
	angle0 := o.Angle0
	if math.IsNaN(angle0) {
		angle0 = AutoAngle0(angle, o.GapMax)
	}
	theta := Theta(angle, angle0)
	angleOf, err := tfmodel.MakeInterp(t, theta, tfmodel.NoScale)
	if err != nil {
		return nil, err
	}

	var x, r []float64
	for i := range t {
		if (o.Mask != nil && o.Mask[i]) || math.IsNaN(y[i]) {
			continue
		}
		x = append(x, theta[i])
		r = append(r, y[i])
	}
	floats.AddConst(-tfmodel.Median(r), r)
	s, err := FitSpline(x, r, o.NSpline)
	if err != nil {
		return nil, err
	}
	return &Result{
		Glint:  &tfmodel.Glint{AngleOf: angleOf.Predict, Func: s.Predict},
		Angle0: angle0,
	}, nil
}

// AutoAngle0 returns the angle at the end of the largest gap in sorted
// angles, counting the gap from zero to the smallest, if that gap exceeds
// gapMax.  Otherwise it returns 0.
func AutoAngle0(angle []float64, gapMax float64) float64 {
	if len(angle) == 0 {
		return 0
	}
	x := append([]float64{}, angle...)
	sort.Float64s(x)
	gap := make([]float64, len(x))
	gap[0] = x[0]
	for i := 1; i < len(x); i++ {
		gap[i] = x[i] - x[i-1]
	}
	i := floats.MaxIdx(gap)
	if gap[i] > gapMax {
		return x[i]
	}
	return 0
}

// Theta returns angles measured from angle0, in [0, 360).  An angle0
// within .01 of zero leaves angles unchanged.
func Theta(angle []float64, angle0 float64) []float64 {
	th := make([]float64, len(angle))
	for i, a := range angle {
		if math.Abs(angle0) < .01 {
			th[i] = a
			continue
		}
		v := math.Mod(360+a-angle0, 360)
		if v < 0 {
			v += 360
		}
		th[i] = v
	}
	return th
}
