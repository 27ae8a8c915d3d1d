// Public domain.

package tfmodel

import (
	"fmt"
	"math"

	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Decorrelation coefficient names understood by Factor.
var DecorrNames = []string{
	"dfdt", "d2fdt2",
	"dfdbg", "dfdcontam",
	"dfdx", "dfdy", "d2fdx2", "d2fdy2",
	"dfdsinphi", "dfdcosphi",
	"dfdsin2phi", "dfdcos2phi",
	"dfdsin3phi", "dfdcos3phi",
}

// Factor is the instrumental systematics model, a scale factor c times a
// linear combination of covariates:
//
//   c·(1 + dfdt·t + d2fdt2·t² + dfdbg·bg + dfdcontam·contam
//        + dfdx·dx + dfdy·dy + d2fdx2·dx² + d2fdy2·dy²
//        + Σₙ dfdsin{n}phi·sin(nφ) + dfdcos{n}phi·cos(nφ)),  n = 1..3
//
// Coefficients absent from the parameter set are zero, an absent c is 1.
// Covariates are captured when the Factor is built and not changed after.
type Factor struct {
	dx, dy, sinphi, cosphi, bg, contam Covariate
}

// NewFactor builds covariate interpolants from aligned arrays.  Centroid
// offsets use RangeScale, background and contamination MaxScale, roll
// angle (degrees) harmonics are not scaled.
func NewFactor(t, xoff, yoff, rollDeg, bg, contam []float64) (*Factor, error) {
	for _, a := range [][]float64{xoff, yoff, rollDeg, bg, contam} {
		if len(a) != len(t) {
			return nil, fmt.Errorf("%w: time %d, covariate %d",
				ErrMisaligned, len(t), len(a))
		}
	}
	sinphi := make([]float64, len(t))
	cosphi := make([]float64, len(t))
	for i, r := range rollDeg {
		sinphi[i], cosphi[i] = math.Sincos(r * math.Pi / 180)
	}
	var f Factor
	var err error
	for _, c := range []struct {
		dst *Covariate
		x   []float64
		s   Scale
	}{
		{&f.dx, xoff, RangeScale},
		{&f.dy, yoff, RangeScale},
		{&f.sinphi, sinphi, NoScale},
		{&f.cosphi, cosphi, NoScale},
		{&f.bg, bg, MaxScale},
		{&f.contam, contam, MaxScale},
	} {
		if *c.dst, err = MakeInterp(t, c.x, c.s); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func (*Factor) node() {}

func (f *Factor) Eval(p *tfparam.Params, t []float64) []float64 {
	var cf [14]float64
	for i, n := range DecorrNames {
		cf[i] = p.ValueOr(n, 0)
	}
	c := p.ValueOr("c", 1)
	out := make([]float64, len(t))
	for i, ti := range t {
		dx := f.dx.Predict(ti)
		dy := f.dy.Predict(ti)
		s := f.sinphi.Predict(ti)
		co := f.cosphi.Predict(ti)
		s2, c2 := 2*s*co, 2*co*co-1
		s3, c3 := 3*s-4*s*s*s, 4*co*co*co-3*co
		trend := 1 +
			cf[0]*ti + cf[1]*ti*ti +
			cf[2]*f.bg.Predict(ti) + cf[3]*f.contam.Predict(ti) +
			cf[4]*dx + cf[5]*dy + cf[6]*dx*dx + cf[7]*dy*dy +
			cf[8]*s + cf[9]*co +
			cf[10]*s2 + cf[11]*c2 +
			cf[12]*s3 + cf[13]*c3
		out[i] = c * trend
	}
	return out
}

// Glint is a periodic artefact, a scaled function of an angle that is
// itself a function of time.
//
// Parameter read: glint_scale.
type Glint struct {
	AngleOf func(t float64) float64
	Func    func(angle float64) float64
}

func (*Glint) node() {}

func (g *Glint) Eval(p *tfparam.Params, t []float64) []float64 {
	s := p.Value("glint_scale")
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = s * g.Func(g.AngleOf(ti))
	}
	return out
}
