// Public domain.

package tfmodel

import (
	"math"

	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Eclipse is the occultation of a uniform planet disk by the star.
//
// Parameters read: T_0, P, D, W, b, L, f_c, f_s, a_c.  T_0 is the time of
// mid-eclipse for a circular orbit; the transit is at T_0 - P/2.  L is the
// eclipse depth: flux is 1 out of eclipse and 1 - L at totality.  a_c
// delays the eclipse for light travel time across the orbit.
type Eclipse struct{}

func (*Eclipse) node() {}

func (*Eclipse) Eval(p *tfparam.Params, t []float64) []float64 {
	var (
		t0 = p.Value("T_0")
		P  = p.Value("P")
		D  = p.Value("D")
		W  = p.Value("W")
		b  = p.Value("b")
		L  = p.Value("L")
		fc = p.ValueOr("f_c", 0)
		fs = p.ValueOr("f_s", 0)
		ac = p.ValueOr("a_c", 0)
	)
	k := K(D)
	o := newOrbit(t0-P/2, P, AR(D, W, b), b, fc, fs)
	f := make([]float64, len(t))
	for i, ti := range t {
		z, front := o.separation(ti - ac)
		if front {
			f[i] = 1
			continue
		}
		f[i] = 1 - L*overlap(z, k)/(math.Pi*k*k)
	}
	return f
}

// overlap is the area of intersection of the unit disk and a disk of
// radius k at separation z.
func overlap(z, k float64) float64 {
	switch {
	case z >= 1+k:
		return 0
	case z <= 1-k:
		return math.Pi * k * k
	case z <= k-1:
		return math.Pi
	}
	k2, z2 := k*k, z*z
	a1 := math.Acos(math.Max(-1, math.Min(1, (z2+k2-1)/(2*z*k))))
	a2 := math.Acos(math.Max(-1, math.Min(1, (z2+1-k2)/(2*z))))
	s := (-z + k + 1) * (z + k - 1) * (z - k + 1) * (z + k + 1)
	return k2*a1 + a2 - .5*math.Sqrt(math.Max(s, 0))
}
