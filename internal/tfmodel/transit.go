// Public domain.

package tfmodel

import (
	"math"

	"github.com/soniakeys/transitfit/internal/tfparam"
)

// default power-2 limb darkening, solar-type star in the CHEOPS band
const (
	DefaultH1 = .7224
	DefaultH2 = .6713
)

// Transit is a planetary transit with power-2 limb darkening.
//
// Parameters read: T_0, P, D, W, b, f_c, f_s, h_1, h_2.  Absent f_c, f_s
// default to 0, absent h_1, h_2 to DefaultH1, DefaultH2.
type Transit struct{}

func (*Transit) node() {}

func (*Transit) Eval(p *tfparam.Params, t []float64) []float64 {
	var (
		t0 = p.Value("T_0")
		P  = p.Value("P")
		D  = p.Value("D")
		W  = p.Value("W")
		b  = p.Value("b")
		fc = p.ValueOr("f_c", 0)
		fs = p.ValueOr("f_s", 0)
		h1 = p.ValueOr("h_1", DefaultH1)
		h2 = p.ValueOr("h_2", DefaultH2)
	)
	k := K(D)
	o := newOrbit(t0, P, AR(D, W, b), b, fc, fs)
	c, a := power2(h1, h2)
	f := make([]float64, len(t))
	for i, ti := range t {
		z, front := o.separation(ti)
		if !front {
			f[i] = 1
			continue
		}
		f[i] = qpower2(z, k, c, a)
	}
	return f
}

// power2 converts h_1, h_2 to the coefficients c, α of the power-2 law
// I(μ) = 1 - c(1 - μ^α).
func power2(h1, h2 float64) (c, a float64) {
	c = 1 - h1 + h2
	a = math.Log2(c / h2)
	return
}

// qpower2 is the analytic approximation of Maxted & Gill (2019, A&A 622,
// A33) to the flux of a star with power-2 limb darkening occulted by a
// planet of radius k at projected separation z.
func qpower2(z, k, c, a float64) float64 {
	i0 := (a + 2) / (math.Pi * (a - c*a + 2))
	g := .5 * a
	zt := math.Abs(z)
	k2 := k * k
	switch {
	case zt <= 1-k:
		s := 1 - zt*zt
		c0 := 1 - c + c*math.Pow(s, g)
		c2 := .5 * a * c * math.Pow(s, g-2) * ((a-1)*zt*zt - 1)
		return 1 - i0*math.Pi*k2*(c0+.25*k2*c2-.125*a*c*k2*math.Pow(s, g-1))
	case math.Abs(zt-1) < k:
		d := (zt*zt - k2 + 1) / (2 * zt)
		ra := .5 * (zt - k + d)
		rb := .5 * (1 + d)
		sa := 1 - ra*ra
		sb := 1 - rb*rb
		q := math.Min(math.Max(-1, (zt-d)/k), 1)
		w2 := k2 - (d-zt)*(d-zt)
		w := math.Sqrt(w2)
		b0 := 1 - c + c*math.Pow(sa, g)
		b1 := -a * c * ra * math.Pow(sa, g-1)
		b2 := .5 * a * c * math.Pow(sa, g-2) * ((a-1)*ra*ra - 1)
		a0 := b0 + b1*(zt-ra) + b2*(zt-ra)*(zt-ra)
		a1 := b1 + 2*b2*(zt-ra)
		aq := math.Acos(q)
		j1 := (a0*(d-zt)-(2./3)*a1*w2+
			.25*b2*(d-zt)*(2*(d-zt)*(d-zt)-k2))*w +
			(a0*k2+.25*b2*k2*k2)*aq
		j2 := a * c * math.Pow(sa, g-1) * k2 * k2 *
			(.125*aq + (1./12)*q*(q*q-2.5)*math.Sqrt(1-q*q))
		d0 := 1 - c + c*math.Pow(sb, g)
		d1 := -a * c * rb * math.Pow(sb, g-1)
		k1 := (d0-rb*d1)*math.Acos(d) +
			((rb*d+(2./3)*(1-d*d))*d1-d*d0)*math.Sqrt(1-d*d)
		k2t := (1. / 3) * c * a * math.Pow(sb, g+.5) * (1 - d)
		return 1 - i0*(j1-j2+k1-k2t)
	}
	return 1
}

// orbit computes sky-projected star-planet separation in units of the
// stellar radius.  The reference time t0 is the time of mid-transit.
type orbit struct {
	t0, P, aR  float64
	sini, cosi float64
	e, om      float64
	m0         float64 // mean anomaly at t0
	circular   bool
}

func newOrbit(t0, P, aR, b, fc, fs float64) *orbit {
	o := &orbit{t0: t0, P: P, aR: aR}
	o.cosi = b / aR
	o.sini = math.Sqrt(1 - o.cosi*o.cosi)
	o.e = fc*fc + fs*fs
	if o.e == 0 {
		o.circular = true
		return o
	}
	o.om = math.Atan2(fs, fc)
	// true anomaly at mid-transit puts the planet in front of the star
	nu := math.Pi/2 - o.om
	E := 2 * math.Atan(math.Sqrt((1-o.e)/(1+o.e))*math.Tan(nu/2))
	o.m0 = E - o.e*math.Sin(E)
	return o
}

// separation returns projected separation z and whether the planet is
// between the star and the observer.
func (o *orbit) separation(t float64) (z float64, front bool) {
	phase := 2 * math.Pi * (t - o.t0) / o.P
	if o.circular {
		s, c := math.Sincos(phase)
		return o.aR * math.Sqrt(s*s+o.cosi*o.cosi*c*c), c > 0
	}
	E := kepler(o.m0+phase, o.e)
	nu := 2 * math.Atan2(math.Sqrt(1+o.e)*math.Sin(E/2),
		math.Sqrt(1-o.e)*math.Cos(E/2))
	r := o.aR * (1 - o.e*math.Cos(E))
	s := math.Sin(nu + o.om)
	return r * math.Sqrt(1-s*s*o.sini*o.sini), s > 0
}

// kepler solves E - e sin E = M by Newton iteration.
func kepler(M, e float64) float64 {
	M = math.Remainder(M, 2*math.Pi)
	E := M
	if e > .8 {
		E = math.Pi
		if M < 0 {
			E = -math.Pi
		}
	}
	for i := 0; i < 50; i++ {
		dE := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < 1e-12 {
			break
		}
	}
	return E
}
