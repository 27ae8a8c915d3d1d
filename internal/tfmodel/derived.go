// Public domain.

package tfmodel

import (
	"math"

	"github.com/soniakeys/transitfit/internal/tfparam"
)

var (
	nan  = math.NaN()
	inf  = math.Inf(1)
	ninf = math.Inf(-1)
)

// rhoConst converts ((1+k)²-b²)^1.5/W³/P² (P in days) to mean stellar
// density in solar units.
const rhoConst = 4.3275e-4

// K is the radius ratio for depth D.
func K(D float64) float64 { return math.Sqrt(D) }

// AR is the scaled semi-major axis a/R★.
func AR(D, W, b float64) float64 {
	k := K(D)
	return math.Sqrt((1+k)*(1+k)-b*b) / (W * math.Pi)
}

// SinI is the sine of the orbital inclination.
func SinI(b, aR float64) float64 {
	x := b / aR
	return math.Sqrt(1 - x*x)
}

// LogRho is log10 of the stellar density in solar units.
func LogRho(D, W, b, P float64) float64 {
	k := K(D)
	return math.Log10(rhoConst * math.Pow((1+k)*(1+k)-b*b, 1.5) /
		(W * W * W) / (P * P))
}

// Ecc is the eccentricity for f_c = √e cos ω, f_s = √e sin ω.
func Ecc(fc, fs float64) float64 { return fc*fc + fs*fs }

// Q1 and Q2 are the Kipping-style limb darkening coefficients for the
// power-2 law parameters h_1, h_2.
func Q1(h2 float64) float64     { return (1 - h2) * (1 - h2) }
func Q2(h1, h2 float64) float64 { return (h1 - h2) / (1 - h2) }

type derived struct {
	name     string
	inputs   []string
	f        func(in []float64) float64
	min, max float64
}

var (
	dK = derived{"k", []string{"D"},
		func(in []float64) float64 { return K(in[0]) }, 0, 1}
	dAR = derived{"aR", []string{"k", "W", "b"},
		func(in []float64) float64 {
			k, W, b := in[0], in[1], in[2]
			return math.Sqrt((1+k)*(1+k)-b*b) / W / math.Pi
		}, 1, inf}
	dSinI = derived{"sini", []string{"b", "aR"},
		func(in []float64) float64 { return SinI(in[0], in[1]) }, ninf, inf}
	dLogRho = derived{"logrho", []string{"k", "b", "W", "P"},
		func(in []float64) float64 {
			k, b, W, P := in[0], in[1], in[2], in[3]
			return math.Log10(rhoConst * math.Pow((1+k)*(1+k)-b*b, 1.5) /
				(W * W * W) / (P * P))
		}, -9, 6}
	dE = derived{"e", []string{"f_c", "f_s"},
		func(in []float64) float64 { return Ecc(in[0], in[1]) }, 0, 1}
	dQ1 = derived{"q_1", []string{"h_2"},
		func(in []float64) float64 { return Q1(in[0]) }, 0, 1}
	dQ2 = derived{"q_2", []string{"h_1", "h_2"},
		func(in []float64) float64 { return Q2(in[0], in[1]) }, 0, 1}
	dSigmaW = derived{"sigma_w", []string{"log_sigma"},
		func(in []float64) float64 { return math.Exp(in[0]) * 1e6 }, ninf, inf}
)

func addDerived(ps *tfparam.Params, ds ...derived) error {
	for _, d := range ds {
		err := ps.SetDerived(d.name,
			tfparam.Derivation{Inputs: d.inputs, F: d.f}, d.min, d.max)
		if err != nil {
			return err
		}
	}
	return nil
}

// AddTransitDerived registers k, aR, sini, logrho, e, q_1 and q_2.
// logrhoPrior, if not nil, is attached to logrho.
func AddTransitDerived(ps *tfparam.Params, logrhoPrior *tfparam.Prior) error {
	if err := addDerived(ps, dK, dAR, dSinI, dLogRho, dE, dQ1, dQ2); err != nil {
		return err
	}
	if logrhoPrior != nil {
		return ps.SetPrior("logrho", logrhoPrior)
	}
	return nil
}

// AddEclipseDerived registers k, aR, sini and e.
func AddEclipseDerived(ps *tfparam.Params) error {
	return addDerived(ps, dK, dAR, dSinI, dE)
}

// AddJitterDerived registers sigma_w, the white noise jitter in ppm.
func AddJitterDerived(ps *tfparam.Params) error {
	return addDerived(ps, dSigmaW)
}
