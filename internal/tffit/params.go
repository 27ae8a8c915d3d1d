// Public domain.

package tffit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/soniakeys/transitfit/internal/tflc"
	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Keywords maps parameter names to user specifications.  Names not given
// take defaults computed from the light curve.
type Keywords map[string]tfparam.Keyword

var (
	transitNames = []string{"T_0", "P", "D", "W", "b", "f_c", "f_s", "h_1", "h_2", "c"}
	eclipseNames = []string{"T_0", "P", "D", "W", "b", "L", "f_c", "f_s", "c", "a_c"}
)

// optional parameters, added only when given
var optionalNames = append(append([]string{}, tfmodel.DecorrNames...), "glint_scale")

// defaults for the standard parameters, as keywords computed from the
// light curve.  W needs the period.
func defaultKeyword(name string, lc *tflc.LightCurve, P float64) tfparam.Keyword {
	t, f := lc.Time, lc.Flux
	ptp := floats.Max(t) - floats.Min(t)
	switch name {
	case "T_0":
		return tfparam.RangeInit{Lo: floats.Min(t), Init: tfmodel.Median(t), Hi: floats.Max(t)}
	case "P":
		return tfparam.Fixed(1)
	case "D":
		return tfparam.RangeInit{Lo: 0, Init: clamp(1-floats.Min(f), 0, .5), Hi: .5}
	case "W":
		return tfparam.RangeInit{
			Lo:   ptp / float64(len(t)) / P,
			Init: ptp / 2 / P,
			Hi:   ptp / P,
		}
	case "b":
		return tfparam.RangeInit{Lo: 0, Init: .5, Hi: 1}
	case "f_c", "f_s", "a_c":
		return tfparam.Fixed(0)
	case "h_1":
		return tfparam.Fixed(tfmodel.DefaultH1)
	case "h_2":
		return tfparam.Fixed(tfmodel.DefaultH2)
	case "c":
		lo, hi := floats.Min(f)/2, 2*floats.Max(f)
		return tfparam.RangeInit{Lo: lo, Init: clamp(1, lo, hi), Hi: hi}
	case "L":
		return tfparam.RangeInit{Lo: 0, Init: .001, Hi: 1}
	}
	return nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// buildParams assembles standard parameters in order, then any optional
// ones given.  Names in kw that are neither are rejected.
func buildParams(lc *tflc.LightCurve, std []string, kw Keywords) (*tfparam.Params, error) {
	known := make(map[string]bool)
	for _, n := range std {
		known[n] = true
	}
	for _, n := range optionalNames {
		known[n] = true
	}
	for n := range kw {
		if !known[n] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKeyword, n)
		}
	}
	ps := tfparam.New()
	P := 1.
	for _, n := range std {
		k, ok := kw[n]
		if !ok {
			k = defaultKeyword(n, lc, P)
		}
		if err := ps.SetFromKeyword(n, k); err != nil {
			return nil, err
		}
		if n == "P" {
			P = ps.Value("P")
		}
	}
	for _, n := range optionalNames {
		if k, ok := kw[n]; ok {
			if err := ps.SetFromKeyword(n, k); err != nil {
				return nil, err
			}
		}
	}
	return ps, nil
}

// TransitParams returns the parameter set for a transit fit, with derived
// parameters k, aR, sini, logrho, e, q_1 and q_2.  logrhoPrior may be nil.
func TransitParams(lc *tflc.LightCurve, kw Keywords, logrhoPrior *tfparam.Prior) (*tfparam.Params, error) {
	ps, err := buildParams(lc, transitNames, kw)
	if err != nil {
		return nil, err
	}
	return ps, tfmodel.AddTransitDerived(ps, logrhoPrior)
}

// EclipseParams returns the parameter set for an eclipse fit, with derived
// parameters k, aR, sini and e.
func EclipseParams(lc *tflc.LightCurve, kw Keywords) (*tfparam.Params, error) {
	ps, err := buildParams(lc, eclipseNames, kw)
	if err != nil {
		return nil, err
	}
	return ps, tfmodel.AddEclipseDerived(ps)
}
