// Public domain.

package tffit

import (
	"fmt"
	"math"

	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// shouldDecorrTerms are the terms tried by ShouldDecorr, in the order
// reported.
var shouldDecorrTerms = []string{"dfdx", "dfdy", "dfdsinphi", "dfdcosphi"}

// Decorr fits the systematics model alone, with c and the named
// decorrelation coefficients free, and divides flux and flux_err by the
// best fit.  The light curve is replaced and any glint model discarded.
func (d *Dataset) Decorr(terms []string) (*LSResult, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	r, err := d.fitFactor(terms)
	if err != nil {
		return nil, err
	}
	before := rms(d.lc.Flux, make([]float64, d.lc.Len()))
	lc := d.lc.Copy()
	for i, f := range r.BestFit {
		lc.Flux[i] /= f
		lc.FluxErr[i] /= f
	}
	after := rms(lc.Flux, make([]float64, lc.Len()))
	d.Log.Info().Strs("terms", terms).Bool("success", r.Success).
		Float64("rms_before_ppm", before*1e6).
		Float64("rms_after_ppm", after*1e6).Msg("decorrelated")
	if err := d.SetLightCurve(lc); err != nil {
		return nil, err
	}
	return r, nil
}

// ShouldDecorr fits the systematics model with every combination of the
// centroid and roll angle terms free and returns the terms that were significant in
// any of the fits, those with |100·stderr/value| below cut percent.  A term
// with no standard error is never significant.  The light curve is not
// changed.
func (d *Dataset) ShouldDecorr(cut float64) ([]string, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	flagged := make([]bool, len(shouldDecorrTerms))
	for combo := 1; combo < 1<<len(shouldDecorrTerms); combo++ {
		var terms []string
		for i, n := range shouldDecorrTerms {
			if combo&(1<<i) != 0 {
				terms = append(terms, n)
			}
		}
		r, err := d.fitFactor(terms)
		if err != nil {
			return nil, err
		}
		for i, n := range shouldDecorrTerms {
			if combo&(1<<i) == 0 {
				continue
			}
			p := r.Params.Get(n)
			if pc := math.Abs(100 * p.Stderr / p.Value); pc < cut {
				flagged[i] = true
			}
		}
	}
	var out []string
	for i, f := range flagged {
		if f {
			out = append(out, shouldDecorrTerms[i])
		}
	}
	d.Log.Info().Strs("terms", out).Float64("cut", cut).
		Msg("decorrelation check")
	return out, nil
}

// fitFactor fits c·(1 + Σ coef·covariate) to the flux, coefficients of
// terms starting at zero.
func (d *Dataset) fitFactor(terms []string) (*LSResult, error) {
	known := make(map[string]bool)
	for _, n := range tfmodel.DecorrNames {
		known[n] = true
	}
	ps := tfparam.New()
	if err := ps.SetFromKeyword("c", defaultKeyword("c", d.lc, 1)); err != nil {
		return nil, err
	}
	for _, n := range terms {
		if !known[n] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKeyword, n)
		}
		if err := ps.Add(n, 0, true, math.Inf(-1), math.Inf(1)); err != nil {
			return nil, err
		}
	}
	lc := d.lc
	f, err := tfmodel.NewFactor(lc.Time, lc.XOff, lc.YOff, lc.RollAngle,
		lc.Bg, lc.Contam)
	if err != nil {
		return nil, err
	}
	return LeastSquares(f, ps, lc, LeastSq, 0, d.Log)
}
