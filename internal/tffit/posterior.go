// Public domain.

package tffit

import (
	"fmt"
	"math"

	"github.com/soniakeys/transitfit/internal/tfgp"
	"github.com/soniakeys/transitfit/internal/tflc"
	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

var ninf = math.Inf(-1)

// LogPrior is the prior on depth, width and impact parameter equivalent
// to uniform priors on cos i, log k and log aR.  The term log 2kW is the
// Jacobian of (D, W, b) with respect to (cos i, k, aR).
func LogPrior(D, W, b float64) float64 {
	if !(D >= 2e-6 && D <= .2) || !(b >= 0 && b <= 1) || !(W >= 1e-4) {
		return ninf
	}
	k := tfmodel.K(D)
	aR := tfmodel.AR(D, W, b)
	if !(aR >= 2) {
		return ninf
	}
	return -math.Log(2*k*W) - math.Log(k) - math.Log(aR)
}

// Posterior is the log posterior probability of a free parameter vector.
//
// The noise model is white noise with jitter exp(log_sigma) unless the
// parameters include log_S0, log_Q and log_omega0, in which case residuals
// are modelled as a Gaussian process with a damped harmonic oscillator
// kernel plus the jitter.  An absent log_sigma is no jitter.
//
// The parameter set given to NewPosterior is copied, and each evaluation
// works on a further copy, so a Posterior is safe for concurrent use.
type Posterior struct {
	model  tfmodel.Model
	params *tfparam.Params
	names  []string
	lo, hi []float64
	t      []float64
	flux   []float64
	ferr   []float64
	gp     bool
}

// NewPosterior returns the posterior for model m with parameters ps, given
// light curve lc.
func NewPosterior(m tfmodel.Model, ps *tfparam.Params, lc *tflc.LightCurve) (*Posterior, error) {
	if lc == nil {
		return nil, ErrMissingLightCurve
	}
	if m == nil {
		return nil, ErrMissingModel
	}
	if len(lc.Flux) != len(lc.Time) || len(lc.FluxErr) != len(lc.Time) {
		return nil, fmt.Errorf("%w: time %d, flux %d, flux_err %d",
			ErrMisaligned, len(lc.Time), len(lc.Flux), len(lc.FluxErr))
	}
	p := &Posterior{
		model:  m,
		params: ps.Copy(),
		names:  ps.FreeNames(),
		t:      lc.Time,
		flux:   lc.Flux,
		ferr:   lc.FluxErr,
		gp:     ps.Has("log_S0") && ps.Has("log_Q") && ps.Has("log_omega0"),
	}
	if len(p.names) == 0 {
		return nil, ErrNoFreeParameters
	}
	for _, n := range p.names {
		q := ps.Get(n)
		p.lo = append(p.lo, q.Min)
		p.hi = append(p.hi, q.Max)
	}
	return p, nil
}

// Names are the free parameter names, the order of vectors passed to
// LogProb.
func (p *Posterior) Names() []string {
	return append([]string{}, p.names...)
}

// GP reports whether the Gaussian process noise model is used.
func (p *Posterior) GP() bool {
	return p.gp
}

// assign returns a copy of the parameters set to x, or nil if any element
// of x is out of bounds.
func (p *Posterior) assign(x []float64) *tfparam.Params {
	if len(x) != len(p.names) {
		return nil
	}
	for i, v := range x {
		if !(v >= p.lo[i] && v <= p.hi[i]) {
			return nil
		}
	}
	ps := p.params.Copy()
	if ps.SetFreeVector(x) != nil {
		return nil
	}
	return ps
}

// Fit returns the model flux for x, and the parameters used, without
// evaluating priors or likelihood.  It returns nil if x is out of bounds.
func (p *Posterior) Fit(x []float64) ([]float64, *tfparam.Params) {
	ps := p.assign(x)
	if ps == nil {
		return nil, nil
	}
	return p.model.Eval(ps, p.t), ps
}

// LogProb returns the log posterior probability of x, -Inf for any
// rejected vector.
func (p *Posterior) LogProb(x []float64) float64 {
	fit, ps := p.Fit(x)
	if fit == nil {
		return ninf
	}
	for _, f := range fit {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ninf
		}
	}
	lp := LogPrior(ps.Value("D"), ps.Value("W"), ps.Value("b"))
	if math.IsInf(lp, -1) {
		return ninf
	}
	for _, q := range ps.All() {
		if !q.InBounds(q.Value) {
			return ninf
		}
		if q.Prior != nil {
			lp += q.Prior.LogProb(q.Value)
		}
	}
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		return ninf
	}
	ll := p.logLike(ps, fit)
	if math.IsNaN(ll) {
		return ninf
	}
	return ll + lp
}

func (p *Posterior) logLike(ps *tfparam.Params, fit []float64) float64 {
	logSigma := ps.ValueOr("log_sigma", ninf)
	if p.gp {
		k := tfgp.SHO(ps.Value("log_S0"), ps.Value("log_Q"),
			ps.Value("log_omega0")).WithJitter(logSigma)
		r := make([]float64, len(fit))
		for i, f := range fit {
			r[i] = p.flux[i] - f
		}
		ll, err := k.LogLikelihood(p.t, p.ferr, r)
		if err != nil {
			return ninf
		}
		return ll
	}
	j2 := math.Exp(2 * logSigma)
	var s float64
	for i, f := range fit {
		s2 := p.ferr[i]*p.ferr[i] + j2
		r := p.flux[i] - f
		s += r*r/s2 + math.Log(2*math.Pi*s2)
	}
	return -.5 * s
}
