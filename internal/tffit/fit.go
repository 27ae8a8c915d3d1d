// Public domain.

package tffit

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/soniakeys/transitfit/internal/tflc"
	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Method selects the least squares minimizer.
type Method int

const (
	LeastSq Method = iota // Levenberg-Marquardt
	Nelder                // Nelder-Mead simplex
)

func (m Method) String() string {
	if m == Nelder {
		return "nelder"
	}
	return "leastsq"
}

// ParseMethod parses "leastsq" or "nelder".  Empty is leastsq.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "leastsq":
		return LeastSq, nil
	case "nelder":
		return Nelder, nil
	}
	return 0, fmt.Errorf("unknown fit method %q", s)
}

// FitOptions control a least squares fit.
type FitOptions struct {
	Params      Keywords
	LogRhoPrior *tfparam.Prior // transit only
	Method      Method
	MaxFev      int // 0 for 2000·(free parameters + 1)
}

// FitTransit fits a transit model times the instrumental systematics,
// plus glint if glint_scale is given.
func (d *Dataset) FitTransit(o FitOptions) (*LSResult, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	ps, err := TransitParams(d.lc, o.Params, o.LogRhoPrior)
	if err != nil {
		return nil, err
	}
	return d.fit(&tfmodel.Transit{}, ps, o)
}

// FitEclipse fits an eclipse model times the instrumental systematics,
// plus glint if glint_scale is given.
func (d *Dataset) FitEclipse(o FitOptions) (*LSResult, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	ps, err := EclipseParams(d.lc, o.Params)
	if err != nil {
		return nil, err
	}
	return d.fit(&tfmodel.Eclipse{}, ps, o)
}

func (d *Dataset) fit(astro tfmodel.Model, ps *tfparam.Params, o FitOptions) (*LSResult, error) {
	m, err := d.Model(astro, ps.Has("glint_scale"))
	if err != nil {
		return nil, err
	}
	r, err := LeastSquares(m, ps, d.lc, o.Method, o.MaxFev, d.Log)
	if err != nil {
		return nil, err
	}
	d.Log.Info().Str("method", r.Method).Bool("success", r.Success).
		Int("nfev", r.NFev).Float64("chisqr", r.ChiSqr).
		Float64("rms_ppm", r.RMS*1e6).Msg(r.Message)
	return r, nil
}

// Model returns astro times the systematics of the current light curve,
// plus the glint model if withGlint.
func (d *Dataset) Model(astro tfmodel.Model, withGlint bool) (tfmodel.Model, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	lc := d.lc
	f, err := tfmodel.NewFactor(lc.Time, lc.XOff, lc.YOff, lc.RollAngle,
		lc.Bg, lc.Contam)
	if err != nil {
		return nil, err
	}
	m := tfmodel.Mul(astro, f)
	if withGlint {
		if d.glint == nil {
			return nil, ErrMissingGlintModel
		}
		m = tfmodel.Add(m, d.glint.Glint)
	}
	return m, nil
}

// LeastSquares minimizes the sum of squared residuals of model m to lc,
// with one further residual (mean - value)/sigma for each parameter
// carrying a prior.  Bounds are enforced by transforming free parameters
// to unconstrained variables.  ps is not modified.
func LeastSquares(m tfmodel.Model, ps *tfparam.Params, lc *tflc.LightCurve,
	method Method, maxFev int, log zerolog.Logger) (*LSResult, error) {
	if lc == nil {
		return nil, ErrMissingLightCurve
	}
	if m == nil {
		return nil, ErrMissingModel
	}
	nd := lc.Len()
	if len(lc.Flux) != nd || len(lc.FluxErr) != nd {
		return nil, fmt.Errorf("%w: time %d, flux %d, flux_err %d",
			ErrMisaligned, nd, len(lc.Flux), len(lc.FluxErr))
	}
	names := ps.FreeNames()
	nv := len(names)
	if nv == 0 {
		return nil, ErrNoFreeParameters
	}
	var priors []string
	for _, p := range ps.All() {
		if p.Prior != nil {
			priors = append(priors, p.Name)
		}
	}
	nr := nd + len(priors)
	if maxFev <= 0 {
		maxFev = 2000 * (nv + 1)
	}
	bs := make(bounds, nv)
	for i, n := range names {
		p := ps.Get(n)
		bs[i] = bound{p.Min, p.Max}
	}
	base := ps.Copy()
	// residuals at external values v
	resid := func(r, v []float64) {
		q := base.Copy()
		if q.SetFreeVector(v) != nil {
			for i := range r {
				r[i] = math.NaN()
			}
			return
		}
		fit := m.Eval(q, lc.Time)
		for i, f := range fit {
			r[i] = (lc.Flux[i] - f) / lc.FluxErr[i]
		}
		for j, n := range priors {
			p := q.Get(n)
			r[nd+j] = p.Prior.Residual(p.Value)
		}
	}
	internal := func(r, x []float64) {
		resid(r, bs.ext(x, make([]float64, nv)))
	}
	v0 := ps.FreeVector()
	x0 := bs.int(v0)
	log.Debug().Strs("free", names).Int("residuals", nr).
		Str("method", method.String()).Msg("least squares")
	var mr *minResult
	if method == Nelder {
		mr = nelderMead(internal, nr, x0, maxFev)
	} else {
		mr = levmar(internal, nr, x0, maxFev)
	}
	v := bs.ext(mr.x, make([]float64, nv))
	out := ps.Copy()
	if err := out.SetFreeVector(v); err != nil {
		return nil, err
	}
	r := make([]float64, nr)
	resid(r, v)
	fit := m.Eval(out, lc.Time)

	res := &LSResult{
		Result: Result{
			Method:        method.String(),
			Params:        out,
			Model:         m,
			VarNames:      names,
			InitValues:    make(map[string]float64, nv),
			BestFit:       fit,
			Residual:      r[:nd],
			PriorResidual: r[nd:],
			NData:         nd,
			NVarys:        nv,
			NFree:         nr - nv,
			NFev:          mr.nfev,
			ChiSqr:        floats.Dot(r, r),
			RMS:           rms(lc.Flux, fit),
		},
		Success: mr.success,
		Message: mr.message,
	}
	for i, n := range names {
		res.InitValues[n] = v0[i]
	}
	// prior residuals count as data
	fn := float64(nr)
	res.RedChi = res.ChiSqr / float64(res.NFree)
	res.AIC = fn*math.Log(res.ChiSqr/fn) + 2*float64(nv)
	res.BIC = fn*math.Log(res.ChiSqr/fn) + math.Log(fn)*float64(nv)

	for _, p := range out.All() {
		p.Stderr = math.NaN()
		p.Correl = nil
	}
	if res.NFree > 0 {
		res.Covar = covariance(internal, nr, mr.x, res.RedChi)
	}
	if res.Covar != nil {
		// to external values, cov_ij·(dv_i/dx_i)·(dv_j/dx_j)
		for i, b := range bs {
			gi := b.grad(mr.x[i])
			for j := i; j < nv; j++ {
				gj := bs[j].grad(mr.x[j])
				res.Covar.SetSym(i, j, res.Covar.At(i, j)*gi*gj)
			}
		}
		setCorrel(out, names, res.Covar)
	} else {
		log.Warn().Msg("covariance matrix could not be estimated")
	}
	return res, nil
}

// covariance estimates the covariance (JᵀJ)⁻¹·redchi of the internal
// variables from a numerical Jacobian of the residuals at x.  It returns
// nil if JᵀJ is not positive definite.
func covariance(f residualFunc, m int, x []float64, redchi float64) *mat.SymDense {
	n := len(x)
	J := mat.NewDense(m, n, nil)
	fd.Jacobian(J, f, x, &fd.JacobianSettings{Formula: fd.Central, Concurrent: true})
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if x := J.At(i, j); math.IsNaN(x) || math.IsInf(x, 0) {
				return nil
			}
		}
	}
	var A mat.SymDense
	A.SymOuterK(1, J.T())
	var ch mat.Cholesky
	if !ch.Factorize(&A) {
		return nil
	}
	var cov mat.SymDense
	if err := ch.InverseTo(&cov); err != nil {
		return nil
	}
	cov.ScaleSym(redchi, &cov)
	return &cov
}
