// Public domain.

package tffit

import (
	"context"
	"fmt"
	"math"
	"sort"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/soniakeys/transitfit/internal/tfmcmc"
	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// SamplerOptions control sampling of the posterior.
type SamplerOptions struct {
	// Params override parameters of the least squares result by name.
	Params Keywords

	Steps    int // production steps, of which every Thin-th is kept
	NWalkers int
	Burn     int
	Thin     int

	// InitScale scales the parameter uncertainties when scattering the
	// initial walker positions about the least squares fit.
	InitScale float64

	// LogSigma specifies the jitter if the parameters lack log_sigma.
	// nil is the range (-16, -10, -1).
	LogSigma tfparam.Keyword

	// SHOTerm adds correlated noise, a damped harmonic oscillator Gaussian
	// process.  Nil keywords take defaults.
	SHOTerm                bool
	LogS0, LogOmega0, LogQ tfparam.Keyword

	Seed    uint64
	Workers int // concurrent posterior evaluations, GOMAXPROCS if zero

	// MaxInitAttempts bounds the draws for each walker's start.
	MaxInitAttempts int
}

// DefaultSamplerOptions returns the usual run length and walker count.
func DefaultSamplerOptions() SamplerOptions {
	return SamplerOptions{
		Steps:           128,
		NWalkers:        64,
		Burn:            256,
		Thin:            4,
		InitScale:       1e-3,
		MaxInitAttempts: 10000,
	}
}

// Percentiles of the marginal posteriors reported as median ± 1σ.
const (
	pLo  = .1587
	pMid = .5
	pHi  = .8413
)

// Sample runs the ensemble sampler from the least squares result base.
// The model of base is reused, so base must be a fit of the current light
// curve.
func (d *Dataset) Sample(ctx context.Context, base *LSResult, o SamplerOptions) (*SampleResult, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	if base == nil || base.Model == nil || base.Params == nil {
		return nil, ErrMissingModel
	}
	lc := d.lc
	if len(base.BestFit) != lc.Len() {
		return nil, fmt.Errorf("%w: fit %d, light curve %d",
			ErrMisaligned, len(base.BestFit), lc.Len())
	}
	if o.Thin < 1 {
		o.Thin = 1
	}
	if o.MaxInitAttempts < 1 {
		o.MaxInitAttempts = 10000
	}
	ps, err := samplerParams(base.Params, o)
	if err != nil {
		return nil, err
	}
	post, err := NewPosterior(base.Model, ps, lc)
	if err != nil {
		return nil, err
	}
	names := post.Names()
	nv := len(names)
	v0 := ps.FreeVector()
	vs := initScatter(ps, names)

	src := &xrand.PCGSource{}
	src.Seed(o.Seed)
	rnd := xrand.New(src)
	s, err := tfmcmc.New(o.NWalkers, nv, post.LogProb, rnd)
	if err != nil {
		return nil, err
	}
	pos, err := initWalkers(post.LogProb, v0, vs, o, distuv.Normal{Mu: 0, Sigma: 1, Src: src})
	if err != nil {
		return nil, err
	}
	s.Workers = o.Workers
	s.Log = d.Log
	if err := s.SetPositions(pos); err != nil {
		return nil, err
	}
	d.Log.Info().Int("walkers", o.NWalkers).Int("free", nv).
		Bool("gp", post.GP()).Int("burn", o.Burn).Msg("burn-in")
	if _, err := s.Run(ctx, o.Burn, 1, false); err != nil {
		return nil, err
	}
	s.ResetStats()
	d.Log.Info().Int("steps", o.Steps).Int("thin", o.Thin).Msg("production")
	c, err := s.Run(ctx, o.Steps, o.Thin, true)
	if err != nil {
		return nil, err
	}
	if len(c.Samples) == 0 {
		return nil, fmt.Errorf("no samples retained: %d steps, thin %d",
			o.Steps, o.Thin)
	}
	r, err := summarize(post, ps, c, lc.Flux, lc.FluxErr)
	if err != nil {
		return nil, err
	}
	r.InitValues = make(map[string]float64, nv)
	for i, n := range names {
		r.InitValues[n] = v0[i]
	}
	r.Model = base.Model
	r.NFev = o.NWalkers * (o.Burn + o.Steps)
	r.AcceptanceFraction = s.AcceptanceFraction()
	r.NWalkers = o.NWalkers
	r.Steps, r.Burn, r.Thin = o.Steps, o.Burn, o.Thin
	d.Log.Info().Float64("mean_acceptance", stat.Mean(r.AcceptanceFraction, nil)).
		Float64("rms_ppm", r.RMS*1e6).Msg("sampled")
	return r, nil
}

// samplerParams copies p, applies overrides and adds the noise model
// parameters.  Noise parameters already present are kept as they are.
func samplerParams(p *tfparam.Params, o SamplerOptions) (*tfparam.Params, error) {
	ps := p.Copy()
	for _, n := range sortedKeys(o.Params) {
		q := ps.Get(n)
		switch {
		case q == nil:
			return nil, fmt.Errorf("%w: %s", ErrUnknownKeyword, n)
		case q.Derived():
			return nil, fmt.Errorf("%w: %s", tfparam.ErrDerivedParameter, n)
		}
		if err := ps.SetFromKeyword(n, o.Params[n]); err != nil {
			return nil, err
		}
	}
	if o.SHOTerm {
		// log_omega0 8 is a correlation length of about 30 s, -2.3 about
		// 10 days
		sho := []struct {
			name   string
			kw, df tfparam.Keyword
		}{
			{"log_S0", o.LogS0, tfparam.RangeInit{Lo: -30, Init: -12, Hi: 0}},
			{"log_omega0", o.LogOmega0, tfparam.RangeInit{Lo: -2.3, Init: 3, Hi: 8}},
			{"log_Q", o.LogQ, tfparam.Fixed(math.Log(1 / math.Sqrt2))},
		}
		for _, t := range sho {
			if ps.Has(t.name) {
				continue
			}
			k := t.kw
			if k == nil {
				k = t.df
			}
			if err := ps.SetFromKeyword(t.name, k); err != nil {
				return nil, err
			}
		}
	}
	if !ps.Has("log_sigma") {
		k := o.LogSigma
		if k == nil {
			k = tfparam.RangeInit{Lo: -16, Init: -10, Hi: -1}
		}
		if err := ps.SetFromKeyword("log_sigma", k); err != nil {
			return nil, err
		}
		ps.Get("log_sigma").Stderr = 1
	}
	return ps, tfmodel.AddJitterDerived(ps)
}

func sortedKeys(kw Keywords) []string {
	k := make([]string, 0, len(kw))
	for n := range kw {
		k = append(k, n)
	}
	sort.Strings(k)
	return k
}

// initScatter is the scale of the initial walker scatter for each free
// parameter: the standard error if known, else the prior width, else a
// tenth of the bounded interval, else 1.
func initScatter(ps *tfparam.Params, names []string) []float64 {
	vs := make([]float64, len(names))
	for i, n := range names {
		p := ps.Get(n)
		switch {
		case p.Stderr > 0 && !math.IsInf(p.Stderr, 0):
			vs[i] = p.Stderr
		case p.Prior != nil:
			vs[i] = p.Prior.Sigma
		case !math.IsInf(p.Max-p.Min, 0):
			vs[i] = .1 * (p.Max - p.Min)
		default:
			vs[i] = 1
		}
	}
	return vs
}

// initWalkers scatters walkers about v0 until each has a finite log
// probability.
func initWalkers(lp func([]float64) float64, v0, vs []float64, o SamplerOptions, norm distuv.Normal) ([][]float64, error) {
	pos := make([][]float64, o.NWalkers)
	for w := range pos {
		x := make([]float64, len(v0))
		for try := 0; ; try++ {
			if try == o.MaxInitAttempts {
				return nil, fmt.Errorf("%w: walker %d, %d attempts",
					ErrWalkerInitialization, w, try)
			}
			for i := range x {
				x[i] = v0[i] + o.InitScale*vs[i]*norm.Rand()
			}
			if l := lp(x); !math.IsInf(l, 0) && !math.IsNaN(l) {
				break
			}
		}
		pos[w] = x
	}
	return pos, nil
}

// summarize computes point estimates and fit statistics from a chain.
func summarize(post *Posterior, ps *tfparam.Params, c *tfmcmc.Chain, flux, ferr []float64) (*SampleResult, error) {
	names := post.Names()
	nv := len(names)
	rows := len(c.Samples)
	ib := floats.MaxIdx(c.LogProb)
	best := c.Samples[ib]
	fit, pb := post.Fit(best)
	if fit == nil {
		return nil, fmt.Errorf("best sample out of bounds")
	}

	// marginal percentiles
	flat := make([]float64, 0, rows*nv)
	for _, x := range c.Samples {
		flat = append(flat, x...)
	}
	X := mat.NewDense(rows, nv, flat)
	med := make([]float64, nv)
	half := make([]float64, nv)
	col := make([]float64, rows)
	for j := range names {
		mat.Col(col, j, X)
		sort.Float64s(col)
		lo := stat.Quantile(pLo, stat.LinInterp, col, nil)
		med[j] = stat.Quantile(pMid, stat.LinInterp, col, nil)
		hi := stat.Quantile(pHi, stat.LinInterp, col, nil)
		half[j] = (hi - lo) / 2
	}
	pm := ps.Copy()
	if err := pm.SetFreeVector(med); err != nil {
		return nil, err
	}
	var cov, cor mat.SymDense
	stat.CovarianceMatrix(&cov, X, nil)
	stat.CorrelationMatrix(&cor, X, nil)
	for _, q := range []*tfparam.Params{pm, pb} {
		for _, p := range q.All() {
			p.Stderr = math.NaN()
			p.Correl = nil
		}
		for j, n := range names {
			p := q.Get(n)
			p.Stderr = half[j]
			p.Correl = make(map[string]float64, nv-1)
			for k, m := range names {
				if k != j {
					p.Correl[m] = cor.At(j, k)
				}
			}
		}
	}

	nd := len(flux)
	r := &SampleResult{
		Result: Result{
			Method:   "emcee",
			Params:   pm,
			VarNames: names,
			BestFit:  fit,
			Residual: make([]float64, nd),
			NData:    nd,
			NVarys:   nv,
			NFree:    nd - nv,
			RMS:      rms(flux, fit),
		},
		ParamsBest: pb,
		Chain:      c.Samples,
		LogProb:    c.LogProb,
		Covar:      &cov,
		Correl:     &cor,
	}
	for i, f := range fit {
		r.Residual[i] = (flux[i] - f) / ferr[i]
	}
	r.ChiSqr = floats.Dot(r.Residual, r.Residual)
	r.RedChi = r.ChiSqr / float64(r.NFree)
	k := float64(nv)
	maxLogL := c.LogProb[ib]
	r.AIC = 2*k - 2*maxLogL
	r.BIC = math.Log(float64(nd))*k - 2*maxLogL
	return r, nil
}
