// Public domain.

package tffit_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/soniakeys/transitfit/internal/tffit"
	"github.com/soniakeys/transitfit/internal/tfglint"
	"github.com/soniakeys/transitfit/internal/tflc"
	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

const noise = 50e-6

// synthetic returns a 200 point light curve of a transit with D .01,
// W .1, b .3, T_0 0, P 1, and Gaussian noise of 50 ppm.
func synthetic(t *testing.T) *tflc.LightCurve {
	const n = 200
	ps := tfparam.New()
	for _, p := range []struct {
		name string
		v    float64
	}{{"T_0", 0}, {"P", 1}, {"D", .01}, {"W", .1}, {"b", .3}} {
		require.NoError(t, ps.Add(p.name, p.v, false, math.Inf(-1), math.Inf(1)))
	}
	lc := &tflc.LightCurve{}
	for i := 0; i < n; i++ {
		ti := -.5 + float64(i)/(n-1)
		lc.Time = append(lc.Time, ti)
		lc.RollAngle = append(lc.RollAngle, math.Mod(3600-ti/.0686*360, 360))
	}
	lc.Flux = (&tfmodel.Transit{}).Eval(ps, lc.Time)
	nd := distuv.Normal{Mu: 0, Sigma: noise, Src: xrand.NewSource(1)}
	for i := range lc.Flux {
		lc.Flux[i] += nd.Rand()
		lc.FluxErr = append(lc.FluxErr, noise)
	}
	require.NoError(t, lc.Validate())
	return lc
}

func transitKeywords() tffit.Keywords {
	return tffit.Keywords{
		"T_0": tfparam.RangeInit{Lo: -.05, Init: .002, Hi: .05},
		"D":   tfparam.RangeInit{Lo: 0, Init: .009, Hi: .05},
		"W":   tfparam.RangeInit{Lo: .05, Init: .09, Hi: .2},
		"b":   tfparam.RangeInit{Lo: 0, Init: .4, Hi: .9},
	}
}

func fitSynthetic(t *testing.T) (*tffit.Dataset, *tffit.LSResult) {
	d, err := tffit.NewDataset(synthetic(t))
	require.NoError(t, err)
	r, err := d.FitTransit(tffit.FitOptions{Params: transitKeywords()})
	require.NoError(t, err)
	return d, r
}

func TestLogPrior(t *testing.T) {
	ninf := math.Inf(-1)
	assert.Equal(t, ninf, tffit.LogPrior(1e-6, .1, .3))
	assert.Equal(t, ninf, tffit.LogPrior(.3, .1, .3))
	assert.Equal(t, ninf, tffit.LogPrior(.01, 1e-5, .3))
	assert.Equal(t, ninf, tffit.LogPrior(.01, .1, -.1))
	assert.Equal(t, ninf, tffit.LogPrior(.01, .1, 1.1))
	assert.Equal(t, ninf, tffit.LogPrior(math.NaN(), .1, .3))
	// aR < 2
	assert.Equal(t, ninf, tffit.LogPrior(.01, .5, .3))

	D, W, b := .01, .1, .3
	k := math.Sqrt(D)
	aR := tfmodel.AR(D, W, b)
	want := -math.Log(2*k*W) - math.Log(k) - math.Log(aR)
	assert.InDelta(t, want, tffit.LogPrior(D, W, b), 1e-12)
}

func TestTransitParams(t *testing.T) {
	lc := synthetic(t)
	ps, err := tffit.TransitParams(lc, transitKeywords(), &tfparam.Prior{Mean: 0, Sigma: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"T_0", "D", "W", "b", "c"}, ps.FreeNames())
	for _, n := range []string{"k", "aR", "sini", "logrho", "e", "q_1", "q_2"} {
		p := ps.Get(n)
		require.NotNil(t, p, n)
		assert.True(t, p.Derived(), n)
		assert.False(t, p.Free(), n)
	}
	assert.InDelta(t, math.Sqrt(.009), ps.Value("k"), 1e-12)
	assert.NotNil(t, ps.Get("logrho").Prior)
	assert.Equal(t, 1., ps.Value("P"))
	assert.Equal(t, tfmodel.DefaultH1, ps.Value("h_1"))

	ps, err = tffit.TransitParams(lc, tffit.Keywords{"dfdx": tfparam.Range{Lo: -1, Hi: 1}}, nil)
	require.NoError(t, err)
	assert.Contains(t, ps.FreeNames(), "dfdx")

	_, err = tffit.TransitParams(lc, tffit.Keywords{"L": tfparam.Fixed(.1)}, nil)
	assert.ErrorIs(t, err, tffit.ErrUnknownKeyword)

	ps, err = tffit.EclipseParams(lc, tffit.Keywords{"L": tfparam.Range{Lo: 0, Hi: .1}})
	require.NoError(t, err)
	assert.Contains(t, ps.FreeNames(), "L")
	assert.False(t, ps.Has("logrho"))
}

func TestPosterior(t *testing.T) {
	lc := synthetic(t)
	ps, err := tffit.TransitParams(lc, transitKeywords(), nil)
	require.NoError(t, err)
	require.NoError(t, ps.SetFromKeyword("log_sigma", tfparam.RangeInit{Lo: -16, Init: -10, Hi: -1}))
	require.NoError(t, tfmodel.AddJitterDerived(ps))
	post, err := tffit.NewPosterior(&tfmodel.Transit{}, ps, lc)
	require.NoError(t, err)
	assert.False(t, post.GP())
	require.Equal(t, []string{"T_0", "D", "W", "b", "c", "log_sigma"}, post.Names())

	x := []float64{0, .01, .1, .3, 1, -10}
	fit, q := post.Fit(x)
	require.NotNil(t, fit)
	assert.InDelta(t, math.Exp(-10)*1e6, q.Value("sigma_w"), 1e-9)
	j2 := math.Exp(-20)
	var ll float64
	for i, f := range fit {
		s2 := lc.FluxErr[i]*lc.FluxErr[i] + j2
		r := lc.Flux[i] - f
		ll += -.5 * (r*r/s2 + math.Log(2*math.Pi*s2))
	}
	want := ll + tffit.LogPrior(.01, .1, .3)
	assert.InDelta(t, want, post.LogProb(x), 1e-8)

	// out of bounds, b and log_sigma
	assert.Equal(t, math.Inf(-1), post.LogProb([]float64{0, .01, .1, .95, 1, -10}))
	assert.Equal(t, math.Inf(-1), post.LogProb([]float64{0, .01, .1, .3, 1, 0}))
	// wrong length
	assert.Equal(t, math.Inf(-1), post.LogProb(x[:5]))
	// the posterior owns a copy
	require.NoError(t, ps.SetValue("P", 2))
	assert.InDelta(t, want, post.LogProb(x), 1e-8)

	// correlated noise
	for _, p := range []struct {
		name string
		v    float64
	}{{"log_S0", -12}, {"log_Q", math.Log(1 / math.Sqrt2)}, {"log_omega0", 3}} {
		require.NoError(t, ps.Add(p.name, p.v, false, math.Inf(-1), math.Inf(1)))
	}
	require.NoError(t, ps.SetValue("P", 1))
	post, err = tffit.NewPosterior(&tfmodel.Transit{}, ps, lc)
	require.NoError(t, err)
	assert.True(t, post.GP())
	lp := post.LogProb(x)
	assert.False(t, math.IsInf(lp, 0) || math.IsNaN(lp))
	assert.Less(t, lp, want+1e-6)
}

func TestPosteriorDerivedBounds(t *testing.T) {
	lc := synthetic(t)
	kw := transitKeywords()
	kw["f_c"] = tfparam.Range{Lo: -1, Hi: 1}
	kw["f_s"] = tfparam.Range{Lo: -1, Hi: 1}
	ps, err := tffit.TransitParams(lc, kw, nil)
	require.NoError(t, err)
	post, err := tffit.NewPosterior(&tfmodel.Transit{}, ps, lc)
	require.NoError(t, err)
	require.Equal(t, []string{"T_0", "D", "W", "b", "f_c", "f_s", "c"}, post.Names())

	lp := post.LogProb([]float64{0, .01, .1, .3, .3, .3, 1})
	assert.False(t, math.IsInf(lp, 0) || math.IsNaN(lp))
	// each free value in bounds, e = f_c² + f_s² = 1.62 is not
	x := []float64{0, .01, .1, .3, .9, .9, 1}
	_, q := post.Fit(x)
	require.NotNil(t, q)
	assert.InDelta(t, 1.62, q.Value("e"), 1e-12)
	assert.Equal(t, math.Inf(-1), post.LogProb(x))

	// logrho above 6 for a very short period
	kw = transitKeywords()
	kw["P"] = tfparam.Fixed(1e-4)
	ps, err = tffit.TransitParams(lc, kw, nil)
	require.NoError(t, err)
	post, err = tffit.NewPosterior(&tfmodel.Transit{}, ps, lc)
	require.NoError(t, err)
	x = []float64{0, .01, .1, .3, 1}
	_, q = post.Fit(x)
	require.NotNil(t, q)
	assert.Greater(t, q.Value("logrho"), 6.)
	assert.Equal(t, math.Inf(-1), post.LogProb(x))
}

func TestPosteriorGaussianPrior(t *testing.T) {
	lc := synthetic(t)
	kw := transitKeywords()
	ps, err := tffit.TransitParams(lc, kw, nil)
	require.NoError(t, err)
	flat, err := tffit.NewPosterior(&tfmodel.Transit{}, ps, lc)
	require.NoError(t, err)

	kw["b"] = tfparam.Gaussian{Mean: .3, Sigma: .01}
	ps, err = tffit.TransitParams(lc, kw, nil)
	require.NoError(t, err)
	post, err := tffit.NewPosterior(&tfmodel.Transit{}, ps, lc)
	require.NoError(t, err)
	require.Equal(t, flat.Names(), post.Names())

	// one sigma from the prior mean
	x := []float64{0, .01, .1, .31, 1}
	assert.InDelta(t, -.5, post.LogProb(x)-flat.LogProb(x), 1e-9)
	x[3] = .3
	assert.InDelta(t, 0, post.LogProb(x)-flat.LogProb(x), 1e-9)
}

func TestPosteriorErrors(t *testing.T) {
	lc := synthetic(t)
	ps, err := tffit.TransitParams(lc, transitKeywords(), nil)
	require.NoError(t, err)
	_, err = tffit.NewPosterior(&tfmodel.Transit{}, ps, nil)
	assert.ErrorIs(t, err, tffit.ErrMissingLightCurve)
	_, err = tffit.NewPosterior(nil, ps, lc)
	assert.ErrorIs(t, err, tffit.ErrMissingModel)
	fixed := tfparam.New()
	require.NoError(t, fixed.Add("D", .01, false, 0, 1))
	_, err = tffit.NewPosterior(&tfmodel.Transit{}, fixed, lc)
	assert.ErrorIs(t, err, tffit.ErrNoFreeParameters)
}

func TestFitTransit(t *testing.T) {
	d, r := fitSynthetic(t)
	assert.True(t, r.Success, r.Message)
	assert.Equal(t, "leastsq", r.Method)
	require.NotNil(t, r.Covar)
	for _, p := range []struct {
		name  string
		truth float64
	}{{"D", .01}, {"W", .1}, {"b", .3}, {"T_0", 0}} {
		q := r.Params.Get(p.name)
		assert.Greater(t, q.Stderr, 0., p.name)
		assert.InDelta(t, p.truth, q.Value, 3*q.Stderr, p.name)
	}
	assert.Less(t, r.RMS, 100e-6)
	assert.Equal(t, 200, r.NData)
	assert.Equal(t, 5, r.NVarys)
	assert.Equal(t, 195, r.NFree)
	assert.InDelta(t, r.ChiSqr/195, r.RedChi, 1e-12)
	assert.Len(t, r.BestFit, 200)
	assert.Empty(t, r.PriorResidual)
	assert.Equal(t, .009, r.InitValues["D"])
	assert.InDelta(t, r.Params.Get("W").Correl["D"], r.Params.Get("D").Correl["W"], 1e-12)
	// derived parameters follow the fit
	assert.InDelta(t, math.Sqrt(r.Params.Value("D")), r.Params.Value("k"), 1e-12)

	// a fixed point
	r2, err := tffit.LeastSquares(r.Model, r.Params, d.LightCurve(),
		tffit.LeastSq, 0, d.Log)
	require.NoError(t, err)
	for _, n := range r.VarNames {
		q := r.Params.Get(n)
		assert.InDelta(t, q.Value, r2.Params.Value(n), .01*q.Stderr, n)
	}
	assert.InDelta(t, r.ChiSqr, r2.ChiSqr, 1e-6*r.ChiSqr)
}

func TestFitRepeatedTime(t *testing.T) {
	lc := synthetic(t)
	lc.Time[101] = lc.Time[100]
	lc.Time[150], lc.Time[151] = lc.Time[151], lc.Time[150]
	d, err := tffit.NewDataset(lc)
	require.NoError(t, err)
	kw := transitKeywords()
	kw["dfdsinphi"] = tfparam.Range{Lo: -1, Hi: 1}
	r, err := d.FitTransit(tffit.FitOptions{Params: kw})
	require.NoError(t, err)
	assert.True(t, r.Success, r.Message)
	assert.InDelta(t, .01, r.Params.Value("D"), 5*r.Params.Get("D").Stderr)
}

func TestFitPriorResiduals(t *testing.T) {
	d, err := tffit.NewDataset(synthetic(t))
	require.NoError(t, err)
	kw := transitKeywords()
	kw["b"] = tfparam.Gaussian{Mean: .3, Sigma: .01}
	r, err := d.FitTransit(tffit.FitOptions{
		Params:      kw,
		LogRhoPrior: &tfparam.Prior{Mean: 0, Sigma: 5},
	})
	require.NoError(t, err)
	require.Len(t, r.PriorResidual, 2)
	b := r.Params.Value("b")
	assert.InDelta(t, (.3-b)/.01, r.PriorResidual[0], 1e-9)
	lr := r.Params.Value("logrho")
	assert.InDelta(t, -lr/5, r.PriorResidual[1], 1e-9)
	var chi float64
	for _, x := range append(append([]float64{}, r.Residual...), r.PriorResidual...) {
		chi += x * x
	}
	assert.InDelta(t, chi, r.ChiSqr, 1e-9*chi)
	assert.Equal(t, 197, r.NFree)
}

func TestFitNelder(t *testing.T) {
	d, err := tffit.NewDataset(synthetic(t))
	require.NoError(t, err)
	kw := tffit.Keywords{
		"T_0": tfparam.RangeInit{Lo: -.05, Init: 0, Hi: .05},
		"D":   tfparam.RangeInit{Lo: 0, Init: .0098, Hi: .05},
		"W":   tfparam.RangeInit{Lo: .05, Init: .099, Hi: .2},
		"b":   tfparam.Fixed(.3),
		"c":   tfparam.Fixed(1),
	}
	r, err := d.FitTransit(tffit.FitOptions{Params: kw, Method: tffit.Nelder})
	require.NoError(t, err)
	assert.Equal(t, "nelder", r.Method)
	assert.InDelta(t, .01, r.Params.Value("D"), 2e-4)
	assert.InDelta(t, .1, r.Params.Value("W"), 2e-3)
	assert.Less(t, r.RMS, 100e-6)

	m, err := tffit.ParseMethod("Nelder")
	require.NoError(t, err)
	assert.Equal(t, tffit.Nelder, m)
	_, err = tffit.ParseMethod("powell")
	assert.Error(t, err)
}

func TestFitErrors(t *testing.T) {
	d, err := tffit.NewDataset(nil)
	require.NoError(t, err)
	_, err = d.FitTransit(tffit.FitOptions{})
	assert.ErrorIs(t, err, tffit.ErrMissingLightCurve)
	_, err = d.Sample(context.Background(), nil, tffit.DefaultSamplerOptions())
	assert.ErrorIs(t, err, tffit.ErrMissingLightCurve)
	_, err = d.AddGlint(nil, true, tfglint.DefaultOptions())
	assert.ErrorIs(t, err, tffit.ErrMissingLightCurve)

	require.NoError(t, d.SetLightCurve(synthetic(t)))
	kw := transitKeywords()
	kw["glint_scale"] = tfparam.Range{Lo: 0, Hi: 2}
	_, err = d.FitTransit(tffit.FitOptions{Params: kw})
	assert.ErrorIs(t, err, tffit.ErrMissingGlintModel)
	_, err = d.Sample(context.Background(), nil, tffit.DefaultSamplerOptions())
	assert.ErrorIs(t, err, tffit.ErrMissingModel)
	_, err = d.AddGlint(nil, false, tfglint.DefaultOptions())
	assert.ErrorIs(t, err, tffit.ErrMissingModel)

	all := tffit.Keywords{}
	for _, n := range []string{"T_0", "D", "W", "b", "c", "L"} {
		all[n] = tfparam.Fixed(.1)
	}
	_, err = d.FitEclipse(tffit.FitOptions{Params: all})
	assert.ErrorIs(t, err, tffit.ErrNoFreeParameters)
}

func TestGlintFit(t *testing.T) {
	d, r := fitSynthetic(t)
	g, err := d.AddGlint(r, false, tfglint.DefaultOptions())
	require.NoError(t, err)
	assert.Same(t, g, d.Glint())
	kw := transitKeywords()
	kw["glint_scale"] = tfparam.Range{Lo: 0, Hi: 2}
	rg, err := d.FitTransit(tffit.FitOptions{Params: kw})
	require.NoError(t, err)
	assert.Contains(t, rg.VarNames, "glint_scale")
	_, ok := tfmodel.FindGlint(rg.Model)
	assert.True(t, ok)
	// fitting residual noise can only help
	assert.LessOrEqual(t, rg.ChiSqr, r.ChiSqr*(1+1e-9))

	// a new light curve discards the glint model
	require.NoError(t, d.SetLightCurve(synthetic(t)))
	assert.Nil(t, d.Glint())
}

func TestSample(t *testing.T) {
	d, r := fitSynthetic(t)
	o := tffit.DefaultSamplerOptions()
	o.NWalkers, o.Steps, o.Thin, o.Burn = 32, 100, 2, 20
	o.Seed = 7
	s, err := d.Sample(context.Background(), r, o)
	require.NoError(t, err)
	assert.Equal(t, "emcee", s.Method)
	assert.Equal(t, []string{"T_0", "D", "W", "b", "c", "log_sigma"}, s.VarNames)
	require.Len(t, s.Chain, 32*(100/2))
	for _, row := range s.Chain {
		require.Len(t, row, len(s.VarNames))
	}
	assert.Len(t, s.LogProb, len(s.Chain))
	assert.Len(t, s.AcceptanceFraction, 32)
	assert.Len(t, s.Column("D"), len(s.Chain))
	assert.Nil(t, s.Column("P"))
	assert.InDelta(t, r.Params.Value("D"), s.Params.Value("D"), 1e-3)
	assert.True(t, s.Params.Has("sigma_w"))
	assert.Greater(t, s.Params.Get("D").Stderr, 0.)
	r6, c6 := s.Correl.Dims()
	assert.Equal(t, 6, r6)
	assert.Equal(t, 6, c6)
	assert.InDelta(t, 1, s.Correl.At(1, 1), 1e-9)

	// best sample is the highest
	for _, lp := range s.LogProb {
		require.LessOrEqual(t, lp, -(s.AIC-2*6)/2+1e-9)
	}
	assert.InDelta(t, s.BIC-s.AIC, (math.Log(200)-2)*6, 1e-9)

	// repeatable
	s2, err := d.Sample(context.Background(), r, o)
	require.NoError(t, err)
	assert.Equal(t, s.Chain, s2.Chain)

	// the least squares result is not changed
	assert.False(t, r.Params.Has("log_sigma"))
}

func TestSampleSHO(t *testing.T) {
	d, r := fitSynthetic(t)
	o := tffit.DefaultSamplerOptions()
	o.NWalkers, o.Steps, o.Thin, o.Burn = 16, 10, 1, 5
	o.SHOTerm = true
	s, err := d.Sample(context.Background(), r, o)
	require.NoError(t, err)
	assert.Equal(t, []string{"T_0", "D", "W", "b", "c", "log_S0", "log_omega0", "log_sigma"}, s.VarNames)
	assert.InDelta(t, math.Log(1/math.Sqrt2), s.Params.Value("log_Q"), 1e-12)
	assert.Len(t, s.Chain, 160)
}

func TestSampleErrors(t *testing.T) {
	d, r := fitSynthetic(t)
	o := tffit.DefaultSamplerOptions()
	o.NWalkers, o.Steps, o.Burn = 16, 4, 0

	// nothing left free
	fo := o
	fo.Params = tffit.Keywords{}
	for _, n := range r.VarNames {
		fo.Params[n] = tfparam.Fixed(r.Params.Value(n))
	}
	fo.LogSigma = tfparam.Fixed(-10)
	_, err := d.Sample(context.Background(), r, fo)
	assert.ErrorIs(t, err, tffit.ErrNoFreeParameters)

	// no finite start
	fo = o
	fo.Params = tffit.Keywords{"D": tfparam.RangeInit{Lo: .3, Init: .35, Hi: .4}}
	fo.MaxInitAttempts = 50
	_, err = d.Sample(context.Background(), r, fo)
	assert.ErrorIs(t, err, tffit.ErrWalkerInitialization)

	fo = o
	fo.Params = tffit.Keywords{"k": tfparam.Fixed(.1)}
	_, err = d.Sample(context.Background(), r, fo)
	assert.ErrorIs(t, err, tfparam.ErrDerivedParameter)
	fo.Params = tffit.Keywords{"nope": tfparam.Fixed(.1)}
	_, err = d.Sample(context.Background(), r, fo)
	assert.ErrorIs(t, err, tffit.ErrUnknownKeyword)

	fo = o
	fo.NWalkers = 5
	_, err = d.Sample(context.Background(), r, fo)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Sample(ctx, r, o)
	assert.True(t, errors.Is(err, context.Canceled))
}

func ExampleLogPrior() {
	fmt.Println(tffit.LogPrior(.3, .1, .3))
	fmt.Printf("%.4f\n", tffit.LogPrior(.01, .1, .3))
	// Output:
	// -Inf
	// 5.0001
}
