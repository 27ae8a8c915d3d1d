// Public domain.

package tfprog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/soniakeys/transitfit/internal/tflc"
	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// writeCSV writes a 200 point transit light curve with roll angles, flux
// and flux_err multiplied by scale.
func writeCSV(t *testing.T, fn string, scale float64) {
	ps := tfparam.New()
	for _, p := range []struct {
		name string
		v    float64
	}{{"T_0", 0}, {"P", 1}, {"D", .01}, {"W", .1}, {"b", .3}} {
		require.NoError(t, ps.Add(p.name, p.v, false, math.Inf(-1), math.Inf(1)))
	}
	var tm []float64
	for i := 0; i < 200; i++ {
		tm = append(tm, -.5+float64(i)/199)
	}
	flux := (&tfmodel.Transit{}).Eval(ps, tm)
	nd := distuv.Normal{Sigma: 50e-6, Src: xrand.NewSource(2)}
	var b bytes.Buffer
	b.WriteString("# synthetic\ntime,flux,flux_err,roll_angle\n")
	for i, ti := range tm {
		fmt.Fprintf(&b, "%.6f,%.8f,%g,%.3f\n", ti, (flux[i]+nd.Rand())*scale, 50e-6*scale,
			math.Mod(3600-ti/.0686*360, 360))
	}
	require.NoError(t, os.WriteFile(fn, b.Bytes(), 0o644))
}

const testConfig = `
log:
  level: warn
lightcurve:
  file: %s
  cache: %s
model:
  kind: transit
  params:
    T_0: "(-0.05, 0.002, 0.05)"
    D: "(0, 0.009, 0.05)"
    W: "(0.05, 0.09, 0.2)"
    b: "(0, 0.4, 0.9)"
  logrho_prior: "0 +/- 5"
glint:
  enabled: true
sampler:
  nwalkers: 16
  steps: 10
  burn: 5
  thin: 2
  seed: 3
output:
  chain: %s
`

func TestRun(t *testing.T) {
	dir := t.TempDir()
	lcFile := filepath.Join(dir, "lc.csv")
	cacheFile := filepath.Join(dir, "lc.gob")
	chainFile := filepath.Join(dir, "chain.gob")
	cfgFile := filepath.Join(dir, "run.yaml")
	writeCSV(t, lcFile, 1)
	require.NoError(t, os.WriteFile(cfgFile,
		[]byte(fmt.Sprintf(testConfig, lcFile, cacheFile, chainFile)), 0o644))

	c, err := commandLine([]string{"-c", cfgFile}, io.Discard)
	require.NoError(t, err)
	assert.True(t, c.Sampler.Enabled)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), c, &out, zerolog.Nop()))
	rep := out.String()
	for _, s := range []string{
		"[[Fit statistics]]", "[[Variables]]", "[[Priors]]",
		"[[Correlations]]", "[[Highest posterior sample]]",
		"leastsq", "emcee", "glint_scale:", "logrho:", "sigma_w:",
		"(derived)", "(fixed)", "(init = 0.009)",
	} {
		assert.Contains(t, rep, s)
	}

	ch, err := ReadChain(chainFile)
	require.NoError(t, err)
	assert.Equal(t, 16, ch.NWalkers)
	assert.Len(t, ch.Samples, 16*5)
	assert.Len(t, ch.LogProb, 16*5)
	assert.Equal(t, []string{"T_0", "D", "W", "b", "c", "glint_scale", "log_sigma"},
		ch.VarNames)

	lc, err := tflc.ReadFile(cacheFile)
	require.NoError(t, err)
	assert.Equal(t, 200, lc.Len())

	// the cache reads back as a light curve
	c.LightCurve.File = cacheFile
	c.LightCurve.Cache = ""
	c.Sampler.Enabled = false
	c.Glint.Enabled = false
	out.Reset()
	require.NoError(t, Run(context.Background(), c, &out, zerolog.Nop()))
	assert.NotContains(t, out.String(), "emcee")
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format)
	assert.Equal(t, "transit", c.Model.Kind)
	assert.Equal(t, "leastsq", c.Model.Method)
	assert.Equal(t, 64, c.Sampler.NWalkers)
	assert.Equal(t, 128, c.Sampler.Steps)
	assert.Equal(t, 256, c.Sampler.Burn)
	assert.Equal(t, 4, c.Sampler.Thin)
	assert.Equal(t, 1e-3, c.Sampler.InitScale)
	assert.Equal(t, 8, c.Glint.NSpline)
	assert.Equal(t, 30., c.Glint.GapMax)
	assert.Equal(t, 11, c.LightCurve.ClipWidth)
	assert.Equal(t, 20., c.LightCurve.DecorrCut)
	assert.Nil(t, c.Glint.Angle0)

	err = c.Validate()
	var ve validator.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "required", ve[0].Tag())

	c.LightCurve.File = "x.csv"
	require.NoError(t, c.Validate())

	c.Model.Params = map[string]string{"D": "(0, 1"}
	assert.ErrorIs(t, c.Validate(), tfparam.ErrInvalidKeyword)
	c.Model.Params = nil
	c.Model.LogRhoPrior = "(0, 1)"
	assert.ErrorIs(t, c.Validate(), tfparam.ErrInvalidKeyword)
	c.Model.LogRhoPrior = ""
	c.Glint.Moon = true
	assert.Error(t, c.Validate())
	ra, dec := 150., -20.
	c.Target.RADeg, c.Target.DecDeg = &ra, &dec
	assert.NoError(t, c.Validate())
	c.Model.Kind = "occultation"
	assert.Error(t, c.Validate())
	c.Model.Kind = "transit"

	c.Sampler.NWalkers = 15
	assert.ErrorContains(t, c.Validate(), "even")
	c.Sampler.NWalkers = 16
	require.NoError(t, c.Validate())

	c.LightCurve.Decorr = []string{"dfdx", "dfdsinphi"}
	assert.NoError(t, c.Validate())
	c.LightCurve.Decorr = []string{"auto"}
	assert.NoError(t, c.Validate())
	c.LightCurve.Decorr = []string{"auto", "dfdx"}
	assert.ErrorContains(t, c.Validate(), "auto")
	c.LightCurve.Decorr = []string{"dfdz"}
	require.True(t, errors.As(c.Validate(), &ve))
	assert.Equal(t, "oneof", ve[0].Tag())

	_, err = ParseConfig([]byte("model: [1, 2"))
	assert.Error(t, err)
}

func TestRunPrepare(t *testing.T) {
	dir := t.TempDir()
	lcFile := filepath.Join(dir, "lc.csv")
	cacheFile := filepath.Join(dir, "lc.gob")
	writeCSV(t, lcFile, 1000)
	cfgFile := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(fmt.Sprintf(`
lightcurve:
  file: %s
  cache: %s
  normalize: true
  decorr: [dfdt]
model:
  params:
    T_0: "(-0.05, 0.002, 0.05)"
    D: "(0, 0.009, 0.05)"
    W: "(0.05, 0.09, 0.2)"
    b: "(0, 0.4, 0.9)"
`, lcFile, cacheFile)), 0o644))
	c, err := commandLine([]string{"-c", cfgFile}, io.Discard)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), c, &out, zerolog.Nop()))
	assert.Contains(t, out.String(), "[[Variables]]")

	lc, err := tflc.ReadFile(cacheFile)
	require.NoError(t, err)
	// median of the raw flux is about 1000 before normalizing
	assert.InDelta(t, 1, stat.Quantile(.5, stat.Empirical, sorted(lc.Flux), nil), 1e-3)
	for _, e := range lc.FluxErr {
		assert.InDelta(t, 50e-6, e, 5e-7)
	}

	// auto checks which terms are significant before dividing them out
	c.LightCurve.Decorr = []string{"auto"}
	c.LightCurve.Cache = ""
	require.NoError(t, c.Validate())
	out.Reset()
	require.NoError(t, Run(context.Background(), c, &out, zerolog.Nop()))
	assert.Contains(t, out.String(), "[[Variables]]")
}

func sorted(x []float64) []float64 {
	s := append([]float64{}, x...)
	sort.Float64s(s)
	return s
}

func TestCommandLine(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
lightcurve:
  file: a.csv
sampler:
  steps: 50
`), 0o644))
	c, err := commandLine([]string{"-c", cfgFile, "--seed", "5", "-s",
		"-l", "debug", "b.csv"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "b.csv", c.LightCurve.File)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Sampler.Enabled)
	require.NotNil(t, c.Sampler.Seed)
	assert.Equal(t, uint64(5), *c.Sampler.Seed)
	assert.Equal(t, 50, c.Sampler.Steps)
	so, err := c.samplerOptions()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), so.Seed)
	assert.Nil(t, so.LogSigma)

	c, err = commandLine([]string{"-v"}, io.Discard)
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = commandLine([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, pflag.ErrHelp)

	_, err = commandLine([]string{"-l", "loud", "a.csv"}, io.Discard)
	assert.Error(t, err)
	_, err = commandLine([]string{"a.csv", "b.csv"}, io.Discard)
	assert.Error(t, err)
	_, err = commandLine([]string{"-c", filepath.Join(dir, "none.yaml")}, io.Discard)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var b bytes.Buffer
	log, err := newLogger("warn", "json", &b)
	require.NoError(t, err)
	log.Info().Msg("quiet")
	log.Warn().Msg("loud")
	assert.NotContains(t, b.String(), "quiet")
	assert.Contains(t, b.String(), `"message":"loud"`)
	_, err = newLogger("loud", "json", &b)
	assert.Error(t, err)
}

func TestWriteTarget(t *testing.T) {
	ra, dec := 281.3, -23.
	c := &Config{}
	c.Target.RADeg, c.Target.DecDeg = &ra, &dec
	tgt, ok := target(c)
	require.True(t, ok)
	lc := &tflc.LightCurve{Time: []float64{0, 1}, BJDRef: 2451545}
	var b bytes.Buffer
	writeTarget(&b, tgt, lc)
	assert.Contains(t, b.String(), "[[Target]]")
	assert.Contains(t, b.String(), "Sun separation")

	_, ok = target(&Config{})
	assert.False(t, ok)
}
