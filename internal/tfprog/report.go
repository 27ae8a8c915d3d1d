// Public domain.

package tfprog

import (
	"fmt"
	"io"
	"math"
	"sort"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/transitfit/internal/tffit"
	"github.com/soniakeys/transitfit/internal/tfglint"
	"github.com/soniakeys/transitfit/internal/tflc"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// correlations smaller than this are not reported
const minCorrel = .1

// mjdOffset converts BJD to a modified Julian date.
const mjdOffset = 2400000.5

func writeReport(w io.Writer, out tffit.FitOutcome) {
	r := out.Fit()
	fmt.Fprintln(w, "[[Fit statistics]]")
	fmt.Fprintf(w, "    %-22s %s\n", "method", r.Method)
	fmt.Fprintf(w, "    %-22s %d\n", "function evals", r.NFev)
	fmt.Fprintf(w, "    %-22s %d\n", "data points", r.NData)
	fmt.Fprintf(w, "    %-22s %d\n", "variables", r.NVarys)
	fmt.Fprintf(w, "    %-22s %.4f\n", "chi-square", r.ChiSqr)
	fmt.Fprintf(w, "    %-22s %.4f\n", "reduced chi-square", r.RedChi)
	fmt.Fprintf(w, "    %-22s %.4f\n", "Akaike info crit", r.AIC)
	fmt.Fprintf(w, "    %-22s %.4f\n", "Bayesian info crit", r.BIC)
	fmt.Fprintf(w, "    %-22s %.1f ppm\n", "RMS residual", r.RMS*1e6)
	switch o := out.(type) {
	case *tffit.LSResult:
		fmt.Fprintf(w, "    %-22s %t\n", "success", o.Success)
		fmt.Fprintf(w, "    %-22s %s\n", "message", o.Message)
	case *tffit.SampleResult:
		fmt.Fprintf(w, "    %-22s %d\n", "walkers", o.NWalkers)
		fmt.Fprintf(w, "    %-22s %d\n", "burn-in steps", o.Burn)
		fmt.Fprintf(w, "    %-22s %d, thin %d\n", "production steps", o.Steps, o.Thin)
		fmt.Fprintf(w, "    %-22s %d\n", "chain length", len(o.Chain))
		fmt.Fprintf(w, "    %-22s %.3f\n", "mean acceptance",
			stat.Mean(o.AcceptanceFraction, nil))
	}

	fmt.Fprintln(w, "[[Variables]]")
	writeParams(w, r.Params, r.InitValues)
	if s, ok := out.(*tffit.SampleResult); ok {
		fmt.Fprintln(w, "[[Highest posterior sample]]")
		writeParams(w, s.ParamsBest, nil)
	}

	var priors []*tfparam.Param
	for _, p := range r.Params.All() {
		if p.Prior != nil {
			priors = append(priors, p)
		}
	}
	if len(priors) > 0 {
		fmt.Fprintln(w, "[[Priors]]")
		for _, p := range priors {
			fmt.Fprintf(w, "    %-12s %.6g +/- %.6g\n",
				p.Name+":", p.Prior.Mean, p.Prior.Sigma)
		}
	}
	writeCorrel(w, r.Params, r.VarNames)
}

func writeParams(w io.Writer, ps *tfparam.Params, init map[string]float64) {
	for _, p := range ps.All() {
		fmt.Fprintf(w, "    %-12s %.8g", p.Name+":", p.Value)
		switch {
		case p.Derived():
			fmt.Fprint(w, " (derived)")
		case !p.Free():
			fmt.Fprint(w, " (fixed)")
		case p.Stderr > 0:
			fmt.Fprintf(w, " +/- %.3g", p.Stderr)
			if p.Value != 0 {
				fmt.Fprintf(w, " (%.2f%%)", math.Abs(100*p.Stderr/p.Value))
			}
		default:
			fmt.Fprint(w, " +/- ?")
		}
		if v, ok := init[p.Name]; ok {
			fmt.Fprintf(w, " (init = %.6g)", v)
		}
		fmt.Fprintln(w)
	}
}

func writeCorrel(w io.Writer, ps *tfparam.Params, names []string) {
	type pair struct {
		a, b string
		c    float64
	}
	var pairs []pair
	for i, a := range names {
		p := ps.Get(a)
		for _, b := range names[i+1:] {
			c, ok := p.Correl[b]
			if ok && math.Abs(c) >= minCorrel {
				pairs = append(pairs, pair{a, b, c})
			}
		}
	}
	if len(pairs) == 0 {
		return
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].c) > math.Abs(pairs[j].c)
	})
	fmt.Fprintf(w, "[[Correlations]] (unreported correlations are < %.3f)\n", minCorrel)
	for _, p := range pairs {
		fmt.Fprintf(w, "    %-24s = %+.3f\n",
			fmt.Sprintf("C(%s, %s)", p.a, p.b), p.c)
	}
}

// writeTarget reports the target position and, if the light curve has a
// BJD reference, its distance from the Sun at mid-time.
func writeTarget(w io.Writer, t tfglint.Target, lc *tflc.LightCurve) {
	fmt.Fprintln(w, "[[Target]]")
	fmt.Fprintf(w, "    %-22s %.2d\n", "RA", sexa.FmtRA(t.RA))
	fmt.Fprintf(w, "    %-22s %.1d\n", "Dec", sexa.FmtAngle(t.Dec))
	if lc.BJDRef > 0 && lc.Len() > 0 {
		mid := (lc.Time[0] + lc.Time[lc.Len()-1]) / 2
		sep := tfglint.SunSeparation(lc.BJDRef+mid-mjdOffset, t)
		fmt.Fprintf(w, "    %-22s %.1f deg\n", "Sun separation", sep.Deg())
	}
}

func target(c *Config) (tfglint.Target, bool) {
	if c.Target.RADeg == nil || c.Target.DecDeg == nil {
		return tfglint.Target{}, false
	}
	return tfglint.Target{
		RA:  unit.RAFromDeg(*c.Target.RADeg),
		Dec: unit.AngleFromDeg(*c.Target.DecDeg),
	}, true
}
