// Public domain.

package tffit

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/transitfit/internal/tfmodel"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Result holds what least squares and sampling have in common.
type Result struct {
	Method     string
	Params     *tfparam.Params // best fit, or posterior medians
	Model      tfmodel.Model
	VarNames   []string // free parameters, the column order of vectors
	InitValues map[string]float64

	BestFit       []float64 // model flux
	Residual      []float64 // (flux - fit) / flux_err
	PriorResidual []float64 // least squares only, one per prior

	NData  int // light curve points
	NVarys int
	NFree  int
	NFev   int

	ChiSqr, RedChi float64
	AIC, BIC       float64
	RMS            float64 // standard deviation of flux - fit
}

// FitOutcome is the result of a fit, an *LSResult or a *SampleResult.
type FitOutcome interface {
	Fit() *Result
	outcome()
}

// LSResult is the result of a least squares fit.
type LSResult struct {
	Result
	Success bool
	Message string
	Covar   *mat.SymDense // nil if it could not be computed
}

func (r *LSResult) Fit() *Result { return &r.Result }
func (*LSResult) outcome()       {}

// SampleResult is the result of sampling the posterior.
//
// Chain rows are walker positions, step major: row s*NWalkers+w is walker
// w at stored step s.  Columns are in VarNames order.
type SampleResult struct {
	Result
	ParamsBest         *tfparam.Params // highest posterior sample
	Chain              [][]float64
	LogProb            []float64 // per chain row
	Covar              *mat.SymDense
	Correl             *mat.SymDense
	AcceptanceFraction []float64 // per walker
	NWalkers           int
	Steps, Burn, Thin  int
}

func (r *SampleResult) Fit() *Result { return &r.Result }
func (*SampleResult) outcome()       {}

// Column returns the samples of the named free parameter, nil if the
// name is not a free parameter.
func (r *SampleResult) Column(name string) []float64 {
	for j, n := range r.VarNames {
		if n == name {
			c := make([]float64, len(r.Chain))
			for i, row := range r.Chain {
				c[i] = row[j]
			}
			return c
		}
	}
	return nil
}

func rms(flux, fit []float64) float64 {
	d := make([]float64, len(flux))
	for i, f := range flux {
		d[i] = f - fit[i]
	}
	// population standard deviation
	_, v := stat.PopMeanVariance(d, nil)
	return math.Sqrt(v)
}

// setCorrel sets Stderr and Correl of the named parameters from a
// covariance matrix.
func setCorrel(ps *tfparam.Params, names []string, cov mat.Symmetric) {
	n := len(names)
	s := make([]float64, n)
	for i := range names {
		s[i] = math.Sqrt(cov.At(i, i))
	}
	for i, ni := range names {
		p := ps.Get(ni)
		p.Stderr = s[i]
		p.Correl = make(map[string]float64, n-1)
		for j, nj := range names {
			if i != j {
				p.Correl[nj] = cov.At(i, j) / (s[i] * s[j])
			}
		}
	}
}
