// Public domain.

package tffit

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// residualFunc fills r with residuals at x.  It must be safe for
// concurrent use.  Residuals may be NaN.
type residualFunc func(r, x []float64)

type minResult struct {
	x       []float64
	cost    float64
	nfev    int
	success bool
	message string
}

const (
	lmFtol = 1e-10
	lmXtol = 1e-10
)

// levmar minimizes the sum of squares of the m residuals of f by
// Levenberg-Marquardt with Marquardt diagonal scaling and a central
// difference Jacobian.  A trial step with a non-finite sum of squares is
// rejected like any step that fails to reduce it.
//
// Success needs a convergence test to pass, and also an accepted step
// unless the Jacobian at x0 was finite throughout.  A minimum reached only
// by raising the damping until no step is possible is not success.
func levmar(f residualFunc, m int, x0 []float64, maxFev int) *minResult {
	n := len(x0)
	res := &minResult{x: append([]float64{}, x0...)}
	eval := func(r, x []float64) float64 {
		f(r, x)
		res.nfev++
		return floats.Dot(r, r)
	}
	r := make([]float64, m)
	res.cost = eval(r, res.x)
	if math.IsNaN(res.cost) || math.IsInf(res.cost, 0) {
		res.message = "residuals not finite at initial values"
		return res
	}
	J := mat.NewDense(m, n, nil)
	js := &fd.JacobianSettings{Formula: fd.Central, Concurrent: true}
	var A mat.SymDense
	var g, As mat.VecDense
	M := mat.NewSymDense(n, nil)
	xn := make([]float64, n)
	rn := make([]float64, m)
	λ := 1e-3
	accepted := 0
	partial := false // some Jacobian entry was not finite
	for {
		if res.nfev >= maxFev {
			res.message = "function evaluation limit reached"
			return res
		}
		fd.Jacobian(J, func(y, x []float64) { f(y, x) }, res.x, js)
		res.nfev += 2 * n
		// a residual that cannot be differenced contributes nothing
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				if v := J.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
					J.Set(i, j, 0)
					partial = true
				}
			}
		}
		A.SymOuterK(1, J.T())
		g.MulVec(J.T(), mat.NewVecDense(m, r))
		for {
			M.CopySym(&A)
			for i := 0; i < n; i++ {
				d := math.Max(A.At(i, i), 1e-30)
				M.SetSym(i, i, d*(1+λ))
			}
			var ch mat.Cholesky
			var step mat.VecDense
			if ch.Factorize(M) && ch.SolveVecTo(&step, &g) == nil {
				for i := range xn {
					xn[i] = res.x[i] - step.AtVec(i)
				}
				cn := eval(rn, xn)
				if cn < res.cost {
					dCost := res.cost - cn
					dx := mat.Norm(&step, 2)
					xNorm := floats.Norm(res.x, 2)
					copy(res.x, xn)
					copy(r, rn)
					res.cost = cn
					accepted++
					λ = math.Max(λ/10, 1e-15)
					if dCost <= lmFtol*cn {
						res.success = true
						res.message = "relative reduction in sum of squares below tolerance"
						return res
					}
					if dx <= lmXtol*(xNorm+lmXtol) {
						res.success = true
						res.message = "relative step size below tolerance"
						return res
					}
					break
				}
				// rejected: converged if the linear model predicts no
				// useful reduction either
				As.MulVec(&A, &step)
				pred := 2*mat.Dot(&step, &g) - mat.Dot(&step, &As)
				if pred <= lmFtol*res.cost {
					res.success = accepted > 0 || !partial
					if res.success {
						res.message = "predicted reduction in sum of squares below tolerance"
					} else {
						res.message = "no step reduced the sum of squares"
					}
					return res
				}
			}
			λ *= 10
			if λ > 1e16 {
				res.message = "sum of squares cannot be reduced further"
				return res
			}
			if res.nfev >= maxFev {
				res.message = "function evaluation limit reached"
				return res
			}
		}
	}
}

// nelderMead minimizes the sum of squares with the derivative free
// simplex method.
func nelderMead(f residualFunc, m int, x0 []float64, maxFev int) *minResult {
	cost := func(x []float64) float64 {
		r := make([]float64, m)
		f(r, x)
		c := floats.Dot(r, r)
		if math.IsNaN(c) {
			return math.Inf(1)
		}
		return c
	}
	p := optimize.Problem{Func: cost}
	s := &optimize.Settings{
		FuncEvaluations: maxFev,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 200,
		},
	}
	or, err := optimize.Minimize(p, x0, s, &optimize.NelderMead{})
	res := &minResult{x: append([]float64{}, x0...), cost: math.NaN()}
	if or != nil {
		res.x = or.X
		res.cost = or.F
		res.nfev = or.FuncEvaluations
		res.message = or.Status.String()
	}
	if err != nil {
		res.message = err.Error()
		return res
	}
	switch or.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge:
		res.success = true
	}
	return res
}
