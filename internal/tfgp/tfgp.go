// Public domain.

// Package tfgp evaluates the likelihood of residuals under a Gaussian
// process with a stationary kernel made of damped exponential terms, in
// time and memory linear in the number of points.
//
// The method is the semiseparable Cholesky factorization of
// Foreman-Mackey et al. 2017, AJ 154, 220.  A Kernel is an immutable value;
// LogLikelihood keeps all its state on the stack of the call so one Kernel
// may be used from any number of goroutines.
package tfgp

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMisaligned     = errors.New("arrays differ in length")
	ErrUnsorted       = errors.New("times not sorted")
	ErrNotPositiveDef = errors.New("covariance not positive definite")
)

// RealTerm is a·exp(-c·τ).
type RealTerm struct {
	A, C float64
}

// ComplexTerm is exp(-c·τ)·(a·cos(d·τ) + b·sin(d·τ)).
type ComplexTerm struct {
	A, B, C, D float64
}

// Kernel is a sum of terms plus a white noise variance added to the
// diagonal.
type Kernel struct {
	Real    []RealTerm
	Complex []ComplexTerm
	Jitter  float64
}

// SHO returns the kernel of a stochastically driven damped simple harmonic
// oscillator with power S0, angular frequency omega0 and quality factor Q,
// all given as natural logs.
func SHO(logS0, logQ, logOmega0 float64) Kernel {
	S0 := math.Exp(logS0)
	Q := math.Exp(logQ)
	w0 := math.Exp(logOmega0)
	if Q >= .5 {
		f := math.Sqrt(4*Q*Q - 1)
		return Kernel{Complex: []ComplexTerm{{
			A: S0 * w0 * Q,
			B: S0 * w0 * Q / f,
			C: .5 * w0 / Q,
			D: .5 * w0 / Q * f,
		}}}
	}
	f := math.Sqrt(1 - 4*Q*Q)
	return Kernel{Real: []RealTerm{
		{A: .5 * S0 * w0 * Q * (1 + 1/f), C: .5 * w0 / Q * (1 - f)},
		{A: .5 * S0 * w0 * Q * (1 - 1/f), C: .5 * w0 / Q * (1 + f)},
	}}
}

// WithJitter returns a copy of k with white noise of standard deviation
// exp(logSigma).
func (k Kernel) WithJitter(logSigma float64) Kernel {
	k.Jitter = math.Exp(2 * logSigma)
	return k
}

// Value is the covariance at lag tau, not including Jitter.
func (k Kernel) Value(tau float64) float64 {
	tau = math.Abs(tau)
	var s float64
	for _, r := range k.Real {
		s += r.A * math.Exp(-r.C*tau)
	}
	for _, c := range k.Complex {
		sn, cs := math.Sincos(c.D * tau)
		s += math.Exp(-c.C*tau) * (c.A*cs + c.B*sn)
	}
	return s
}

// Variance is the diagonal of the covariance, not including measurement
// errors.
func (k Kernel) Variance() float64 {
	return k.Value(0) + k.Jitter
}

func (k Kernel) width() int {
	return len(k.Real) + 2*len(k.Complex)
}

// uv fills the preconditioned semiseparable generators at time t.
func (k Kernel) uv(t float64, u, v []float64) {
	j := 0
	for _, r := range k.Real {
		u[j], v[j] = r.A, 1
		j++
	}
	for _, c := range k.Complex {
		sn, cs := math.Sincos(c.D * t)
		u[j] = c.A*cs + c.B*sn
		u[j+1] = c.A*sn - c.B*cs
		v[j], v[j+1] = cs, sn
		j += 2
	}
}

func (k Kernel) phi(dt float64, p []float64) {
	j := 0
	for _, r := range k.Real {
		p[j] = math.Exp(-r.C * dt)
		j++
	}
	for _, c := range k.Complex {
		e := math.Exp(-c.C * dt)
		p[j], p[j+1] = e, e
		j += 2
	}
}

// LogLikelihood returns the log of the multivariate normal density of
// residuals y at times t with measurement errors yerr.  t must be
// non-decreasing.
func (k Kernel) LogLikelihood(t, yerr, y []float64) (float64, error) {
	n := len(t)
	if len(yerr) != n || len(y) != n {
		return 0, fmt.Errorf("%w: %d times, %d errors, %d values",
			ErrMisaligned, n, len(yerr), len(y))
	}
	J := k.width()
	u := make([]float64, J)
	v := make([]float64, J)
	p := make([]float64, J)
	w := make([]float64, J)
	f := make([]float64, J)
	S := make([]float64, J*J)
	d0 := k.Variance()
	var quad, logDet, zPrev, dPrev float64
	for i, ti := range t {
		k.uv(ti, u, v)
		d := d0 + yerr[i]*yerr[i]
		z := y[i]
		if i > 0 {
			dt := ti - t[i-1]
			if dt < 0 {
				return 0, fmt.Errorf("%w: t[%d] = %g after %g",
					ErrUnsorted, i, ti, t[i-1])
			}
			k.phi(dt, p)
			for a := 0; a < J; a++ {
				f[a] = p[a] * (f[a] + w[a]*zPrev)
				for b := 0; b < J; b++ {
					S[a*J+b] = p[a] * p[b] * (S[a*J+b] + dPrev*w[a]*w[b])
				}
			}
			for a := 0; a < J; a++ {
				z -= u[a] * f[a]
				var us float64
				for b := 0; b < J; b++ {
					us += u[b] * S[b*J+a]
				}
				d -= us * u[a]
				w[a] = us // u·S, completed below
			}
		} else {
			for a := range w {
				w[a] = 0
			}
		}
		if !(d > 0) {
			return 0, fmt.Errorf("%w: pivot %g at point %d", ErrNotPositiveDef, d, i)
		}
		for a := 0; a < J; a++ {
			w[a] = (v[a] - w[a]) / d
		}
		quad += z * z / d
		logDet += math.Log(d)
		zPrev, dPrev = z, d
	}
	return -.5 * (quad + logDet + float64(n)*math.Log(2*math.Pi)), nil
}
