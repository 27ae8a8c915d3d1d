// Public domain.

// Package tfparam holds named model parameters.
//
// A parameter is fixed, free within bounds, or derived from other
// parameters by a registered function.  Any parameter may carry a Gaussian
// prior.  The free parameters, in insertion order, form the vector that the
// least-squares fitter and the ensemble sampler move around.
package tfparam

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDuplicateParameter = errors.New("duplicate parameter")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrDerivedParameter   = errors.New("derived parameter cannot be set directly")
	ErrCyclicExpression   = errors.New("derived parameters form a cycle")
	ErrInvalidKeyword     = errors.New("invalid parameter keyword")
	ErrVectorLength       = errors.New("free vector length mismatch")
)

// Prior is a Gaussian prior, mean ± sigma.
type Prior struct {
	Mean, Sigma float64
}

// Residual is the prior's contribution to a least-squares residual vector.
func (p Prior) Residual(v float64) float64 {
	return (p.Mean - v) / p.Sigma
}

// LogProb is the unnormalized log density of the prior at v.
func (p Prior) LogProb(v float64) float64 {
	r := p.Residual(v)
	return -.5 * r * r
}

// Derivation computes a parameter from the current values of Inputs.
// F receives input values in the order of Inputs.
type Derivation struct {
	Inputs []string
	F      func(in []float64) float64
}

// Param is a single named parameter.
type Param struct {
	Name     string
	Value    float64
	Vary     bool
	Min, Max float64
	Prior    *Prior

	// fitted uncertainty, NaN when unknown
	Stderr float64
	Correl map[string]float64

	derive *Derivation
}

// Derived reports whether the parameter is computed from others.
func (p *Param) Derived() bool {
	return p.derive != nil
}

// Free reports whether the parameter belongs to the free vector.
func (p *Param) Free() bool {
	return p.Vary && p.derive == nil
}

// InBounds reports whether v is within [Min, Max].  NaN is out of bounds.
func (p *Param) InBounds(v float64) bool {
	return v >= p.Min && v <= p.Max
}

// Derivation returns the derivation of a derived parameter, nil otherwise.
func (p *Param) Derivation() *Derivation {
	return p.derive
}

func (p *Param) clone() *Param {
	c := *p
	if p.Prior != nil {
		pr := *p.Prior
		c.Prior = &pr
	}
	if p.Correl != nil {
		c.Correl = make(map[string]float64, len(p.Correl))
		for k, v := range p.Correl {
			c.Correl[k] = v
		}
	}
	// derivations are immutable and shared
	return &c
}

func (p *Param) String() string {
	switch {
	case p.derive != nil:
		return fmt.Sprintf("%s = %g (derived)", p.Name, p.Value)
	case !p.Vary:
		return fmt.Sprintf("%s = %g (fixed)", p.Name, p.Value)
	}
	return fmt.Sprintf("%s = %g [%g, %g]", p.Name, p.Value, p.Min, p.Max)
}

func newParam(name string, value float64, vary bool, min, max float64) *Param {
	if math.IsNaN(min) {
		min = math.Inf(-1)
	}
	if math.IsNaN(max) {
		max = math.Inf(1)
	}
	// an empty interval leaves nothing to vary
	if vary && min == max {
		vary = false
	}
	return &Param{
		Name:   name,
		Value:  value,
		Vary:   vary,
		Min:    min,
		Max:    max,
		Stderr: math.NaN(),
	}
}
