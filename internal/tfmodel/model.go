// Public domain.

// Package tfmodel evaluates light curve models.
//
// A model is a tree.  Leaves are the astrophysical shape (Transit or
// Eclipse), the instrumental systematics (Factor) and an optional Glint
// term.  Interior nodes combine children by multiplication (Product) or
// addition (Sum).  All leaves read their coefficients by name from a
// tfparam.Params.
package tfmodel

import (
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Model maps parameters and times to normalized flux.
//
// The implementations in this package are the only ones; the unexported
// method seals the set so component lookups can be structural.
type Model interface {
	Eval(p *tfparam.Params, t []float64) []float64
	node()
}

// Product multiplies its children.
type Product struct {
	Left, Right Model
}

// Sum adds its children.
type Sum struct {
	Left, Right Model
}

// Mul returns the product a*b.
func Mul(a, b Model) Model { return &Product{a, b} }

// Add returns the sum a+b.
func Add(a, b Model) Model { return &Sum{a, b} }

func (*Product) node() {}
func (*Sum) node()     {}

func (m *Product) Eval(p *tfparam.Params, t []float64) []float64 {
	f := m.Left.Eval(p, t)
	g := m.Right.Eval(p, t)
	for i := range f {
		f[i] *= g[i]
	}
	return f
}

func (m *Sum) Eval(p *tfparam.Params, t []float64) []float64 {
	f := m.Left.Eval(p, t)
	g := m.Right.Eval(p, t)
	for i := range f {
		f[i] += g[i]
	}
	return f
}

// walk visits every node depth first, left to right.
func walk(m Model, visit func(Model)) {
	visit(m)
	switch n := m.(type) {
	case *Product:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *Sum:
		walk(n.Left, visit)
		walk(n.Right, visit)
	}
}

// FindGlint returns the glint leaf of m, if it has one.
func FindGlint(m Model) (g *Glint, ok bool) {
	walk(m, func(n Model) {
		if x, is := n.(*Glint); is && g == nil {
			g, ok = x, true
		}
	})
	return
}

// Astrophysical returns the transit or eclipse leaf of m, nil if there is
// none.
func Astrophysical(m Model) (a Model) {
	walk(m, func(n Model) {
		if a != nil {
			return
		}
		switch n.(type) {
		case *Transit, *Eclipse:
			a = n
		}
	})
	return
}

// Systematics returns the factor leaf of m, nil if there is none.
func Systematics(m Model) (f *Factor) {
	walk(m, func(n Model) {
		if x, is := n.(*Factor); is && f == nil {
			f = x
		}
	})
	return
}
