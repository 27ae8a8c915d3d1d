// Public domain.

package tfparam

import (
	"fmt"
	"math"
)

// Params is an ordered set of parameters.
//
// Insertion order is significant.  It is the order of the free vector and
// the order used for reporting.
type Params struct {
	names []string
	m     map[string]*Param
	order []string // derived parameters, dependencies first
}

// New returns an empty parameter set.
func New() *Params {
	return &Params{m: make(map[string]*Param)}
}

// Add inserts a new parameter.  A parameter with the same name must not
// already exist.
func (ps *Params) Add(name string, value float64, vary bool, min, max float64) error {
	if _, ok := ps.m[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
	}
	ps.put(newParam(name, value, vary, min, max))
	return nil
}

// AddDerived inserts a parameter computed by d from existing parameters.
// The new value is computed immediately.
func (ps *Params) AddDerived(name string, d Derivation, min, max float64) error {
	if _, ok := ps.m[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
	}
	return ps.SetDerived(name, d, min, max)
}

// SetDerived replaces or inserts name as a derived parameter.  Every input
// must already exist and the dependency graph must stay acyclic, otherwise
// the set is left unchanged.
func (ps *Params) SetDerived(name string, d Derivation, min, max float64) error {
	for _, in := range d.Inputs {
		if _, ok := ps.m[in]; !ok && in != name {
			return fmt.Errorf("%w: %s (input of %s)",
				ErrUnknownParameter, in, name)
		}
	}
	p := newParam(name, math.NaN(), false, min, max)
	dc := d
	dc.Inputs = append([]string{}, d.Inputs...)
	p.derive = &dc
	old, existed := ps.m[name]
	ps.put(p)
	order, err := ps.sortDerived()
	if err != nil {
		if existed {
			ps.m[name] = old
		} else {
			ps.remove(name)
		}
		return fmt.Errorf("%w: registering %s", err, name)
	}
	ps.order = order
	return ps.ResolveExpressions()
}

// SetFromKeyword replaces or inserts the parameter name as described by kw.
// An existing parameter keeps its position in the set.
func (ps *Params) SetFromKeyword(name string, kw Keyword) error {
	if kw == nil {
		return fmt.Errorf("%w: %s: no value", ErrInvalidKeyword, name)
	}
	p, err := kw.param(name)
	if err != nil {
		return err
	}
	old, existed := ps.m[name]
	ps.put(p)
	if existed && old.derive != nil {
		order, err := ps.sortDerived()
		if err != nil {
			ps.m[name] = old
			return err
		}
		ps.order = order
	}
	return ps.ResolveExpressions()
}

func (ps *Params) put(p *Param) {
	if _, ok := ps.m[p.Name]; !ok {
		ps.names = append(ps.names, p.Name)
	}
	ps.m[p.Name] = p
}

func (ps *Params) remove(name string) {
	delete(ps.m, name)
	for i, n := range ps.names {
		if n == name {
			ps.names = append(ps.names[:i], ps.names[i+1:]...)
			break
		}
	}
}

// Has reports whether the set contains name.
func (ps *Params) Has(name string) bool {
	_, ok := ps.m[name]
	return ok
}

// Get returns the named parameter, or nil.
func (ps *Params) Get(name string) *Param {
	return ps.m[name]
}

// Value returns the value of the named parameter, NaN if it is absent.
func (ps *Params) Value(name string) float64 {
	if p, ok := ps.m[name]; ok {
		return p.Value
	}
	return math.NaN()
}

// ValueOr returns the value of the named parameter, or def if it is absent.
func (ps *Params) ValueOr(name string, def float64) float64 {
	if p, ok := ps.m[name]; ok {
		return p.Value
	}
	return def
}

// Len is the number of parameters.
func (ps *Params) Len() int {
	return len(ps.names)
}

// Names returns parameter names in insertion order.
func (ps *Params) Names() []string {
	return append([]string{}, ps.names...)
}

// All returns the parameters in insertion order.
func (ps *Params) All() []*Param {
	all := make([]*Param, len(ps.names))
	for i, n := range ps.names {
		all[i] = ps.m[n]
	}
	return all
}

// SetValue sets the value of a non-derived parameter and recomputes
// derived parameters.
func (ps *Params) SetValue(name string, v float64) error {
	p, ok := ps.m[name]
	switch {
	case !ok:
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	case p.derive != nil:
		return fmt.Errorf("%w: %s", ErrDerivedParameter, name)
	}
	p.Value = v
	return ps.ResolveExpressions()
}

// SetVary marks a parameter free or fixed.  Derived parameters cannot be
// made free.
func (ps *Params) SetVary(name string, vary bool) error {
	p, ok := ps.m[name]
	switch {
	case !ok:
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	case p.derive != nil && vary:
		return fmt.Errorf("%w: %s", ErrDerivedParameter, name)
	}
	p.Vary = vary && p.Min != p.Max
	return nil
}

// SetPrior attaches a Gaussian prior to any parameter, derived or not.
// A nil prior removes it.
func (ps *Params) SetPrior(name string, pr *Prior) error {
	p, ok := ps.m[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	if pr != nil && !(pr.Sigma > 0) {
		return fmt.Errorf("%w: %s: prior sigma must be positive",
			ErrInvalidKeyword, name)
	}
	p.Prior = pr
	return nil
}

// FreeNames returns names of the free parameters in insertion order.
func (ps *Params) FreeNames() []string {
	var fn []string
	for _, n := range ps.names {
		if ps.m[n].Free() {
			fn = append(fn, n)
		}
	}
	return fn
}

// FreeVector returns the values of the free parameters.
func (ps *Params) FreeVector() []float64 {
	var v []float64
	for _, n := range ps.names {
		if p := ps.m[n]; p.Free() {
			v = append(v, p.Value)
		}
	}
	return v
}

// SetFreeVector assigns the free parameters from v, in FreeNames order,
// then recomputes derived parameters.  Values are not checked against
// bounds.
func (ps *Params) SetFreeVector(v []float64) error {
	i := 0
	for _, n := range ps.names {
		if p := ps.m[n]; p.Free() {
			if i == len(v) {
				return fmt.Errorf("%w: got %d", ErrVectorLength, len(v))
			}
			p.Value = v[i]
			i++
		}
	}
	if i != len(v) {
		return fmt.Errorf("%w: got %d, want %d", ErrVectorLength, len(v), i)
	}
	return ps.ResolveExpressions()
}

// ResolveExpressions recomputes every derived parameter, dependencies
// first.
func (ps *Params) ResolveExpressions() error {
	if ps.order == nil {
		order, err := ps.sortDerived()
		if err != nil {
			return err
		}
		ps.order = order
	}
	for _, n := range ps.order {
		p := ps.m[n]
		p.Value = ps.derive(p)
	}
	return nil
}

func (ps *Params) derive(p *Param) float64 {
	in := make([]float64, len(p.derive.Inputs))
	for i, n := range p.derive.Inputs {
		in[i] = ps.Value(n)
	}
	return p.derive.F(in)
}

// sortDerived orders derived parameters so that every derived input
// precedes its dependents (Kahn's algorithm).
func (ps *Params) sortDerived() ([]string, error) {
	pending := make(map[string]int)
	dependents := make(map[string][]string)
	var ready []string
	for _, n := range ps.names {
		p := ps.m[n]
		if p.derive == nil {
			continue
		}
		c := 0
		for _, in := range p.derive.Inputs {
			q, ok := ps.m[in]
			if !ok {
				return nil, fmt.Errorf("%w: %s (input of %s)",
					ErrUnknownParameter, in, n)
			}
			if q.derive != nil {
				c++
				dependents[in] = append(dependents[in], n)
			}
		}
		pending[n] = c
		if c == 0 {
			ready = append(ready, n)
		}
	}
	order := make([]string, 0, len(pending))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, d := range dependents[n] {
			if pending[d]--; pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(order) != len(pending) {
		return nil, ErrCyclicExpression
	}
	return order, nil
}

// Copy returns a deep copy.  Derivation functions are shared.
func (ps *Params) Copy() *Params {
	c := &Params{
		names: append([]string{}, ps.names...),
		m:     make(map[string]*Param, len(ps.m)),
		order: append([]string(nil), ps.order...),
	}
	for n, p := range ps.m {
		c.m[n] = p.clone()
	}
	return c
}
