// Public domain.

package tffit

import "math"

// bound maps a parameter with optional bounds to an unconstrained internal
// variable and back, the transformations used by MINUIT.
type bound struct {
	min, max float64
}

func (b bound) lower() bool { return !math.IsInf(b.min, -1) }
func (b bound) upper() bool { return !math.IsInf(b.max, 1) }

// external value for internal x
func (b bound) ext(x float64) float64 {
	switch {
	case b.lower() && b.upper():
		return b.min + (math.Sin(x)+1)*(b.max-b.min)/2
	case b.lower():
		return b.min - 1 + math.Sqrt(x*x+1)
	case b.upper():
		return b.max + 1 - math.Sqrt(x*x+1)
	}
	return x
}

// internal value for external v, v clamped to the bounds
func (b bound) int(v float64) float64 {
	v = math.Max(b.min, math.Min(b.max, v))
	switch {
	case b.lower() && b.upper():
		return math.Asin(2*(v-b.min)/(b.max-b.min) - 1)
	case b.lower():
		d := v - b.min + 1
		return math.Sqrt(d*d - 1)
	case b.upper():
		d := b.max - v + 1
		return math.Sqrt(d*d - 1)
	}
	return v
}

// dv/dx, the derivative of the external value at internal x
func (b bound) grad(x float64) float64 {
	switch {
	case b.lower() && b.upper():
		return math.Cos(x) * (b.max - b.min) / 2
	case b.lower():
		return x / math.Sqrt(x*x+1)
	case b.upper():
		return -x / math.Sqrt(x*x+1)
	}
	return 1
}

type bounds []bound

func (bs bounds) ext(x, v []float64) []float64 {
	for i, b := range bs {
		v[i] = b.ext(x[i])
	}
	return v
}

func (bs bounds) int(v []float64) []float64 {
	x := make([]float64, len(v))
	for i, b := range bs {
		x[i] = b.int(v[i])
	}
	return x
}
