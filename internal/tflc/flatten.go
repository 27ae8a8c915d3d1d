// Public domain.

package tflc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrTooFewPoints = errors.New("too few points outside mask")

// Flatten renormalizes Flux and FluxErr by a polynomial of npoly terms
// fit to the points outside the window of full width maskWidth centred on
// maskCentre.  The fitted polynomial is evaluated at every point.
func (lc *LightCurve) Flatten(maskCentre, maskWidth float64, npoly int) error {
	if npoly < 1 {
		npoly = 1
	}
	var tx, fx []float64
	for i, t := range lc.Time {
		if math.Abs(t-maskCentre) > maskWidth/2 {
			tx = append(tx, t)
			fx = append(fx, lc.Flux[i])
		}
	}
	if len(tx) < npoly {
		return fmt.Errorf("%w: %d points, %d terms",
			ErrTooFewPoints, len(tx), npoly)
	}
	// Centre times for conditioning.
	t0 := (tx[0] + tx[len(tx)-1]) / 2
	a := mat.NewDense(len(tx), npoly, nil)
	for i, t := range tx {
		p := 1.
		for j := 0; j < npoly; j++ {
			a.Set(i, j, p)
			p *= t - t0
		}
	}
	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(len(fx), fx)); err != nil {
		return err
	}
	for i, t := range lc.Time {
		n := 0.
		for j := npoly - 1; j >= 0; j-- {
			n = n*(t-t0) + c.AtVec(j)
		}
		lc.Flux[i] /= n
		lc.FluxErr[i] /= n
	}
	return nil
}
