// Public domain.

// Package tflc defines the light curve consumed by the fitter, with
// loading, caching and simple cleaning operations.
package tflc

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

var (
	ErrMisaligned = errors.New("light curve columns differ in length")
	ErrEmpty      = errors.New("light curve has no points")
)

// LightCurve holds aligned per-sample columns.  Time is relative to BJDRef.
// Flux and FluxErr are normalized to a median flux of about 1.  RollAngle
// is in degrees.
type LightCurve struct {
	Time, Flux, FluxErr []float64
	XOff, YOff          []float64 // centroid offsets
	Bg, Contam          []float64 // background, contamination fraction
	RollAngle           []float64
	BJDRef              float64
	Aperture            string
}

// Len is the number of samples.
func (lc *LightCurve) Len() int {
	return len(lc.Time)
}

func (lc *LightCurve) columns() []*[]float64 {
	return []*[]float64{
		&lc.Time, &lc.Flux, &lc.FluxErr,
		&lc.XOff, &lc.YOff, &lc.Bg, &lc.Contam, &lc.RollAngle,
	}
}

// Validate checks that there are samples and all columns are aligned.
// Missing auxiliary columns are filled with zeros.
func (lc *LightCurve) Validate() error {
	n := len(lc.Time)
	if n == 0 {
		return ErrEmpty
	}
	for i, c := range lc.columns() {
		switch {
		case len(*c) == n:
		case len(*c) == 0 && i > 2:
			*c = make([]float64, n)
		default:
			return fmt.Errorf("%w: %d time values, %d in column %d",
				ErrMisaligned, n, len(*c), i)
		}
	}
	return nil
}

// Copy returns a deep copy.
func (lc *LightCurve) Copy() *LightCurve {
	c := *lc
	for _, col := range c.columns() {
		*col = append([]float64(nil), *col...)
	}
	return &c
}

// Mask returns the light curve without the points where mask is true,
// and the number of points removed.
func (lc *LightCurve) Mask(mask []bool) (*LightCurve, int, error) {
	if len(mask) != lc.Len() {
		return nil, 0, fmt.Errorf("%w: mask %d, light curve %d",
			ErrMisaligned, len(mask), lc.Len())
	}
	keep := make([]bool, len(mask))
	n := 0
	for i, m := range mask {
		keep[i] = !m
		if m {
			n++
		}
	}
	return lc.subset(keep), n, nil
}

func (lc *LightCurve) subset(keep []bool) *LightCurve {
	c := *lc
	for _, col := range c.columns() {
		src := *col
		var dst []float64
		for i, k := range keep {
			if k && i < len(src) {
				dst = append(dst, src[i])
			}
		}
		*col = dst
	}
	return &c
}

// ClipOutliers removes points further than clip times the mean absolute
// deviation from a running median of width points.  It returns the
// clipped light curve, the number of points rejected and the clipping
// threshold.
//
// The running median is of flux-1, zero padded at the ends.
func (lc *LightCurve) ClipOutliers(clip float64, width int) (*LightCurve, int, float64) {
	if width%2 == 0 {
		width++
	}
	n := lc.Len()
	y := make([]float64, n)
	for i, f := range lc.Flux {
		y[i] = f - 1
	}
	d := make([]float64, n)
	var sum float64
	win := make([]float64, width)
	h := width / 2
	for i := range y {
		for j := range win {
			k := i - h + j
			if k < 0 || k >= n {
				win[j] = 0
			} else {
				win[j] = y[k]
			}
		}
		sort.Float64s(win)
		d[i] = math.Abs(win[h] + 1 - lc.Flux[i])
		sum += d[i]
	}
	mad := sum / float64(n)
	keep := make([]bool, n)
	rejected := 0
	for i, di := range d {
		keep[i] = di < clip*mad
		if !keep[i] {
			rejected++
		}
	}
	return lc.subset(keep), rejected, clip * mad
}

// Normalize divides Flux and FluxErr by the median flux and returns it.
func (lc *LightCurve) Normalize() float64 {
	m := median(lc.Flux)
	for i := range lc.Flux {
		lc.Flux[i] /= m
		lc.FluxErr[i] /= m
	}
	return m
}

func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	s := append([]float64{}, x...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// ReadFile reads a light curve cached by WriteFile.
func ReadFile(fn string) (*LightCurve, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lc LightCurve
	if err = gob.NewDecoder(f).Decode(&lc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fn, err)
	}
	return &lc, lc.Validate()
}

// WriteFile caches a light curve in gob format.
func WriteFile(fn string, lc *LightCurve) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(f).Encode(lc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
