// Public domain.

// Package tffit fits transit and eclipse models to a light curve, by least
// squares and by sampling the posterior with an ensemble sampler.
//
// A fit returns a FitOutcome, either an *LSResult or a *SampleResult.
// Anything needing "the last fit", such as building the glint model from
// residuals or starting the sampler, takes the outcome explicitly.
package tffit

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/soniakeys/transitfit/internal/tfglint"
	"github.com/soniakeys/transitfit/internal/tflc"
)

// Dataset is a light curve and the glint model built for it, if any.
type Dataset struct {
	Log zerolog.Logger

	lc    *tflc.LightCurve
	glint *tfglint.Result
}

// NewDataset returns a dataset for lc.  lc may be nil and set later.
func NewDataset(lc *tflc.LightCurve) (*Dataset, error) {
	d := &Dataset{Log: zerolog.Nop()}
	if lc == nil {
		return d, nil
	}
	return d, d.SetLightCurve(lc)
}

// SetLightCurve validates and replaces the light curve.  Any glint model
// is discarded.
func (d *Dataset) SetLightCurve(lc *tflc.LightCurve) error {
	if lc == nil {
		return ErrMissingLightCurve
	}
	if err := lc.Validate(); err != nil {
		return err
	}
	d.lc = lc
	d.glint = nil
	return nil
}

// LightCurve returns the current light curve, possibly nil.
func (d *Dataset) LightCurve() *tflc.LightCurve {
	return d.lc
}

// Glint returns the current glint model, possibly nil.
func (d *Dataset) Glint() *tfglint.Result {
	return d.glint
}

func (d *Dataset) requireLC() error {
	if d.lc == nil {
		return ErrMissingLightCurve
	}
	return nil
}

// MaskData removes points where mask is true.
func (d *Dataset) MaskData(mask []bool) error {
	if err := d.requireLC(); err != nil {
		return err
	}
	lc, n, err := d.lc.Mask(mask)
	if err != nil {
		return err
	}
	d.Log.Info().Int("points", n).Msg("masked")
	return d.SetLightCurve(lc)
}

// ClipOutliers removes points far from a running median of the flux.
func (d *Dataset) ClipOutliers(clip float64, width int) error {
	if err := d.requireLC(); err != nil {
		return err
	}
	lc, n, thresh := d.lc.ClipOutliers(clip, width)
	d.Log.Info().Int("points", n).Float64("threshold", thresh).
		Msg("rejected outliers")
	return d.SetLightCurve(lc)
}

// Flatten renormalizes the flux by a polynomial fit outside a window
// around the event.
func (d *Dataset) Flatten(maskCentre, maskWidth float64, npoly int) error {
	if err := d.requireLC(); err != nil {
		return err
	}
	lc := d.lc.Copy()
	if err := lc.Flatten(maskCentre, maskWidth, npoly); err != nil {
		return err
	}
	return d.SetLightCurve(lc)
}

// AddGlint fits a glint model to the residuals of last, or with fitFlux
// to flux-1, and keeps it for fits that include glint_scale.
func (d *Dataset) AddGlint(last FitOutcome, fitFlux bool, o tfglint.Options) (*tfglint.Result, error) {
	if err := d.requireLC(); err != nil {
		return nil, err
	}
	lc := d.lc
	y := make([]float64, lc.Len())
	switch {
	case fitFlux:
		for i, f := range lc.Flux {
			y[i] = f - 1
		}
	case last == nil:
		return nil, fmt.Errorf("%w: glint from residuals", ErrMissingModel)
	default:
		fit := last.Fit().BestFit
		if len(fit) != len(y) {
			return nil, fmt.Errorf("%w: fit %d, light curve %d",
				ErrMisaligned, len(fit), len(y))
		}
		for i, f := range lc.Flux {
			y[i] = f - fit[i]
		}
	}
	o.BJDRef = lc.BJDRef
	g, err := tfglint.Build(lc.Time, lc.RollAngle, y, o)
	if err != nil {
		return nil, err
	}
	d.Log.Info().Float64("angle0", g.Angle0).Bool("moon", o.Moon).
		Msg("glint model")
	d.glint = g
	return g, nil
}
