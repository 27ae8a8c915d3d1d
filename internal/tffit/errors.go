// Public domain.

package tffit

import "errors"

var (
	ErrMissingLightCurve    = errors.New("no light curve loaded")
	ErrMissingModel         = errors.New("no least-squares fit to start from")
	ErrMissingGlintModel    = errors.New("glint_scale given but no glint model built")
	ErrWalkerInitialization = errors.New("walker initialization failed")
	ErrNoFreeParameters     = errors.New("no free parameters")
	ErrMisaligned           = errors.New("arrays differ in length")
	ErrUnknownKeyword       = errors.New("parameter not accepted by this fit")
)
