// Public domain.

package tfglint

import (
	"math"

	"github.com/soniakeys/astro"
	"github.com/soniakeys/coord"
	mcoord "github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/unit"
)

// Target is a fixed sky position, equatorial coordinates of date.
type Target struct {
	RA  unit.RA
	Dec unit.Angle
}

func unitCart(ra, dec float64) coord.Cart {
	sr, cr := math.Sincos(ra)
	sd, cd := math.Sincos(dec)
	return coord.Cart{X: cd * cr, Y: cd * sr, Z: sd}
}

// MoonPosition returns the apparent direction of the Moon as seen from
// the target: its position angle, east of north, and angular separation.
// jde is a Julian ephemeris day; BJD on the TDB scale is close enough.
//
// Geocentric Moon position, nutation in longitude is ignored.
func MoonPosition(jde float64, t Target) (pa, sep unit.Angle) {
	λ, β, _ := moonposition.Position(jde)
	sε, cε := math.Sincos(nutation.MeanObliquity(jde).Rad())
	α, δ := mcoord.EclToEq(λ, β, sε, cε)

	tc := unitCart(t.RA.Rad(), t.Dec.Rad())
	mc := unitCart(α.Rad(), δ.Rad())
	sep = unit.Angle(math.Acos(math.Max(-1, math.Min(1, tc.Dot(&mc)))))

	sd, cd := math.Sincos(t.Dec.Rad())
	sΔ, cΔ := math.Sincos(α.Rad() - t.RA.Rad())
	pa = unit.Angle(math.Atan2(math.Cos(δ.Rad())*sΔ,
		cd*math.Sin(δ.Rad())-sd*math.Cos(δ.Rad())*cΔ))
	return
}

// MoonAngles converts roll angles in degrees at times bjd to angles
// relative to the direction of the Moon, also in degrees.
func MoonAngles(bjd, roll []float64, t Target) []float64 {
	out := make([]float64, len(roll))
	for i, r := range roll {
		pa, _ := MoonPosition(bjd[i], t)
		out[i] = r - pa.Deg()
	}
	return out
}

// SunSeparation is the angular distance of the target from the Sun at
// modified Julian date mjd, from the low precision solar ephemeris.
func SunSeparation(mjd float64, t Target) unit.Angle {
	// geocentric direction of the Sun, J2000 equatorial
	se, _, _ := astro.Se2000(mjd)
	tc := unitCart(t.RA.Rad(), t.Dec.Rad())
	c := tc.Dot(&se) / math.Sqrt(se.Square())
	return unit.Angle(math.Acos(math.Max(-1, math.Min(1, c))))
}
