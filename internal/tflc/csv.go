// Public domain.

package tflc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var ErrMissingColumn = errors.New("missing required column")

// ReadCSV reads a light curve from comma separated text with a header line.
// Recognized column names, case insensitive:
//
//   time or bjd, flux, flux_err, xoff, yoff, bg, contam, roll_angle
//
// time is taken as already relative to some reference.  With bjd instead,
// BJDRef is set to the integer part of the first value and Time is made
// relative to it.  Other columns are ignored.  Lines starting with # are
// comments.
func ReadCSV(r io.Reader) (*LightCurve, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	lc := &LightCurve{}
	bjd := false
	cols := make([]*[]float64, len(hdr))
	for i, h := range hdr {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "time":
			cols[i] = &lc.Time
		case "bjd":
			cols[i] = &lc.Time
			bjd = true
		case "flux":
			cols[i] = &lc.Flux
		case "flux_err":
			cols[i] = &lc.FluxErr
		case "xoff":
			cols[i] = &lc.XOff
		case "yoff":
			cols[i] = &lc.YOff
		case "bg":
			cols[i] = &lc.Bg
		case "contam":
			cols[i] = &lc.Contam
		case "roll_angle":
			cols[i] = &lc.RollAngle
		}
	}
	for _, req := range []struct {
		col  *[]float64
		name string
	}{{&lc.Time, "time"}, {&lc.Flux, "flux"}, {&lc.FluxErr, "flux_err"}} {
		found := false
		for _, c := range cols {
			found = found || c == req.col
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, req.name)
		}
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, c := range cols {
			if c == nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, hdr[i], err)
			}
			*c = append(*c, v)
		}
	}
	if bjd && len(lc.Time) > 0 {
		lc.BJDRef = math.Floor(lc.Time[0])
		for i := range lc.Time {
			lc.Time[i] -= lc.BJDRef
		}
	}
	return lc, lc.Validate()
}

// ReadCSVFile opens fn and calls ReadCSV.
func ReadCSVFile(fn string) (*LightCurve, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lc, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return lc, nil
}
