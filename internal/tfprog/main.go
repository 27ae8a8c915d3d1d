// Public domain.

// Package tfprog is the transitfit command.
package tfprog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/soniakeys/exit"
	"github.com/spf13/pflag"

	"github.com/soniakeys/transitfit/internal/tffit"
	"github.com/soniakeys/transitfit/internal/tfglint"
	"github.com/soniakeys/transitfit/internal/tflc"
)

const versionString = "transitfit version 0.1"
const copyrightString = "Public domain."

func Main() {
	defer exit.Handler()

	cfg, err := commandLine(os.Args[1:], os.Stderr)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err != nil:
		exit.Log(err)
	case cfg == nil: // version
		return
	}
	log, err := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		exit.Log(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := Run(ctx, cfg, os.Stdout, log); err != nil {
		exit.Log(err)
	}
}

// commandLine loads the config named by -c and applies flags over it.
// It returns nil, nil after printing the version.
func commandLine(args []string, stderr io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet("transitfit", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fn := fs.StringP("config", "c", "", "YAML config file")
	level := fs.StringP("log-level", "l", "", "log level, overrides config")
	format := fs.String("log-format", "", "log format, console or json")
	chain := fs.String("chain", "", "write the sampler chain to this file")
	sample := fs.BoolP("sample", "s", false, "run the sampler after the fit")
	seed := fs.Uint64("seed", 0, "sampler random seed")
	version := fs.BoolP("version", "v", false, "display version and copyright")
	fs.Usage = func() {
		fmt.Fprint(stderr, `
Usage: transitfit [options] [lightcurve-file]

A light curve file given here overrides lightcurve.file of the config.
Files ending in .gob are read as a light curve cache, others as CSV.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *version {
		fmt.Fprintln(stderr, versionString)
		fmt.Fprintln(stderr, copyrightString)
		return nil, nil
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return nil, fmt.Errorf("more than one light curve file")
	}
	c, err := LoadConfig(*fn)
	if err != nil {
		return nil, err
	}
	if fs.NArg() == 1 {
		c.LightCurve.File = fs.Arg(0)
	}
	if *level != "" {
		c.Log.Level = *level
	}
	if *format != "" {
		c.Log.Format = *format
	}
	if *chain != "" {
		c.Output.Chain = *chain
	}
	if *sample || c.Output.Chain != "" {
		c.Sampler.Enabled = true
	}
	if fs.Changed("seed") {
		c.Sampler.Seed = seed
	}
	return c, c.Validate()
}

func newLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func readLightCurve(fn string) (*tflc.LightCurve, error) {
	if strings.HasSuffix(fn, ".gob") {
		return tflc.ReadFile(fn)
	}
	return tflc.ReadCSVFile(fn)
}

// decorr divides out the systematics model with the given terms.  "auto"
// takes the terms ShouldDecorr finds significant, both roll angle terms if
// either is.
func decorr(d *tffit.Dataset, terms []string, cut float64) error {
	if len(terms) == 1 && terms[0] == "auto" {
		found, err := d.ShouldDecorr(cut)
		if err != nil {
			return err
		}
		terms = terms[:0:0]
		for _, n := range found {
			if n != "dfdsinphi" && n != "dfdcosphi" {
				terms = append(terms, n)
			}
		}
		if slices.Contains(found, "dfdsinphi") || slices.Contains(found, "dfdcosphi") {
			terms = append(terms, "dfdsinphi", "dfdcosphi")
		}
		if len(terms) == 0 {
			return nil
		}
	}
	_, err := d.Decorr(terms)
	return err
}

// Run prepares the light curve, fits it, optionally builds a glint model
// and refits, and optionally samples the posterior.  Reports go to w.
func Run(ctx context.Context, c *Config, w io.Writer, log zerolog.Logger) error {
	lc, err := readLightCurve(c.LightCurve.File)
	if err != nil {
		return err
	}
	log.Info().Str("file", c.LightCurve.File).Int("points", lc.Len()).
		Msg("light curve")
	if c.LightCurve.Normalize {
		m := lc.Normalize()
		log.Info().Float64("median_flux", m).Msg("normalized")
	}
	d, err := tffit.NewDataset(lc)
	if err != nil {
		return err
	}
	d.Log = log
	lcc := c.LightCurve
	if lcc.Clip > 0 {
		if err := d.ClipOutliers(lcc.Clip, lcc.ClipWidth); err != nil {
			return err
		}
	}
	if lcc.FlattenNPoly > 0 {
		err := d.Flatten(lcc.MaskCentre, lcc.MaskWidth, lcc.FlattenNPoly)
		if err != nil {
			return err
		}
	}
	if len(lcc.Decorr) > 0 {
		if err := decorr(d, lcc.Decorr, lcc.DecorrCut); err != nil {
			return err
		}
	}
	if lcc.Cache != "" {
		if err := tflc.WriteFile(lcc.Cache, d.LightCurve()); err != nil {
			return err
		}
	}

	fo, err := c.fitOptions()
	if err != nil {
		return err
	}
	fit := d.FitTransit
	if c.Model.Kind == "eclipse" {
		fit = d.FitEclipse
	}
	r, err := fit(fo)
	if err != nil {
		return err
	}
	tgt, haveTarget := target(c)
	if c.Glint.Enabled {
		o := tfglint.DefaultOptions()
		o.NSpline = c.Glint.NSpline
		o.GapMax = c.Glint.GapMax
		if c.Glint.Angle0 != nil {
			o.Angle0 = *c.Glint.Angle0
		}
		o.Moon = c.Glint.Moon
		o.Target = tgt
		if _, err := d.AddGlint(r, c.Glint.FitFlux, o); err != nil {
			return err
		}
		k, err := optKeyword("glint.scale", c.Glint.Scale)
		if err != nil {
			return err
		}
		if k != nil {
			fo.Params["glint_scale"] = k
		}
		if r, err = fit(fo); err != nil {
			return err
		}
	}
	writeReport(w, r)
	if haveTarget {
		writeTarget(w, tgt, d.LightCurve())
	}

	if !c.Sampler.Enabled {
		return nil
	}
	so, err := c.samplerOptions()
	if err != nil {
		return err
	}
	s, err := d.Sample(ctx, r, so)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	writeReport(w, s)
	if c.Output.Chain != "" {
		if err := WriteChain(c.Output.Chain, s); err != nil {
			return err
		}
		log.Info().Str("file", c.Output.Chain).Int("rows", len(s.Chain)).
			Msg("chain written")
	}
	return nil
}
