// Public domain.

package tfprog

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/soniakeys/transitfit/internal/tffit"
	"github.com/soniakeys/transitfit/internal/tfparam"
)

// Config is the YAML run configuration.  Zero values take the defaults in
// the struct tags, so an explicit 0 for a field with a non-zero default is
// not possible.
type Config struct {
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error disabled"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`

	LightCurve struct {
		File         string   `yaml:"file" validate:"required"`
		Cache        string   `yaml:"cache"`
		Clip         float64  `yaml:"clip" validate:"gte=0"`
		ClipWidth    int      `yaml:"clip_width" default:"11" validate:"gte=1"`
		MaskCentre   float64  `yaml:"mask_centre"`
		MaskWidth    float64  `yaml:"mask_width" validate:"gte=0"`
		FlattenNPoly int      `yaml:"flatten_npoly" validate:"gte=0,lte=10"`
		Normalize    bool     `yaml:"normalize"`
		Decorr       []string `yaml:"decorr" validate:"dive,oneof=auto dfdt d2fdt2 dfdbg dfdcontam dfdx dfdy d2fdx2 d2fdy2 dfdsinphi dfdcosphi dfdsin2phi dfdcos2phi dfdsin3phi dfdcos3phi"`
		DecorrCut    float64  `yaml:"decorr_cut" default:"20" validate:"gt=0"`
	} `yaml:"lightcurve"`

	Target struct {
		RADeg  *float64 `yaml:"ra_deg" validate:"omitempty,gte=0,lt=360"`
		DecDeg *float64 `yaml:"dec_deg" validate:"omitempty,gte=-90,lte=90"`
	} `yaml:"target"`

	Model struct {
		Kind        string            `yaml:"kind" default:"transit" validate:"oneof=transit eclipse"`
		Method      string            `yaml:"method" default:"leastsq" validate:"oneof=leastsq nelder"`
		Params      map[string]string `yaml:"params"`
		LogRhoPrior string            `yaml:"logrho_prior"`
		MaxFev      int               `yaml:"max_fev" validate:"gte=0"`
	} `yaml:"model"`

	Glint struct {
		Enabled bool     `yaml:"enabled"`
		NSpline int      `yaml:"nspline" default:"8" validate:"gte=1"`
		Moon    bool     `yaml:"moon"`
		Angle0  *float64 `yaml:"angle0"`
		GapMax  float64  `yaml:"gapmax" default:"30" validate:"gt=0"`
		FitFlux bool     `yaml:"fit_flux"`
		Scale   string   `yaml:"scale" default:"(0, 2)"`
	} `yaml:"glint"`

	Sampler struct {
		Enabled   bool    `yaml:"enabled"`
		NWalkers  int     `yaml:"nwalkers" default:"64" validate:"gte=2"`
		Steps     int     `yaml:"steps" default:"128" validate:"gte=1"`
		Burn      int     `yaml:"burn" default:"256" validate:"gte=0"`
		Thin      int     `yaml:"thin" default:"4" validate:"gte=1"`
		InitScale float64 `yaml:"init_scale" default:"0.001" validate:"gt=0"`
		Seed      *uint64 `yaml:"seed"`
		Workers   int     `yaml:"workers" validate:"gte=0"`
		SHOTerm   bool    `yaml:"shoterm"`
		LogSigma  string  `yaml:"log_sigma"`
		LogS0     string  `yaml:"log_s0"`
		LogOmega0 string  `yaml:"log_omega0"`
		LogQ      string  `yaml:"log_q"`
	} `yaml:"sampler"`

	Output struct {
		Chain string `yaml:"chain"`
	} `yaml:"output"`
}

var validate = validator.New()

// ParseConfig parses YAML and fills defaults.  It does not validate, so
// command line settings can be applied first.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// LoadConfig reads a YAML config file.  An empty name is a config of
// defaults.
func LoadConfig(fn string) (*Config, error) {
	if fn == "" {
		return ParseConfig(nil)
	}
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(b)
}

// Validate checks field constraints and that keyword text parses.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if len(c.LightCurve.Decorr) > 1 && slices.Contains(c.LightCurve.Decorr, "auto") {
		return fmt.Errorf("validate config: lightcurve.decorr auto must be alone")
	}
	if c.Sampler.NWalkers%2 != 0 {
		return fmt.Errorf("validate config: sampler.nwalkers must be even, got %d",
			c.Sampler.NWalkers)
	}
	if c.Glint.Moon && (c.Target.RADeg == nil || c.Target.DecDeg == nil) {
		return fmt.Errorf("validate config: glint.moon needs target ra_deg and dec_deg")
	}
	if _, err := c.keywords(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.logRhoPrior(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.samplerOptions(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := optKeyword("glint.scale", c.Glint.Scale); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (c *Config) keywords() (tffit.Keywords, error) {
	kw := make(tffit.Keywords, len(c.Model.Params))
	names := make([]string, 0, len(c.Model.Params))
	for n := range c.Model.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		k, err := tfparam.ParseKeyword(c.Model.Params[n])
		if err != nil {
			return nil, fmt.Errorf("model.params.%s: %w", n, err)
		}
		kw[n] = k
	}
	return kw, nil
}

func (c *Config) logRhoPrior() (*tfparam.Prior, error) {
	if c.Model.LogRhoPrior == "" {
		return nil, nil
	}
	k, err := tfparam.ParseKeyword(c.Model.LogRhoPrior)
	if err != nil {
		return nil, fmt.Errorf("model.logrho_prior: %w", err)
	}
	g, ok := k.(tfparam.Gaussian)
	if !ok {
		return nil, fmt.Errorf("model.logrho_prior: %w: want mean +/- sigma",
			tfparam.ErrInvalidKeyword)
	}
	return &tfparam.Prior{Mean: g.Mean, Sigma: g.Sigma}, nil
}

func (c *Config) fitOptions() (tffit.FitOptions, error) {
	var o tffit.FitOptions
	var err error
	if o.Params, err = c.keywords(); err != nil {
		return o, err
	}
	if c.Model.Kind == "transit" {
		if o.LogRhoPrior, err = c.logRhoPrior(); err != nil {
			return o, err
		}
	}
	if o.Method, err = tffit.ParseMethod(c.Model.Method); err != nil {
		return o, err
	}
	o.MaxFev = c.Model.MaxFev
	return o, nil
}

// optional keyword text, nil if empty
func optKeyword(field, s string) (tfparam.Keyword, error) {
	if s == "" {
		return nil, nil
	}
	k, err := tfparam.ParseKeyword(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return k, nil
}

func (c *Config) samplerOptions() (tffit.SamplerOptions, error) {
	s := c.Sampler
	o := tffit.DefaultSamplerOptions()
	o.NWalkers, o.Steps, o.Burn, o.Thin = s.NWalkers, s.Steps, s.Burn, s.Thin
	o.InitScale = s.InitScale
	o.Workers = s.Workers
	o.SHOTerm = s.SHOTerm
	if s.Seed != nil {
		o.Seed = *s.Seed
	} else {
		o.Seed = uint64(time.Now().UnixNano())
	}
	var err error
	for _, k := range []struct {
		dst        *tfparam.Keyword
		field, txt string
	}{
		{&o.LogSigma, "sampler.log_sigma", s.LogSigma},
		{&o.LogS0, "sampler.log_s0", s.LogS0},
		{&o.LogOmega0, "sampler.log_omega0", s.LogOmega0},
		{&o.LogQ, "sampler.log_q", s.LogQ},
	} {
		if *k.dst, err = optKeyword(k.field, k.txt); err != nil {
			return o, err
		}
	}
	return o, nil
}
