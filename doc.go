/*
Command transitfit fits models of exoplanet transits and eclipses to
normalized photometric time series and samples their posterior
distributions.

Contents

Version 0.1

  Program overview
  Command line usage
  Configuration file
  Light curve files
  Algorithm outline


Program overview

Input is a light curve, a table of times, normalized fluxes and flux errors,
optionally with the spacecraft roll angle at each time.  Output is a text
report of best fit model parameters, their uncertainties and correlations,
and optionally a file of posterior samples.

Two astrophysical models are available.  A transit model is the dimming of
the star as a planet crosses its disc, parameterized by mid-transit time T_0,
period P, depth D, width W, impact parameter b, and the limb darkening
coefficients h_1 and h_2.  An eclipse model is the loss of planet light as
the planet passes behind the star, parameterized by T_0, P, D, W, b and the
eclipse depth L.  Either is multiplied by a scale factor c and an
instrumental trend of linear and quadratic terms in time, and of roll angle
harmonics and of the other decorrelation columns, each of which is off unless
given a value.

A fit with the least-squares method is done first.  A glint model, a
periodic spline in roll angle for scattered light, can then be built from the
residuals and the fit repeated with it.  Finally an ensemble sampler can be
run from the least-squares result to map the posterior distribution,
optionally with a stochastic harmonic oscillator noise term modelled as a
Gaussian process.

Sample run:

  transitfit -c wasp.yaml -s wasp.csv

writes a report like,

  [[Fit statistics]]
      method                 leastsq
      function evals         233
      data points            1821
      variables              5
      chi-square             1830.1234
      reduced chi-square     1.0078
      ...
  [[Variables]]
      T_0:         0.0012112 +/- 4.1e-05 (3.39%) (init = 0)
      P:           1 (fixed)
      D:           0.010075 +/- 3.6e-05 (0.36%) (init = 0.01)
      ...

followed by a report of the same form for the sampler.


Command line usage

  Usage: transitfit [options] [lightcurve-file]

  Options:
    -c, --config string       YAML config file
        --chain string        write the sampler chain to this file
    -l, --log-level string    log level, overrides config
        --log-format string   log format, console or json
    -s, --sample              run the sampler after the fit
        --seed uint           sampler random seed
    -v, --version             display version and copyright

Command line options take precedence over the configuration file.  Naming a
chain file implies -s.  Logging goes to stderr, the report to stdout.
An interrupt stops a running sampler and ends the program with an error.


Configuration file

The configuration file is YAML.  All keys are optional except the light
curve file, which may be given on the command line instead.  Defaults are
shown.

  log:
    level: info          # trace, debug, info, warn, error, disabled
    format: console      # or json
  lightcurve:
    file: ""
    cache: ""            # write the prepared light curve here
    clip: 0              # sigma clip level, 0 for no clipping
    clip_width: 11       # median filter width for clipping
    mask_centre: 0       # flatten: centre and width of the masked transit
    mask_width: 0
    flatten_npoly: 0     # flatten: polynomial degree, 0 for no flattening
    normalize: false     # divide flux and flux_err by the median flux
    decorr: []           # decorrelation terms divided out before fitting,
                         # or [auto] for those found significant
    decorr_cut: 20       # auto: largest percent error of a significant term
  target:
    ra_deg:              # needed for moon glint, reported when given
    dec_deg:
  model:
    kind: transit        # or eclipse
    method: leastsq      # or nelder
    params: {}           # parameter name: keyword
    logrho_prior: ""     # transit only, "mean +/- sigma"
    max_fev: 0           # 0 for 2000 * (variables + 1)
  glint:
    enabled: false
    nspline: 8
    moon: false          # spline in angle from the moon, not roll angle
    angle0:              # phase offset, degrees
    gapmax: 30           # largest angle gap in the spline, degrees
    fit_flux: false      # build from flux over fit, not residuals
    scale: "(0, 2)"      # keyword for glint_scale in the refit
  sampler:
    enabled: false
    nwalkers: 64         # must be even
    steps: 128
    burn: 256
    thin: 4
    init_scale: 0.001
    seed:                # default from the clock
    workers: 0           # 0 for GOMAXPROCS
    shoterm: false
    log_sigma: ""        # keywords for the noise parameters
    log_s0: ""
    log_omega0: ""
    log_q: ""
  output:
    chain: ""

Parameter keywords have four forms:

  1.5                 fixed at 1.5
  (0, 0.1)            free between 0 and 0.1, starting at the midpoint
  (0, 0.02, 0.1)      free between 0 and 0.1, starting at 0.02
  0.01 +/- 0.002      free, with a Gaussian prior, starting at 0.01

The plus-minus sign may be used in place of +/-.


Light curve files

A light curve file is CSV with a header line naming the columns.  time,
flux and flux_err are required.  Optional columns are roll_angle, and xoff,
yoff, bg and contam for the decorrelation terms.  A bjd column may be given in
place of time, in which case times are made relative to the integer part of
the first value and the reference is kept for reporting.  Other columns are
ignored and lines beginning with # are comments.  A file name ending in .gob
is read as a cache written by lightcurve.cache, in which the light curve is
stored in gob format after clipping, flattening and decorrelation.

The chain file is also gob format.  It holds the free parameter names, the
sampler settings, and the thinned samples and log probabilities from all
walkers, step major.


Algorithm outline

0.  The light curve is optionally normalized, sigma clipped, flattened and
decorrelated, in that order.  Decorrelation fits c times the instrumental
trend alone, with the named coefficients free, and divides flux and
flux_err by the fit.  With auto, the terms in centroid x and y and roll
angle are each fitted in every combination, and a term whose standard error
is under decorr_cut percent of its value in any of those fits is used; the
two roll angle terms are used together.

1.  Parameters are given values and bounds from keywords, or by default from
the light curve: T_0 at the median time, D from the minimum flux, the light
curve duration as an upper bound on W, and so on.  The derived quantities k, aR,
sini and logrho, or L for eclipses, are computed from the free parameters
and not fitted.

2.  The least-squares fit minimizes residuals (flux - model)/flux_err, with a
residual (value - mean)/sigma appended for each parameter with a prior.
Bounded parameters are mapped to unbounded ones with sine and square root
transforms.  The default method is Levenberg-Marquardt with a finite
difference Jacobian; the alternative is Nelder-Mead.  Uncertainties and
correlations come from the covariance, the inverse of J'J scaled by the
reduced chi-square.

3.  The posterior is the log likelihood plus a log prior.  The log prior
includes a term for the probability of the transit parameters D, W and b,
Gaussian priors on parameters, and is -Inf outside of bounds.  The
likelihood is Gaussian with flux_err inflated by the jitter exp(log_sigma),
or if the SHO term is on, a Gaussian process with that kernel computed by
the celerite method in linear time.

4.  The sampler is the affine invariant ensemble stretch move.  Walkers start
in a small ball around the least-squares values, each retried until it has
finite probability.  After burn-in, production steps are thinned and
recorded.  Results are the median and the 15.87 and 84.13 percentile
interval of each free parameter, and the sample with the highest
probability.

-------------
Public domain.
*/
package main
