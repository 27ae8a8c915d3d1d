// Public domain.

// Package tfmcmc implements the affine invariant ensemble sampler of
// Goodman & Weare 2010 with the stretch move, as popularized by
// emcee (Foreman-Mackey et al. 2013).
//
// Walkers are split into two halves.  Each half is updated in turn using
// positions of the other, so proposals within a half are independent and
// their log probabilities are evaluated concurrently.  Random numbers are
// drawn from a single source in a fixed order so a run is repeatable for
// a given seed regardless of the number of workers.
package tfmcmc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/rs/zerolog"
	xrand "golang.org/x/exp/rand"
)

var (
	ErrWalkers   = errors.New("invalid number of walkers")
	ErrPositions = errors.New("invalid initial positions")
	ErrNotReady  = errors.New("sampler has no positions")
)

// LogProb is an unnormalized log probability density.  It must be safe for
// concurrent use.  Non-finite or NaN values reject a proposal.
type LogProb func(x []float64) float64

// Sampler holds the ensemble state between runs.
type Sampler struct {
	nWalkers, nDim int
	lp             LogProb
	rnd            *xrand.Rand

	// A is the stretch scale parameter.
	A float64
	// Workers is the number of concurrent evaluations, GOMAXPROCS if zero.
	Workers int
	Log     zerolog.Logger

	pos      [][]float64
	lps      []float64
	accepted []int
	tried    int
}

// Chain is the stored output of a run, flattened step major, walker minor:
// row s*NWalkers+w is walker w at stored step s.
type Chain struct {
	NWalkers, NDim int
	Samples        [][]float64
	LogProb        []float64
}

// Steps is the number of stored steps.
func (c *Chain) Steps() int {
	if c.NWalkers == 0 {
		return 0
	}
	return len(c.Samples) / c.NWalkers
}

// New returns a sampler for nWalkers walkers in nDim dimensions.  nWalkers
// must be even and at least 2·nDim.
func New(nWalkers, nDim int, lp LogProb, rnd *xrand.Rand) (*Sampler, error) {
	if nDim < 1 || nWalkers%2 != 0 || nWalkers < 2*nDim {
		return nil, fmt.Errorf("%w: %d walkers, %d dimensions",
			ErrWalkers, nWalkers, nDim)
	}
	return &Sampler{
		nWalkers: nWalkers,
		nDim:     nDim,
		lp:       lp,
		rnd:      rnd,
		A:        2,
		Log:      zerolog.Nop(),
		accepted: make([]int, nWalkers),
	}, nil
}

// SetPositions sets the walker positions and evaluates them.  Positions
// are copied.  It is an error for any walker to have a non-finite log
// probability.
func (s *Sampler) SetPositions(p0 [][]float64) error {
	if len(p0) != s.nWalkers {
		return fmt.Errorf("%w: %d positions for %d walkers",
			ErrPositions, len(p0), s.nWalkers)
	}
	pos := make([][]float64, len(p0))
	for i, p := range p0 {
		if len(p) != s.nDim {
			return fmt.Errorf("%w: walker %d has %d dimensions, want %d",
				ErrPositions, i, len(p), s.nDim)
		}
		pos[i] = append([]float64{}, p...)
	}
	lps := make([]float64, len(pos))
	s.evalAll(pos, lps)
	for i, l := range lps {
		if math.IsInf(l, 0) || math.IsNaN(l) {
			return fmt.Errorf("%w: walker %d log probability %g",
				ErrPositions, i, l)
		}
	}
	s.pos, s.lps = pos, lps
	return nil
}

// ResetStats clears acceptance counts.
func (s *Sampler) ResetStats() {
	for i := range s.accepted {
		s.accepted[i] = 0
	}
	s.tried = 0
}

// AcceptanceFraction is per walker, over steps since the last ResetStats.
func (s *Sampler) AcceptanceFraction() []float64 {
	f := make([]float64, s.nWalkers)
	if s.tried == 0 {
		return f
	}
	for i, a := range s.accepted {
		f[i] = float64(a) / float64(s.tried)
	}
	return f
}

// Run advances the ensemble steps times.  With store, every thin-th
// position is recorded in the returned chain, otherwise the chain is nil.
// Run stops early with the context error if ctx is done.
func (s *Sampler) Run(ctx context.Context, steps, thin int, store bool) (*Chain, error) {
	if s.pos == nil {
		return nil, ErrNotReady
	}
	if thin < 1 {
		thin = 1
	}
	var c *Chain
	if store {
		c = &Chain{NWalkers: s.nWalkers, NDim: s.nDim}
	}
	half := s.nWalkers / 2
	prop := make([][]float64, half)
	for i := range prop {
		prop[i] = make([]float64, s.nDim)
	}
	propLP := make([]float64, half)
	z := make([]float64, half)
	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		for h := 0; h < 2; h++ {
			active := s.pos[h*half : (h+1)*half]
			other := s.pos[(1-h)*half : (2-h)*half]
			for k, x := range active {
				z[k] = s.stretch()
				y := other[s.rnd.Intn(half)]
				for d := range x {
					prop[k][d] = y[d] + z[k]*(x[d]-y[d])
				}
			}
			s.evalAll(prop, propLP)
			for k := range active {
				w := h*half + k
				q := float64(s.nDim-1)*math.Log(z[k]) + propLP[k] - s.lps[w]
				// NaN q compares false and is rejected
				if math.Log(s.rnd.Float64()) < q {
					copy(s.pos[w], prop[k])
					s.lps[w] = propLP[k]
					s.accepted[w]++
				}
			}
		}
		s.tried++
		if store && step%thin == 0 {
			for w, x := range s.pos {
				c.Samples = append(c.Samples, append([]float64{}, x...))
				c.LogProb = append(c.LogProb, s.lps[w])
			}
		}
		if step%100 == 0 {
			s.Log.Debug().Int("step", step).Int("of", steps).Msg("sampling")
		}
	}
	return c, nil
}

// stretch draws z from g(z) ∝ 1/√z on [1/a, a].
func (s *Sampler) stretch() float64 {
	u := ((s.A-1)*s.rnd.Float64() + 1)
	return u * u / s.A
}

// evalAll evaluates lp for each of xs, in parallel.  NaN results are
// stored as -Inf.
func (s *Sampler) evalAll(xs [][]float64, lps []float64) {
	nw := s.Workers
	if nw <= 0 {
		nw = runtime.GOMAXPROCS(0)
	}
	if nw > len(xs) {
		nw = len(xs)
	}
	jobs := make(chan int)
	done := make(chan struct{})
	for n := 0; n < nw; n++ {
		go func() {
			for i := range jobs {
				v := s.lp(xs[i])
				if math.IsNaN(v) {
					v = math.Inf(-1)
				}
				lps[i] = v
			}
			done <- struct{}{}
		}()
	}
	for i := range xs {
		jobs <- i
	}
	close(jobs)
	for n := 0; n < nw; n++ {
		<-done
	}
}
