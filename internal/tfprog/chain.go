// Public domain.

package tfprog

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/soniakeys/transitfit/internal/tffit"
)

// Chain is the sampler output saved by the command.  Samples are walker
// positions, step major, columns in VarNames order.
type Chain struct {
	VarNames                    []string
	NWalkers, Steps, Burn, Thin int
	Samples                     [][]float64
	LogProb                     []float64
}

// WriteChain saves the chain of s in gob format.
func WriteChain(fn string, s *tffit.SampleResult) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	c := Chain{
		VarNames: s.VarNames,
		NWalkers: s.NWalkers,
		Steps:    s.Steps,
		Burn:     s.Burn,
		Thin:     s.Thin,
		Samples:  s.Chain,
		LogProb:  s.LogProb,
	}
	if err = gob.NewEncoder(f).Encode(&c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadChain reads a chain saved by WriteChain.
func ReadChain(fn string) (*Chain, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var c Chain
	if err = gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fn, err)
	}
	return &c, nil
}
