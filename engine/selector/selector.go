// Package selector picks the next fragment, by weight, among those whose
// requirements hold for a session.
package selector

import (
	"context"
	"log/slog"
	"math"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// DefaultBatch is how many fragments a generator is asked for.
const DefaultBatch = 3

// Picker draws an index with probability proportional to its weight.
// *engine.RNG implements it.
type Picker interface {
	WeightedSelect(weights []float64) int
}

// Generator supplies extra candidate fragments when nothing is eligible.
type Generator interface {
	Generate(ctx context.Context, src rules.Source, n int) ([]types.Fragment, error)
}

// Outcome is the result of one selection. Found is false when no fragment
// was eligible, which is a normal outcome rather than an error.
type Outcome struct {
	Fragment  types.Fragment
	Found     bool
	Eligible  int
	Generated []types.Fragment
}

// Selector filters fragments through the condition evaluator and picks one.
type Selector struct {
	picker Picker
	gen    Generator
	batch  int
	logger *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithGenerator installs a fallback content generator asked for batch
// fragments when no fragment is eligible.
func WithGenerator(g Generator, batch int) Option {
	return func(s *Selector) {
		s.gen = g
		if batch > 0 {
			s.batch = batch
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// New creates a Selector drawing from p.
func New(p Picker, opts ...Option) *Selector {
	s := &Selector{picker: p, batch: DefaultBatch, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Eligible returns the fragments whose requirement holds against src,
// in their original order.
func Eligible(fragments []types.Fragment, src rules.Source) []types.Fragment {
	var out []types.Fragment
	for _, f := range fragments {
		if rules.Evaluate(f.Requires, src) {
			out = append(out, f)
		}
	}
	return out
}

// Select picks one eligible fragment. When none is eligible and a generator
// is installed, it is asked for more candidates and selection is retried
// once over those.
func (s *Selector) Select(ctx context.Context, fragments []types.Fragment, src rules.Source) Outcome {
	eligible := Eligible(fragments, src)
	if len(eligible) > 0 {
		return s.pick(eligible)
	}

	if s.gen == nil {
		return Outcome{}
	}
	generated, err := s.gen.Generate(ctx, src, s.batch)
	if err != nil {
		s.logger.Warn("fragment generator failed", "error", err)
		return Outcome{}
	}
	s.logger.Info("generated fragments", "count", len(generated))

	eligible = Eligible(generated, src)
	if len(eligible) == 0 {
		return Outcome{Generated: generated}
	}
	out := s.pick(eligible)
	out.Generated = generated
	return out
}

func (s *Selector) pick(eligible []types.Fragment) Outcome {
	weights := make([]float64, len(eligible))
	for i, f := range eligible {
		if w := f.Weight; w > 0 && !math.IsInf(w, 1) {
			weights[i] = w
		}
	}
	idx := s.picker.WeightedSelect(weights)
	return Outcome{Fragment: eligible[idx], Found: true, Eligible: len(eligible)}
}
