package selector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// randPicker is a cumulative-sum Picker over math/rand.
type randPicker struct {
	r *rand.Rand
}

func (p randPicker) WeightedSelect(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return p.r.Intn(len(weights))
	}
	roll := p.r.Float64() * total
	for i, w := range weights {
		roll -= w
		if roll < 0 {
			return i
		}
	}
	return len(weights) - 1
}

type stubGenerator struct {
	fragments []types.Fragment
	err       error
	calls     int
}

func (g *stubGenerator) Generate(_ context.Context, _ rules.Source, n int) ([]types.Fragment, error) {
	g.calls++
	return g.fragments, g.err
}

func frag(id string, weight float64, req map[string]any) types.Fragment {
	return types.Fragment{ID: id, Title: id, Weight: weight, Requires: rules.Compile(req)}
}

func newTestSelector(opts ...Option) *Selector {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(randPicker{r: rand.New(rand.NewSource(1))}, opts...)
}

func TestEligible(t *testing.T) {
	fragments := []types.Fragment{
		frag("cave", 1, map[string]any{"location": "forest", "has_torch": true}),
		frag("vein", 2, map[string]any{"danger": map[string]any{"lte": 1}}),
		frag("open", 1, nil),
	}
	got := Eligible(fragments, rules.Vars{"location": "forest", "danger": 1})
	if len(got) != 2 || got[0].ID != "vein" || got[1].ID != "open" {
		t.Errorf("Eligible = %v", ids(got))
	}
}

func TestSelectOnlyEligible(t *testing.T) {
	s := newTestSelector()
	fragments := []types.Fragment{
		frag("locked", 100, map[string]any{"key": true}),
		frag("open", 1, nil),
	}
	for i := 0; i < 100; i++ {
		out := s.Select(context.Background(), fragments, rules.Vars{})
		if !out.Found || out.Fragment.ID != "open" {
			t.Fatalf("Select = %+v, want open", out)
		}
	}
}

func TestSelectNoContent(t *testing.T) {
	s := newTestSelector()
	out := s.Select(context.Background(), []types.Fragment{frag("locked", 1, map[string]any{"key": true})}, rules.Vars{})
	if out.Found {
		t.Errorf("Select found %q with nothing eligible", out.Fragment.ID)
	}
}

func TestSelectDistribution(t *testing.T) {
	s := newTestSelector()
	fragments := []types.Fragment{
		frag("a", 1, nil),
		frag("b", 3, nil),
		frag("c", 0, nil),
		frag("d", -4, nil),
	}
	counts := map[string]int{}
	const trials = 40000
	for i := 0; i < trials; i++ {
		counts[s.Select(context.Background(), fragments, rules.Vars{}).Fragment.ID]++
	}
	if got := float64(counts["a"]) / trials; math.Abs(got-0.25) > 0.02 {
		t.Errorf("a frequency = %.3f, want 0.25", got)
	}
	if got := float64(counts["b"]) / trials; math.Abs(got-0.75) > 0.02 {
		t.Errorf("b frequency = %.3f, want 0.75", got)
	}
	if counts["c"]+counts["d"] != 0 {
		t.Errorf("zero and negative weights chosen: c=%d d=%d", counts["c"], counts["d"])
	}
}

func TestSelectSkipsNonFiniteWeights(t *testing.T) {
	s := newTestSelector()
	fragments := []types.Fragment{
		frag("inf", math.Inf(1), nil),
		frag("nan", math.NaN(), nil),
		frag("a", 1, nil),
	}
	for i := 0; i < 1000; i++ {
		if id := s.Select(context.Background(), fragments, rules.Vars{}).Fragment.ID; id != "a" {
			t.Fatalf("selected %q", id)
		}
	}
}

func TestSelectAllZeroWeightsIsUniform(t *testing.T) {
	s := newTestSelector()
	fragments := []types.Fragment{frag("a", 0, nil), frag("b", 0, nil), frag("c", -1, nil)}
	counts := map[string]int{}
	const trials = 30000
	for i := 0; i < trials; i++ {
		out := s.Select(context.Background(), fragments, rules.Vars{})
		if !out.Found {
			t.Fatal("all-zero weights must still select a fragment")
		}
		counts[out.Fragment.ID]++
	}
	for _, id := range []string{"a", "b", "c"} {
		if got := float64(counts[id]) / trials; math.Abs(got-1.0/3) > 0.02 {
			t.Errorf("%s frequency = %.3f, want 0.333", id, got)
		}
	}
}

func TestSelectGeneratorRetry(t *testing.T) {
	gen := &stubGenerator{fragments: []types.Fragment{
		frag("gen_locked", 1, map[string]any{"key": true}),
		frag("gen_open", 1, nil),
	}}
	s := newTestSelector(WithGenerator(gen, 2))

	out := s.Select(context.Background(), []types.Fragment{frag("locked", 1, map[string]any{"key": true})}, rules.Vars{})
	if !out.Found || out.Fragment.ID != "gen_open" {
		t.Errorf("Select = %+v, want gen_open", out)
	}
	if len(out.Generated) != 2 {
		t.Errorf("generated = %d, want 2", len(out.Generated))
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}

	// The generator is not consulted when something is eligible.
	s.Select(context.Background(), []types.Fragment{frag("open", 1, nil)}, rules.Vars{})
	if gen.calls != 1 {
		t.Errorf("generator calls = %d after an eligible selection, want 1", gen.calls)
	}
}

func TestSelectGeneratorFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream timeout")}
	s := newTestSelector(WithGenerator(gen, 0))
	out := s.Select(context.Background(), nil, rules.Vars{})
	if out.Found {
		t.Error("generator failure should yield no content")
	}
}

func ids(fs []types.Fragment) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}
