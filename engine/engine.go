// Package engine provides the per-session facade that wires the world
// state, the weighted selector and the spatial layout into Next, Choose
// and Move calls, plus the Step dispatcher the console drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/engine/save"
	"github.com/nathoo/worldweaver/engine/selector"
	"github.com/nathoo/worldweaver/engine/state"
	"github.com/nathoo/worldweaver/telemetry"
	"github.com/nathoo/worldweaver/types"
)

// DefaultStart is the location a session begins at when the world names none.
const DefaultStart = "start"

// Fallback picks the text shown when no fragment is eligible. It gets the
// session's contextual view.
type Fallback func(view map[string]any) string

// DefaultFallback reads the mood of the place from danger and time of day.
func DefaultFallback(view map[string]any) string {
	if danger, ok := rules.ToFloat(view["danger_level"]); ok && danger > 3 {
		return "The air feels heavy with danger. Perhaps it's wise to wait and listen."
	}
	if view["time_of_day"] == "night" {
		return "The darkness is deep. Something stirs in the shadows, but nothing approaches."
	}
	return "The tunnel is quiet. Nothing compelling meets the eye."
}

// Options configures a session Engine. The zero value is usable.
type Options struct {
	Seed           int64 // 0 seeds from the clock
	ViewTTL        time.Duration
	Store          SessionStore
	Generator      selector.Generator
	GeneratorBatch int
	Fallback       Fallback
	Tracer         trace.Tracer
	Metrics        *telemetry.Metrics
	Logger         *slog.Logger
	Clock          func() time.Time
}

// Engine runs one session against a shared World. Its methods are safe
// for concurrent use; calls are serialized.
type Engine struct {
	World *World
	State *state.Manager
	RNG   *RNG

	mu        sync.Mutex
	selector  *selector.Selector
	generator selector.Generator
	batch     int
	current   *types.Fragment
	waiting   bool // last selection found nothing; the one choice is Wait
	store     SessionStore
	fallback  Fallback
	tracer    trace.Tracer
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// New opens the session id over world. A stored snapshot is restored
// whole; otherwise stored variables are adopted and topped up with the
// session defaults.
func New(ctx context.Context, world *World, id string, opts Options) (*Engine, error) {
	if id == "" {
		return nil, fmt.Errorf("empty session id: %w", types.ErrInvalidArgument)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer(telemetry.InstrumentationName)
	}
	if opts.Fallback == nil {
		opts.Fallback = DefaultFallback
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	stateOpts := []state.Option{state.WithLogger(opts.Logger)}
	if opts.ViewTTL > 0 {
		stateOpts = append(stateOpts, state.WithViewTTL(opts.ViewTTL))
	}
	if opts.Clock != nil {
		stateOpts = append(stateOpts, state.WithClock(opts.Clock))
	}

	e := &Engine{
		World:     world,
		State:     state.New(id, stateOpts...),
		RNG:       NewRNG(opts.Seed),
		generator: opts.Generator,
		batch:     opts.GeneratorBatch,
		store:     opts.Store,
		fallback:  opts.Fallback,
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("session", id),
	}
	e.selector = e.newSelector()

	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	e.metrics.SessionOpened()
	return e, nil
}

func (e *Engine) newSelector() *selector.Selector {
	selOpts := []selector.Option{selector.WithLogger(e.logger)}
	if e.generator != nil {
		selOpts = append(selOpts, selector.WithGenerator(e.generator, e.batch))
	}
	return selector.New(e.RNG, selOpts...)
}

func (e *Engine) restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	id := e.State.SessionID()

	snap, found, err := e.store.LoadSnapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	vars, varsFound, err := e.store.LoadVariables(ctx, id)
	if err != nil {
		return fmt.Errorf("load variables: %w", err)
	}
	if found {
		// Variables are written every turn, the snapshot only on flush.
		e.State.ImportState(snap)
		if varsFound {
			e.State.RestoreVariables(vars)
		}
		e.logger.Info("session restored", "variables", len(e.State.Variables()))
		return nil
	}
	if !varsFound {
		return nil
	}
	if vars == nil {
		vars = map[string]any{}
	}
	for k, v := range sessionDefaults() {
		if _, ok := vars[k]; !ok {
			vars[k] = v
		}
	}
	e.State.RestoreVariables(vars)
	e.logger.Info("session variables restored", "variables", len(vars))
	return nil
}

func sessionDefaults() map[string]any {
	return map[string]any{
		"name":        "Adventurer",
		"danger":      0,
		"has_pickaxe": true,
	}
}

// SessionID returns the session this engine serves.
func (e *Engine) SessionID() string {
	return e.State.SessionID()
}

// Begin presents the opening fragment. A session with no location yet is
// placed at the world's start first; one resuming sees its current
// fragment again.
func (e *Engine) Begin(ctx context.Context) (types.Result, error) {
	e.mu.Lock()
	_, placed := e.State.Variable("location")
	e.mu.Unlock()
	if placed {
		return e.look(ctx)
	}
	return e.Next(ctx, map[string]any{"location": e.World.Start()})
}

// Current returns the fragment last presented, if any.
func (e *Engine) Current() (types.Fragment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return types.Fragment{}, false
	}
	return *e.current, true
}

// Next merges vars into the session, then selects and renders the next
// fragment. Having nothing eligible is a normal result with NoContent set.
func (e *Engine) Next(ctx context.Context, vars map[string]any) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.start(ctx, "engine.Next")
	defer span.End()

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.State.SetVariable(k, vars[k])
	}

	res := e.next(ctx)
	span.SetAttributes(
		attribute.Int("fragments.eligible", res.Eligible),
		attribute.Bool("fragments.no_content", res.NoContent),
	)
	return res, e.saveVariables(ctx, span)
}

func (e *Engine) next(ctx context.Context) types.Result {
	out := e.selector.Select(ctx, e.World.Fragments(), e.State)
	if len(out.Generated) > 0 {
		if _, err := e.World.Add(ctx, out.Generated...); err != nil {
			e.logger.Warn("generated fragments not added", "error", err)
		}
	}

	if !out.Found {
		e.metrics.Selection("no_content", 0)
		e.current = nil
		e.waiting = true
		return types.Result{
			Output:    []string{e.fallback(e.State.ContextualView())},
			Choices:   []types.Choice{{Label: "Wait"}},
			NoContent: true,
		}
	}

	e.metrics.Selection("selected", out.Eligible)
	res := e.present(out.Fragment)
	res.Eligible = out.Eligible
	return res
}

func (e *Engine) present(f types.Fragment) types.Result {
	e.current = &f
	e.waiting = false
	e.State.SetActiveFragment(f.ID)
	text := effects.Render(f.TextTemplate, e.State.ContextualView())
	return types.Result{
		Output:   []string{text},
		Fragment: &f,
		Choices:  f.Choices,
	}
}

// Choose applies the set-operations of the current fragment's choice at
// index (zero-based), then selects the next fragment.
func (e *Engine) Choose(ctx context.Context, index int) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.start(ctx, "engine.Choose", attribute.Int("choice.index", index))
	defer span.End()

	if e.current == nil && e.waiting && index == 0 {
		res := e.next(ctx)
		return res, e.saveVariables(ctx, span)
	}
	if e.current == nil {
		return types.Result{}, e.fail(span, fmt.Errorf("choose: no fragment presented: %w", types.ErrInvalidArgument))
	}
	if index < 0 || index >= len(e.current.Choices) {
		return types.Result{}, e.fail(span, fmt.Errorf("choose %d of %d: %w", index+1, len(e.current.Choices), types.ErrInvalidArgument))
	}

	choice := e.current.Choices[index]
	e.State.SetActiveFragment(e.current.ID)
	if err := effects.Apply(e.State, choice.Set); err != nil {
		return types.Result{}, e.fail(span, fmt.Errorf("choose %q: %w", choice.Label, err))
	}
	e.logger.Debug("choice applied", "fragment", e.current.ID, "choice", choice.Label)

	res := e.next(ctx)
	return res, e.saveVariables(ctx, span)
}

// Move steps from the fragment at the session's location to its neighbor
// in direction. The neighbor's requirement, less its location clause,
// must hold. A missing or locked neighbor is reported in the result; an
// unknown direction, or a location with no fragment, is an error.
func (e *Engine) Move(ctx context.Context, direction string) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.start(ctx, "engine.Move", attribute.String("move.direction", direction))
	defer span.End()

	loc := e.location()
	here, ok := e.World.AtLocation(loc)
	if !ok {
		return types.Result{}, e.fail(span, fmt.Errorf("move: no fragment at %q: %w", loc, types.ErrInvalidArgument))
	}
	target, err := e.World.Layout.Neighbor(here.ID, direction)
	if err != nil {
		return types.Result{}, e.fail(span, err)
	}

	if target == nil {
		e.metrics.Move("none")
		return types.Result{Output: []string{"You can't go that way."}}, nil
	}
	if !rules.Evaluate(rules.EntryRequirement(target.Requires), e.State) {
		e.metrics.Move("blocked")
		span.SetAttributes(attribute.String("move.blocked_by", target.ID))
		return types.Result{
			Output:  []string{"Something keeps you from going that way."},
			Blocked: true,
		}, nil
	}

	if dest, ok := rules.TargetLocation(target.Requires); ok {
		e.State.SetVariable("location", dest)
	}
	e.metrics.Move("moved")
	e.logger.Debug("moved", "from", here.ID, "to", target.ID, "direction", direction)

	res := e.present(*target)
	return res, e.saveVariables(ctx, span)
}

// Exits lists the neighbors of the fragment at the session's location
// and whether each can be entered.
func (e *Engine) Exits() ([]Exit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc := e.location()
	here, ok := e.World.AtLocation(loc)
	if !ok {
		return nil, fmt.Errorf("exits: no fragment at %q: %w", loc, types.ErrInvalidArgument)
	}
	var out []Exit
	for _, nb := range e.World.Layout.Navigation(here.ID) {
		if nb.Fragment == nil {
			continue
		}
		out = append(out, Exit{
			Direction: nb.Direction,
			Fragment:  *nb.Fragment,
			Open:      rules.Evaluate(rules.EntryRequirement(nb.Fragment.Requires), e.State),
		})
	}
	return out, nil
}

// Exit is one occupied neighbor of the current location.
type Exit struct {
	Direction types.Direction
	Fragment  types.Fragment
	Open      bool
}

// Flush writes the full session snapshot to the store.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil
	}
	ctx, span := e.start(ctx, "engine.Flush")
	defer span.End()
	if err := e.store.SaveSnapshot(ctx, e.State.ExportState()); err != nil {
		return e.fail(span, fmt.Errorf("save snapshot: %w", err))
	}
	return nil
}

// Close flushes the session and stops counting it as live.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Flush(ctx)
	e.metrics.SessionClosed()
	return err
}

// detach stops the engine writing to its store, for sessions the store
// has already deleted.
func (e *Engine) detach() {
	e.mu.Lock()
	e.store = nil
	e.mu.Unlock()
}

// SaveData captures the session for a save file.
func (e *Engine) SaveData() save.SaveData {
	e.mu.Lock()
	defer e.mu.Unlock()
	sd := save.SaveData{
		Version:     save.Version,
		World:       e.World.Def.Title,
		RNGSeed:     e.RNG.Seed(),
		RNGPosition: e.RNG.Position(),
		State:       e.State.ExportState(),
	}
	if e.current != nil {
		sd.ActiveFragment = e.current.ID
	}
	return sd
}

// Restore replaces the session with a save file's contents. The RNG is
// replayed to its saved position and the active fragment re-presented.
func (e *Engine) Restore(sd *save.SaveData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sd.World != "" && e.World.Def.Title != "" && sd.World != e.World.Def.Title {
		return fmt.Errorf("save is for %q, not %q: %w", sd.World, e.World.Def.Title, types.ErrInvalidArgument)
	}

	if sd.RNGPosition < 0 || sd.RNGPosition > MaxRNGPosition {
		return fmt.Errorf("save RNG position %d outside [0, %d]: %w", sd.RNGPosition, MaxRNGPosition, types.ErrInvalidArgument)
	}

	snap := sd.State
	snap.SessionID = e.State.SessionID()
	e.State.ImportState(snap)

	e.RNG = RestoreRNG(sd.RNGSeed, sd.RNGPosition)
	e.selector = e.newSelector()
	e.current = nil
	e.waiting = false
	if f, ok := e.World.Fragment(sd.ActiveFragment); ok {
		e.current = &f
		e.State.SetActiveFragment(f.ID)
	}
	return nil
}

func (e *Engine) location() string {
	start := e.World.Start()
	if loc, ok := e.State.GetVariable("location", start).(string); ok {
		return loc
	}
	return start
}

func (e *Engine) saveVariables(ctx context.Context, span trace.Span) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveVariables(ctx, e.State.SessionID(), e.State.Variables()); err != nil {
		return e.fail(span, fmt.Errorf("save variables: %w", err))
	}
	return nil
}

func (e *Engine) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(telemetry.SessionAttrs(e.State.SessionID(), attrs...)...))
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
