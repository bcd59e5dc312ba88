// Weaver runs a narrative world: it loads authored fragments, lays them out
// on a grid and plays a session in the terminal.
// Usage: weaver [--version] [--plain] [--script <file>] [--trace] [--session <id>] <world_directory>
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/nathoo/worldweaver/cli"
	"github.com/nathoo/worldweaver/config"
	"github.com/nathoo/worldweaver/engine"
	"github.com/nathoo/worldweaver/engine/spatial"
	"github.com/nathoo/worldweaver/loader"
	"github.com/nathoo/worldweaver/store/memory"
	"github.com/nathoo/worldweaver/store/sqlite"
	"github.com/nathoo/worldweaver/telemetry"
	"github.com/nathoo/worldweaver/tui"
	"github.com/nathoo/worldweaver/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: weaver [--version] [--plain] [--script <file>] [--trace] [--session <id>] <world_directory>"

// backend is what both store adapters provide.
type backend interface {
	engine.FragmentSource
	engine.SessionStore
	spatial.PositionStore
	SaveFragments(ctx context.Context, frags []types.Fragment) error
	Positions(ctx context.Context) (map[string]types.Position, error)
}

type options struct {
	plain     bool
	trace     bool
	script    string
	sessionID string
	worldDir  string
}

func main() {
	var opts options

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("weaver %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			opts.plain = true
		case "--trace":
			opts.trace = true
		case "--script", "--session":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a value\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				opts.script = args[i+1]
			} else {
				opts.sessionID = args[i+1]
			}
			i++
		default:
			if opts.worldDir == "" {
				opts.worldDir = args[i]
			}
		}
	}

	if opts.worldDir == "" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	pack, err := loader.Load(opts.worldDir)
	if err != nil {
		return fmt.Errorf("loading world: %w", err)
	}
	for _, w := range pack.Warnings {
		logger.Warn("world content", "warning", w)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SaveFragments(ctx, pack.Fragments); err != nil {
		return fmt.Errorf("storing fragments: %w", err)
	}
	if stored, err := store.Positions(ctx); err == nil {
		logger.Info("stored positions", "count", len(stored))
	}

	tp, err := telemetry.InitTracing(ctx, telemetry.TraceConfig{
		ServiceName:    "weaver",
		ServiceVersion: version,
		Endpoint:       cfg.TraceEndpoint,
		Insecure:       cfg.TraceInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	metrics := telemetry.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer srv.Close()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	layout := spatial.New(
		spatial.WithStore(store),
		spatial.WithMaxRadius(cfg.SpiralRadius),
		spatial.WithRandom(engine.NewRNG(seed)),
		spatial.WithLogger(logger),
	)
	world := engine.NewWorld(pack.World, layout,
		engine.WithWorldMetrics(metrics),
		engine.WithWorldLogger(logger),
	)
	if _, err := world.Load(ctx, store); err != nil {
		return err
	}

	sessions := engine.NewSessions(world, engine.Options{
		Seed:    cfg.Seed,
		ViewTTL: cfg.ViewTTL,
		Store:   store,
		Tracer:  tp.Tracer(telemetry.InstrumentationName),
		Metrics: metrics,
		Logger:  logger,
	}, cfg.RegistrySize, cfg.SessionTTL)
	defer sessions.Close()

	if removed, err := sessions.Sweep(ctx, time.Now().Add(-cfg.SessionTTL)); err != nil {
		logger.Warn("session sweep failed", "error", err)
	} else if len(removed) > 0 {
		logger.Info("expired sessions removed", "count", len(removed))
	}

	var eng *engine.Engine
	if opts.sessionID != "" {
		eng, err = sessions.Get(ctx, opts.sessionID)
	} else {
		eng, err = sessions.Create(ctx)
	}
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	logger.Info("session open", "session", eng.SessionID(), "fragments", world.Len())

	return play(ctx, eng, opts)
}

func openStore(cfg config.Config) (backend, func(), error) {
	if cfg.DBPath == "" {
		return memory.New(), func() {}, nil
	}
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, func() { db.Close() }, nil
}

func serveMetrics(addr string, m *telemetry.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func play(ctx context.Context, eng *engine.Engine, opts options) error {
	def := eng.World.Def

	// Script mode: open file, force plain, echo commands.
	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		fmt.Printf("%s v%s by %s\n\n", def.Title, def.Version, def.Author)
		c := cli.New(eng)
		c.In = f
		c.EchoInput = true
		c.Trace = opts.trace
		c.Run(ctx)
		return nil
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if opts.plain || !isTerminal() {
		fmt.Printf("%s v%s by %s\n\n", def.Title, def.Version, def.Author)
		c := cli.New(eng)
		c.Trace = opts.trace
		c.Run(ctx)
		return nil
	}

	return tui.Run(ctx, eng)
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
