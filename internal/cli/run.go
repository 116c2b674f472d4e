package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/mirage/internal/config"
	"github.com/roach88/mirage/internal/engine"
	"github.com/roach88/mirage/internal/gen"
	"github.com/roach88/mirage/internal/scenario"
	"github.com/roach88/mirage/internal/schema"
	"github.com/roach88/mirage/internal/sink"
	"github.com/roach88/mirage/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Seed overrides the config's random seed when set.
	Seed    int64
	SeedSet bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run a simulation from a config file",
		Long: `Run a simulated event stream described by a YAML config.

The config names a scenario, the time window and step, the seed, the
starting entity population, and the output sinks. The same config and
seed always produce the same event stream.

Example:
  mirage run ./configs/ecommerce.yaml
  mirage run ./configs/ecommerce.yaml --seed 7 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SeedSet = cmd.Flags().Changed("seed")
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "override the config's random seed")

	return cmd
}

func runSimulation(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.SeedSet {
		cfg.Seed = opts.Seed
	}

	sc, err := scenario.Lookup(cfg.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown scenario", err)
	}

	reg := schema.NewRegistry()
	if err := sc.Register(reg); err != nil {
		return WrapExitError(ExitCommandError, "failed to register scenario schemas", err)
	}

	st, cleanup, err := openStore(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open entity store", err)
	}
	defer cleanup()

	dispatcher, err := buildDispatcher(cfg, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure sinks", err)
	}
	defer func() {
		if closeErr := dispatcher.Close(); closeErr != nil {
			slog.Error("error closing sinks", "error", closeErr)
		}
	}()

	rng := rand.New(rand.NewSource(cfg.Seed))
	sim, err := engine.New(engine.Config{
		Start:           cfg.Start,
		Duration:        cfg.Duration,
		Step:            cfg.Step,
		DrawsPerStep:    cfg.DrawsPerStep,
		InitialEntities: cfg.InitialEntities,
	}, engine.Deps{
		Registry:   reg,
		Store:      st,
		Dispatcher: dispatcher,
		Generator:  gen.New(rng),
		Rand:       rng,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create simulation", err)
	}

	for _, f := range sc.Flows() {
		if err := sim.RegisterFlow(f); err != nil {
			return WrapExitError(ExitCommandError, "failed to register flow", err)
		}
	}

	// Graceful shutdown on interrupt; the loop stops between windows.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("starting simulation", "scenario", cfg.Scenario, "seed", cfg.Seed)
	if err := sim.Run(ctx); err != nil && err != context.Canceled {
		return WrapExitError(ExitFailure, "simulation error", err)
	}

	stats := sim.Stats()
	fmt.Fprintf(cmd.OutOrStdout(),
		"Simulation complete: %d sessions started, %d failed, %d events emitted, %d draws skipped\n",
		stats.SessionsStarted, stats.SessionsFailed, stats.EventsEmitted, stats.DrawsSkipped)
	return nil
}

// openStore creates the in-memory entity store, with the SQLite version
// journal attached when configured.
func openStore(cfg *config.Config) (*store.Store, func(), error) {
	if cfg.Journal == "" {
		return store.New(), func() {}, nil
	}
	j, err := store.OpenJournal(cfg.Journal)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := j.Close(); err != nil {
			slog.Error("error closing journal", "error", err)
		}
	}
	return store.New(store.WithJournal(j)), cleanup, nil
}

// buildDispatcher wires the configured sinks, defaulting to a console
// sink on stdout when none are configured.
func buildDispatcher(cfg *config.Config, cmd *cobra.Command) (*sink.Dispatcher, error) {
	d := sink.NewDispatcher()

	if len(cfg.Sinks) == 0 {
		if err := d.Register("console", sink.NewConsole(cmd.OutOrStdout()), nil); err != nil {
			return nil, err
		}
		return d, nil
	}

	for _, spec := range cfg.Sinks {
		var (
			s   sink.Sink
			err error
		)
		switch spec.Type {
		case "console":
			s = sink.NewConsole(cmd.OutOrStdout())
		case "file":
			s, err = sink.NewFile(spec.Path)
		case "sqlite":
			s, err = sink.NewSQLite(spec.Path)
		default:
			err = fmt.Errorf("unknown sink type %q", spec.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", spec.Name, err)
		}
		if err := d.Register(spec.Name, s, spec.Topics); err != nil {
			return nil, err
		}
	}
	return d, nil
}
