package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/logs"
	"github.com/san-kum/reactsim/internal/reactor"
	"github.com/san-kum/reactsim/internal/telemetry"
)

var errUnknownFormat = errors.New("unknown output format")

// globals are the persistent flags shared by every command.
type globals struct {
	configFile string
	preset     string
	solver     string
	logLevel   string
	logJSON    string
	metrics    bool
}

// session is what a command needs to simulate: the resolved config and
// a reactor wired to the logger and telemetry.
type session struct {
	cfg       *config.Config
	reactor   *reactor.Reactor
	logger    *slog.Logger
	collector *telemetry.Collector
	closer    io.Closer
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "reactsim",
		Short:         "chemical reactor kinetics simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "reactor description (yaml)")
	pf.StringVar(&g.preset, "preset", "", "built-in reactor description")
	pf.StringVar(&g.solver, "solver", "", "integrator (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "warn", "debug, info, warn or error")
	pf.StringVar(&g.logJSON, "log-json", "", "also write JSON logs to this file")
	pf.BoolVar(&g.metrics, "metrics", false, "print solver metrics after the command")

	root.AddCommand(
		newRunCmd(g),
		newSteadyCmd(g),
		newConversionCmd(g),
		newSweepCmd(g),
		newViewCmd(g),
		newPresetsCmd(),
		newInitCmd(g),
	)
	return root
}

// loadConfig resolves --preset and --config. A config file wins over a
// preset; neither means the default scenario.
func (g *globals) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case g.configFile != "":
		c, err := config.Load(g.configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	case g.preset != "":
		cfg = config.GetPreset(g.preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", g.preset, config.ListPresets())
		}
	default:
		cfg = config.DefaultConfig()
	}
	if g.solver != "" {
		cfg.Solver.Integrator = g.solver
	}
	return cfg, nil
}

func (g *globals) open(cmd *cobra.Command) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, closer, err := logs.New(logs.Options{
		Writer:   cmd.ErrOrStderr(),
		Level:    g.logLevel,
		JSONPath: g.logJSON,
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, closer: closer}
	var extra []reactor.Option
	if g.metrics {
		s.collector = telemetry.New()
		extra = append(extra, reactor.WithRecorder(s.collector))
	}

	s.reactor, err = cfg.Build(logger, extra...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return s, nil
}

// close flushes the metrics dump and the JSON log.
func (s *session) close(w io.Writer) error {
	var err error
	if s.collector != nil {
		fmt.Fprintln(w)
		err = s.collector.WriteText(w)
	}
	return errors.Join(err, s.closer.Close())
}

func (s *session) context(cmd *cobra.Command, op string) context.Context {
	return logs.WithOperation(cmd.Context(), op)
}
