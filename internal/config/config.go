package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/reactsim/internal/integrators"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/reactor"
)

const (
	DefaultSpan       = 10.0
	DefaultGuess      = 10.0
	DefaultThreshold  = 1e-3
	DefaultIterations = 10
	DefaultRelTol     = 1e-6
	DefaultAbsTol     = 1e-9
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Reactor   ReactorConfig    `yaml:"reactor"`
	Reactions []ReactionConfig `yaml:"reactions"`
	Solver    SolverConfig     `yaml:"solver"`
	Run       RunConfig        `yaml:"run"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
}

type ReactorConfig struct {
	Type          string             `yaml:"type"`
	Volume        float64            `yaml:"volume"`
	InitialVolume float64            `yaml:"initial_volume,omitempty"`
	FlowRate      float64            `yaml:"flow_rate,omitempty"`
	Initial       map[string]float64 `yaml:"initial,omitempty"`
	Inlet         map[string]float64 `yaml:"inlet,omitempty"`
}

type ReactionConfig struct {
	Name         string    `yaml:"name"`
	Species      []string  `yaml:"species"`
	Coefficients []float64 `yaml:"coefficients"`
	Rate         string    `yaml:"rate"`
}

type SolverConfig struct {
	Integrator string  `yaml:"integrator"`
	RelTol     float64 `yaml:"rtol"`
	AbsTol     float64 `yaml:"atol"`
	Samples    int     `yaml:"samples"`
}

type RunConfig struct {
	// Span is the run time, or traversed volume for PFR (0 = whole tube).
	Span       float64 `yaml:"span"`
	FullOutput bool    `yaml:"full_output"`
}

type AnalysisConfig struct {
	Guess         float64 `yaml:"guess"`
	Threshold     float64 `yaml:"threshold"`
	MaxIterations int     `yaml:"max_iterations"`
	Species       string  `yaml:"species,omitempty"`
	Conversion    float64 `yaml:"conversion,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Reactor: ReactorConfig{
			Type:    "batch",
			Volume:  10,
			Initial: map[string]float64{"A": 1, "B": 1, "C": 0},
		},
		Reactions: equilibriumReactions(),
		Solver: SolverConfig{
			Integrator: integrators.Default,
			RelTol:     DefaultRelTol,
			AbsTol:     DefaultAbsTol,
			Samples:    reactor.DefaultSamples,
		},
		Run: RunConfig{Span: DefaultSpan},
		Analysis: AnalysisConfig{
			Guess:         DefaultGuess,
			Threshold:     DefaultThreshold,
			MaxIterations: DefaultIterations,
			Species:       "A",
			Conversion:    0.4,
		},
	}
}

func equilibriumReactions() []ReactionConfig {
	return []ReactionConfig{
		{Name: "forward", Species: []string{"A", "B", "C"}, Coefficients: []float64{-1, -1, 1}, Rate: "0.05*A*B"},
		{Name: "backward", Species: []string{"A", "B", "C"}, Coefficients: []float64{1, 1, -1}, Rate: "0.025*C"},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
// A file that lists reactions replaces the default reactions entirely.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := DefaultConfig()
	cfg.Reactions = nil
	cfg.Reactor.Initial = nil
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Regime converts the reactor section into a reactor regime.
func (c *Config) Regime() (reactor.Regime, error) {
	rc := c.Reactor
	kind, err := reactor.ParseKind(rc.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case reactor.KindBatch:
		return reactor.Batch{Volume: rc.Volume, Initial: rc.Initial}, nil
	case reactor.KindFedBatch:
		return reactor.FedBatch{Volume: rc.Volume, InitialVolume: rc.InitialVolume, FlowRate: rc.FlowRate, Initial: rc.Initial, Inlet: rc.Inlet}, nil
	case reactor.KindCSTR:
		return reactor.CSTR{Volume: rc.Volume, InitialVolume: rc.InitialVolume, FlowRate: rc.FlowRate, Initial: rc.Initial, Inlet: rc.Inlet}, nil
	default:
		return reactor.PFR{Volume: rc.Volume, FlowRate: rc.FlowRate, Inlet: rc.Inlet}, nil
	}
}

// BuildReactions compiles the reactions section. Unnamed reactions are
// called R1, R2, ... by position.
func (c *Config) BuildReactions() ([]*kinetics.Reaction, error) {
	if len(c.Reactions) == 0 {
		return nil, fmt.Errorf("%w: no reactions", ErrInvalid)
	}
	out := make([]*kinetics.Reaction, len(c.Reactions))
	for i, rc := range c.Reactions {
		name := rc.Name
		if name == "" {
			name = "R" + strconv.Itoa(i+1)
		}
		rx, err := kinetics.NewReaction(name, rc.Species, rc.Coefficients, rc.Rate)
		if err != nil {
			return nil, err
		}
		out[i] = rx
	}
	return out, nil
}

// Options turns the solver section into reactor options.
func (c *Config) Options() []reactor.Option {
	return []reactor.Option{
		reactor.WithSolver(c.Solver.Integrator),
		reactor.WithTolerances(c.Solver.RelTol, c.Solver.AbsTol),
		reactor.WithSamples(c.Solver.Samples),
	}
}

// Build constructs the reactor described by the config.
func (c *Config) Build(logger *slog.Logger, extra ...reactor.Option) (*reactor.Reactor, error) {
	regime, err := c.Regime()
	if err != nil {
		return nil, err
	}
	reactions, err := c.BuildReactions()
	if err != nil {
		return nil, err
	}
	opts := append(c.Options(), reactor.WithLogger(logger))
	return reactor.New(regime, reactions, append(opts, extra...)...)
}

func (c *Config) SteadyStateOptions() reactor.SteadyStateOptions {
	return reactor.SteadyStateOptions{
		Guess:         c.Analysis.Guess,
		Threshold:     c.Analysis.Threshold,
		MaxIterations: c.Analysis.MaxIterations,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Reactor.Initial = cloneMap(c.Reactor.Initial)
	out.Reactor.Inlet = cloneMap(c.Reactor.Inlet)
	out.Reactions = make([]ReactionConfig, len(c.Reactions))
	for i, rc := range c.Reactions {
		rc.Species = append([]string(nil), rc.Species...)
		rc.Coefficients = append([]float64(nil), rc.Coefficients...)
		out.Reactions[i] = rc
	}
	return &out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
