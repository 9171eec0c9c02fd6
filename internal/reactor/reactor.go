// Package reactor simulates reaction networks in Batch, Fed-batch, CSTR and
// plug-flow reactors.
//
// A Reactor is built once with New, which validates every parameter and
// fixes the species ordering used by all vectors and matrices. It is never
// mutated afterwards, so one Reactor may serve concurrent Run,
// FindSteadyState and FindConversion calls.
//
// State vectors hold moles for the vessel regimes and molar flow for PFR.
// The independent variable is time for vessels and traversed volume for
// PFR.
package reactor

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/integrators"
	"github.com/san-kum/reactsim/internal/kinetics"
)

// DefaultSamples is the number of evenly spaced output points of a run.
const DefaultSamples = 1000

// Recorder receives solver statistics after every integration.
type Recorder interface {
	ObserveRun(regime, solver string, stats dynamo.Stats, elapsed time.Duration, err error)
}

type Option func(*Reactor)

// WithLogger sets the logger for search progress and solver statistics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reactor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSolver selects a registered integrator by name.
func WithSolver(name string) Option {
	return func(r *Reactor) { r.solver = name }
}

// WithTolerances overrides the solver's relative and absolute tolerances.
// Non-positive values keep the defaults.
func WithTolerances(rtol, atol float64) Option {
	return func(r *Reactor) {
		if rtol > 0 {
			r.solverOpts.RelTol = rtol
		}
		if atol > 0 {
			r.solverOpts.AbsTol = atol
		}
	}
}

// WithSamples sets the number of output points per run. Values below 2
// are ignored.
func WithSamples(n int) Option {
	return func(r *Reactor) {
		if n >= 2 {
			r.samples = n
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Reactor) { r.recorder = rec }
}

type Reactor struct {
	regime Regime
	kind   Kind

	species []string
	index   map[string]int
	// initial concentrations in canonical order: bulk for vessels, inlet for PFR
	start dynamo.State
	// inlet concentrations in canonical order, zero for species absent from the feed
	feed dynamo.State

	reactions []*kinetics.Reaction
	stoich    *kinetics.Stoichiometry

	solver     string
	solverOpts dynamo.Options
	samples    int
	logger     *slog.Logger
	recorder   Recorder
	opts       []Option
}

// New validates the regime against the reactions and builds a Reactor.
// Species are ordered by sorting the keys of the initial concentrations,
// or of the inlet concentrations for PFR.
func New(regime Regime, reactions []*kinetics.Reaction, opts ...Option) (*Reactor, error) {
	reg := cloneRegime(regime)
	if reg == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnknownRegime, regime)
	}
	if len(reactions) == 0 {
		return nil, ErrNoReactions
	}
	seen := make(map[string]bool, len(reactions))
	for i, rx := range reactions {
		if rx == nil {
			return nil, fmt.Errorf("%w: reaction %d is nil", ErrNoReactions, i)
		}
		if seen[rx.Name()] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateReaction, rx.Name())
		}
		seen[rx.Name()] = true
	}

	r := &Reactor{
		regime:     reg,
		kind:       reg.Kind(),
		reactions:  append([]*kinetics.Reaction(nil), reactions...),
		solver:     integrators.Default,
		solverOpts: dynamo.DefaultOptions(),
		samples:    DefaultSamples,
		logger:     slog.New(slog.DiscardHandler),
		opts:       append([]Option(nil), opts...),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := integrators.New(r.solver); err != nil {
		return nil, err
	}

	var err error
	switch v := reg.(type) {
	case Batch:
		err = r.initBatch(v)
	case FedBatch:
		err = r.initVessel(v.Volume, v.InitialVolume, v.FlowRate, v.Initial, v.Inlet)
	case CSTR:
		err = r.initVessel(v.Volume, v.InitialVolume, v.FlowRate, v.Initial, v.Inlet)
	case PFR:
		err = r.initPFR(v)
	}
	if err != nil {
		return nil, fmt.Errorf("%s reactor: %w", r.kind, err)
	}

	if err := r.checkSpecies(); err != nil {
		return nil, fmt.Errorf("%s reactor: %w", r.kind, err)
	}

	r.stoich, err = kinetics.NewStoichiometry(r.species, r.reactions)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// WithRegime builds a reactor with the same reactions and options but a
// different regime.
func (r *Reactor) WithRegime(regime Regime) (*Reactor, error) {
	return New(regime, r.reactions, r.opts...)
}

func (r *Reactor) initBatch(b Batch) error {
	if err := checkVolume(b.Volume); err != nil {
		return err
	}
	if len(b.Initial) == 0 {
		return fmt.Errorf("%w: initial concentrations", ErrMissingParameter)
	}
	if err := checkConcentrations("initial", b.Initial); err != nil {
		return err
	}
	r.setSpecies(b.Initial)
	return nil
}

func (r *Reactor) initVessel(volume, v0, flow float64, initial, inlet map[string]float64) error {
	if err := checkVolume(volume); err != nil {
		return err
	}
	if err := checkFlowRate(flow); err != nil {
		return err
	}
	if !(v0 >= 0 && v0 <= volume) {
		return fmt.Errorf("%w: initial volume %g, volume %g", ErrInitialVolumeRange, v0, volume)
	}
	if len(initial) == 0 {
		return fmt.Errorf("%w: initial concentrations", ErrMissingParameter)
	}
	if len(inlet) == 0 {
		return fmt.Errorf("%w: inlet concentrations", ErrMissingParameter)
	}
	if err := checkConcentrations("initial", initial); err != nil {
		return err
	}
	if err := checkConcentrations("inlet", inlet); err != nil {
		return err
	}
	for _, s := range sortedKeys(inlet) {
		if _, ok := initial[s]; !ok {
			return fmt.Errorf("%w: inlet species %q has no initial concentration", ErrMissingSpecies, s)
		}
	}

	r.setSpecies(initial)
	r.feed = r.align(inlet)
	return nil
}

func (r *Reactor) initPFR(p PFR) error {
	if err := checkVolume(p.Volume); err != nil {
		return err
	}
	if err := checkFlowRate(p.FlowRate); err != nil {
		return err
	}
	if len(p.Inlet) == 0 {
		return fmt.Errorf("%w: inlet concentrations", ErrMissingParameter)
	}
	if err := checkConcentrations("inlet", p.Inlet); err != nil {
		return err
	}
	r.setSpecies(p.Inlet)
	r.feed = r.start.Clone()
	return nil
}

func (r *Reactor) setSpecies(conc map[string]float64) {
	r.species = sortedKeys(conc)
	r.index = make(map[string]int, len(r.species))
	for i, s := range r.species {
		r.index[s] = i
	}
	r.start = r.align(conc)
}

// align orders m by the canonical species order; absent species are zero.
func (r *Reactor) align(m map[string]float64) dynamo.State {
	out := make(dynamo.State, len(r.species))
	for i, s := range r.species {
		out[i] = m[s]
	}
	return out
}

func (r *Reactor) checkSpecies() error {
	var missing []string
	seen := make(map[string]bool)
	for _, rx := range r.reactions {
		for _, s := range rx.Species() {
			if _, ok := r.index[s]; !ok && !seen[s] {
				seen[s] = true
				missing = append(missing, s)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingSpecies, strings.Join(missing, ", "))
	}
	return nil
}

func checkVolume(v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: got %g", ErrNonPositiveVolume, v)
	}
	return nil
}

func checkFlowRate(f float64) error {
	if !(f > 0) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: got %g", ErrNonPositiveFlowRate, f)
	}
	return nil
}

func checkConcentrations(label string, m map[string]float64) error {
	for _, s := range sortedKeys(m) {
		if c := m[s]; !(c >= 0) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %s concentration of %q is %g", ErrNegativeConcentration, label, s, c)
		}
	}
	return nil
}

func (r *Reactor) Kind() Kind { return r.kind }

// Regime returns a copy of the regime the reactor was built with.
func (r *Reactor) Regime() Regime { return cloneRegime(r.regime) }

// Species returns the canonical species order.
func (r *Reactor) Species() []string { return append([]string(nil), r.species...) }

func (r *Reactor) Reactions() []*kinetics.Reaction {
	return append([]*kinetics.Reaction(nil), r.reactions...)
}

func (r *Reactor) Stoichiometry() *kinetics.Stoichiometry { return r.stoich }

// SolverName is the integrator used by every run.
func (r *Reactor) SolverName() string { return r.solver }

// InitialConcentration is the reference concentration for conversion: the
// initial bulk value for vessels and the inlet value for PFR.
func (r *Reactor) InitialConcentration(species string) (float64, error) {
	i, ok := r.index[species]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrSpeciesNotFound, species)
	}
	return r.start[i], nil
}

func (r *Reactor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Regime: %s\n", r.kind)
	switch v := r.regime.(type) {
	case Batch:
		fmt.Fprintf(&b, "Volume: %g\n", v.Volume)
		writeReactions(&b, r.reactions)
		fmt.Fprintf(&b, "Initial concentrations: %s", formatMap(r.species, r.start))
	case FedBatch:
		r.writeVessel(&b, v.Volume, v.InitialVolume, v.FlowRate)
	case CSTR:
		r.writeVessel(&b, v.Volume, v.InitialVolume, v.FlowRate)
	case PFR:
		fmt.Fprintf(&b, "Volume: %g\n", v.Volume)
		writeReactions(&b, r.reactions)
		fmt.Fprintf(&b, "Flow rate: %g\n", v.FlowRate)
		fmt.Fprintf(&b, "Inlet concentrations: %s", formatMap(r.species, r.feed))
	}
	return b.String()
}

func (r *Reactor) writeVessel(b *strings.Builder, volume, v0, flow float64) {
	fmt.Fprintf(b, "Volume: %g\n", volume)
	writeReactions(b, r.reactions)
	fmt.Fprintf(b, "Initial concentrations: %s\n", formatMap(r.species, r.start))
	fmt.Fprintf(b, "Initial volume: %g\n", v0)
	fmt.Fprintf(b, "Flow rate: %g\n", flow)
	fmt.Fprintf(b, "Inlet concentrations: %s", formatMap(r.species, r.feed))
}

func writeReactions(b *strings.Builder, reactions []*kinetics.Reaction) {
	b.WriteString("Reactions:\n")
	for i, rx := range reactions {
		fmt.Fprintf(b, "%d. %s\n%s\n", i+1, rx.Name(), rx)
	}
}

func formatMap(keys []string, values dynamo.State) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + strconv.FormatFloat(values[i], 'g', -1, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
