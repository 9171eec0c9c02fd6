package reactor

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sync"
	"time"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/integrators"
	"github.com/san-kum/reactsim/internal/metrics"
	"github.com/san-kum/reactsim/internal/viz"
)

// RunOptions controls what Run computes besides concentrations.
type RunOptions struct {
	// FullOutput adds state, reaction rate and transformation rate
	// trajectories to the result.
	FullOutput bool
	// Plotter, when set, receives one figure per trajectory kind. It
	// implies FullOutput.
	Plotter viz.Plotter
}

// Result is a sampled trajectory. Maps are keyed by species name, or by
// reaction name for ReactionRates. Full-output fields are nil unless
// requested.
type Result struct {
	Kind      Kind
	Species   []string
	Reactions []string
	X         []float64

	Concentrations      map[string][]float64
	State               map[string][]float64
	ReactionRates       map[string][]float64
	TransformationRates map[string][]float64
	// Volume is the liquid volume, Fed-batch and CSTR full output only.
	Volume []float64

	Metrics map[string]float64
	Solver  string
	Stats   dynamo.Stats
}

func (res *Result) Len() int { return len(res.X) }

// Snapshot collects every trajectory at sample i.
func (res *Result) Snapshot(i int) *Snapshot {
	s := &Snapshot{
		X:              res.X[i],
		Concentrations: pick(res.Concentrations, i),
	}
	if res.State != nil {
		s.State = pick(res.State, i)
		s.ReactionRates = pick(res.ReactionRates, i)
		s.TransformationRates = pick(res.TransformationRates, i)
	}
	return s
}

// Final is the snapshot at the last sample.
func (res *Result) Final() *Snapshot { return res.Snapshot(res.Len() - 1) }

func pick(m map[string][]float64, i int) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v[i]
	}
	return out
}

// Snapshot is the reactor at one coordinate.
type Snapshot struct {
	X                   float64
	Concentrations      map[string]float64
	State               map[string]float64
	ReactionRates       map[string]float64
	TransformationRates map[string]float64
}

// XLabel names the independent variable.
func (k Kind) XLabel() string {
	if k == KindPFR {
		return "Volume"
	}
	return "Time"
}

// StateLabel names the state quantity.
func (k Kind) StateLabel() string {
	if k == KindPFR {
		return "Molar flow"
	}
	return "Moles"
}

// Run simulates the reactor over [0, x] and samples the trajectory at
// evenly spaced points. x is time for vessels and must be positive. For
// PFR x is the traversed volume; zero means the whole reactor.
func (r *Reactor) Run(ctx context.Context, x float64, opts RunOptions) (*Result, error) {
	end, err := r.span(x)
	if err != nil {
		return nil, err
	}
	full := opts.FullOutput || opts.Plotter != nil

	sol, err := r.integrate(ctx, end)
	if err != nil {
		return nil, err
	}

	n := len(r.species)
	m := len(sol.X)
	conc := make([]dynamo.State, m)
	for i := range conc {
		conc[i] = make(dynamo.State, n)
		r.concentrations(conc[i], sol.X[i], sol.Y[i])
	}

	res := &Result{
		Kind:           r.kind,
		Species:        r.Species(),
		Reactions:      r.reactionNames(),
		X:              sol.X,
		Concentrations: columns(r.species, conc),
		Solver:         r.solver,
		Stats:          sol.Stats,
	}

	var rr, tr []dynamo.State
	if full {
		rr, tr, err = r.sampleRates(conc)
		if err != nil {
			return nil, err
		}
		res.State = columns(r.species, sol.Y)
		res.ReactionRates = columns(res.Reactions, rr)
		res.TransformationRates = columns(r.species, tr)
		if r.kind == KindFedBatch || r.kind == KindCSTR {
			res.Volume = make([]float64, m)
			for i, xi := range sol.X {
				res.Volume[i] = r.holdup(xi)
			}
		}
	} else {
		// the residual metric only needs the last point
		_, last, err := r.rates(conc[m-1])
		if err != nil {
			return nil, err
		}
		tr = make([]dynamo.State, m)
		tr[m-1] = last
	}

	res.Metrics = metrics.Evaluate(metrics.Default(), trajectory(sol, conc, tr))

	if opts.Plotter != nil {
		if err := r.plot(opts.Plotter, res); err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
	}
	return res, nil
}

func (r *Reactor) span(x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0, fmt.Errorf("%w: got %g", ErrMissingSpan, x)
	}
	if x == 0 {
		if p, ok := r.regime.(PFR); ok {
			return p.Volume, nil
		}
		return 0, fmt.Errorf("%w: %s needs a run time", ErrMissingSpan, r.kind)
	}
	return x, nil
}

// integrate solves the mass balance over [0, end] with a fresh solver.
func (r *Reactor) integrate(ctx context.Context, end float64) (*dynamo.Solution, error) {
	solver, err := integrators.New(r.solver)
	if err != nil {
		return nil, err
	}

	// a rate-law failure cancels the run at the next step boundary
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		rhsErr error
		evals  int
	)
	f := func(x float64, y dynamo.State) dynamo.State {
		evals++
		dy, err := r.derivative(x, y)
		if err != nil {
			if rhsErr == nil {
				rhsErr = err
				cancel()
			}
			nan := make(dynamo.State, len(y))
			for i := range nan {
				nan[i] = math.NaN()
			}
			return nan
		}
		return dy
	}

	span := dynamo.Span{0, end}
	opts := r.solverOpts
	opts.MaxStep = end / 100

	start := time.Now()
	sol, err := solver.Integrate(ctx, f, span, r.initialState(), span.Linspace(r.samples), opts)
	elapsed := time.Since(start)
	if rhsErr != nil {
		err = fmt.Errorf("%w: %w", dynamo.ErrIntegrationFailure, rhsErr)
	}

	if r.recorder != nil {
		stats := dynamo.Stats{Evaluations: evals}
		if sol != nil {
			stats = sol.Stats
		}
		r.recorder.ObserveRun(r.kind.String(), r.solver, stats, elapsed, err)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "integration failed", "regime", r.kind.String(), "solver", r.solver, "span", end, "error", err)
		return nil, err
	}

	r.logger.DebugContext(ctx, "integration complete",
		"regime", r.kind.String(),
		"solver", r.solver,
		"span", end,
		"steps", sol.Stats.Steps,
		"rejected", sol.Stats.Rejected,
		"evaluations", sol.Stats.Evaluations,
		"elapsed", elapsed,
	)
	return sol, nil
}

// sampleRates re-evaluates the reactions at every sample. Samples are
// independent, so the work is split across goroutines.
func (r *Reactor) sampleRates(conc []dynamo.State) ([]dynamo.State, []dynamo.State, error) {
	rr := make([]dynamo.State, len(conc))
	tr := make([]dynamo.State, len(conc))

	var (
		mu       sync.Mutex
		firstErr error
	)
	dynamo.ParallelFor(len(conc), 64, func(start, end int) {
		for i := start; i < end; i++ {
			a, b, err := r.rates(conc[i])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			rr[i], tr[i] = a, b
		}
	})
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return rr, tr, nil
}

func trajectory(sol *dynamo.Solution, conc, tr []dynamo.State) iter.Seq[metrics.Sample] {
	return func(yield func(metrics.Sample) bool) {
		for i := range sol.X {
			s := metrics.Sample{
				X:                   sol.X[i],
				State:               sol.Y[i],
				Concentrations:      conc[i],
				TransformationRates: tr[i],
			}
			if !yield(s) {
				return
			}
		}
	}
}

// columns turns row-per-sample data into a series per label.
func columns(labels []string, rows []dynamo.State) map[string][]float64 {
	out := make(map[string][]float64, len(labels))
	for j, l := range labels {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[j]
		}
		out[l] = col
	}
	return out
}

func (r *Reactor) reactionNames() []string {
	names := make([]string, len(r.reactions))
	for i, rx := range r.reactions {
		names[i] = rx.Name()
	}
	return names
}

func (r *Reactor) plot(p viz.Plotter, res *Result) error {
	figs := []viz.Figure{
		figure("Concentration", res, res.Species, res.Concentrations),
		figure(r.kind.StateLabel(), res, res.Species, res.State),
		figure("Reaction rates", res, res.Reactions, res.ReactionRates),
		figure("Transformation rates", res, res.Species, res.TransformationRates),
	}
	if res.Volume != nil {
		figs = append(figs, viz.Figure{
			Title:  "Liquid volume",
			XLabel: r.kind.XLabel(),
			X:      res.X,
			Series: []viz.Series{{Label: "Volume", Values: res.Volume}},
		})
	}

	for _, fig := range figs {
		if err := p.Plot(fig); err != nil {
			return err
		}
	}
	return nil
}

func figure(title string, res *Result, labels []string, data map[string][]float64) viz.Figure {
	fig := viz.Figure{Title: title, XLabel: res.Kind.XLabel(), X: res.X}
	for _, l := range labels {
		fig.Series = append(fig.Series, viz.Series{Label: l, Values: data[l]})
	}
	return fig
}
