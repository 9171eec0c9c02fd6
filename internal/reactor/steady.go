package reactor

import (
	"context"
	"fmt"
	"math"
)

// SteadyStateOptions tunes the steady-state search. Zero fields take the
// defaults from DefaultSteadyStateOptions.
type SteadyStateOptions struct {
	// Guess is the first span tried; it grows tenfold per attempt.
	Guess float64
	// Threshold bounds |transformation rate| of every species.
	Threshold     float64
	MaxIterations int
}

func DefaultSteadyStateOptions() SteadyStateOptions {
	return SteadyStateOptions{
		Guess:         10,
		Threshold:     1e-3,
		MaxIterations: 10,
	}
}

func (o SteadyStateOptions) withDefaults() SteadyStateOptions {
	def := DefaultSteadyStateOptions()
	if !(o.Guess > 0) || math.IsInf(o.Guess, 0) {
		o.Guess = def.Guess
	}
	if !(o.Threshold > 0) {
		o.Threshold = def.Threshold
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	return o
}

// FindSteadyState returns the first sample at which every species'
// transformation rate is below the threshold in magnitude.
//
// A CSTR is reported at three residence times (3*V/F) without checking the
// threshold. Other regimes are simulated over Guess, 10*Guess, ... until a
// qualifying sample appears or MaxIterations spans have been tried.
func (r *Reactor) FindSteadyState(ctx context.Context, opts SteadyStateOptions) (*Snapshot, error) {
	opts = opts.withDefaults()

	if c, ok := r.regime.(CSTR); ok {
		tau := c.Volume / c.FlowRate
		res, err := r.Run(ctx, 3*tau, RunOptions{FullOutput: true})
		if err != nil {
			return nil, err
		}
		snap := res.Final()
		r.logger.InfoContext(ctx, "steady state from residence time", "regime", r.kind.String(), "tau", tau, "x", snap.X)
		return snap, nil
	}

	guess := opts.Guess
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		res, err := r.Run(ctx, guess, RunOptions{FullOutput: true})
		if err != nil {
			return nil, err
		}

		if i := firstSteady(res, opts.Threshold); i >= 0 {
			snap := res.Snapshot(i)
			r.logger.InfoContext(ctx, "steady state reached",
				"regime", r.kind.String(),
				"x", snap.X,
				"iteration", iter,
				"span", guess,
			)
			return snap, nil
		}

		r.logger.DebugContext(ctx, "steady state not in span", "regime", r.kind.String(), "iteration", iter, "span", guess)
		guess *= 10
	}

	return nil, fmt.Errorf("%w: %d spans tried, last %g, threshold %g",
		ErrSteadyStateNotReached, opts.MaxIterations, guess/10, opts.Threshold)
}

// firstSteady is the first sample index where all transformation rates are
// below threshold, or -1.
func firstSteady(res *Result, threshold float64) int {
	for i := 0; i < res.Len(); i++ {
		steady := true
		for _, s := range res.Species {
			if !(math.Abs(res.TransformationRates[s][i]) < threshold) {
				steady = false
				break
			}
		}
		if steady {
			return i
		}
	}
	return -1
}
