// Package sweep evaluates a reactor over a list of values of one regime
// parameter. Points run concurrently and come back in input order.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/reactsim/internal/reactor"
)

var (
	ErrUnknownParam  = errors.New("sweep: unknown parameter")
	ErrNotApplicable = errors.New("sweep: parameter not used by regime")
	ErrNoValues      = errors.New("sweep: no values")
)

// Param names a regime field that can be swept.
type Param string

const (
	FlowRate      Param = "flow_rate"
	Volume        Param = "volume"
	InitialVolume Param = "initial_volume"
)

func ParseParam(s string) (Param, error) {
	switch p := Param(s); p {
	case FlowRate, Volume, InitialVolume:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownParam, s)
}

// Apply returns a copy of regime with p set to v. Validation of v is left
// to reactor.New.
func Apply(regime reactor.Regime, p Param, v float64) (reactor.Regime, error) {
	switch r := deref(regime).(type) {
	case reactor.Batch:
		if p == Volume {
			r.Volume = v
			return r, nil
		}
	case reactor.FedBatch:
		switch p {
		case Volume:
			r.Volume = v
		case InitialVolume:
			r.InitialVolume = v
		case FlowRate:
			r.FlowRate = v
		}
		return r, nil
	case reactor.CSTR:
		switch p {
		case Volume:
			r.Volume = v
		case InitialVolume:
			r.InitialVolume = v
		case FlowRate:
			r.FlowRate = v
		}
		return r, nil
	case reactor.PFR:
		switch p {
		case Volume:
			r.Volume = v
			return r, nil
		case FlowRate:
			r.FlowRate = v
			return r, nil
		}
	case nil:
		return nil, reactor.ErrUnknownRegime
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrNotApplicable, p, regime.Kind())
}

func deref(r reactor.Regime) reactor.Regime {
	switch v := r.(type) {
	case *reactor.Batch:
		if v != nil {
			return *v
		}
	case *reactor.FedBatch:
		if v != nil {
			return *v
		}
	case *reactor.CSTR:
		if v != nil {
			return *v
		}
	case *reactor.PFR:
		if v != nil {
			return *v
		}
	default:
		return r
	}
	return nil
}

type Options struct {
	Param  Param
	Values []float64

	// Span is the run length for final-state sweeps. Zero lets a PFR use
	// its volume.
	Span float64

	// Species switches to a steady-state sweep reporting the maximum
	// conversion of this species.
	Species     string
	SteadyState reactor.SteadyStateOptions

	// Workers bounds concurrent runs, GOMAXPROCS when zero.
	Workers int
}

// Point is the outcome at one parameter value. A failed point carries Err
// and leaves the rest of the sweep intact.
type Point struct {
	Value      float64
	Final      *reactor.Snapshot
	Conversion float64
	Err        error
}

// Run evaluates base at every value in opts.Values. The returned error is
// non-nil only for invalid options or a cancelled context.
func Run(ctx context.Context, base *reactor.Reactor, opts Options) ([]Point, error) {
	if len(opts.Values) == 0 {
		return nil, ErrNoValues
	}
	if _, err := ParseParam(string(opts.Param)); err != nil {
		return nil, err
	}
	if _, err := Apply(base.Regime(), opts.Param, opts.Values[0]); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]Point, len(opts.Values))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, v := range opts.Values {
		points[i].Value = v
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			points[i].Final, points[i].Conversion, points[i].Err = evaluate(gctx, base, opts, v)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func evaluate(ctx context.Context, base *reactor.Reactor, opts Options, v float64) (*reactor.Snapshot, float64, error) {
	regime, err := Apply(base.Regime(), opts.Param, v)
	if err != nil {
		return nil, 0, err
	}
	r, err := base.WithRegime(regime)
	if err != nil {
		return nil, 0, err
	}

	if opts.Species == "" {
		res, err := r.Run(ctx, opts.Span, reactor.RunOptions{})
		if err != nil {
			return nil, 0, err
		}
		return res.Final(), 0, nil
	}

	conversion, ss, err := r.MaximumConversion(ctx, opts.Species, opts.SteadyState)
	if err != nil {
		return nil, 0, err
	}
	return ss, conversion, nil
}
