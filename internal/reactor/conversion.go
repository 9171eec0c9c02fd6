package reactor

import (
	"context"
	"fmt"
	"math"
)

// ConversionResult is the reactor at the first sample where the species
// reaches the target conversion.
type ConversionResult struct {
	Snapshot
	Species string
	Target  float64
	// Maximum is the conversion at steady state.
	Maximum float64
	// SteadyState is the coordinate the search simulated up to.
	SteadyState float64
}

// FindConversion locates the coordinate at which the concentration of
// species has fallen to c0*(1-target), where c0 is the initial bulk
// concentration (inlet concentration for PFR).
//
// The achievable maximum is taken from FindSteadyState; targets above it
// fail with a *ConversionError.
func (r *Reactor) FindConversion(ctx context.Context, species string, target float64, opts SteadyStateOptions) (*ConversionResult, error) {
	if !(target >= 0 && target <= 1) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidConversion, target)
	}
	maximum, ss, err := r.MaximumConversion(ctx, species, opts)
	if err != nil {
		return nil, err
	}
	if target > maximum {
		return nil, &ConversionError{Species: species, Target: target, Maximum: maximum}
	}
	c0, err := r.InitialConcentration(species)
	if err != nil {
		return nil, err
	}

	res, err := r.Run(ctx, ss.X, RunOptions{FullOutput: true})
	if err != nil {
		return nil, err
	}

	want := c0 * (1 - target)
	series := res.Concentrations[species]
	for i, c := range series {
		if c <= want {
			out := &ConversionResult{
				Snapshot:    *res.Snapshot(i),
				Species:     species,
				Target:      target,
				Maximum:     maximum,
				SteadyState: ss.X,
			}
			r.logger.InfoContext(ctx, "conversion reached",
				"species", species,
				"target", target,
				"maximum", maximum,
				"x", out.X,
			)
			return out, nil
		}
	}

	// the rerun did not get as low as the steady-state sample
	reached := (c0 - minimum(series)) / c0
	return nil, &ConversionError{Species: species, Target: target, Maximum: reached}
}

// MaximumConversion is the conversion of species at steady state, along
// with the steady-state snapshot it was read from.
func (r *Reactor) MaximumConversion(ctx context.Context, species string, opts SteadyStateOptions) (float64, *Snapshot, error) {
	c0, err := r.InitialConcentration(species)
	if err != nil {
		return 0, nil, err
	}
	if c0 == 0 {
		return 0, nil, fmt.Errorf("%w: %q", ErrZeroInitialConcentration, species)
	}
	ss, err := r.FindSteadyState(ctx, opts)
	if err != nil {
		return 0, nil, err
	}
	return (c0 - ss.Concentrations[species]) / c0, ss, nil
}

func minimum(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}
