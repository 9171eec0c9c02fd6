package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/reactsim/internal/dynamo"
)

const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 5.0
)

// stepper advances one step of size h from (x, y) where fy = f(x, y).
// errEst is nil for fixed-step methods.
type stepper interface {
	info() dynamo.SolverInfo
	// errOrder is the power of h in the local error estimate, zero for
	// fixed-step methods.
	errOrder() int
	step(f dynamo.Func, x float64, y, fy dynamo.State, h float64, st *dynamo.Stats) (yNew, fNew, errEst dynamo.State, err error)
}

// integrate drives a stepper across the span. Steps are clamped so that
// every sample point is hit exactly, which removes the need for dense
// output interpolation.
func integrate(ctx context.Context, s stepper, f dynamo.Func, span dynamo.Span, y0 dynamo.State, samples []float64, opts dynamo.Options) (*dynamo.Solution, error) {
	if err := validate(span, y0, samples); err != nil {
		return nil, err
	}
	opts = withDefaults(opts, span)

	sol := &dynamo.Solution{
		X: make([]float64, 0, len(samples)),
		Y: make([]dynamo.State, 0, len(samples)),
	}
	st := &sol.Stats
	n := len(y0)

	rhs := func(x float64, y dynamo.State) dynamo.State {
		st.Evaluations++
		return f(x, y)
	}

	x := span[0]
	y := y0.Clone()
	fy := rhs(x, y)
	if len(fy) != n {
		return nil, fmt.Errorf("%w: derivative has %d entries, state has %d", dynamo.ErrDimensionMismatch, len(fy), n)
	}

	k := 0
	for k < len(samples) && samples[k] <= x {
		sol.X = append(sol.X, samples[k])
		sol.Y = append(sol.Y, y.Clone())
		k++
	}

	p := float64(s.errOrder())
	h := opts.MaxStep
	if p > 0 {
		h = initialStep(x, y, fy, opts)
	}
	name := s.info().Name
	fail := func(err error) error {
		return &dynamo.IntegrationError{Solver: name, Step: st.Steps, X: x, H: h, Wrapped: err}
	}

	for k < len(samples) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if st.Steps >= opts.MaxSteps {
			return nil, fail(dynamo.ErrTooManySteps)
		}

		target := samples[k]
		h = math.Min(h, opts.MaxStep)
		hFree := h
		hit := false
		if x+h >= target-1e-12*math.Max(1, math.Abs(target)) {
			h = target - x
			hit = true
		}

		st.Steps++
		yNew, fNew, errEst, err := s.step(rhs, x, y, fy, h, st)
		if err == nil && !yNew.IsValid() {
			err = dynamo.ErrInvalidState
		}

		en := 0.0
		if err == nil && errEst != nil {
			en = errorNorm(errEst, y, yNew, opts)
		}

		if err != nil || en > 1 {
			st.Rejected++
			if err != nil {
				h *= 0.5
			} else {
				h *= math.Max(minScale, safety*math.Pow(en, -1/p))
			}
			if h < opts.MinStep {
				if err == nil {
					err = dynamo.ErrStepTooSmall
				}
				return nil, fail(err)
			}
			continue
		}

		if hit {
			x = target
		} else {
			x += h
		}
		y, fy = yNew, fNew
		st.LastStep = h

		for k < len(samples) && samples[k] <= x {
			sol.X = append(sol.X, samples[k])
			sol.Y = append(sol.Y, y.Clone())
			k++
		}

		if errEst == nil {
			h = hFree
			continue
		}

		factor := maxScale
		if en > 0 {
			factor = math.Min(maxScale, math.Max(minScale, safety*math.Pow(en, -1/p)))
		}
		h *= factor
		if hit && factor >= 1 && h < hFree {
			h = hFree
		}
	}

	return sol, nil
}

func validate(span dynamo.Span, y0 dynamo.State, samples []float64) error {
	if !(span[1] > span[0]) || math.IsInf(span[1], 0) || math.IsNaN(span[0]) {
		return fmt.Errorf("%w: [%g, %g]", dynamo.ErrInvalidSpan, span[0], span[1])
	}
	if len(y0) == 0 {
		return fmt.Errorf("%w: empty initial state", dynamo.ErrDimensionMismatch)
	}
	if !y0.IsValid() {
		return dynamo.ErrInvalidState
	}
	if len(samples) == 0 {
		return fmt.Errorf("%w: no sample points", dynamo.ErrInvalidSpan)
	}
	tol := 1e-12 * math.Max(1, math.Abs(span[1]))
	prev := math.Inf(-1)
	for i, s := range samples {
		if s < span[0]-tol || s > span[1]+tol {
			return fmt.Errorf("%w: sample %d (%g) outside [%g, %g]", dynamo.ErrInvalidSpan, i, s, span[0], span[1])
		}
		if s < prev {
			return fmt.Errorf("%w: samples not ascending at %d", dynamo.ErrInvalidSpan, i)
		}
		prev = s
	}
	return nil
}

func withDefaults(opts dynamo.Options, span dynamo.Span) dynamo.Options {
	def := dynamo.DefaultOptions()
	if opts.MaxStep <= 0 {
		opts.MaxStep = span.Length()
	}
	if opts.MinStep <= 0 {
		opts.MinStep = def.MinStep
	}
	if opts.RelTol <= 0 {
		opts.RelTol = def.RelTol
	}
	if opts.AbsTol <= 0 {
		opts.AbsTol = def.AbsTol
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = def.MaxSteps
	}
	return opts
}

// initialStep picks h0 from the scaled magnitudes of y and f(x, y).
func initialStep(x float64, y, fy dynamo.State, opts dynamo.Options) float64 {
	d0, d1 := 0.0, 0.0
	for i := range y {
		sc := opts.AbsTol + opts.RelTol*math.Abs(y[i])
		d0 += (y[i] / sc) * (y[i] / sc)
		d1 += (fy[i] / sc) * (fy[i] / sc)
	}
	n := float64(len(y))
	d0 = math.Sqrt(d0 / n)
	d1 = math.Sqrt(d1 / n)

	h := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h = 0.01 * d0 / d1
	}
	return math.Min(h, opts.MaxStep)
}

// errorNorm is the RMS of the error estimate scaled by the mixed tolerance.
func errorNorm(errEst, y, yNew dynamo.State, opts dynamo.Options) float64 {
	sum := 0.0
	for i := range errEst {
		sc := opts.AbsTol + opts.RelTol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
		r := errEst[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(errEst)))
}
