package integrators

import (
	"context"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// RK4 is the classical fixed-step Runge-Kutta method. The step is
// Options.MaxStep, shortened only to land on sample points.
type RK4 struct {
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Info() dynamo.SolverInfo { return r.info() }

// Integrate is not safe for concurrent use on the same RK4 value.
func (r *RK4) Integrate(ctx context.Context, f dynamo.Func, span dynamo.Span, y0 dynamo.State, samples []float64, opts dynamo.Options) (*dynamo.Solution, error) {
	return integrate(ctx, r, f, span, y0, samples, opts)
}

func (r *RK4) info() dynamo.SolverInfo {
	return dynamo.SolverInfo{Name: "rk4", Order: 4}
}

func (r *RK4) errOrder() int { return 0 }

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) step(f dynamo.Func, t float64, x, k1 dynamo.State, dt float64, _ *dynamo.Stats) (dynamo.State, dynamo.State, dynamo.State, error) {
	n := len(x)
	r.ensureScratch(n)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2 := f(t+dt*0.5, r.scratch)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k2[i]
	}
	k3 := f(t+dt*0.5, r.scratch)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*k3[i]
	}
	k4 := f(t+dt, r.scratch)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	return result, f(t+dt, result), nil, nil
}
