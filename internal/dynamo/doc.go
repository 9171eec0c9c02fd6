// Package dynamo provides the numerical primitives shared by the reactor
// models and the integrators.
//
// The package defines the contract between a mass-balance model and the
// ODE solver that advances it:
//
//   - [State]: vector of moles or molar flows in canonical species order
//   - [Func]: right-hand side dy/dx = f(x, y)
//   - [Solver]: integrates a [Func] over a span and reports the state at
//     requested sample points
//   - [Solution]: sampled coordinates, states and solver [Stats]
//
// # Example
//
//	solver := integrators.NewRosenbrock()
//	sol, err := solver.Integrate(ctx, f, dynamo.Span{0, 10}, y0, samples, opts)
//
// # Thread Safety
//
// Rosenbrock and RK45 keep no state between calls and may be shared across
// goroutines. RK4 reuses scratch buffers and must not be.
// A [Func] handed to a solver must be safe for the solver's own use only;
// it is never called concurrently by a single Integrate call.
package dynamo
