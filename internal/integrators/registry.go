package integrators

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// ErrUnknownSolver is returned by New for names not in the registry.
var ErrUnknownSolver = errors.New("integrators: unknown solver")

// Default is the solver used when none is configured.
const Default = "rosenbrock"

var registry = map[string]func() dynamo.Solver{
	"rosenbrock": func() dynamo.Solver { return NewRosenbrock() },
	"rk45":       func() dynamo.Solver { return NewRK45() },
	"rk4":        func() dynamo.Solver { return NewRK4() },
}

// New returns a fresh solver by name. An empty name selects Default.
func New(name string) (dynamo.Solver, error) {
	if name == "" {
		name = Default
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownSolver, name, Names())
	}
	return fn(), nil
}

// Names lists the registered solvers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
