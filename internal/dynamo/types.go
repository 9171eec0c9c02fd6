package dynamo

import (
	"context"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sum returns the total of all components, e.g. the total moles in a vessel.
func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

// MaxAbs returns the largest component magnitude.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// Func is the right-hand side of dy/dx = f(x, y). x is time for vessels
// and traversed volume for plug flow.
type Func func(x float64, y State) State

// Span is the closed integration interval [Span[0], Span[1]].
type Span [2]float64

func (s Span) Length() float64 { return s[1] - s[0] }

// Linspace returns n evenly spaced points over the span, both ends included.
func (s Span) Linspace(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{s[0]}
	}
	pts := make([]float64, n)
	step := s.Length() / float64(n-1)
	for i := range pts {
		pts[i] = s[0] + float64(i)*step
	}
	pts[n-1] = s[1]
	return pts
}

type Options struct {
	// MaxStep caps the internal step. Zero means the span length.
	MaxStep float64
	// MinStep aborts integration when step control drives h below it.
	MinStep  float64
	RelTol   float64
	AbsTol   float64
	MaxSteps int
}

func DefaultOptions() Options {
	return Options{
		MinStep:  1e-12,
		RelTol:   1e-6,
		AbsTol:   1e-9,
		MaxSteps: 500000,
	}
}

type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	Jacobians   int
	LastStep    float64
}

type Solution struct {
	X     []float64
	Y     []State
	Stats Stats
}

type SolverInfo struct {
	Name  string
	Order int
	Stiff bool
}

// Solver integrates f from span[0] to span[1] starting at y0 and returns the
// state at every sample point. Samples must be ascending and inside the span.
type Solver interface {
	Info() SolverInfo
	Integrate(ctx context.Context, f Func, span Span, y0 State, samples []float64, opts Options) (*Solution, error)
}
