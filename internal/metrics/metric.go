// Package metrics summarises a simulated trajectory into scalar figures of
// merit. Metrics are stateful observers: feed every sample in order with
// Observe, then read Value.
package metrics

import (
	"iter"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// Sample is one output point of a trajectory. TransformationRates may be
// nil when the run did not compute them for this point.
type Sample struct {
	X                   float64
	State               dynamo.State
	Concentrations      dynamo.State
	TransformationRates dynamo.State
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Default returns fresh instances of the standard trajectory metrics.
func Default() []Metric {
	return []Metric{
		NewMassDrift(),
		NewMinConcentration(),
		NewFinalResidual(),
	}
}

// Evaluate feeds samples to every metric and returns their values by name.
func Evaluate(ms []Metric, samples iter.Seq[Sample]) map[string]float64 {
	for _, m := range ms {
		m.Reset()
	}
	for s := range samples {
		for _, m := range ms {
			m.Observe(s)
		}
	}

	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
