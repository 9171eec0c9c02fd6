package metrics

import "math"

// MinConcentration tracks the smallest concentration of any species. A
// negative value means the solver undershot zero.
type MinConcentration struct {
	name    string
	min     float64
	samples int
}

func NewMinConcentration() *MinConcentration {
	return &MinConcentration{name: "min_concentration", min: math.Inf(1)}
}

func (m *MinConcentration) Name() string { return m.name }

func (m *MinConcentration) Observe(s Sample) {
	m.samples++
	for _, c := range s.Concentrations {
		if c < m.min {
			m.min = c
		}
	}
}

func (m *MinConcentration) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.min
}

func (m *MinConcentration) Reset() {
	m.min = math.Inf(1)
	m.samples = 0
}

// FinalResidual is max |transformation rate| at the last sample that
// carried rates, NaN if none did.
type FinalResidual struct {
	name  string
	value float64
	seen  bool
}

func NewFinalResidual() *FinalResidual {
	return &FinalResidual{name: "final_residual"}
}

func (f *FinalResidual) Name() string { return f.name }

func (f *FinalResidual) Observe(s Sample) {
	if s.TransformationRates == nil {
		return
	}
	f.value = s.TransformationRates.MaxAbs()
	f.seen = true
}

func (f *FinalResidual) Value() float64 {
	if !f.seen {
		return math.NaN()
	}
	return f.value
}

func (f *FinalResidual) Reset() {
	f.value = 0
	f.seen = false
}
