package metrics

import "math"

// MassDrift is the largest relative change of the state total (moles or
// molar flow) from the first sample. Only closed, mole-conserving systems
// are expected to keep it near zero.
type MassDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewMassDrift() *MassDrift {
	return &MassDrift{name: "mass_drift"}
}

func (m *MassDrift) Name() string { return m.name }

func (m *MassDrift) Observe(s Sample) {
	total := s.State.Sum()
	if m.samples == 0 {
		m.initial = total
	}
	m.samples++

	diff := math.Abs(total - m.initial)
	if m.initial != 0 {
		diff /= math.Abs(m.initial)
	}
	m.maxDrift = math.Max(m.maxDrift, diff)
}

func (m *MassDrift) Value() float64 { return m.maxDrift }

func (m *MassDrift) Reset() {
	m.initial = 0
	m.maxDrift = 0
	m.samples = 0
}
