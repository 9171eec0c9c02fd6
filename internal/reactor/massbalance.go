package reactor

import (
	"math"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// holdup is the liquid volume at x for vessel regimes.
func (r *Reactor) holdup(x float64) float64 {
	switch v := r.regime.(type) {
	case Batch:
		return v.Volume
	case FedBatch:
		return liquidVolume(v.InitialVolume, v.FlowRate, v.Volume, x)
	case CSTR:
		return liquidVolume(v.InitialVolume, v.FlowRate, v.Volume, x)
	}
	return math.NaN()
}

// concentrations recovers concentrations from moles (vessels) or molar
// flow (PFR). An empty vessel has zero concentrations.
func (r *Reactor) concentrations(dst dynamo.State, x float64, y dynamo.State) {
	div := 0.0
	if p, ok := r.regime.(PFR); ok {
		div = p.FlowRate
	} else {
		div = r.holdup(x)
	}

	if div == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	for i := range dst {
		dst[i] = y[i] / div
	}
}

// rates evaluates every reaction at conc and returns the reaction rates
// and the per-species transformation rates.
func (r *Reactor) rates(conc dynamo.State) ([]float64, []float64, error) {
	bind := make(map[string]float64, len(r.species))
	for i, s := range r.species {
		bind[s] = conc[i]
	}

	rr := make([]float64, len(r.reactions))
	for j, rx := range r.reactions {
		v, err := rx.Rate(bind)
		if err != nil {
			return nil, nil, err
		}
		rr[j] = v
	}
	return rr, r.stoich.TransformationRates(rr), nil
}

// derivative is the mass balance dy/dx for the reactor's regime.
func (r *Reactor) derivative(x float64, y dynamo.State) (dynamo.State, error) {
	n := len(r.species)
	conc := make(dynamo.State, n)
	r.concentrations(conc, x, y)

	_, tr, err := r.rates(conc)
	if err != nil {
		return nil, err
	}

	dy := make(dynamo.State, n)
	switch v := r.regime.(type) {
	case Batch:
		for i := range dy {
			dy[i] = tr[i] * v.Volume
		}

	case FedBatch:
		vol := liquidVolume(v.InitialVolume, v.FlowRate, v.Volume, x)
		for i := range dy {
			dy[i] = tr[i] * vol
		}
		// no outlet; feed only counts while filling
		if vol < v.Volume {
			for i := range dy {
				dy[i] += v.FlowRate * r.feed[i]
			}
		}

	case CSTR:
		vol := liquidVolume(v.InitialVolume, v.FlowRate, v.Volume, x)
		for i := range dy {
			dy[i] = tr[i]*vol + v.FlowRate*r.feed[i]
		}
		// overflow once full
		if vol >= v.Volume {
			for i := range dy {
				dy[i] -= v.FlowRate * conc[i]
			}
		}

	case PFR:
		copy(dy, tr)
	}
	return dy, nil
}

// initialState converts the starting concentrations into moles or molar
// flow.
func (r *Reactor) initialState() dynamo.State {
	var scale float64
	switch v := r.regime.(type) {
	case Batch:
		scale = v.Volume
	case FedBatch:
		scale = v.InitialVolume
	case CSTR:
		scale = v.InitialVolume
	case PFR:
		scale = v.FlowRate
	}
	return r.start.Scale(scale)
}
