package reactor

import (
	"fmt"
	"math"
	"sort"
)

// Kind names an operating regime.
type Kind int

const (
	KindBatch Kind = iota
	KindFedBatch
	KindCSTR
	KindPFR
)

func (k Kind) String() string {
	switch k {
	case KindBatch:
		return "Batch"
	case KindFedBatch:
		return "Fed-batch"
	case KindCSTR:
		return "CSTR"
	case KindPFR:
		return "PFR"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the display names and their lower-case forms.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Batch", "batch":
		return KindBatch, nil
	case "Fed-batch", "fed-batch", "fedbatch", "fed_batch":
		return KindFedBatch, nil
	case "CSTR", "cstr":
		return KindCSTR, nil
	case "PFR", "pfr":
		return KindPFR, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRegime, s)
}

// Regime is one of Batch, FedBatch, CSTR or PFR. Each variant carries only
// the parameters its mass balance uses.
type Regime interface {
	Kind() Kind
	regime()
}

// Batch is a closed vessel of constant volume.
type Batch struct {
	Volume  float64
	Initial map[string]float64
}

// FedBatch fills from InitialVolume at FlowRate until Volume is reached.
// It has no outlet.
type FedBatch struct {
	Volume        float64
	InitialVolume float64
	FlowRate      float64
	Initial       map[string]float64
	Inlet         map[string]float64
}

// CSTR fills like FedBatch and then overflows at FlowRate once full.
type CSTR struct {
	Volume        float64
	InitialVolume float64
	FlowRate      float64
	Initial       map[string]float64
	Inlet         map[string]float64
}

// PFR is a plug-flow tube. The independent variable is the traversed
// volume and the state is molar flow.
type PFR struct {
	Volume   float64
	FlowRate float64
	Inlet    map[string]float64
}

func (Batch) Kind() Kind    { return KindBatch }
func (FedBatch) Kind() Kind { return KindFedBatch }
func (CSTR) Kind() Kind     { return KindCSTR }
func (PFR) Kind() Kind      { return KindPFR }

func (Batch) regime()    {}
func (FedBatch) regime() {}
func (CSTR) regime()     {}
func (PFR) regime()      {}

// liquidVolume is the volume held at time x by a vessel filling from v0 at
// rate f up to vmax.
func liquidVolume(v0, f, vmax, x float64) float64 {
	return math.Min(v0+f*x, vmax)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneRegime copies the concentration maps so later changes by the caller
// cannot reach the reactor.
func cloneRegime(r Regime) Regime {
	switch v := r.(type) {
	case Batch:
		v.Initial = cloneMap(v.Initial)
		return v
	case *Batch:
		if v == nil {
			return nil
		}
		return cloneRegime(*v)
	case FedBatch:
		v.Initial = cloneMap(v.Initial)
		v.Inlet = cloneMap(v.Inlet)
		return v
	case *FedBatch:
		if v == nil {
			return nil
		}
		return cloneRegime(*v)
	case CSTR:
		v.Initial = cloneMap(v.Initial)
		v.Inlet = cloneMap(v.Inlet)
		return v
	case *CSTR:
		if v == nil {
			return nil
		}
		return cloneRegime(*v)
	case PFR:
		v.Inlet = cloneMap(v.Inlet)
		return v
	case *PFR:
		if v == nil {
			return nil
		}
		return cloneRegime(*v)
	}
	return nil
}
