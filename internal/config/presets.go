package config

import "sort"

func feed() map[string]float64 {
	return map[string]float64{"A": 1, "B": 1, "C": 0}
}

func preset(rc ReactorConfig, reactions []ReactionConfig, span float64) *Config {
	cfg := DefaultConfig()
	cfg.Reactor = rc
	cfg.Reactions = reactions
	cfg.Run.Span = span
	return cfg
}

// Presets are ready-made scenarios keyed by name.
var Presets = map[string]*Config{
	"batch": preset(ReactorConfig{Type: "batch", Volume: 10, Initial: feed()},
		equilibriumReactions(), 10),
	"fed-batch": preset(ReactorConfig{Type: "fed-batch", Volume: 10, InitialVolume: 0.5, FlowRate: 0.1, Initial: feed(), Inlet: feed()},
		equilibriumReactions(), 10),
	"cstr": preset(ReactorConfig{Type: "cstr", Volume: 10, InitialVolume: 0.5, FlowRate: 0.1, Initial: feed(), Inlet: feed()},
		equilibriumReactions(), 10),
	"pfr": preset(ReactorConfig{Type: "pfr", Volume: 10, FlowRate: 1, Inlet: feed()},
		equilibriumReactions(), 0),
	"series": preset(ReactorConfig{Type: "cstr", Volume: 5, InitialVolume: 5, FlowRate: 0.5,
		Initial: map[string]float64{"A": 0, "B": 0, "C": 0}, Inlet: map[string]float64{"A": 2}},
		[]ReactionConfig{
			{Name: "first", Species: []string{"A", "B"}, Coefficients: []float64{-1, 1}, Rate: "0.4*A"},
			{Name: "second", Species: []string{"B", "C"}, Coefficients: []float64{-1, 1}, Rate: "0.1*B"},
		}, 50),
	"isomerisation": preset(ReactorConfig{Type: "batch", Volume: 2, Initial: map[string]float64{"A": 1, "B": 0.5}},
		[]ReactionConfig{
			{Name: "isomerisation", Species: []string{"A", "B"}, Coefficients: []float64{-1, 1}, Rate: "0.3*A"},
			{Name: "reverse", Species: []string{"A", "B"}, Coefficients: []float64{1, -1}, Rate: "0.1*B"},
		}, 30),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
