package export

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/reactsim/internal/reactor"
)

type Stats struct {
	Steps       int     `json:"steps"`
	Rejected    int     `json:"rejected"`
	Evaluations int     `json:"evaluations"`
	Jacobians   int     `json:"jacobians"`
	LastStep    float64 `json:"last_step"`
}

// Document is the JSON form of a reactor.Result.
type Document struct {
	Regime    string    `json:"regime"`
	Solver    string    `json:"solver"`
	XLabel    string    `json:"x_label"`
	Species   []string  `json:"species"`
	Reactions []string  `json:"reactions"`
	X         []float64 `json:"x"`

	Concentrations      map[string][]float64 `json:"concentrations"`
	State               map[string][]float64 `json:"state,omitempty"`
	ReactionRates       map[string][]float64 `json:"reaction_rates,omitempty"`
	TransformationRates map[string][]float64 `json:"transformation_rates,omitempty"`
	Volume              []float64            `json:"volume,omitempty"`

	Metrics map[string]float64 `json:"metrics"`
	Stats   Stats              `json:"stats"`
}

func NewDocument(res *reactor.Result) *Document {
	doc := &Document{
		Regime:              res.Kind.String(),
		Solver:              res.Solver,
		XLabel:              res.Kind.XLabel(),
		Species:             res.Species,
		Reactions:           res.Reactions,
		X:                   res.X,
		Concentrations:      res.Concentrations,
		State:               res.State,
		ReactionRates:       res.ReactionRates,
		TransformationRates: res.TransformationRates,
		Volume:              res.Volume,
		Metrics:             make(map[string]float64, len(res.Metrics)),
		Stats: Stats{
			Steps:       res.Stats.Steps,
			Rejected:    res.Stats.Rejected,
			Evaluations: res.Stats.Evaluations,
			Jacobians:   res.Stats.Jacobians,
			LastStep:    res.Stats.LastStep,
		},
	}
	// encoding/json rejects NaN and Inf
	for k, v := range res.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			doc.Metrics[k] = v
		}
	}
	return doc
}

func WriteJSON(w io.Writer, res *reactor.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewDocument(res))
}
