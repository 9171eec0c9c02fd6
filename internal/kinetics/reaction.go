// Package kinetics describes reactions and the stoichiometry that links
// reaction rates to per-species production rates.
package kinetics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/reactsim/internal/ratelaw"
)

var (
	ErrInvalidSpecies       = errors.New("kinetics: rate law symbol is not a declared species")
	ErrDimensionMismatch    = errors.New("kinetics: species and coefficient counts differ")
	ErrDuplicateSpecies     = errors.New("kinetics: species repeated")
	ErrMissingConcentration = errors.New("kinetics: missing concentration")
)

// Reaction is one directed reaction: signed stoichiometric coefficients
// (negative for reactants) and a rate law over the species concentrations.
// A Reaction is immutable and may be shared between reactors.
type Reaction struct {
	name    string
	species []string
	coeffs  []float64
	index   map[string]int
	law     *ratelaw.Expr
}

func NewReaction(name string, species []string, coeffs []float64, rateLaw string) (*Reaction, error) {
	if len(species) != len(coeffs) {
		return nil, fmt.Errorf("%w: %d species, %d coefficients", ErrDimensionMismatch, len(species), len(coeffs))
	}

	index := make(map[string]int, len(species))
	for i, s := range species {
		if _, dup := index[s]; dup {
			return nil, fmt.Errorf("%w: %q in reaction %q", ErrDuplicateSpecies, s, name)
		}
		index[s] = i
	}

	law, err := ratelaw.Compile(rateLaw, species)
	if err != nil {
		if errors.Is(err, ratelaw.ErrUnknownSymbol) {
			return nil, fmt.Errorf("%w (reaction %q): %v", ErrInvalidSpecies, name, err)
		}
		return nil, fmt.Errorf("reaction %q: %w", name, err)
	}

	r := &Reaction{
		name:    name,
		species: append([]string(nil), species...),
		coeffs:  append([]float64(nil), coeffs...),
		index:   index,
		law:     law,
	}
	return r, nil
}

// MustReaction is like NewReaction but panics on error.
func MustReaction(name string, species []string, coeffs []float64, rateLaw string) *Reaction {
	r, err := NewReaction(name, species, coeffs, rateLaw)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Reaction) Name() string { return r.name }

// Species returns the declared species in declaration order.
func (r *Reaction) Species() []string {
	return append([]string(nil), r.species...)
}

// Coefficients returns a copy of the species to coefficient mapping.
func (r *Reaction) Coefficients() map[string]float64 {
	out := make(map[string]float64, len(r.species))
	for i, s := range r.species {
		out[s] = r.coeffs[i]
	}
	return out
}

// Coefficient reports the coefficient of species, or false if the species
// takes no part in the reaction.
func (r *Reaction) Coefficient(species string) (float64, bool) {
	i, ok := r.index[species]
	if !ok {
		return 0, false
	}
	return r.coeffs[i], true
}

func (r *Reaction) RateLaw() string { return r.law.String() }

// Rate evaluates the rate law. Every symbol the law uses must be present in
// conc; species the law does not use may be omitted.
func (r *Reaction) Rate(conc map[string]float64) (float64, error) {
	v, err := r.law.Evaluate(conc)
	if err != nil {
		if errors.Is(err, ratelaw.ErrUnbound) {
			return 0, fmt.Errorf("%w: reaction %q: %v", ErrMissingConcentration, r.name, err)
		}
		return 0, fmt.Errorf("reaction %q: %w", r.name, err)
	}
	return v, nil
}

func (r *Reaction) String() string {
	var b strings.Builder
	b.WriteString("Species: {")
	for i, s := range r.species {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s)
		b.WriteString(": ")
		b.WriteString(strconv.FormatFloat(r.coeffs[i], 'g', -1, 64))
	}
	b.WriteString("}\nRate law: ")
	b.WriteString(r.law.String())
	return b.String()
}
