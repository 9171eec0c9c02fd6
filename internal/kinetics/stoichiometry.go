package kinetics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Stoichiometry is the species x reactions coefficient matrix for a fixed
// species ordering. Entry (i, j) is the coefficient of species i in
// reaction j, zero when the species is not involved.
type Stoichiometry struct {
	species   []string
	reactions []string
	m         *mat.Dense
}

func NewStoichiometry(species []string, reactions []*Reaction) (*Stoichiometry, error) {
	if len(species) == 0 || len(reactions) == 0 {
		return nil, fmt.Errorf("%w: %d species, %d reactions", ErrDimensionMismatch, len(species), len(reactions))
	}

	m := mat.NewDense(len(species), len(reactions), nil)
	names := make([]string, len(reactions))
	for j, r := range reactions {
		names[j] = r.Name()
		for i, s := range species {
			if c, ok := r.Coefficient(s); ok {
				m.Set(i, j, c)
			}
		}
	}

	return &Stoichiometry{
		species:   append([]string(nil), species...),
		reactions: names,
		m:         m,
	}, nil
}

// Dims returns the number of species and reactions.
func (s *Stoichiometry) Dims() (int, int) { return s.m.Dims() }

func (s *Stoichiometry) At(i, j int) float64 { return s.m.At(i, j) }

// Species returns the row labels.
func (s *Stoichiometry) Species() []string { return append([]string(nil), s.species...) }

// TransformationRates returns M*rates, the net production rate of every
// species. len(rates) must equal the number of reactions.
func (s *Stoichiometry) TransformationRates(rates []float64) []float64 {
	rows, cols := s.m.Dims()
	if len(rates) != cols {
		panic(fmt.Sprintf("kinetics: %d rates for %d reactions", len(rates), cols))
	}
	out := make([]float64, rows)
	dst := mat.NewVecDense(rows, out)
	dst.MulVec(s.m, mat.NewVecDense(cols, append([]float64(nil), rates...)))
	return out
}

// Conserving reports whether every reaction's coefficients sum to zero,
// i.e. total moles are invariant under reaction.
func (s *Stoichiometry) Conserving() bool {
	rows, cols := s.m.Dims()
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += s.m.At(i, j)
		}
		if sum != 0 {
			return false
		}
	}
	return true
}
