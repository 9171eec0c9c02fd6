package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/san-kum/reactsim/internal/reactor"
)

// WriteCSV writes one row per sample. Columns are the coordinate, then
// C_<species>, and with full output N_<species>, r_<reaction>,
// R_<species> and V where present.
func WriteCSV(w io.Writer, res *reactor.Result) error {
	type column struct {
		name   string
		values []float64
	}
	cols := []column{{res.Kind.XLabel(), res.X}}
	add := func(prefix string, keys []string, m map[string][]float64) {
		if m == nil {
			return
		}
		for _, k := range keys {
			cols = append(cols, column{prefix + k, m[k]})
		}
	}
	add("C_", res.Species, res.Concentrations)
	add("N_", res.Species, res.State)
	add("r_", res.Reactions, res.ReactionRates)
	add("R_", res.Species, res.TransformationRates)
	if res.Volume != nil {
		cols = append(cols, column{"V", res.Volume})
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for j, c := range cols {
		header[j] = c.name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(cols))
	for i := range res.X {
		for j, c := range cols {
			row[j] = strconv.FormatFloat(c.values[i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
