package viz

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/guptarohit/asciigraph"
)

var ErrEmptyFigure = errors.New("viz: figure has no data")

// Series is one labelled line of a figure, aligned with Figure.X.
type Series struct {
	Label  string
	Values []float64
}

// Figure is one panel: several series over a shared x axis.
type Figure struct {
	Title  string
	XLabel string
	X      []float64
	Series []Series
}

// Plotter displays figures.
type Plotter interface {
	Plot(fig Figure) error
}

var palette = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Red,
	asciigraph.Green,
	asciigraph.Yellow,
	asciigraph.Magenta,
	asciigraph.Cyan,
}

// Terminal draws figures as ASCII line charts.
type Terminal struct {
	w      io.Writer
	Width  int
	Height int
	// Color enables ANSI series colors.
	Color bool
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, Width: 80, Height: 12, Color: true}
}

func (t *Terminal) Plot(fig Figure) error {
	data := make([][]float64, 0, len(fig.Series))
	labels := make([]string, 0, len(fig.Series))
	for _, s := range fig.Series {
		if len(s.Values) == 0 || !finite(s.Values) {
			continue
		}
		data = append(data, s.Values)
		labels = append(labels, s.Label)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyFigure, fig.Title)
	}

	opts := []asciigraph.Option{
		asciigraph.Height(t.Height),
		asciigraph.Width(t.Width),
		asciigraph.Caption(caption(fig)),
		asciigraph.SeriesLegends(labels...),
	}
	// legends need one color per series, Default when color is off
	colors := make([]asciigraph.AnsiColor, len(data))
	for i := range colors {
		colors[i] = asciigraph.Default
		if t.Color {
			colors[i] = palette[i%len(palette)]
		}
	}
	opts = append(opts, asciigraph.SeriesColors(colors...))

	graph := asciigraph.PlotMany(data, opts...)
	_, err := fmt.Fprintf(t.w, "%s\n\n", graph)
	return err
}

func caption(fig Figure) string {
	if len(fig.X) == 0 {
		return fig.Title
	}
	return fmt.Sprintf("%s vs %s [%.4g, %.4g]", fig.Title, fig.XLabel, fig.X[0], fig.X[len(fig.X)-1])
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Recorder keeps figures in memory instead of drawing them.
type Recorder struct {
	Figures []Figure
}

func (r *Recorder) Plot(fig Figure) error {
	r.Figures = append(r.Figures, fig)
	return nil
}
