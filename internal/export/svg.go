package export

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/san-kum/reactsim/internal/viz"
)

var strokes = []string{"#4e9af1", "#f15a4e", "#5cc96b", "#f1c84e", "#c05cf1", "#4ef1e4"}

const (
	svgPad    = 40.0
	svgLegend = 16.0
)

// WriteSVG draws fig as a standalone SVG line chart. Non-finite series are
// skipped.
func WriteSVG(w io.Writer, fig viz.Figure, width, height int) error {
	var series []viz.Series
	for _, s := range fig.Series {
		if len(s.Values) == len(fig.X) && len(s.Values) > 1 && finite(s.Values) {
			series = append(series, s)
		}
	}
	if len(series) == 0 {
		return fmt.Errorf("%w: %q", viz.ErrEmptyFigure, fig.Title)
	}

	minX, maxX := bounds(fig.X)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		lo, hi := bounds(s.Values)
		minY = math.Min(minY, lo)
		maxY = math.Max(maxY, hi)
	}
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.05
	rangeY *= 1.1

	plotW := float64(width) - 2*svgPad
	plotH := float64(height) - 2*svgPad

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<text x="%.1f" y="%.1f" fill="#dddddd" font-family="monospace" font-size="14">%s</text>
<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#444444"/>
`, width, height, width, height,
		svgPad, svgPad*0.6, html.EscapeString(caption(fig)),
		svgPad, svgPad, plotW, plotH)

	for i, s := range series {
		stroke := strokes[i%len(strokes)]
		sb.WriteString(`<path fill="none" stroke="` + stroke + `" stroke-width="1.5" d="M`)
		for j, y := range s.Values {
			px := svgPad + (fig.X[j]-minX)/rangeX*plotW
			py := svgPad + plotH - (y-minY)/rangeY*plotH
			if j > 0 {
				sb.WriteString(" L")
			}
			fmt.Fprintf(&sb, "%.1f,%.1f", px, py)
		}
		sb.WriteString("\"/>\n")
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" fill="%s" font-family="monospace" font-size="12">%s</text>
`, svgPad+plotW+4, svgPad+float64(i+1)*svgLegend, stroke, html.EscapeString(s.Label))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func caption(fig viz.Figure) string {
	if fig.XLabel == "" {
		return fig.Title
	}
	return fig.Title + " vs " + fig.XLabel
}

func bounds(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
