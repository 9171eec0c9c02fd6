// Package export encodes reactor results for other tools: JSON and CSV
// trajectories and SVG line charts.
package export
