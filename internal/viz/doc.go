// Package viz renders trajectories in the terminal.
//
//   - [Terminal]: a [Plotter] drawing labelled line charts with asciigraph
//   - [Sparkline]: one-line trend glyphs for tables and the viewer
//
// Figures are plain data ([Figure], [Series]) so simulation code can
// produce them without depending on a rendering backend.
package viz
