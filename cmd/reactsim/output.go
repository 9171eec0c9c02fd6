package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/reactor"
	"github.com/san-kum/reactsim/internal/sweep"
	"github.com/san-kum/reactsim/internal/viz"
)

var (
	titleStyle = viz.Title
	labelStyle = viz.Label
	valueStyle = viz.Value
	errorStyle = viz.ErrorText
)

func printReactor(w io.Writer, r *reactor.Reactor) {
	fmt.Fprintln(w, viz.Panel.Render(r.String()))
}

// printSnapshot prints one row per species with whatever columns the
// snapshot carries.
func printSnapshot(w io.Writer, kind reactor.Kind, species []string, snap *reactor.Snapshot) {
	fmt.Fprintf(w, "%s %s\n\n", labelStyle.Render(kind.XLabel()+" ="), valueStyle.Render(fmt.Sprintf("%.6g", snap.X)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "SPECIES\tCONCENTRATION"
	if snap.State != nil {
		header += "\t" + strings.ToUpper(kind.StateLabel()) + "\tTRANSFORMATION RATE"
	}
	fmt.Fprintln(tw, header)
	for _, sp := range species {
		row := fmt.Sprintf("%s\t%.6g", sp, snap.Concentrations[sp])
		if snap.State != nil {
			row += fmt.Sprintf("\t%.6g\t%.4g", snap.State[sp], snap.TransformationRates[sp])
		}
		fmt.Fprintln(tw, row)
	}
	tw.Flush()

	if len(snap.ReactionRates) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "REACTION\tRATE")
		for _, name := range sortedNames(snap.ReactionRates) {
			fmt.Fprintf(tw, "%s\t%.6g\n", name, snap.ReactionRates[name])
		}
		tw.Flush()
	}
	fmt.Fprintln(w)
}

func printRunStats(w io.Writer, res *reactor.Result) {
	fmt.Fprintf(w, "%s %s  %s %d  %s %d  %s %d\n",
		labelStyle.Render("solver"), valueStyle.Render(res.Solver),
		labelStyle.Render("steps"), res.Stats.Steps,
		labelStyle.Render("rejected"), res.Stats.Rejected,
		labelStyle.Render("evaluations"), res.Stats.Evaluations,
	)

	fmt.Fprintln(w, "\n"+titleStyle.Render("metrics"))
	for _, name := range sortedNames(res.Metrics) {
		v := res.Metrics[name]
		if math.IsNaN(v) {
			continue
		}
		fmt.Fprintf(w, "  %s %.6g\n", labelStyle.Render(name+":"), v)
	}
}

func printSweep(w io.Writer, p sweep.Param, species string, names []string, points []sweep.Point) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := []string{strings.ToUpper(string(p))}
	if species != "" {
		cols = append(cols, "X", "CONVERSION("+species+")")
	} else {
		cols = append(cols, "X")
		cols = append(cols, names...)
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))

	for _, pt := range points {
		row := []string{fmt.Sprintf("%.6g", pt.Value)}
		switch {
		case pt.Err != nil:
			row = append(row, errorStyle.Render(pt.Err.Error()))
		case species != "":
			row = append(row, fmt.Sprintf("%.6g", pt.Final.X), fmt.Sprintf("%.4f", pt.Conversion))
		default:
			row = append(row, fmt.Sprintf("%.6g", pt.Final.X))
			for _, sp := range names {
				row = append(row, fmt.Sprintf("%.6g", pt.Final.Concentrations[sp]))
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func printPresets(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREGIME\tVOLUME\tREACTIONS")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		rx := make([]string, len(cfg.Reactions))
		for i, r := range cfg.Reactions {
			rx[i] = r.Rate
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", name, cfg.Reactor.Type, cfg.Reactor.Volume, strings.Join(rx, ", "))
	}
	tw.Flush()
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
