package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/san-kum/reactsim/internal/config"
	"github.com/san-kum/reactsim/internal/export"
	"github.com/san-kum/reactsim/internal/reactor"
	"github.com/san-kum/reactsim/internal/sweep"
	"github.com/san-kum/reactsim/internal/tui"
	"github.com/san-kum/reactsim/internal/viz"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		span   float64
		full   bool
		plot   bool
		format string
		svg    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "simulate the reactor and print the final state",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := checkFormat(format); err != nil {
				return err
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, s, cmd) }()

			if !cmd.Flags().Changed("time") {
				span = s.cfg.Run.Span
			}
			if !cmd.Flags().Changed("full") {
				full = s.cfg.Run.FullOutput
			}

			opts := reactor.RunOptions{FullOutput: full || svg != ""}
			rec := &viz.Recorder{}
			if plot || svg != "" {
				opts.Plotter = rec
			}

			res, err := s.reactor.Run(s.context(cmd, "run"), span, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if plot {
				term := viz.NewTerminal(out)
				for _, fig := range rec.Figures {
					if err := term.Plot(fig); err != nil {
						return err
					}
				}
			}
			if svg != "" {
				if err := writeSVG(svg, rec.Figures); err != nil {
					return err
				}
			}

			switch format {
			case "json":
				return export.WriteJSON(out, res)
			case "csv":
				return export.WriteCSV(out, res)
			}
			printReactor(out, s.reactor)
			printSnapshot(out, res.Kind, res.Species, res.Final())
			printRunStats(out, res)
			if res.Kind == reactor.KindBatch && !s.reactor.Stoichiometry().Conserving() {
				fmt.Fprintln(out, labelStyle.Render("  (reactions change total moles, so mass_drift is expected)"))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&span, "time", config.DefaultSpan, "run length (time, or volume for PFR)")
	f.BoolVar(&full, "full", false, "keep moles and rates at every sample")
	f.BoolVar(&plot, "plot", false, "draw trajectories in the terminal")
	f.StringVar(&format, "format", "table", "table, json or csv")
	f.StringVar(&svg, "svg", "", "write the concentration chart to this SVG file")
	return cmd
}

func newSteadyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "steady",
		Short: "find the steady state",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, s, cmd) }()

			snap, err := s.reactor.FindSteadyState(s.context(cmd, "steady"), s.cfg.SteadyStateOptions())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printReactor(out, s.reactor)
			fmt.Fprintln(out, titleStyle.Render("steady state"))
			printSnapshot(out, s.reactor.Kind(), s.reactor.Species(), snap)
			return nil
		},
	}
}

func newConversionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "conversion [species] [target]",
		Short: "find where a species reaches a target conversion",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, s, cmd) }()

			species, target := s.cfg.Analysis.Species, s.cfg.Analysis.Conversion
			if len(args) > 0 {
				species = args[0]
			}
			if len(args) > 1 {
				if target, err = strconv.ParseFloat(args[1], 64); err != nil {
					return fmt.Errorf("target conversion: %w", err)
				}
			}

			res, err := s.reactor.FindConversion(s.context(cmd, "conversion"), species, target, s.cfg.SteadyStateOptions())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printReactor(out, s.reactor)
			fmt.Fprintf(out, "%s %s %s %s\n",
				titleStyle.Render("conversion"),
				labelStyle.Render(species+" ="),
				valueStyle.Render(fmt.Sprintf("%.4g", target)),
				labelStyle.Render(fmt.Sprintf("(maximum %.4g at %s %.4g)", res.Maximum, s.reactor.Kind().XLabel(), res.SteadyState)),
			)
			printSnapshot(out, s.reactor.Kind(), s.reactor.Species(), &res.Snapshot)
			return nil
		},
	}
}

func newSweepCmd(g *globals) *cobra.Command {
	var (
		param   string
		values  []float64
		species string
		span    float64
		workers int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "evaluate the reactor over values of one parameter",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			p, err := sweep.ParseParam(param)
			if err != nil {
				return err
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, s, cmd) }()

			if !cmd.Flags().Changed("time") {
				span = s.cfg.Run.Span
			}
			points, err := sweep.Run(s.context(cmd, "sweep"), s.reactor, sweep.Options{
				Param:       p,
				Values:      values,
				Span:        span,
				Species:     species,
				SteadyState: s.cfg.SteadyStateOptions(),
				Workers:     workers,
			})
			if err != nil {
				return err
			}
			printSweep(cmd.OutOrStdout(), p, species, s.reactor.Species(), points)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&param, "param", string(sweep.FlowRate), "flow_rate, volume or initial_volume")
	f.Float64SliceVar(&values, "values", nil, "comma-separated parameter values")
	f.StringVar(&species, "species", "", "report steady-state conversion of this species")
	f.Float64Var(&span, "time", config.DefaultSpan, "run length for final-state sweeps")
	f.IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")
	cmd.MarkFlagRequired("values")
	return cmd
}

func newViewCmd(g *globals) *cobra.Command {
	var span float64

	cmd := &cobra.Command{
		Use:   "view",
		Short: "browse the trajectories interactively",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, s, cmd) }()

			if !cmd.Flags().Changed("time") {
				span = s.cfg.Run.Span
			}
			rec := &viz.Recorder{}
			if _, err := s.reactor.Run(s.context(cmd, "view"), span, reactor.RunOptions{FullOutput: true, Plotter: rec}); err != nil {
				return err
			}
			return tui.Run(s.reactor.Kind().String()+" reactor", rec.Figures)
		},
	}
	cmd.Flags().Float64Var(&span, "time", config.DefaultSpan, "run length (time, or volume for PFR)")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list built-in reactor descriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			printPresets(cmd.OutOrStdout())
			return nil
		},
	}
}

func newInitCmd(g *globals) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a reactor description to start from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "reactsim.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "csv":
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownFormat, format)
}

func joinClose(err error, s *session, cmd *cobra.Command) error {
	if cerr := s.close(cmd.ErrOrStderr()); err == nil {
		return cerr
	}
	return err
}

func writeSVG(path string, figs []viz.Figure) error {
	if len(figs) == 0 {
		return viz.ErrEmptyFigure
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteSVG(f, figs[0], 800, 480)
}
