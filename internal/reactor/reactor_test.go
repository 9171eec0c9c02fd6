package reactor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/integrators"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/ratelaw"
	"github.com/san-kum/reactsim/internal/reactor"
	"github.com/san-kum/reactsim/internal/viz"
)

// A + B <-> C as two directed reactions.
func equilibrium() []*kinetics.Reaction {
	return []*kinetics.Reaction{
		kinetics.MustReaction("forward", []string{"A", "B", "C"}, []float64{-1, -1, 1}, "0.05*A*B"),
		kinetics.MustReaction("backward", []string{"A", "B", "C"}, []float64{1, 1, -1}, "0.025*C"),
	}
}

func feed() map[string]float64 {
	return map[string]float64{"A": 1, "B": 1, "C": 0}
}

func batch() reactor.Regime {
	return reactor.Batch{Volume: 10, Initial: feed()}
}

func fedBatch() reactor.Regime {
	return reactor.FedBatch{Volume: 10, InitialVolume: 0.5, FlowRate: 0.1, Initial: feed(), Inlet: feed()}
}

func cstr() reactor.Regime {
	return reactor.CSTR{Volume: 10, InitialVolume: 0.5, FlowRate: 0.1, Initial: feed(), Inlet: feed()}
}

func pfr() reactor.Regime {
	return reactor.PFR{Volume: 10, FlowRate: 1, Inlet: feed()}
}

func mustReactor(regime reactor.Regime, opts ...reactor.Option) *reactor.Reactor {
	r, err := reactor.New(regime, equilibrium(), opts...)
	Expect(err).NotTo(HaveOccurred())
	return r
}

type runLog struct {
	stats []dynamo.Stats
	errs  []error
}

func (l *runLog) ObserveRun(_, _ string, stats dynamo.Stats, _ time.Duration, err error) {
	l.stats = append(l.stats, stats)
	l.errs = append(l.errs, err)
}

func last(xs []float64) float64 { return xs[len(xs)-1] }

var _ = Describe("Reactor", func() {
	ctx := context.Background()

	Describe("construction", func() {
		It("orders species by sorted concentration keys", func() {
			r := mustReactor(reactor.Batch{Volume: 10, Initial: map[string]float64{"C": 0, "A": 1, "B": 1}})
			Expect(r.Species()).To(Equal([]string{"A", "B", "C"}))
			Expect(r.Kind()).To(Equal(reactor.KindBatch))
			Expect(r.SolverName()).To(Equal(integrators.Default))
		})

		It("builds the stoichiometry matrix in species x reaction order", func() {
			m := mustReactor(batch()).Stoichiometry()
			rows, cols := m.Dims()
			Expect(rows).To(Equal(3))
			Expect(cols).To(Equal(2))
			Expect(m.At(0, 0)).To(Equal(-1.0))
			Expect(m.At(2, 0)).To(Equal(1.0))
			Expect(m.At(2, 1)).To(Equal(-1.0))
		})

		It("does not see later changes to the caller's maps", func() {
			initial := feed()
			r := mustReactor(reactor.Batch{Volume: 10, Initial: initial})
			initial["A"] = 100

			c0, err := r.InitialConcentration("A")
			Expect(err).NotTo(HaveOccurred())
			Expect(c0).To(Equal(1.0))
		})

		It("accepts pointer regimes", func() {
			r := mustReactor(&reactor.CSTR{Volume: 10, InitialVolume: 0.5, FlowRate: 0.1, Initial: feed(), Inlet: feed()})
			Expect(r.Kind()).To(Equal(reactor.KindCSTR))
		})

		DescribeTable("rejects invalid configurations",
			func(regime reactor.Regime, reactions []*kinetics.Reaction, opts []reactor.Option, want error) {
				_, err := reactor.New(regime, reactions, opts...)
				Expect(err).To(MatchError(want))
			},
			Entry("zero volume", reactor.Batch{Volume: 0, Initial: feed()}, equilibrium(), nil, reactor.ErrNonPositiveVolume),
			Entry("negative volume", reactor.PFR{Volume: -1, FlowRate: 1, Inlet: feed()}, equilibrium(), nil, reactor.ErrNonPositiveVolume),
			Entry("species missing from initial", reactor.Batch{Volume: 10, Initial: map[string]float64{"A": 1, "B": 1}}, equilibrium(), nil, reactor.ErrMissingSpecies),
			Entry("species missing from inlet", reactor.PFR{Volume: 10, FlowRate: 1, Inlet: map[string]float64{"A": 1}}, equilibrium(), nil, reactor.ErrMissingSpecies),
			Entry("inlet species without initial value", reactor.CSTR{Volume: 10, InitialVolume: 1, FlowRate: 0.1, Initial: feed(), Inlet: map[string]float64{"D": 1}}, equilibrium(), nil, reactor.ErrMissingSpecies),
			Entry("negative initial concentration", reactor.Batch{Volume: 10, Initial: map[string]float64{"A": -1, "B": 1, "C": 0}}, equilibrium(), nil, reactor.ErrNegativeConcentration),
			Entry("negative inlet concentration", reactor.FedBatch{Volume: 10, InitialVolume: 1, FlowRate: 0.1, Initial: feed(), Inlet: map[string]float64{"A": -0.5}}, equilibrium(), nil, reactor.ErrNegativeConcentration),
			Entry("fed-batch without flow", reactor.FedBatch{Volume: 10, InitialVolume: 1, Initial: feed(), Inlet: feed()}, equilibrium(), nil, reactor.ErrNonPositiveFlowRate),
			Entry("cstr with negative flow", reactor.CSTR{Volume: 10, InitialVolume: 1, FlowRate: -0.1, Initial: feed(), Inlet: feed()}, equilibrium(), nil, reactor.ErrNonPositiveFlowRate),
			Entry("pfr without flow", reactor.PFR{Volume: 10, Inlet: feed()}, equilibrium(), nil, reactor.ErrNonPositiveFlowRate),
			Entry("initial volume above volume", reactor.CSTR{Volume: 10, InitialVolume: 11, FlowRate: 0.1, Initial: feed(), Inlet: feed()}, equilibrium(), nil, reactor.ErrInitialVolumeRange),
			Entry("negative initial volume", reactor.FedBatch{Volume: 10, InitialVolume: -1, FlowRate: 0.1, Initial: feed(), Inlet: feed()}, equilibrium(), nil, reactor.ErrInitialVolumeRange),
			Entry("cstr without inlet", reactor.CSTR{Volume: 10, InitialVolume: 1, FlowRate: 0.1, Initial: feed()}, equilibrium(), nil, reactor.ErrMissingParameter),
			Entry("pfr without inlet", reactor.PFR{Volume: 10, FlowRate: 1}, equilibrium(), nil, reactor.ErrMissingParameter),
			Entry("batch without initial", reactor.Batch{Volume: 10}, equilibrium(), nil, reactor.ErrMissingParameter),
			Entry("no reactions", batch(), nil, nil, reactor.ErrNoReactions),
			Entry("duplicate reaction names", batch(), append(equilibrium(), equilibrium()[0]), nil, reactor.ErrDuplicateReaction),
			Entry("unknown solver", batch(), equilibrium(), []reactor.Option{reactor.WithSolver("euler")}, integrators.ErrUnknownSolver),
			Entry("nil regime", nil, equilibrium(), nil, reactor.ErrUnknownRegime),
		)

		It("describes itself", func() {
			s := mustReactor(cstr()).String()
			Expect(s).To(ContainSubstring("Regime: CSTR"))
			Expect(s).To(ContainSubstring("Volume: 10"))
			Expect(s).To(ContainSubstring("1. forward\nSpecies: {A: -1, B: -1, C: 1}\nRate law: 0.05*A*B"))
			Expect(s).To(ContainSubstring("Initial volume: 0.5"))
			Expect(s).To(ContainSubstring("Inlet concentrations: {A: 1, B: 1, C: 0}"))
			Expect(strings.Contains(mustReactor(batch()).String(), "Flow rate")).To(BeFalse())
		})
	})

	Describe("Run", func() {
		DescribeTable("final concentrations after 10 time or volume units",
			func(regime reactor.Regime, a, c float64) {
				res, err := mustReactor(regime).Run(ctx, 10, reactor.RunOptions{})
				Expect(err).NotTo(HaveOccurred())

				Expect(res.Len()).To(Equal(reactor.DefaultSamples))
				Expect(res.X[0]).To(Equal(0.0))
				Expect(last(res.X)).To(Equal(10.0))
				Expect(last(res.Concentrations["A"])).To(BeNumerically("~", a, 1e-3))
				Expect(last(res.Concentrations["B"])).To(BeNumerically("~", a, 1e-3))
				Expect(last(res.Concentrations["C"])).To(BeNumerically("~", c, 1e-3))
				Expect(res.State).To(BeNil())
			},
			Entry("batch", batch(), 0.7008570, 0.2991430),
			Entry("fed-batch", fedBatch(), 0.7840858, 0.2159142),
			Entry("cstr", cstr(), 0.7840858, 0.2159142),
			Entry("pfr", pfr(), 0.7008570, 0.2991430),
		)

		It("matches the batch reference closely", func() {
			res, err := mustReactor(batch()).Run(ctx, 10, reactor.RunOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(last(res.Concentrations["A"])).To(BeNumerically("~", 0.7008570, 1e-5))
		})

		It("returns full output on request", func() {
			res, err := mustReactor(cstr()).Run(ctx, 10, reactor.RunOptions{FullOutput: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.State).To(HaveLen(3))
			Expect(res.ReactionRates).To(HaveKey("forward"))
			Expect(res.ReactionRates).To(HaveKey("backward"))
			Expect(res.TransformationRates["C"]).To(HaveLen(res.Len()))
			Expect(res.Volume).To(HaveLen(res.Len()))
			Expect(res.Volume[0]).To(Equal(0.5))
			Expect(last(res.Volume)).To(BeNumerically("~", 1.5, 1e-12))

			// moles over liquid volume
			Expect(last(res.State["A"]) / last(res.Volume)).To(BeNumerically("~", last(res.Concentrations["A"]), 1e-12))
			// forward rate is 0.05*A*B at the initial point
			Expect(res.ReactionRates["forward"][0]).To(BeNumerically("~", 0.05, 1e-12))
			Expect(res.TransformationRates["A"][0]).To(BeNumerically("~", -0.05, 1e-12))
		})

		It("integrates a PFR over its whole volume when no span is given", func() {
			res, err := mustReactor(pfr()).Run(ctx, 0, reactor.RunOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(last(res.X)).To(Equal(10.0))
		})

		It("requires a positive span for vessels", func() {
			r := mustReactor(batch())
			_, err := r.Run(ctx, 0, reactor.RunOptions{})
			Expect(err).To(MatchError(reactor.ErrMissingSpan))
			_, err = r.Run(ctx, -5, reactor.RunOptions{})
			Expect(err).To(MatchError(reactor.ErrMissingSpan))
		})

		It("keeps concentrations non-negative in every regime", func() {
			for _, regime := range []reactor.Regime{batch(), fedBatch(), cstr(), pfr()} {
				res, err := mustReactor(regime).Run(ctx, 200, reactor.RunOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Metrics["min_concentration"]).To(BeNumerically(">=", -1e-9), regime.Kind().String())
			}
		})

		It("fills an empty fed-batch vessel from zero volume", func() {
			r := mustReactor(reactor.FedBatch{Volume: 10, InitialVolume: 0, FlowRate: 0.1, Initial: feed(), Inlet: feed()})
			res, err := r.Run(ctx, 200, reactor.RunOptions{FullOutput: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Concentrations["A"][0]).To(Equal(0.0))
			Expect(res.Volume[0]).To(Equal(0.0))
			Expect(last(res.Volume)).To(Equal(10.0))
			Expect(last(res.Concentrations["A"])).To(BeNumerically(">", 0))
		})

		It("conserves moles for interconversion in a batch vessel", func() {
			iso := []*kinetics.Reaction{
				kinetics.MustReaction("isomerisation", []string{"A", "B"}, []float64{-1, 1}, "0.3*A"),
				kinetics.MustReaction("reverse", []string{"A", "B"}, []float64{1, -1}, "0.1*B"),
			}
			r, err := reactor.New(reactor.Batch{Volume: 2, Initial: map[string]float64{"A": 1, "B": 0.5}}, iso)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Stoichiometry().Conserving()).To(BeTrue())

			res, err := r.Run(ctx, 50, reactor.RunOptions{FullOutput: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Metrics["mass_drift"]).To(BeNumerically("<", 1e-6))
			for i := 0; i < res.Len(); i += 99 {
				Expect(res.State["A"][i] + res.State["B"][i]).To(BeNumerically("~", 3.0, 1e-6))
			}
			// equilibrium A:B = 1:3
			Expect(last(res.Concentrations["B"]) / last(res.Concentrations["A"])).To(BeNumerically("~", 3, 1e-3))
		})

		It("hands every trajectory to the plotter", func() {
			rec := &viz.Recorder{}
			res, err := mustReactor(cstr()).Run(ctx, 10, reactor.RunOptions{Plotter: rec})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).NotTo(BeNil())

			Expect(rec.Figures).To(HaveLen(5))
			Expect(rec.Figures[0].Title).To(Equal("Concentration"))
			Expect(rec.Figures[1].Title).To(Equal("Moles"))
			Expect(rec.Figures[2].Series).To(HaveLen(2))
			Expect(rec.Figures[4].Title).To(Equal("Liquid volume"))

			rec = &viz.Recorder{}
			_, err = mustReactor(pfr()).Run(ctx, 10, reactor.RunOptions{Plotter: rec})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Figures).To(HaveLen(4))
			Expect(rec.Figures[1].Title).To(Equal("Molar flow"))
			Expect(rec.Figures[1].XLabel).To(Equal("Volume"))
		})

		It("agrees across solvers", func() {
			for _, name := range integrators.Names() {
				res, err := mustReactor(batch(), reactor.WithSolver(name)).Run(ctx, 10, reactor.RunOptions{})
				Expect(err).NotTo(HaveOccurred(), name)
				Expect(res.Solver).To(Equal(name))
				Expect(last(res.Concentrations["A"])).To(BeNumerically("~", 0.7008570, 1e-4), name)
			}
		})

		It("is safe for concurrent use", func() {
			r := mustReactor(cstr())
			finals := make([]float64, 8)
			var wg sync.WaitGroup
			for i := range finals {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					res, err := r.Run(ctx, 10, reactor.RunOptions{FullOutput: true})
					Expect(err).NotTo(HaveOccurred())
					finals[i] = last(res.Concentrations["A"])
				}(i)
			}
			wg.Wait()
			for _, f := range finals {
				Expect(f).To(Equal(finals[0]))
			}
		})

		It("stops on cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := mustReactor(batch()).Run(cctx, 10, reactor.RunOptions{})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("FindSteadyState", func() {
		DescribeTable("locates the first steady sample",
			func(regime reactor.Regime, x, tol float64) {
				snap, err := mustReactor(regime).FindSteadyState(ctx, reactor.SteadyStateOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(snap.X).To(BeNumerically("~", x, tol))
				for _, rate := range snap.TransformationRates {
					Expect(rate).To(BeNumerically("<", 1e-3))
					Expect(rate).To(BeNumerically(">", -1e-3))
				}
			},
			Entry("batch", batch(), 44.744, 0.3),
			Entry("fed-batch", fedBatch(), 116.116, 2.1),
			Entry("pfr", pfr(), 44.744, 0.3),
		)

		It("reports three residence times for a CSTR", func() {
			snap, err := mustReactor(cstr()).FindSteadyState(ctx, reactor.SteadyStateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.X).To(BeNumerically("~", 300, 1e-9))
			Expect(snap.Concentrations).To(HaveKey("A"))
			Expect(snap.State).To(HaveKey("A"))
			Expect(snap.ReactionRates).To(HaveKey("forward"))
		})

		It("honours the residence time whatever the guess", func() {
			r := mustReactor(reactor.CSTR{Volume: 4, InitialVolume: 4, FlowRate: 0.5, Initial: feed(), Inlet: feed()})
			snap, err := r.FindSteadyState(ctx, reactor.SteadyStateOptions{Guess: 1, MaxIterations: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.X).To(BeNumerically("~", 24, 1e-9))
		})

		It("gives up after the iteration budget", func() {
			slow := []*kinetics.Reaction{
				kinetics.MustReaction("slow", []string{"A", "B"}, []float64{-1, 1}, "0.001*A"),
			}
			r, err := reactor.New(reactor.Batch{Volume: 1, Initial: map[string]float64{"A": 1, "B": 0}}, slow)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.FindSteadyState(ctx, reactor.SteadyStateOptions{Guess: 1, Threshold: 1e-6, MaxIterations: 2})
			Expect(err).To(MatchError(reactor.ErrSteadyStateNotReached))
		})
	})

	Describe("FindConversion", func() {
		DescribeTable("finds the first sample at the target conversion",
			func(regime reactor.Regime, x, tol float64) {
				res, err := mustReactor(regime).FindConversion(ctx, "A", 0.4, reactor.SteadyStateOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.X).To(BeNumerically("~", x, tol))
				Expect(res.Concentrations["A"]).To(BeNumerically("<=", 0.6))
				Expect(res.Maximum).To(BeNumerically(">", 0.4))
				Expect(res.Species).To(Equal("A"))
			},
			Entry("batch", batch(), 18.498, 0.15),
			Entry("fed-batch", fedBatch(), 56.256, 0.3),
			Entry("cstr", cstr(), 56.456, 0.35),
			Entry("pfr", pfr(), 18.498, 0.15),
		)

		It("returns the start for a zero target", func() {
			res, err := mustReactor(batch()).FindConversion(ctx, "A", 0, reactor.SteadyStateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.X).To(Equal(0.0))
		})

		It("rejects targets beyond the steady-state conversion", func() {
			_, err := mustReactor(batch()).FindConversion(ctx, "A", 0.6, reactor.SteadyStateOptions{})
			Expect(err).To(MatchError(reactor.ErrConversionExceedsMaximum))

			var ce *reactor.ConversionError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Maximum).To(BeNumerically("~", 0.4868, 2e-3))
			Expect(ce.Target).To(Equal(0.6))
		})

		It("rejects targets above the CSTR maximum", func() {
			_, err := mustReactor(cstr()).FindConversion(ctx, "A", 0.45, reactor.SteadyStateOptions{})
			Expect(err).To(MatchError(reactor.ErrConversionExceedsMaximum))
		})

		DescribeTable("precondition failures",
			func(species string, target float64, want error) {
				_, err := mustReactor(batch()).FindConversion(ctx, species, target, reactor.SteadyStateOptions{})
				Expect(err).To(MatchError(want))
			},
			Entry("unknown species", "D", 0.4, reactor.ErrSpeciesNotFound),
			Entry("target above one", "A", 1.5, reactor.ErrInvalidConversion),
			Entry("negative target", "A", -0.1, reactor.ErrInvalidConversion),
			Entry("species absent at start", "C", 0.1, reactor.ErrZeroInitialConcentration),
		)
	})

	Describe("MaximumConversion", func() {
		It("reads the conversion at steady state", func() {
			r := mustReactor(batch())
			maximum, ss, err := r.MaximumConversion(ctx, "A", reactor.SteadyStateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(maximum).To(BeNumerically("~", 0.4868, 2e-3))
			Expect(ss.Concentrations["A"]).To(BeNumerically("~", 1-maximum, 1e-12))

			res, err := r.FindConversion(ctx, "A", 0.4, reactor.SteadyStateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Maximum).To(Equal(maximum))
			Expect(res.SteadyState).To(Equal(ss.X))
		})

		It("rejects a species absent at start", func() {
			_, _, err := mustReactor(batch()).MaximumConversion(ctx, "C", reactor.SteadyStateOptions{})
			Expect(err).To(MatchError(reactor.ErrZeroInitialConcentration))
		})
	})

	Describe("rate-law failures", func() {
		// the rate law yields a string below A = 2, so the first evaluation fails
		failing := func() []*kinetics.Reaction {
			return []*kinetics.Reaction{
				kinetics.MustReaction("switch", []string{"A", "B", "C"}, []float64{-1, -1, 1}, `A > 2 ? 0.1*A : "off"`),
			}
		}

		DescribeTable("stop the run after the first failing evaluation",
			func(solver string) {
				log := &runLog{}
				r, err := reactor.New(batch(), failing(), reactor.WithSolver(solver), reactor.WithRecorder(log))
				Expect(err).NotTo(HaveOccurred())

				_, err = r.Run(ctx, 10, reactor.RunOptions{})
				Expect(err).To(MatchError(dynamo.ErrIntegrationFailure))
				Expect(errors.Is(err, ratelaw.ErrEvaluate)).To(BeTrue())
				Expect(errors.Is(err, context.Canceled)).To(BeFalse())

				Expect(log.stats).To(HaveLen(1))
				Expect(log.stats[0].Evaluations).To(BeNumerically(">", 0))
				Expect(log.stats[0].Evaluations).To(BeNumerically("<", 20))
				Expect(log.errs[0]).To(MatchError(dynamo.ErrIntegrationFailure))
			},
			Entry("rosenbrock", "rosenbrock"),
			Entry("rk4", "rk4"),
			Entry("rk45", "rk45"),
		)
	})

	Describe("WithRegime", func() {
		It("rebuilds with the same reactions and options", func() {
			base := mustReactor(batch(), reactor.WithSolver("rk45"))
			other, err := base.WithRegime(pfr())
			Expect(err).NotTo(HaveOccurred())
			Expect(other.Kind()).To(Equal(reactor.KindPFR))
			Expect(other.SolverName()).To(Equal("rk45"))
			Expect(other.Reactions()).To(HaveLen(2))
		})
	})
})
