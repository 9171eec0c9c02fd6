package telemetry

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/reactsim/internal/dynamo"
)

func TestCollector_ObserveRun(t *testing.T) {
	c := New()

	stats := dynamo.Stats{Steps: 120, Rejected: 4, Evaluations: 900, Jacobians: 120}
	c.ObserveRun("Batch", "rosenbrock", stats, 5*time.Millisecond, nil)
	c.ObserveRun("Batch", "rosenbrock", stats, 5*time.Millisecond, nil)
	c.ObserveRun("CSTR", "rk45", dynamo.Stats{Steps: 3}, time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c.runs.WithLabelValues("Batch", "rosenbrock", "ok")); got != 2 {
		t.Errorf("ok runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runs.WithLabelValues("CSTR", "rk45", "error")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.steps.WithLabelValues("Batch", "rosenbrock")); got != 240 {
		t.Errorf("steps = %v, want 240", got)
	}
	if got := testutil.ToFloat64(c.rejected.WithLabelValues("Batch", "rosenbrock")); got != 8 {
		t.Errorf("rejected = %v, want 8", got)
	}
}

func TestCollector_WriteText(t *testing.T) {
	c := New()
	c.ObserveRun("PFR", "rosenbrock", dynamo.Stats{Steps: 10, Evaluations: 70}, time.Millisecond, nil)

	var buf bytes.Buffer
	if err := c.WriteText(&buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"reactsim_solver_steps_total",
		"reactsim_rhs_evaluations_total",
		`regime="PFR"`,
		"reactsim_run_duration_seconds_bucket",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
