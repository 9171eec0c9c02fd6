package ratelaw

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
)

func TestCompile_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		declared []string
		bindings map[string]float64
		want     float64
	}{
		{"mass action", "0.05*A*B", []string{"A", "B", "C"}, map[string]float64{"A": 1, "B": 2}, 0.1},
		{"power operator", "0.2*A**2*B", []string{"A", "B"}, map[string]float64{"A": 1, "B": 2}, 0.4},
		{"caret power", "k*A^2", []string{"k", "A"}, map[string]float64{"k": 3, "A": 2}, 12},
		{"integer constant", "2", []string{"A"}, map[string]float64{}, 2},
		{"division", "A/(1+B)", []string{"A", "B"}, map[string]float64{"A": 3, "B": 2}, 1},
		{"exp function", "exp(-A)", []string{"A"}, map[string]float64{"A": 1}, math.Exp(-1)},
		{"sqrt function", "sqrt(A)*B", []string{"A", "B"}, map[string]float64{"A": 4, "B": 0.5}, 1},
		{"extra bindings ignored", "A", []string{"A", "B"}, map[string]float64{"A": 0.7, "B": 9}, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.src, tt.declared)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.src, err)
			}
			got, err := e.Evaluate(tt.bindings)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFreeSymbols(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"0.05*A*B", []string{"A", "B"}},
		{"k1*B*A + k1*A", []string{"A", "B", "k1"}},
		{"exp(-Ea/T)*A", []string{"A", "Ea", "T"}},
		{"3.5", nil},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e := MustCompile(tt.src, []string{"A", "B", "k1", "Ea", "T"})
			got := e.FreeSymbols()
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FreeSymbols() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "  ", ErrParse},
		{"dangling operator", "A*", ErrParse},
		{"unbalanced", "(A+B", ErrParse},
		{"undeclared symbol", "0.1*A*D", ErrUnknownSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src, []string{"A", "B"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEvaluate_Unbound(t *testing.T) {
	e := MustCompile("A*B", []string{"A", "B"})
	if _, err := e.Evaluate(map[string]float64{"A": 1}); !errors.Is(err, ErrUnbound) {
		t.Errorf("err = %v, want ErrUnbound", err)
	}
}

func TestEvaluate_NonNumeric(t *testing.T) {
	e := MustCompile(`A > 2 ? 0.1*A : "off"`, []string{"A"})

	got, err := e.Evaluate(map[string]float64{"A": 3})
	if err != nil {
		t.Fatalf("Evaluate(A=3): %v", err)
	}
	if math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Evaluate(A=3) = %g, want 0.3", got)
	}

	if _, err := e.Evaluate(map[string]float64{"A": 1}); !errors.Is(err, ErrEvaluate) {
		t.Errorf("err = %v, want ErrEvaluate", err)
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	e := MustCompile("0.05*A*B", []string{"A", "B"})

	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := e.Evaluate(map[string]float64{"A": 2, "B": 3})
			if err != nil {
				t.Error(err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		if v != results[0] {
			t.Fatalf("result %d = %v, differs from %v", i, v, results[0])
		}
	}
}

func TestExpr_String(t *testing.T) {
	e := MustCompile(" 0.025*C ", []string{"C"})
	if e.String() != "0.025*C" {
		t.Errorf("String() = %q", e.String())
	}
}
