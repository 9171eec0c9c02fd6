// Package ratelaw compiles algebraic rate expressions such as
// "0.05*A*B" or "k*A**2/(1+K*B)" into reusable programs.
//
// An expression is parsed once, its free symbols are checked against the
// declared set, and the result can be evaluated any number of times from
// multiple goroutines. The math functions exp, log, sqrt and pow are
// available in addition to the arithmetic operators (** and ^ both denote
// exponentiation).
package ratelaw

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

var (
	ErrParse         = errors.New("ratelaw: cannot parse expression")
	ErrUnknownSymbol = errors.New("ratelaw: expression uses undeclared symbol")
	ErrUnbound       = errors.New("ratelaw: no value bound for symbol")
	ErrEvaluate      = errors.New("ratelaw: evaluation failed")
)

// Expr is a compiled rate expression. It is immutable.
type Expr struct {
	src     string
	symbols []string
	program *vm.Program
}

// Compile parses src and verifies every free symbol is in declared.
func Compile(src string, declared []string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrParse)
	}

	tree, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrParse, src, err)
	}
	free := freeSymbols(tree.Node)

	known := make(map[string]bool, len(declared))
	for _, s := range declared {
		known[s] = true
	}
	var unknown []string
	for _, s := range free {
		if !known[s] {
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s in %q", ErrUnknownSymbol, strings.Join(unknown, ", "), src)
	}

	env := make(map[string]any, len(free))
	for _, s := range free {
		env[s] = 0.0
	}
	opts := append([]expr.Option{expr.Env(env), expr.AsFloat64()}, mathFunctions()...)
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrParse, src, err)
	}

	return &Expr{src: src, symbols: free, program: program}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level fixtures.
func MustCompile(src string, declared []string) *Expr {
	e, err := Compile(src, declared)
	if err != nil {
		panic(err)
	}
	return e
}

// FreeSymbols returns the sorted symbols the expression depends on.
func (e *Expr) FreeSymbols() []string {
	out := make([]string, len(e.symbols))
	copy(out, e.symbols)
	return out
}

func (e *Expr) String() string { return e.src }

// Evaluate substitutes bindings into the expression. Every free symbol must
// be bound; extra bindings are ignored.
func (e *Expr) Evaluate(bindings map[string]float64) (float64, error) {
	env := make(map[string]any, len(e.symbols))
	for _, s := range e.symbols {
		v, ok := bindings[s]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnbound, s)
		}
		env[s] = v
	}

	out, err := expr.Run(e.program, env)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrEvaluate, e.src, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q returned %T", ErrEvaluate, e.src, out)
	}
	return v, nil
}

// freeSymbols collects identifiers that are not function names.
func freeSymbols(root ast.Node) []string {
	c := &collector{callees: make(map[*ast.IdentifierNode]bool)}
	ast.Walk(&root, c)

	seen := make(map[string]bool)
	var out []string
	for _, id := range c.idents {
		if c.callees[id] || seen[id.Value] {
			continue
		}
		seen[id.Value] = true
		out = append(out, id.Value)
	}
	sort.Strings(out)
	return out
}

type collector struct {
	idents  []*ast.IdentifierNode
	callees map[*ast.IdentifierNode]bool
}

func (c *collector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.idents = append(c.idents, n)
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.callees[id] = true
		}
	}
}

func mathFunctions() []expr.Option {
	unary := func(name string, fn func(float64) float64) expr.Option {
		return expr.Function(name, func(params ...any) (any, error) {
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			return fn(x), nil
		}, new(func(float64) float64))
	}
	return []expr.Option{
		unary("exp", math.Exp),
		unary("log", math.Log),
		unary("sqrt", math.Sqrt),
		expr.Function("pow", func(params ...any) (any, error) {
			x, err := toFloat(params[0])
			if err != nil {
				return nil, err
			}
			y, err := toFloat(params[1])
			if err != nil {
				return nil, err
			}
			return math.Pow(x, y), nil
		}, new(func(float64, float64) float64)),
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
