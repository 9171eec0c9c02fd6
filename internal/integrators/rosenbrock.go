package integrators

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/reactsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned by a Rosenbrock step whose iteration matrix
// cannot be factorized. The driver retries with a smaller step.
var ErrSingularMatrix = errors.New("integrators: singular iteration matrix")

var (
	rosD   = 1.0 / (2.0 + math.Sqrt2)
	rosE32 = 6.0 + math.Sqrt2
	// sqrt of float64 machine epsilon, finite-difference increment base.
	sqrtEps = math.Sqrt(2.220446049250313e-16)
)

// Rosenbrock is the L-stable linearly implicit 2(3) pair of Shampine and
// Reichelt. The Jacobian and the x-derivative of f are approximated by
// forward differences on every step; each step solves three linear systems
// against one LU factorization of W = I - h*d*J.
type Rosenbrock struct{}

func NewRosenbrock() *Rosenbrock {
	return &Rosenbrock{}
}

func (r *Rosenbrock) Info() dynamo.SolverInfo { return r.info() }

func (r *Rosenbrock) Integrate(ctx context.Context, f dynamo.Func, span dynamo.Span, y0 dynamo.State, samples []float64, opts dynamo.Options) (*dynamo.Solution, error) {
	return integrate(ctx, r, f, span, y0, samples, opts)
}

func (r *Rosenbrock) info() dynamo.SolverInfo {
	return dynamo.SolverInfo{Name: "rosenbrock", Order: 2, Stiff: true}
}

func (r *Rosenbrock) errOrder() int { return 3 }

func (r *Rosenbrock) step(f dynamo.Func, x float64, y, fy dynamo.State, h float64, st *dynamo.Stats) (dynamo.State, dynamo.State, dynamo.State, error) {
	n := len(y)

	jac := jacobian(f, x, y, fy)
	st.Jacobians++

	dx := sqrtEps * math.Max(math.Abs(x), 1)
	ft := f(x+dx, y)
	dfdx := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		dfdx[i] = (ft[i] - fy[i]) / dx
	}

	w := mat.NewDense(n, n, nil)
	w.Scale(-h*rosD, jac)
	for i := 0; i < n; i++ {
		w.Set(i, i, w.At(i, i)+1)
	}

	var lu mat.LU
	lu.Factorize(w)
	if c := lu.Cond(); math.IsInf(c, 0) || math.IsNaN(c) {
		return nil, nil, nil, ErrSingularMatrix
	}

	solve := func(b dynamo.State) (dynamo.State, error) {
		var v mat.VecDense
		if err := lu.SolveVecTo(&v, false, mat.NewVecDense(n, b)); err != nil {
			return nil, err
		}
		out := make(dynamo.State, n)
		for i := range out {
			out[i] = v.AtVec(i)
		}
		return out, nil
	}

	hd := h * rosD
	rhs := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		rhs[i] = fy[i] + hd*dfdx[i]
	}
	k1, err := solve(rhs)
	if err != nil {
		return nil, nil, nil, err
	}

	mid := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		mid[i] = y[i] + 0.5*h*k1[i]
	}
	f1 := f(x+0.5*h, mid)

	for i := 0; i < n; i++ {
		rhs[i] = f1[i] - k1[i]
	}
	k2, err := solve(rhs)
	if err != nil {
		return nil, nil, nil, err
	}
	for i := 0; i < n; i++ {
		k2[i] += k1[i]
	}

	yNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		yNew[i] = y[i] + h*k2[i]
	}
	f2 := f(x+h, yNew)

	for i := 0; i < n; i++ {
		rhs[i] = f2[i] - rosE32*(k2[i]-f1[i]) - 2*(k1[i]-fy[i]) + hd*dfdx[i]
	}
	k3, err := solve(rhs)
	if err != nil {
		return nil, nil, nil, err
	}

	errEst := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		errEst[i] = h / 6 * (k1[i] - 2*k2[i] + k3[i])
	}

	return yNew, f2, errEst, nil
}

// jacobian approximates df/dy column by column with forward differences.
func jacobian(f dynamo.Func, x float64, y, fy dynamo.State) *mat.Dense {
	n := len(y)
	jac := mat.NewDense(n, n, nil)
	yp := y.Clone()
	for j := 0; j < n; j++ {
		delta := sqrtEps * math.Max(math.Abs(y[j]), 1e-3)
		yp[j] = y[j] + delta
		fp := f(x, yp)
		for i := 0; i < n; i++ {
			jac.Set(i, j, (fp[i]-fy[i])/delta)
		}
		yp[j] = y[j]
	}
	return jac
}
