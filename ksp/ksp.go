// Package ksp drives the Krylov subspace solvers used for the conduction
// system. The iterations themselves come from gonum's linsolve package; this
// package maps the solver configuration, the tolerance presets and the
// convergence reasons onto it.
package ksp

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/exp/linsolve"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrSolverNonConvergence = errors.New("linear solver did not converge")

// RoundOff is the smallest relative residual reduction asked of the
// iterations. Tighter relative tolerances, such as PresetND's, are clamped
// to it.
const RoundOff = 1.e-12

// Operator is a square linear operator applied as dst = A x
type Operator interface {
	Dims() (r, c int)
	MulVecTo(dst, x []float64)
}

// DiagonalOperator can supply its diagonal for Jacobi preconditioning
type DiagonalOperator interface {
	Operator
	Diagonal() []float64
}

type Reason string

const (
	ConvergedRTol     Reason = "CONVERGED_RTOL"
	ConvergedATol     Reason = "CONVERGED_ATOL"
	ConvergedRoundOff Reason = "CONVERGED_ROUNDOFF"
	DivergedBreakdown Reason = "DIVERGED_BREAKDOWN"
	DivergedNaN       Reason = "DIVERGED_NANORINF"
	DivergedIts       Reason = "DIVERGED_ITS"
)

func (r Reason) Converged() bool {
	return r == ConvergedRTol || r == ConvergedATol || r == ConvergedRoundOff
}

type Result struct {
	Iterations   int
	ResidualNorm float64
	Reason       Reason
}

type KSP struct {
	Config
	log *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (k *KSP, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	k = &KSP{Config: cfg, log: logger.With("ksp", cfg.Method)}
	return
}

// Solve iterates on A x = b. Where A exposes its diagonal the iterations
// start from the Jacobi estimate x_i = b_i / A_ii, which satisfies identity
// rows exactly, otherwise from zero. On return x holds the last iterate;
// unless the residual met the tolerance the error wraps
// ErrSolverNonConvergence.
func (k *KSP) Solve(A Operator, b, x []float64) (res Result, err error) {
	var (
		nr, nc = A.Dims()
		diag   []float64
		bnorm  = floats.Norm(b, 2)
	)
	if nr != nc || len(b) != nr || len(x) != nr {
		err = fmt.Errorf("operator is %dx%d, rhs has %d entries and solution %d", nr, nc, len(b), len(x))
		return
	}
	if dop, ok := A.(DiagonalOperator); ok {
		diag = dop.Diagonal()
	}
	if k.Preconditioner == PCJacobi && diag == nil {
		err = fmt.Errorf("jacobi preconditioning needs the operator diagonal")
		return
	}
	for i := range x {
		x[i] = 0
	}
	switch {
	case math.IsNaN(bnorm) || math.IsInf(bnorm, 0):
		res.Reason, res.ResidualNorm = DivergedNaN, bnorm
	case bnorm <= k.ATol || bnorm == 0:
		// The zero vector already meets the absolute floor
		res.Reason, res.ResidualNorm = ConvergedATol, bnorm
	default:
		res = k.iterate(A, diag, b, x, bnorm)
	}
	k.log.Debug("linear solve", "iterations", res.Iterations, "residual", res.ResidualNorm,
		"reason", string(res.Reason))
	if !res.Reason.Converged() {
		err = fmt.Errorf("%w: %s after %d iterations, residual norm %g",
			ErrSolverNonConvergence, res.Reason, res.Iterations, res.ResidualNorm)
	}
	return
}

func (k *KSP) iterate(A Operator, diag, b, x []float64, bnorm float64) (res Result) {
	var (
		n             = len(b)
		tol, onTarget = k.tolerance(bnorm)
		op            = newMulVec(A, n, 1)
		rhs           = mat.NewVecDense(n, append([]float64{}, b...))
		initX         = mat.NewVecDense(n, nil)
		settings      = &linsolve.Settings{
			InitX:         initX,
			Tolerance:     tol,
			MaxIterations: k.MaxIterations,
		}
	)
	for i, d := range diag {
		if d != 0 {
			initX.SetVec(i, b[i]/d)
		}
	}
	// CG assumes a positive definite operator, the conduction operator is
	// negative definite on its free rows
	if k.Method == CG && floats.Sum(diag) < 0 {
		op.sign = -1
		rhs.ScaleVec(-1, rhs)
	}
	if k.Preconditioner == PCJacobi {
		settings.PreconSolve = jacobi(diag, op.sign)
	}
	lres, lerr := linsolve.Iterative(op, rhs, k.method(), settings)
	if lres != nil {
		res.Iterations = lres.Stats.Iterations
		for i := range x {
			x[i] = lres.X.AtVec(i)
		}
	}
	res.ResidualNorm = residualNorm(A, b, x)
	switch {
	case math.IsNaN(res.ResidualNorm) || math.IsInf(res.ResidualNorm, 0):
		res.Reason = DivergedNaN
	case errors.Is(lerr, linsolve.ErrIterationLimit):
		res.Reason = DivergedIts
	case lerr != nil:
		res.Reason = DivergedBreakdown
		k.log.Debug("krylov breakdown", "error", lerr)
	default:
		res.Reason = onTarget
	}
	return
}

// tolerance folds the absolute floor into linsolve's relative tolerance and
// names the bound that decides convergence
func (k *KSP) tolerance(bnorm float64) (tol float64, reason Reason) {
	tol, reason = k.RTol, ConvergedRTol
	if atol := k.ATol / bnorm; atol > tol {
		tol, reason = atol, ConvergedATol
	}
	if tol < RoundOff {
		tol, reason = RoundOff, ConvergedRoundOff
	}
	// linsolve takes tolerances below one only
	tol = math.Min(tol, 0.5)
	return
}

func (k *KSP) method() linsolve.Method {
	switch k.Method {
	case CG:
		return &linsolve.CG{}
	case GMRES:
		return &linsolve.GMRES{Restart: k.Restart}
	}
	return &linsolve.BiCGStab{}
}

func residualNorm(A Operator, b, x []float64) float64 {
	r := make([]float64, len(b))
	A.MulVecTo(r, x)
	floats.Sub(r, b)
	return floats.Norm(r, 2)
}

// mulVec presents an Operator to linsolve, optionally negated
type mulVec struct {
	A    Operator
	x, y []float64
	sign float64
}

func newMulVec(A Operator, n int, sign float64) *mulVec {
	return &mulVec{A: A, x: make([]float64, n), y: make([]float64, n), sign: sign}
}

func (op *mulVec) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	if trans {
		panic("ksp: transposed operator products are not supported")
	}
	for i := range op.x {
		op.x[i] = x.AtVec(i)
	}
	op.A.MulVecTo(op.y, op.x)
	for i, v := range op.y {
		dst.SetVec(i, op.sign*v)
	}
}
