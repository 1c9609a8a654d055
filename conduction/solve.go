package conduction

import (
	"fmt"
	"slices"

	"github.com/notargets/conduction/dmda"
	"github.com/notargets/conduction/ksp"
	"github.com/notargets/conduction/utils"
)

type solveOptions struct {
	matrix ksp.Operator
	rhs    []float64
	method string
}

type SolveOption func(o *solveOptions)

// WithMatrix solves with a caller supplied operator instead of assembling one
func WithMatrix(A ksp.Operator) SolveOption { return func(o *solveOptions) { o.matrix = A } }

// WithRHS solves against a caller supplied right hand side
func WithRHS(rhs []float64) SolveOption { return func(o *solveOptions) { o.rhs = rhs } }

// WithMethod picks the Krylov method: bcgs, cg or gmres
func WithMethod(method string) SolveOption { return func(o *solveOptions) { o.method = method } }

// Solve assembles whatever operand was not supplied and runs the Krylov
// solver. The temperature field is only updated on convergence.
func (m *Model) Solve(opts ...SolveOption) (T []float64, err error) {
	var (
		o   = solveOptions{method: m.solver.Method}
		k   *ksp.KSP
		res ksp.Result
	)
	for _, opt := range opts {
		opt(&o)
	}
	if o.matrix == nil {
		var mat *dmda.Mat
		if mat, err = m.ConstructMatrix(); err != nil {
			return
		}
		// Without a fixed temperature anywhere the operator has the constant
		// field in its null space
		if !slices.Contains(m.DirichletMask(), true) {
			err = fmt.Errorf("%w: singular system, no Dirichlet boundary is set", ksp.ErrSolverNonConvergence)
			return
		}
		o.matrix = mat
	}
	if o.rhs == nil {
		if o.rhs, err = m.ConstructRHS(); err != nil {
			return
		}
	}
	if err = m.checkField("rhs", o.rhs); err != nil {
		return
	}
	cfg := m.solver
	cfg.Method = o.method
	if k, err = ksp.New(cfg, m.log); err != nil {
		return
	}
	x := m.da.NewGlobalVec()
	res, err = k.Solve(o.matrix, o.rhs, x)
	m.log.Info("solve", "method", cfg.Method, "iterations", res.Iterations,
		"residual", res.ResidualNorm, "reason", string(res.Reason))
	if err != nil {
		return nil, err
	}
	copy(m.temperature, x)
	return x, nil
}

func (m *Model) Temperature() []float64 { return append([]float64{}, m.temperature...) }

// Matrix is the operator of the last successful in place assembly, or nil
func (m *Model) Matrix() *dmda.Mat { return m.mat }

// RHS is the right hand side of the last successful in place assembly, or nil
func (m *Model) RHS() []float64 { return m.rhs }

// Gradient differentiates a global field along each axis over the grid
// coordinates. Components are returned x first.
func (m *Model) Gradient(field []float64) (grad [][]float64, err error) {
	if err = m.checkField("field", field); err != nil {
		return
	}
	coords := make([][]float64, m.Dim)
	for axis := range coords {
		coords[axis] = m.da.AxisCoordinates(axis)
	}
	return utils.Gradient(field, m.Res, coords)
}

// HeatFlux applies Fourier's law to the temperature field, q = -k grad T
func (m *Model) HeatFlux() (q [][]float64, err error) {
	if m.diffusivity == nil {
		err = fmt.Errorf("%w: heat flux needs the diffusivity", ErrPropertiesUnset)
		return
	}
	if q, err = m.Gradient(m.temperature); err != nil {
		return
	}
	for axis := range q {
		for i := range q[axis] {
			q[axis][i] *= -m.diffusivity[i]
		}
	}
	return
}
