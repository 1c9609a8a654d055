package conduction

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/conduction/assembly"
	"github.com/notargets/conduction/dmda"
	"github.com/notargets/conduction/stencil"
)

type buildOptions struct {
	fresh, derivative bool
}

type BuildOption func(o *buildOptions)

// WithFresh builds into a new matrix or vector instead of the model's own
func WithFresh() BuildOption { return func(o *buildOptions) { o.fresh = true } }

// WithDerivative assembles the operator without the unit diagonal of
// Dirichlet rows
func WithDerivative() BuildOption { return func(o *buildOptions) { o.derivative = true } }

func (m *Model) newMat() *dmda.Mat {
	return dmda.NewMat(m.da, dmda.Preallocation{
		Diagonal:    stencil.Size(m.Dim, m.StencilWidth),
		OffDiagonal: 2 * m.StencilWidth,
	})
}

// ConstructMatrix assembles the conduction operator. Each rank assembles its
// block concurrently; every diagonal is then set to minus its row sum, so a
// uniform field maps to zero and Dirichlet rows end as identity rows.
func (m *Model) ConstructMatrix(opts ...BuildOption) (mat *dmda.Mat, err error) {
	var (
		o buildOptions
	)
	for _, opt := range opts {
		opt(&o)
	}
	if !o.fresh {
		// A failed assembly leaves no usable matrix behind
		m.mat = nil
	}
	if m.diffusivity == nil {
		err = fmt.Errorf("%w: set diffusivity before assembling the matrix", ErrPropertiesUnset)
		return
	}
	if mat = m.cached; o.fresh || mat == nil {
		mat = m.newMat()
	}
	mat.AssemblyBegin()
	var (
		wg   = sync.WaitGroup{}
		errs = make([]error, len(m.ranks))
	)
	for rank := range m.ranks {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			rs := m.ranks[rank]
			k := m.da.NewLocalVec(rank)
			if errs[rank] = m.da.GlobalToLocal(rank, m.diffusivity, k); errs[rank] != nil {
				return
			}
			indptr, cols, vals, err := rs.assembler.Assemble(assembly.Input{
				Coords:      rs.coords,
				Diffusivity: k,
				Dirichlet:   rs.bc.DirichletMask(),
				Derivative:  o.derivative,
			})
			if err != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, err)
				return
			}
			errs[rank] = mat.SetValuesLocalCSR(rank, indptr, cols, vals)
		}(rank)
	}
	wg.Wait()
	if err = errors.Join(errs...); err != nil {
		return nil, err
	}
	if err = mat.AssemblyEnd(); err != nil {
		return nil, err
	}
	diag := mat.RowSums()
	floats.Scale(-1, diag)
	if err = mat.SetDiagonal(diag); err != nil {
		return nil, err
	}
	if !o.fresh {
		m.mat, m.cached = mat, mat
	}
	m.log.Debug("matrix assembled", "rows", m.da.GlobalSize(), "nnz", mat.NNZ(),
		"derivative", o.derivative)
	return
}

// ConstructRHS assembles -heat sources plus the boundary contributions, faces
// applied in precedence order.
func (m *Model) ConstructRHS(opts ...BuildOption) (rhs []float64, err error) {
	var (
		o buildOptions
	)
	for _, opt := range opts {
		opt(&o)
	}
	if !o.fresh {
		m.rhs = nil
	}
	if m.heatSources == nil {
		err = fmt.Errorf("%w: set heat sources before assembling the right hand side", ErrPropertiesUnset)
		return
	}
	if rhs = m.rhsStore; o.fresh || rhs == nil {
		rhs = m.da.NewGlobalVec()
	}
	for rank, rs := range m.ranks {
		var (
			h = m.da.NewLocalVec(rank)
			b = m.da.NewLocalVec(rank)
		)
		if err = m.da.GlobalToLocal(rank, m.heatSources, h); err != nil {
			return nil, err
		}
		if err = assembly.RHS(b, h, rs.bc.Ordered()); err != nil {
			return nil, err
		}
		if err = m.da.LocalToGlobal(rank, b, rhs); err != nil {
			return nil, err
		}
	}
	if !o.fresh {
		m.rhs, m.rhsStore = rhs, rhs
	}
	return
}
