// Package assembly builds the conduction operator and its right hand side on
// the local, ghost padded, block of a structured grid.
package assembly

import (
	"errors"
	"fmt"

	"github.com/notargets/conduction/stencil"
	"github.com/notargets/conduction/utils"
)

var ErrMissingDiffusivity = errors.New("diffusivity is not set")

// Coincident nodes are this far apart
const zeroDistance = utils.NODETOL

type Input struct {
	Coords      []float64 // Dim values per local node
	Diffusivity []float64
	Dirichlet   []bool
	// Derivative assembles the bare operator, without the unit diagonal on
	// Dirichlet rows
	Derivative bool
}

// Matrix owns the neighbour table and the triplet staging buffers for one
// local block. They are sized once and reused across assemblies.
type Matrix struct {
	Closure    stencil.Closure
	Shape      []int
	Pad        int
	nn, ne     int
	nbr        []int
	rows, cols []int
	vals       []float64
}

func NewMatrix(c stencil.Closure, shape []int, pad int) (m *Matrix) {
	m = &Matrix{
		Closure: c,
		Shape:   append([]int{}, shape...),
		Pad:     pad,
		ne:      len(c),
	}
	m.nbr = stencil.Neighbours(c, shape, pad)
	m.nn = len(m.nbr) / m.ne
	m.rows = make([]int, m.nn*m.ne)
	m.cols = make([]int, m.nn*m.ne)
	m.vals = make([]float64, m.nn*m.ne)
	return
}

func (m *Matrix) NodeCount() int { return m.nn }

// Neighbours is the table of local neighbour indices, Closure order per node,
// -1 outside the block
func (m *Matrix) Neighbours() []int { return m.nbr }

func (m *Matrix) check(in Input) (err error) {
	var (
		dim = len(m.Shape)
	)
	switch {
	case len(in.Diffusivity) == 0:
		err = ErrMissingDiffusivity
	case len(in.Diffusivity) != m.nn:
		err = fmt.Errorf("%w: have %d values for %d nodes", ErrMissingDiffusivity, len(in.Diffusivity), m.nn)
	case len(in.Coords) != m.nn*dim:
		err = fmt.Errorf("have %d coordinates for %d nodes in %d dimensions", len(in.Coords), m.nn, dim)
	case len(in.Dirichlet) != m.nn:
		err = fmt.Errorf("have %d Dirichlet flags for %d nodes", len(in.Dirichlet), m.nn)
	}
	return
}

// Assemble computes the conductance between every node and each of its
// closure neighbours, in local numbering. The center coefficient is a
// placeholder: 0, or -1 on Dirichlet rows unless Derivative is set. Dirichlet
// rows collapse onto their diagonal. Neighbours outside the block are dropped,
// which leaves a zero flux condition on unset faces. The returned CSR arrays
// share the staging buffers and are valid until the next call.
func (m *Matrix) Assemble(in Input) (indptr, cols []int, vals []float64, err error) {
	var (
		dim    = len(m.Shape)
		center = m.ne - 1
		n      = 0
	)
	if err = m.check(in); err != nil {
		return
	}
	for i := 0; i < m.ne; i++ {
		for l := 0; l < m.nn; l++ {
			var (
				nb   = m.nbr[l*m.ne+i]
				coef float64
			)
			switch {
			case i == center:
				nb = l
				if in.Dirichlet[l] && !in.Derivative {
					coef = -1
				}
			case in.Dirichlet[l]:
				nb = l
			case nb < 0:
				continue
			default:
				var d2 float64
				for axis := 0; axis < dim; axis++ {
					dx := in.Coords[nb*dim+axis] - in.Coords[l*dim+axis]
					d2 += dx * dx
				}
				if d2 == 0 {
					d2 = zeroDistance * zeroDistance
				}
				coef = (in.Diffusivity[nb] + in.Diffusivity[l]) / (2 * d2)
			}
			m.rows[n], m.cols[n], m.vals[n] = l, nb, coef
			n++
		}
	}
	var rows []int
	rows, cols, vals = SumDuplicates(m.rows[:n], m.cols[:n], m.vals[:n])
	indptr = ToCSR(m.nn, rows)
	return
}

