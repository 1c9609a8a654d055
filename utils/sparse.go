package utils

import (
	"errors"
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
)

var ErrMissingDiagonal = errors.New("no stored diagonal entry")

type CSR struct {
	M *sparse.CSR
}

// NewCSR wraps row-pointer/column/value arrays without copying them. Columns
// within each row must be sorted ascending.
func NewCSR(nr, nc int, indptr, ind []int, data []float64) (R CSR) {
	R = CSR{sparse.NewCSR(nr, nc, indptr, ind, data)}
	return
}

func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m CSR) NNZ() int                      { return m.M.NNZ() }

// MulVecTo computes dst = A*x, overwriting dst.
func (m CSR) MulVecTo(dst, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	// The sparse kernel accumulates into dst
	m.M.MulVecTo(dst, false, x)
}

func (m CSR) RowSums() (sums []float64) {
	r, _ := m.Dims()
	sums = make([]float64, r)
	m.M.DoNonZero(func(i, _ int, v float64) {
		sums[i] += v
	})
	return
}

func (m CSR) Diagonal() (diag []float64) {
	r, _ := m.Dims()
	diag = make([]float64, r)
	for i := range diag {
		m.M.DoRowNonZero(i, func(i, j int, v float64) {
			if i == j {
				diag[i] = v
			}
		})
	}
	return
}

// SetDiagonal overwrites stored diagonal entries in place. The sparsity
// pattern is never grown.
func (m CSR) SetDiagonal(diag []float64) (err error) {
	var (
		raw = m.RawMatrix()
	)
	if len(diag) != raw.I {
		err = fmt.Errorf("diagonal length %d does not match %d rows", len(diag), raw.I)
		return
	}
	for i := 0; i < raw.I; i++ {
		p := m.diagonalPosition(i)
		if p < 0 {
			err = fmt.Errorf("%w in row %d", ErrMissingDiagonal, i)
			return
		}
		raw.Data[p] = diag[i]
	}
	return
}

func (m CSR) diagonalPosition(i int) int {
	var (
		raw    = m.RawMatrix()
		lo, hi = raw.Indptr[i], raw.Indptr[i+1]
	)
	// Binary search, columns are sorted within a row
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case raw.Ind[mid] == i:
			return mid
		case raw.Ind[mid] < i:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}
