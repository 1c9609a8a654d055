package dmda

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/conduction/utils"
)

var ErrMatrixCapacityExceeded = errors.New("matrix capacity exceeded")

// Preallocation bounds the nonzeros per row: Diagonal counts columns owned
// by the row's own rank, OffDiagonal counts columns owned by other ranks.
type Preallocation struct {
	Diagonal, OffDiagonal int
}

type colVal struct {
	col int
	val float64
}

type stashEntry struct {
	Row, Col int
	Val      float64
}

// Mat is a square sparse matrix over the DA's global numbering. Values are
// loaded between AssemblyBegin and AssemblyEnd; rows owned by another rank
// are stashed and delivered to their owner at AssemblyEnd.
type Mat struct {
	da         *DA
	prealloc   Preallocation
	pending    [][]colVal // Per global row, owner-side insertion buffer
	mb         *utils.MailBox[stashEntry]
	csr        utils.CSR
	assembling bool
	assembled  bool
}

func NewMat(da *DA, prealloc Preallocation) (m *Mat) {
	m = &Mat{
		da:       da,
		prealloc: prealloc,
		pending:  make([][]colVal, da.GlobalSize()),
		mb:       utils.NewMailBox[stashEntry](da.Ranks()),
	}
	return
}

func (m *Mat) Dims() (r, c int) { return len(m.pending), len(m.pending) }

// AssemblyBegin zeroes the matrix, keeping row buffers for reuse.
func (m *Mat) AssemblyBegin() {
	for i := range m.pending {
		m.pending[i] = m.pending[i][:0]
	}
	for rank := 0; rank < m.da.Ranks(); rank++ {
		m.mb.ClearMyMessages(rank)
	}
	m.assembling = true
	m.assembled = false
}

// SetValuesLocalCSR inserts rows given in rank's local numbering. indptr has
// one entry per local row plus one. Entries replace existing values at the
// same position. Safe to call concurrently for distinct ranks.
func (m *Mat) SetValuesLocalCSR(rank int, indptr, cols []int, vals []float64) (err error) {
	var (
		ri = m.da.ranks[rank]
	)
	if !m.assembling {
		err = fmt.Errorf("SetValuesLocalCSR called outside AssemblyBegin/AssemblyEnd")
		return
	}
	if len(indptr) != len(ri.lgmap)+1 || len(cols) != len(vals) || indptr[len(indptr)-1] != len(cols) {
		err = fmt.Errorf("%w: CSR arrays do not match %d local rows", ErrSizeMismatch, len(ri.lgmap))
		return
	}
	for l := 0; l < len(ri.lgmap); l++ {
		row := ri.lgmap[l]
		for p := indptr[l]; p < indptr[l+1]; p++ {
			col := ri.lgmap[cols[p]]
			if !ri.owned[l] {
				m.mb.PostMessage(rank, m.da.Owner(row), stashEntry{row, col, vals[p]})
				continue
			}
			if err = m.insert(row, col, vals[p]); err != nil {
				return
			}
		}
	}
	return
}

func (m *Mat) insert(row, col int, val float64) (err error) {
	var (
		entries = m.pending[row]
	)
	for i := range entries {
		if entries[i].col == col {
			entries[i].val = val
			return
		}
	}
	m.pending[row] = append(entries, colVal{col, val})
	var (
		owner       = m.da.Owner(row)
		nDiag, nOff int
	)
	for _, e := range m.pending[row] {
		if m.da.Owner(e.col) == owner {
			nDiag++
		} else {
			nOff++
		}
	}
	if nDiag > m.prealloc.Diagonal || nOff > m.prealloc.OffDiagonal {
		err = fmt.Errorf("%w: row %d needs %d diagonal and %d off-diagonal nonzeros, preallocated %d and %d",
			ErrMatrixCapacityExceeded, row, nDiag, nOff, m.prealloc.Diagonal, m.prealloc.OffDiagonal)
	}
	return
}

// AssemblyEnd exchanges stashed rows and compresses the matrix.
func (m *Mat) AssemblyEnd() (err error) {
	if !m.assembling {
		err = fmt.Errorf("AssemblyEnd called without AssemblyBegin")
		return
	}
	m.assembling = false
	for rank := 0; rank < m.da.Ranks(); rank++ {
		m.mb.DeliverMyMessages(rank)
	}
	for rank := 0; rank < m.da.Ranks(); rank++ {
		for _, e := range m.mb.ReceiveMyMessages(rank) {
			if err = m.insert(e.Row, e.Col, e.Val); err != nil {
				return
			}
		}
		m.mb.ClearMyMessages(rank)
	}
	var (
		n      = len(m.pending)
		indptr = make([]int, n+1)
	)
	for i, row := range m.pending {
		sort.Slice(row, func(a, b int) bool { return row[a].col < row[b].col })
		indptr[i+1] = indptr[i] + len(row)
	}
	var (
		ind  = make([]int, indptr[n])
		data = make([]float64, indptr[n])
	)
	for i, row := range m.pending {
		for p, e := range row {
			ind[indptr[i]+p] = e.col
			data[indptr[i]+p] = e.val
		}
	}
	m.csr = utils.NewCSR(n, n, indptr, ind, data)
	m.assembled = true
	return
}

func (m *Mat) checkAssembled() {
	if !m.assembled {
		panic("matrix used before AssemblyEnd")
	}
}

func (m *Mat) NNZ() int { m.checkAssembled(); return m.csr.NNZ() }
func (m *Mat) At(i, j int) float64 {
	m.checkAssembled()
	return m.csr.At(i, j)
}
func (m *Mat) RowSums() []float64 {
	m.checkAssembled()
	return m.csr.RowSums()
}
func (m *Mat) Diagonal() []float64 {
	m.checkAssembled()
	return m.csr.Diagonal()
}
func (m *Mat) MulVecTo(dst, x []float64) {
	m.checkAssembled()
	m.csr.MulVecTo(dst, x)
}

// SetDiagonal overwrites the diagonal. Every row must already store a
// diagonal entry; the pattern is never grown.
func (m *Mat) SetDiagonal(diag []float64) (err error) {
	m.checkAssembled()
	if err = m.csr.SetDiagonal(diag); errors.Is(err, utils.ErrMissingDiagonal) {
		err = fmt.Errorf("%w: %v", ErrMatrixCapacityExceeded, err)
	}
	return
}
