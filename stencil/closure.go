// Package stencil generates the neighbour closure of an axis-aligned finite
// difference stencil on a structured grid padded by a halo of fixed width.
package stencil

import (
	"errors"
	"fmt"
)

var ErrInvalidStencilRequest = errors.New("invalid stencil request")

// MaxDim is the largest supported grid dimension
const MaxDim = 3

// Pair is a window along one axis of a padded array. For an axis holding n
// nodes padded by pad on both sides the window is [Start, n+End+2*pad), which
// always has length n.
type Pair struct {
	Start, End int
}

// Entry holds one Pair per axis, x first.
type Entry []Pair

// Offset is the neighbour displacement along axis, in nodes.
func (e Entry) Offset(axis, pad int) int {
	return e[axis].Start - pad
}

func (e Entry) Window(axis, n, pad int) (lo, hi int) {
	return e[axis].Start, n + e[axis].End + 2*pad
}

func (e Entry) IsCenter(pad int) bool {
	for axis := range e {
		if e.Offset(axis, pad) != 0 {
			return false
		}
	}
	return true
}

// Closure is the ordered neighbour list of a stencil, center last.
type Closure []Entry

func (c Closure) Center() Entry {
	return c[len(c)-1]
}

func (c Closure) Dim() int {
	if len(c) == 0 {
		return 0
	}
	return len(c[0])
}

// Offsets returns the per-axis displacements of every entry.
func (c Closure) Offsets(pad int) (offsets [][]int) {
	offsets = make([][]int, len(c))
	for i, e := range c {
		offsets[i] = make([]int, len(e))
		for axis := range e {
			offsets[i][axis] = e.Offset(axis, pad)
		}
	}
	return
}

// Size is the number of entries in a closure of the given width, 2*dim*width + 1
func Size(dim, width int) int {
	return 2*dim*width + 1
}

func checkDim(dim int) error {
	if dim < 1 || dim > MaxDim {
		return fmt.Errorf("%w: %d is an invalid number of dimensions, must be 1 to %d",
			ErrInvalidStencilRequest, dim, MaxDim)
	}
	return nil
}

// Level returns the 2*dim neighbours at distance radius, all behind entries
// (one per axis) followed by all ahead entries, then the center entry.
func Level(dim, radius, pad int) (level []Entry, err error) {
	if err = checkDim(dim); err != nil {
		return
	}
	if radius > pad {
		err = fmt.Errorf("%w: radius %d exceeds padding %d", ErrInvalidStencilRequest, radius, pad)
		return
	}
	if radius < 1 {
		err = fmt.Errorf("%w: radius must be positive, have %d", ErrInvalidStencilRequest, radius)
		return
	}
	centered := func() Entry {
		e := make(Entry, dim)
		for axis := range e {
			e[axis] = Pair{pad, -pad}
		}
		return e
	}
	level = make([]Entry, 0, 2*dim+1)
	for _, dir := range [2]int{-1, 1} {
		for axis := 0; axis < dim; axis++ {
			e := centered()
			e[axis] = Pair{pad + dir*radius, -pad + dir*radius}
			level = append(level, e)
		}
	}
	level = append(level, centered())
	return
}

// New builds the full closure for a stencil of the given width: every level
// from width down to 1, then the center.
func New(dim, width int) (c Closure, err error) {
	return NewPadded(dim, width, width)
}

// NewPadded builds a closure of the given width for arrays padded by pad,
// which must be at least width.
func NewPadded(dim, width, pad int) (c Closure, err error) {
	var (
		level []Entry
	)
	if err = checkDim(dim); err != nil {
		return
	}
	if width < 1 {
		err = fmt.Errorf("%w: stencil width must be positive, have %d", ErrInvalidStencilRequest, width)
		return
	}
	c = make(Closure, 0, Size(dim, width))
	for w := width; w > 0; w-- {
		if level, err = Level(dim, w, pad); err != nil {
			return nil, err
		}
		c = append(c, level[:len(level)-1]...)
	}
	c = append(c, level[len(level)-1])
	return
}

// Neighbours resolves every closure entry for every node of an array with the
// given shape, x fastest. The result holds len(c) indices per node, in
// closure order; neighbours outside the array are -1.
func Neighbours(c Closure, shape []int, pad int) (nbr []int) {
	var (
		dim        = len(shape)
		padded     = make([]int, len(shape))
		nn, npad   = 1, 1
		ijk        = make([]int, dim)
		ne         = len(c)
		lookup     []int
		padStrides []int
	)
	for axis, n := range shape {
		padded[axis] = n + 2*pad
		nn *= n
		npad *= padded[axis]
	}
	padStrides = make([]int, dim)
	stride := 1
	for axis := range padded {
		padStrides[axis] = stride
		stride *= padded[axis]
	}
	lookup = make([]int, npad)
	for i := range lookup {
		lookup[i] = -1
	}
	for l := 0; l < nn; l++ {
		unravel(l, shape, ijk)
		p := 0
		for axis := range ijk {
			p += (ijk[axis] + pad) * padStrides[axis]
		}
		lookup[p] = l
	}
	nbr = make([]int, nn*ne)
	for l := 0; l < nn; l++ {
		unravel(l, shape, ijk)
		for i, e := range c {
			p := 0
			for axis := range ijk {
				// Within the window of e the node at ijk sits at Start + ijk
				p += (e[axis].Start + ijk[axis]) * padStrides[axis]
			}
			nbr[l*ne+i] = lookup[p]
		}
	}
	return
}

func unravel(ind int, shape, ijk []int) {
	for axis, n := range shape {
		ijk[axis] = ind % n
		ind /= n
	}
}
