// Package dmda is an in-process structured grid and sparse linear algebra
// engine. A DA splits a 1-3 dimensional node grid into slabs along its
// slowest axis, one per rank, and gives each rank a ghost halo as wide as the
// stencil. Every operation taking a rank is part of a collective: callers
// must run it for all ranks, in the same order, before moving on.
package dmda

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/conduction/utils"
)

var (
	ErrInvalidGrid  = errors.New("invalid structured grid")
	ErrSizeMismatch = errors.New("vector size mismatch")
)

type DA struct {
	Dim          int
	Sizes        []int // Global nodes per axis, x first
	StencilWidth int
	Partitions   *utils.PartitionMap // Planes of the slowest axis per rank
	strides      []int
	coords       []float64 // Global coordinates, Dim values per node
	ranks        []rankInfo
}

type rankInfo struct {
	ghost [][2]int // Per axis [start, end) including the halo
	shape []int
	lgmap utils.Index
	owned []bool
}

func NewDA(sizes []int, stencilWidth, nRanks int) (da *DA, err error) {
	var (
		dim = len(sizes)
	)
	switch {
	case dim < 1 || dim > 3:
		err = fmt.Errorf("%w: %d dimensions", ErrInvalidGrid, dim)
		return
	case stencilWidth < 1:
		err = fmt.Errorf("%w: stencil width %d", ErrInvalidGrid, stencilWidth)
		return
	case nRanks < 1:
		err = fmt.Errorf("%w: %d ranks", ErrInvalidGrid, nRanks)
		return
	}
	for axis, n := range sizes {
		if n < 2 {
			err = fmt.Errorf("%w: axis %d has %d nodes, need at least 2", ErrInvalidGrid, axis, n)
			return
		}
	}
	if nRanks > sizes[dim-1] {
		err = fmt.Errorf("%w: %d ranks for %d planes along axis %d", ErrInvalidGrid,
			nRanks, sizes[dim-1], dim-1)
		return
	}
	da = &DA{
		Dim:          dim,
		Sizes:        append([]int{}, sizes...),
		StencilWidth: stencilWidth,
		Partitions:   utils.NewPartitionMap(nRanks, sizes[dim-1]),
		strides:      utils.Strides(sizes),
	}
	da.coords = make([]float64, da.GlobalSize()*dim)
	da.ranks = make([]rankInfo, nRanks)
	for rank := range da.ranks {
		da.ranks[rank] = da.newRankInfo(rank)
	}
	return
}

func (da *DA) newRankInfo(rank int) (ri rankInfo) {
	var (
		dim        = da.Dim
		slab       = dim - 1
		kMin, kMax = da.Partitions.GetBucketRange(rank)
		w          = da.StencilWidth
	)
	ri.ghost = make([][2]int, dim)
	ri.shape = make([]int, dim)
	for axis := 0; axis < dim; axis++ {
		ri.ghost[axis] = [2]int{0, da.Sizes[axis]}
	}
	ri.ghost[slab] = [2]int{max(0, kMin-w), min(da.Sizes[slab], kMax+w)}
	for axis := 0; axis < dim; axis++ {
		ri.shape[axis] = ri.ghost[axis][1] - ri.ghost[axis][0]
	}
	nn := utils.Product(ri.shape)
	ri.lgmap = utils.NewIndex(nn)
	ri.owned = make([]bool, nn)
	ijk := make([]int, dim)
	for l := 0; l < nn; l++ {
		utils.Unravel(l, ri.shape, ijk)
		var g int
		for axis := 0; axis < dim; axis++ {
			g += (ijk[axis] + ri.ghost[axis][0]) * da.strides[axis]
		}
		ri.lgmap[l] = g
		k := ijk[slab] + ri.ghost[slab][0]
		ri.owned[l] = k >= kMin && k < kMax
	}
	return
}

func (da *DA) Ranks() int      { return len(da.ranks) }
func (da *DA) GlobalSize() int { return utils.Product(da.Sizes) }

// OwnedRange is the [start, end) range of slowest-axis planes owned by rank
func (da *DA) OwnedRange(rank int) [2]int {
	kMin, kMax := da.Partitions.GetBucketRange(rank)
	return [2]int{kMin, kMax}
}

// GhostRanges is the per axis [start, end) range held locally by rank,
// including its halo.
func (da *DA) GhostRanges(rank int) [][2]int { return da.ranks[rank].ghost }
func (da *DA) LocalShape(rank int) []int     { return da.ranks[rank].shape }
func (da *DA) LocalSize(rank int) int        { return len(da.ranks[rank].lgmap) }

// LGMap maps local (haloed) node numbers of rank to global node numbers.
func (da *DA) LGMap(rank int) utils.Index { return da.ranks[rank].lgmap }

// Owned flags the local nodes of rank that are not ghosts.
func (da *DA) Owned(rank int) []bool { return da.ranks[rank].owned }

// Owner returns the rank owning global node g
func (da *DA) Owner(g int) (rank int) {
	var (
		slab = da.Dim - 1
		k    = g / da.strides[slab]
	)
	rank, _, _ = da.Partitions.GetBucket(k)
	return
}

// GlobalIJK writes the per-axis indices of global node g into ijk
func (da *DA) GlobalIJK(g int, ijk []int) {
	utils.Unravel(g, da.Sizes, ijk)
}

// FaceIndex numbers the nodes of a face normal to axis, natural ordering over
// the remaining axes. Face nodes of a 3D minX face are numbered j + ny*k.
func (da *DA) FaceIndex(g, axis int) (f int) {
	var (
		ijk    = make([]int, da.Dim)
		stride = 1
	)
	da.GlobalIJK(g, ijk)
	for a := 0; a < da.Dim; a++ {
		if a == axis {
			continue
		}
		f += ijk[a] * stride
		stride *= da.Sizes[a]
	}
	return
}

// FaceSize is the number of nodes on a face normal to axis
func (da *DA) FaceSize(axis int) int {
	return da.GlobalSize() / da.Sizes[axis]
}

func (da *DA) SetUniformCoordinates(minCoord, maxCoord []float64) (err error) {
	if len(minCoord) != da.Dim || len(maxCoord) != da.Dim {
		err = fmt.Errorf("%w: need %d min and max coordinates, have %d and %d",
			ErrInvalidGrid, da.Dim, len(minCoord), len(maxCoord))
		return
	}
	var (
		N   = da.GlobalSize()
		ijk = make([]int, da.Dim)
	)
	for g := 0; g < N; g++ {
		da.GlobalIJK(g, ijk)
		for axis := 0; axis < da.Dim; axis++ {
			h := (maxCoord[axis] - minCoord[axis]) / float64(da.Sizes[axis]-1)
			da.coords[g*da.Dim+axis] = minCoord[axis] + float64(ijk[axis])*h
		}
	}
	return
}

// Coordinates returns a copy of the global coordinates, Dim values per node
func (da *DA) Coordinates() []float64 {
	return append([]float64{}, da.coords...)
}

// CoordinatesLocal returns a copy of the coordinates of rank's local nodes,
// ghosts included.
func (da *DA) CoordinatesLocal(rank int) (c []float64) {
	var (
		lg = da.ranks[rank].lgmap
	)
	c = make([]float64, len(lg)*da.Dim)
	for l, g := range lg {
		copy(c[l*da.Dim:(l+1)*da.Dim], da.coords[g*da.Dim:(g+1)*da.Dim])
	}
	return
}

// SetCoordinatesLocal stores the coordinates of rank's owned nodes. Ghost
// values are ignored, the owner's values win.
func (da *DA) SetCoordinatesLocal(rank int, c []float64) (err error) {
	var (
		ri = da.ranks[rank]
	)
	if len(c) != len(ri.lgmap)*da.Dim {
		err = fmt.Errorf("%w: %d local coordinates, need %d", ErrSizeMismatch,
			len(c), len(ri.lgmap)*da.Dim)
		return
	}
	for l, g := range ri.lgmap {
		if ri.owned[l] {
			copy(da.coords[g*da.Dim:(g+1)*da.Dim], c[l*da.Dim:(l+1)*da.Dim])
		}
	}
	return
}

func (da *DA) BoundingBox() (minCoord, maxCoord []float64) {
	minCoord = utils.ConstArray(da.Dim, math.Inf(1))
	maxCoord = utils.ConstArray(da.Dim, math.Inf(-1))
	for n := 0; n < len(da.coords); n += da.Dim {
		for axis := 0; axis < da.Dim; axis++ {
			minCoord[axis] = math.Min(minCoord[axis], da.coords[n+axis])
			maxCoord[axis] = math.Max(maxCoord[axis], da.coords[n+axis])
		}
	}
	return
}

// AxisCoordinates samples the coordinates along the grid line of axis that
// passes through node 0.
func (da *DA) AxisCoordinates(axis int) (x []float64) {
	x = make([]float64, da.Sizes[axis])
	for i := range x {
		x[i] = da.coords[i*da.strides[axis]*da.Dim+axis]
	}
	return
}
