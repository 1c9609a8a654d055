package conduction

import (
	"fmt"
	"math"

	"github.com/notargets/conduction/utils"
)

// CoordinateMap remaps the coordinates of one axis. It must return a new
// slice of the same length.
type CoordinateMap func(x []float64) []float64

// Stretch clusters nodes toward lo when exponent > 1, toward hi when < 1,
// keeping both end points.
func Stretch(lo, hi, exponent float64) CoordinateMap {
	return func(x []float64) (y []float64) {
		y = make([]float64, len(x))
		for i, xi := range x {
			y[i] = lo + (hi-lo)*math.Pow((xi-lo)/(hi-lo), exponent)
		}
		return
	}
}

func Affine(scale, shift float64) CoordinateMap {
	return func(x []float64) (y []float64) {
		y = make([]float64, len(x))
		for i, xi := range x {
			y[i] = scale*xi + shift
		}
		return
	}
}

// Refine moves the nodes along axis through fn, keeping the node count and
// connectivity. Boundary masks and spacings are recomputed and the assembled
// matrix is discarded. Nothing changes when fn produces a non-finite value.
func (m *Model) Refine(axis int, fn CoordinateMap) (err error) {
	if axis < 0 || axis >= m.Dim {
		return fmt.Errorf("axis %d out of range for %d dimensions", axis, m.Dim)
	}
	var (
		newCoords = make([][]float64, len(m.ranks))
	)
	if line := fn(m.da.AxisCoordinates(axis)); utils.AllFinite(line) && !monotone(line) {
		return fmt.Errorf("coordinate map on axis %d does not keep the nodes in order", axis)
	}
	for rank, rs := range m.ranks {
		var (
			nn = len(rs.coords) / m.Dim
			x  = make([]float64, nn)
		)
		for l := range x {
			x[l] = rs.coords[l*m.Dim+axis]
		}
		y := fn(x)
		if len(y) != nn {
			return fmt.Errorf("coordinate map returned %d values for %d nodes", len(y), nn)
		}
		if !utils.AllFinite(y) {
			return fmt.Errorf("%w: coordinate map on axis %d", ErrNonFiniteCoordinate, axis)
		}
		c := append([]float64{}, rs.coords...)
		for l := range y {
			c[l*m.Dim+axis] = y[l]
		}
		newCoords[rank] = c
	}
	for rank := range m.ranks {
		if err = m.da.SetCoordinatesLocal(rank, newCoords[rank]); err != nil {
			return
		}
	}
	for rank, rs := range m.ranks {
		rs.coords = m.da.CoordinatesLocal(rank)
		rs.bc.Rebuild(m.geometry(rank, rs.coords))
	}
	m.mat, m.cached = nil, nil
	m.rhs, m.rhsStore = nil, nil
	m.log.Debug("grid refined", "axis", axis)
	return
}

func monotone(x []float64) bool {
	var up, down bool
	for i := 1; i < len(x); i++ {
		switch {
		case x[i] > x[i-1]:
			up = true
		case x[i] < x[i-1]:
			down = true
		default:
			return false
		}
	}
	return !(up && down)
}
