// Package conduction solves steady state heat conduction on a structured,
// possibly non-uniform, grid of 1 to 3 dimensions.
package conduction

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/notargets/conduction/assembly"
	"github.com/notargets/conduction/boundary"
	"github.com/notargets/conduction/dmda"
	"github.com/notargets/conduction/ksp"
	"github.com/notargets/conduction/stencil"
)

var (
	ErrNonFiniteCoordinate = errors.New("non-finite coordinate")
	ErrPropertiesUnset     = errors.New("material properties are not set")
)

type Model struct {
	Dim          int
	Res          []int // Global nodes per axis
	StencilWidth int
	da           *dmda.DA
	closure      stencil.Closure
	ranks        []*rankState
	solver       ksp.Config
	log          *slog.Logger
	// Global fields in natural ordering, x fastest
	diffusivity, heatSources []float64
	temperature              []float64
	// Last successful assembly, and the storage reused by in place assembly
	mat, cached   *dmda.Mat
	rhs, rhsStore []float64
}

type rankState struct {
	coords    []float64
	assembler *assembly.Matrix
	bc        *boundary.Registry
}

type options struct {
	width, ranks int
	solver       ksp.Config
	log          *slog.Logger
}

type Option func(o *options)

// WithStencilWidth sets the stencil radius and the ghost halo width, default 1
func WithStencilWidth(width int) Option { return func(o *options) { o.width = width } }

// WithPartitions splits the grid into slabs along its slowest axis, one per
// rank, default 1
func WithPartitions(ranks int) Option { return func(o *options) { o.ranks = ranks } }

func WithSolverConfig(cfg ksp.Config) Option { return func(o *options) { o.solver = cfg } }

func WithLogger(log *slog.Logger) Option { return func(o *options) { o.log = log } }

// New builds a uniform grid of res nodes per axis spanning minCoord to
// maxCoord. Every face starts as a zero flux boundary.
func New(minCoord, maxCoord []float64, res []int, opts ...Option) (m *Model, err error) {
	var (
		o = options{
			width:  1,
			ranks:  1,
			solver: ksp.DefaultConfig(),
			log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		}
	)
	for _, opt := range opts {
		opt(&o)
	}
	if err = o.solver.Validate(); err != nil {
		return
	}
	m = &Model{
		Dim:          len(res),
		Res:          append([]int{}, res...),
		StencilWidth: o.width,
		solver:       o.solver,
		log:          o.log,
	}
	if m.closure, err = stencil.New(m.Dim, o.width); err != nil {
		return nil, err
	}
	if m.da, err = dmda.NewDA(res, o.width, o.ranks); err != nil {
		return nil, err
	}
	for axis := range minCoord {
		if len(maxCoord) != len(minCoord) || !(maxCoord[axis] > minCoord[axis]) {
			return nil, fmt.Errorf("%w: extent %v to %v", dmda.ErrInvalidGrid, minCoord, maxCoord)
		}
	}
	if err = m.da.SetUniformCoordinates(minCoord, maxCoord); err != nil {
		return nil, err
	}
	m.ranks = make([]*rankState, m.da.Ranks())
	for rank := range m.ranks {
		rs := &rankState{
			coords:    m.da.CoordinatesLocal(rank),
			assembler: assembly.NewMatrix(m.closure, m.da.LocalShape(rank), o.width),
		}
		rs.bc = boundary.NewRegistry(m.geometry(rank, rs.coords))
		m.ranks[rank] = rs
	}
	m.temperature = m.da.NewGlobalVec()
	m.log.Debug("grid created", "res", res, "ranks", m.da.Ranks(), "stencil", len(m.closure))
	return
}

func (m *Model) geometry(rank int, coords []float64) (g boundary.Geometry) {
	var (
		lg = m.da.LGMap(rank)
	)
	g = boundary.Geometry{
		Dim:      m.Dim,
		Coords:   coords,
		Spacing:  make([][2]float64, m.Dim),
		FaceSize: make([]int, m.Dim),
		FaceIndex: func(l, axis int) int {
			return m.da.FaceIndex(lg[l], axis)
		},
	}
	g.BBoxMin, g.BBoxMax = m.da.BoundingBox()
	for axis := 0; axis < m.Dim; axis++ {
		g.Spacing[axis] = faceSpacing(m.da.AxisCoordinates(axis))
		g.FaceSize[axis] = m.da.FaceSize(axis)
	}
	return
}

// faceSpacing is the spacing next to the lowest and the highest coordinate
// of a monotone grid line, which is reversed after a reflecting remap
func faceSpacing(x []float64) (sp [2]float64) {
	var (
		n     = len(x)
		first = math.Abs(x[1] - x[0])
		last  = math.Abs(x[n-1] - x[n-2])
	)
	if x[n-1] < x[0] {
		return [2]float64{last, first}
	}
	return [2]float64{first, last}
}

func (m *Model) DA() *dmda.DA            { return m.da }
func (m *Model) Closure() stencil.Closure { return m.closure }
func (m *Model) Ranks() int              { return len(m.ranks) }
func (m *Model) NodeCount() int          { return m.da.GlobalSize() }
func (m *Model) SolverConfig() ksp.Config { return m.solver }

// Coordinates returns the global node coordinates, Dim values per node
func (m *Model) Coordinates() []float64 { return m.da.Coordinates() }

// AxisCoordinates returns the node positions along axis
func (m *Model) AxisCoordinates(axis int) []float64 { return m.da.AxisCoordinates(axis) }

// Extent is the bounding box of the grid
func (m *Model) Extent() (minCoord, maxCoord []float64) { return m.da.BoundingBox() }

func (m *Model) Walls() []string { return boundary.Walls(m.Dim) }

// NewField returns a zeroed global field
func (m *Model) NewField() []float64 { return m.da.NewGlobalVec() }

func (m *Model) checkField(name string, v []float64) error {
	if len(v) != m.da.GlobalSize() {
		return fmt.Errorf("%w: %s has %d values for %d nodes", dmda.ErrSizeMismatch,
			name, len(v), m.da.GlobalSize())
	}
	return nil
}

// UpdateProperties stores copies of the diffusivity and heat source fields,
// one value per global node.
func (m *Model) UpdateProperties(diffusivity, heatSources []float64) (err error) {
	if err = m.checkField("diffusivity", diffusivity); err != nil {
		return
	}
	if err = m.checkField("heat sources", heatSources); err != nil {
		return
	}
	m.diffusivity = append(m.diffusivity[:0], diffusivity...)
	m.heatSources = append(m.heatSources[:0], heatSources...)
	return
}

func (m *Model) Diffusivity() []float64 { return append([]float64{}, m.diffusivity...) }
func (m *Model) HeatSources() []float64 { return append([]float64{}, m.heatSources...) }

// BoundaryCondition sets the condition on a wall. A flux value is positive
// toward the domain interior. value holds one entry, or one per face node
// numbered naturally over the remaining axes. Where faces meet, the most
// recently set face decides whether the shared nodes are Dirichlet.
func (m *Model) BoundaryCondition(wall string, value []float64, flux bool) (err error) {
	for _, rs := range m.ranks {
		if err = rs.bc.Set(wall, value, flux); err != nil {
			return
		}
	}
	m.log.Debug("boundary condition", "wall", wall, "flux", flux, "values", len(value))
	return
}

// DirichletMask flags the global nodes held at a fixed temperature
func (m *Model) DirichletMask() (mask []bool) {
	mask = make([]bool, m.da.GlobalSize())
	for rank, rs := range m.ranks {
		var (
			owned = m.da.Owned(rank)
			lg    = m.da.LGMap(rank)
		)
		for l, d := range rs.bc.DirichletMask() {
			if owned[l] {
				mask[lg[l]] = d
			}
		}
	}
	return
}

// Sync refreshes the ghost values of per rank local vectors from their owners
func (m *Model) Sync(locals [][]float64) ([][]float64, error) {
	return m.da.Sync(locals)
}

// FindNeighbours lists, for every local node of rank, its neighbours out to
// width nodes along each axis in closure order, center last. Missing
// neighbours are -1. width cannot exceed the stencil width.
func (m *Model) FindNeighbours(rank, width int) (nbr [][]int, err error) {
	var (
		c stencil.Closure
	)
	if rank < 0 || rank >= len(m.ranks) {
		err = fmt.Errorf("rank %d out of range, have %d ranks", rank, len(m.ranks))
		return
	}
	if c, err = stencil.NewPadded(m.Dim, width, m.StencilWidth); err != nil {
		return
	}
	flat := stencil.Neighbours(c, m.da.LocalShape(rank), m.StencilWidth)
	nbr = make([][]int, len(flat)/len(c))
	for l := range nbr {
		nbr[l] = flat[l*len(c) : (l+1)*len(c)]
	}
	return
}
