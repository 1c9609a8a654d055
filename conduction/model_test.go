package conduction

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/conduction/analytic"
	"github.com/notargets/conduction/boundary"
	"github.com/notargets/conduction/dmda"
	"github.com/notargets/conduction/export"
	"github.com/notargets/conduction/ksp"
	"github.com/notargets/conduction/stencil"
	"github.com/notargets/conduction/utils"
)

func near(a, b float64, tolI ...float64) (l bool) {
	var (
		tol float64
	)
	if len(tolI) == 0 {
		tol = 1.e-08
	} else {
		tol = tolI[0]
	}
	if math.Abs(a-b) <= tol*math.Max(1, math.Abs(a)) {
		l = true
	}
	return
}

func newRod(t *testing.T, n int, L float64, opts ...Option) (m *Model) {
	m, err := New([]float64{0}, []float64{L}, []int{n}, opts...)
	require.NoError(t, err)
	require.NoError(t, m.UpdateProperties(utils.ConstArray(n, 1), make([]float64, n)))
	return
}

func TestRod1D(t *testing.T) {
	m := newRod(t, 5, 4)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, m.AxisCoordinates(0))
	require.NoError(t, m.BoundaryCondition("minX", []float64{0}, false))
	require.NoError(t, m.BoundaryCondition("maxX", []float64{10}, false))
	T, err := m.Solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 2.5, 5, 7.5, 10}, T, 1.e-8)
	assert.Equal(t, T, m.Temperature())
	{ // The same rod under the N-D tolerances, with each Krylov method
		for _, method := range []string{ksp.BCGS, ksp.CG, ksp.GMRES} {
			nd := newRod(t, 5, 4, WithSolverConfig(ksp.PresetND))
			require.NoError(t, nd.BoundaryCondition("minX", []float64{0}, false))
			require.NoError(t, nd.BoundaryCondition("maxX", []float64{10}, false))
			Tnd, err := nd.Solve(WithMethod(method))
			require.NoError(t, err, method)
			assert.InDeltaSlice(t, []float64{0, 2.5, 5, 7.5, 10}, Tnd, 1.e-8, method)
		}
	}

	mat := m.Matrix()
	require.NotNil(t, mat)
	{ // Dirichlet rows are identity rows carrying the fixed value
		assert.Equal(t, 1., mat.At(0, 0))
		assert.Equal(t, 0., mat.At(0, 1))
		assert.Equal(t, 1., mat.At(4, 4))
		assert.Equal(t, 0., mat.At(4, 3))
		assert.Equal(t, []float64{0, 0, 0, 0, 10}, m.RHS())
	}
	{ // Interior rows sum to zero
		sums := mat.RowSums()
		for i := 1; i < 4; i++ {
			assert.InDelta(t, 0., sums[i], 1.e-14)
			assert.Equal(t, -2., mat.At(i, i))
		}
	}
	{ // Derivative operator zeroes the Dirichlet rows
		d, err := m.ConstructMatrix(WithFresh(), WithDerivative())
		require.NoError(t, err)
		assert.Equal(t, 0., d.At(0, 0))
		assert.Equal(t, -2., d.At(2, 2))
		assert.Equal(t, mat, m.Matrix())
	}
	{ // Fourier's law
		q, err := m.HeatFlux()
		require.NoError(t, err)
		require.Len(t, q, 1)
		assert.InDeltaSlice(t, utils.ConstArray(5, -2.5), q[0], 1.e-8)
	}
}

func TestFluxBoundary(t *testing.T) {
	var (
		n, L = 11, 10.
		q    = 2.
		k    = 4.
	)
	m, err := New([]float64{0}, []float64{L}, []int{n})
	require.NoError(t, err)
	require.NoError(t, m.UpdateProperties(utils.ConstArray(n, k), make([]float64, n)))
	require.NoError(t, m.BoundaryCondition("minX", []float64{q}, true))
	require.NoError(t, m.BoundaryCondition("maxX", []float64{1}, false))
	T, err := m.Solve()
	require.NoError(t, err)
	x := m.AxisCoordinates(0)
	assert.InDeltaSlice(t, analytic.FluxDirichlet(x, L, q, k, 1), T, 1.e-7)
	flux, err := m.HeatFlux()
	require.NoError(t, err)
	for _, f := range flux[0] {
		assert.True(t, near(q, f, 1.e-7))
	}

	// Shrinking the axis converts the flux with the new spacing
	require.NoError(t, m.Refine(0, Affine(0.5, 0)))
	assert.Nil(t, m.Matrix())
	T, err = m.Solve(WithMethod(ksp.GMRES))
	require.NoError(t, err)
	x = m.AxisCoordinates(0)
	assert.Equal(t, 5., x[n-1])
	assert.InDeltaSlice(t, analytic.FluxDirichlet(x, L/2, q, k, 1), T, 1.e-7)
}

func TestUniformSource(t *testing.T) {
	var (
		n = 21
		H = 3.
	)
	m, err := New([]float64{0}, []float64{2}, []int{n}, WithPartitions(3))
	require.NoError(t, err)
	require.NoError(t, m.UpdateProperties(utils.ConstArray(n, 0.5), utils.ConstArray(n, H)))
	require.NoError(t, m.BoundaryCondition("minX", []float64{1}, false))
	require.NoError(t, m.BoundaryCondition("maxX", []float64{2}, false))
	T, err := m.Solve()
	require.NoError(t, err)
	assert.InDeltaSlice(t, analytic.UniformSource(m.AxisCoordinates(0), 2, H, 0.5, 1, 2), T, 1.e-7)
}

func TestPlate2D(t *testing.T) {
	var (
		nx, ny = 6, 5
		N      = nx * ny
	)
	for _, ranks := range []int{1, 2, 5} {
		m, err := New([]float64{0, 0}, []float64{1, 2}, []int{nx, ny}, WithPartitions(ranks))
		require.NoError(t, err)
		require.NoError(t, m.UpdateProperties(utils.ConstArray(N, 1), make([]float64, N)))
		require.NoError(t, m.BoundaryCondition("minX", []float64{3}, false))
		require.NoError(t, m.BoundaryCondition("maxX", []float64{1}, false))
		T, err := m.Solve()
		require.NoError(t, err)
		x := m.Coordinates()
		for i := 0; i < N; i++ {
			assert.InDelta(t, 3-2*x[2*i], T[i], 1.e-7, "ranks %d node %d", ranks, i)
		}
		mask := m.DirichletMask()
		for j := 0; j < ny; j++ {
			assert.True(t, mask[j*nx])
			assert.True(t, mask[j*nx+nx-1])
			assert.False(t, mask[j*nx+2])
		}
	}
	{ // Per node face values, numbered along y
		m, err := New([]float64{0, 0}, []float64{1, 1}, []int{3, 4})
		require.NoError(t, err)
		require.NoError(t, m.UpdateProperties(utils.ConstArray(12, 1), make([]float64, 12)))
		require.NoError(t, m.BoundaryCondition("minX", []float64{1, 2, 3, 4}, false))
		T, err := m.Solve()
		require.NoError(t, err)
		for j := 0; j < 4; j++ {
			assert.InDelta(t, float64(j+1), T[j*3], 1.e-8)
		}
		require.NoError(t, m.BoundaryCondition("minX", []float64{1, 2}, false))
		_, err = m.Solve()
		assert.ErrorIs(t, err, boundary.ErrFaceValueShape)
		assert.Nil(t, m.RHS())
	}
}

// Splitting the grid across ranks must not change the operator
func TestPartitionedAssembly(t *testing.T) {
	var (
		res = []int{5, 4, 6}
		N   = 5 * 4 * 6
		k   = make([]float64, N)
		H   = make([]float64, N)
	)
	for i := range k {
		k[i] = 1 + float64(i%7)/3
		H[i] = float64(i%5) / 10
	}
	build := func(ranks, width int) (m *Model, mat *dmda.Mat, T []float64) {
		var err error
		m, err = New([]float64{0, 0, 0}, []float64{1, 1, 2}, res,
			WithPartitions(ranks), WithStencilWidth(width))
		require.NoError(t, err)
		require.NoError(t, m.Refine(2, Stretch(0, 2, 1.5)))
		require.NoError(t, m.UpdateProperties(k, H))
		require.NoError(t, m.BoundaryCondition("minZ", []float64{10}, false))
		require.NoError(t, m.BoundaryCondition("maxZ", []float64{1}, true))
		require.NoError(t, m.BoundaryCondition("minX", []float64{0}, false))
		mat, err = m.ConstructMatrix()
		require.NoError(t, err)
		T, err = m.Solve(WithMatrix(mat))
		require.NoError(t, err)
		return
	}
	for _, width := range []int{1, 2} {
		_, mat1, T1 := build(1, width)
		for _, ranks := range []int{2, 3} {
			m, mat, T := build(ranks, width)
			assert.Equal(t, mat1.NNZ(), mat.NNZ(), "ranks %d width %d", ranks, width)
			for i := 0; i < N; i++ {
				for j := 0; j < N; j++ {
					if mat1.At(i, j) != mat.At(i, j) {
						t.Fatalf("ranks %d width %d: A[%d,%d] = %v, want %v", ranks, width, i, j,
							mat.At(i, j), mat1.At(i, j))
					}
				}
			}
			assert.InDeltaSlice(t, T1, T, 1.e-6)
			sums := mat.RowSums()
			mask := m.DirichletMask()
			for i, s := range sums {
				if mask[i] {
					assert.Equal(t, 1., mat.At(i, i))
					continue
				}
				assert.InDelta(t, 0., s, 1.e-9)
			}
		}
	}
}

func TestPureNeumann(t *testing.T) {
	var (
		n   = 8
		cfg = ksp.DefaultConfig()
	)
	cfg.MaxIterations = 200
	m, err := New([]float64{0}, []float64{7}, []int{n}, WithSolverConfig(cfg))
	require.NoError(t, err)
	require.NoError(t, m.UpdateProperties(utils.ConstArray(n, 1), utils.ConstArray(n, 1)))
	_, err = m.Solve()
	assert.ErrorIs(t, err, ksp.ErrSolverNonConvergence)
	// Handing the singular operator to the Krylov solver directly
	mat, err := m.ConstructMatrix()
	require.NoError(t, err)
	rhs, err := m.ConstructRHS()
	require.NoError(t, err)
	for _, method := range []string{ksp.BCGS, ksp.GMRES, ksp.CG} {
		_, err = m.Solve(WithMatrix(mat), WithRHS(rhs), WithMethod(method))
		assert.ErrorIs(t, err, ksp.ErrSolverNonConvergence, method)
		assert.Equal(t, make([]float64, n), m.Temperature())
	}
}

func TestRefine(t *testing.T) {
	m := newRod(t, 9, 1)
	require.NoError(t, m.BoundaryCondition("minX", []float64{0}, false))
	require.NoError(t, m.BoundaryCondition("maxX", []float64{1}, false))
	_, err := m.ConstructMatrix()
	require.NoError(t, err)
	before := m.Coordinates()

	err = m.Refine(0, func(x []float64) (y []float64) {
		y = append([]float64{}, x...)
		y[3] = math.NaN()
		return
	})
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)
	assert.Equal(t, before, m.Coordinates())
	assert.NotNil(t, m.Matrix())

	err = m.Refine(0, func(x []float64) []float64 { return x[:2] })
	assert.Error(t, err)
	assert.Error(t, m.Refine(1, Affine(1, 0)))

	require.NoError(t, m.Refine(0, Stretch(0, 1, 2)))
	assert.Nil(t, m.Matrix())
	x := m.AxisCoordinates(0)
	assert.Equal(t, 0., x[0])
	assert.Equal(t, 1., x[8])
	assert.InDelta(t, 0.25, x[4], 1.e-14)
	T, err := m.Solve()
	require.NoError(t, err)
	assert.InDelta(t, 0., T[0], 1.e-8)
	assert.InDelta(t, 1., T[8], 1.e-8)
	for i := 1; i < 9; i++ {
		assert.Greater(t, T[i], T[i-1])
	}
}

func TestRefineReflect(t *testing.T) {
	var (
		q      = 3.
		sorted = []float64{0, 0.4375, 0.75, 0.9375, 1}
	)
	assert.Equal(t, [2]float64{0.5, 0.25}, faceSpacing([]float64{0, 0.5, 0.75, 1}))
	assert.Equal(t, [2]float64{0.25, 0.5}, faceSpacing([]float64{1, 0.5, 0.25, 0}))

	m := newRod(t, 5, 1)
	require.NoError(t, m.BoundaryCondition("minX", []float64{q}, true))
	require.NoError(t, m.BoundaryCondition("maxX", []float64{1}, false))
	require.NoError(t, m.Refine(0, Stretch(0, 1, 2)))
	require.NoError(t, m.Refine(0, Affine(-1, 1)))
	x := m.AxisCoordinates(0)
	assert.InDeltaSlice(t, []float64{1, 0.9375, 0.75, 0.4375, 0}, x, 1.e-14)
	f, err := m.ranks[0].bc.Face("minX")
	require.NoError(t, err)
	assert.InDelta(t, 0.4375, f.Delta, 1.e-14)
	assert.Equal(t, []int{4}, []int(f.Nodes))
	f, err = m.ranks[0].bc.Face("maxX")
	require.NoError(t, err)
	assert.InDelta(t, 0.0625, f.Delta, 1.e-14)
	T, err := m.Solve()
	require.NoError(t, err)

	// The mirrored rod built in increasing order gives the same temperatures
	mm := newRod(t, 5, 1)
	require.NoError(t, mm.BoundaryCondition("minX", []float64{q}, true))
	require.NoError(t, mm.BoundaryCondition("maxX", []float64{1}, false))
	require.NoError(t, mm.Refine(0, func(x []float64) []float64 {
		return append([]float64{}, sorted...)
	}))
	Tm, err := mm.Solve()
	require.NoError(t, err)
	for i := range T {
		assert.InDelta(t, Tm[4-i], T[i], 1.e-8)
	}

	// Folding the line back on itself is refused
	err = m.Refine(0, func(x []float64) []float64 { return []float64{0, 0.5, 1, 0.5, 0} })
	assert.Error(t, err)
	assert.InDeltaSlice(t, []float64{1, 0.9375, 0.75, 0.4375, 0}, m.AxisCoordinates(0), 1.e-14)
}

func TestModelErrors(t *testing.T) {
	_, err := New([]float64{0, 0, 0, 0}, []float64{1, 1, 1, 1}, []int{3, 3, 3, 3})
	assert.ErrorIs(t, err, stencil.ErrInvalidStencilRequest)
	_, err = New([]float64{0}, []float64{0}, []int{3})
	assert.ErrorIs(t, err, dmda.ErrInvalidGrid)
	_, err = New([]float64{0}, []float64{1}, []int{3}, WithPartitions(4))
	assert.ErrorIs(t, err, dmda.ErrInvalidGrid)

	m, err := New([]float64{0, 0}, []float64{1, 1}, []int{3, 3})
	require.NoError(t, err)
	_, err = m.ConstructMatrix()
	assert.ErrorIs(t, err, ErrPropertiesUnset)
	_, err = m.ConstructRHS()
	assert.ErrorIs(t, err, ErrPropertiesUnset)
	_, err = m.Solve()
	assert.ErrorIs(t, err, ErrPropertiesUnset)
	_, err = m.HeatFlux()
	assert.ErrorIs(t, err, ErrPropertiesUnset)

	err = m.BoundaryCondition("minZ", []float64{1}, false)
	assert.ErrorIs(t, err, boundary.ErrUnknownBoundaryFace)
	assert.Equal(t, []string{"minX", "maxX", "minY", "maxY"}, m.Walls())
	assert.ErrorIs(t, m.UpdateProperties([]float64{1}, []float64{1}), dmda.ErrSizeMismatch)
	_, err = m.Gradient([]float64{1, 2})
	assert.ErrorIs(t, err, dmda.ErrSizeMismatch)
	_, err = m.Solve(WithMethod("sor"))
	assert.Error(t, err)
}

func TestNeighboursAndSync(t *testing.T) {
	m, err := New([]float64{0, 0}, []float64{1, 1}, []int{3, 4}, WithPartitions(2), WithStencilWidth(2))
	require.NoError(t, err)
	{
		nbr, err := m.FindNeighbours(0, 1)
		require.NoError(t, err)
		// Rank 0 owns rows 0-1 and holds rows 2-3 as ghosts
		require.Len(t, nbr, 12)
		assert.Equal(t, []int{-1, -1, 1, 3, 0}, nbr[0])
		assert.Equal(t, []int{3, 1, 5, 7, 4}, nbr[4])
		nbr, err = m.FindNeighbours(1, 2)
		require.NoError(t, err)
		assert.Len(t, nbr[0], stencil.Size(2, 2))
		_, err = m.FindNeighbours(0, 3)
		assert.ErrorIs(t, err, stencil.ErrInvalidStencilRequest)
		_, err = m.FindNeighbours(2, 1)
		assert.Error(t, err)
	}
	{
		locals := make([][]float64, m.Ranks())
		for rank := range locals {
			locals[rank] = utils.ConstArray(m.DA().LocalSize(rank), float64(rank+1))
		}
		synced, err := m.Sync(locals)
		require.NoError(t, err)
		for rank := range synced {
			lg := m.DA().LGMap(rank)
			for l, g := range lg {
				assert.Equal(t, float64(m.DA().Owner(g)+1), synced[rank][l])
			}
		}
	}
	assert.Equal(t, make([]float64, 12), m.NewField())
}

func TestSave(t *testing.T) {
	var (
		dir  = t.TempDir()
		name = filepath.Join(dir, "rod")
	)
	m := newRod(t, 5, 4)
	require.NoError(t, m.BoundaryCondition("minX", []float64{0}, false))
	T, err := m.Solve()
	require.NoError(t, err)
	require.NoError(t, m.SaveMesh(name))
	require.NoError(t, m.SaveField(name, [][]float64{T}, map[string][]float64{"k": m.Diffusivity()}))
	q, err := m.HeatFlux()
	require.NoError(t, err)
	require.NoError(t, m.SaveVector(name, nil, map[string][][]float64{"q": q}))
	_, err = os.Stat(name + ".yaml")
	require.NoError(t, err)

	c, mode, err := export.Open(name)
	require.NoError(t, err)
	assert.Equal(t, export.Append, mode)
	assert.Equal(t, []int{5}, c.Topology.Shape)
	assert.Equal(t, []float64{4}, c.Topology.MaxCoord)
	ds, ok := c.Dataset("arr_0")
	require.True(t, ok)
	assert.InDeltaSlice(t, T, ds.Data, 1.e-12)
	_, ok = c.Dataset("q")
	assert.True(t, ok)

	err = m.SaveField(name, [][]float64{T}, map[string][]float64{"arr_0": T})
	assert.ErrorIs(t, err, export.ErrDuplicateFieldName)
	assert.Error(t, m.SaveField(name, [][]float64{{1}}, nil))
	assert.Error(t, m.SaveVector(name, [][][]float64{{T, T}}, nil))
}
