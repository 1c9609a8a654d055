package model_problems

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/conduction/InputParameters"
	"github.com/notargets/conduction/analytic"
	"github.com/notargets/conduction/conduction"
	"github.com/notargets/conduction/ksp"
)

func TestCannedProblems(t *testing.T) {
	assert.Equal(t, []string{"crust", "plate", "rod"}, Names())
	_, err := ByName("sphere", nil)
	assert.Error(t, err)
	_, err = ByName("plate", []int{4})
	assert.Error(t, err)

	{ // Rod
		m, err := ByName("Rod", nil)
		require.NoError(t, err)
		T, err := m.Solve()
		require.NoError(t, err)
		x := m.AxisCoordinates(0)
		assert.InDeltaSlice(t, analytic.Linear(x, 0, 1, 0, 1), T, 1.e-8)
	}
	{ // Plate, split over ranks
		m, err := NewPlate2D(nil, conduction.WithPartitions(3))
		require.NoError(t, err)
		T, err := m.Solve()
		require.NoError(t, err)
		c := m.Coordinates()
		for i := range T {
			assert.InDelta(t, PlateSolution(c[2*i], c[2*i+1]), T[i], 1.e-2)
		}
	}
	{ // Crust column against the continental geotherm
		m, err := NewCrust3D(nil, conduction.WithPartitions(2))
		require.NoError(t, err)
		assert.Equal(t, ksp.PCJacobi, m.SolverConfig().Preconditioner)
		T, err := m.Solve()
		require.NoError(t, err)
		var (
			c     = m.Coordinates()
			depth = make([]float64, len(T))
		)
		for i := range depth {
			depth[i] = c[3*i+2]
		}
		exact := analytic.Geotherm(depth, SurfaceTemp, MantleHeatFlow, CrustConductivity,
			SurfaceProduction, ProductionDepth)
		assert.InDeltaSlice(t, exact, T, 0.5)
		q, err := m.HeatFlux()
		require.NoError(t, err)
		// Heat leaves upward through the surface
		surface := analytic.SurfaceHeatFlow(MantleHeatFlow, SurfaceProduction, ProductionDepth)
		assert.InEpsilon(t, -surface, q[2][0], 3.e-2)
	}
}

var layeredRod = `
Title: layered rod
MinCoord: [0]
MaxCoord: [3]
Resolution: [31]
Layers:
  - Name: upper
    Min: 0
    Max: 1
    Diffusivity: 1
  - Name: lower
    Min: 1
    Max: 3
    Diffusivity: 4
BCs:
  - Wall: minX
    Value: [100]
  - Wall: maxX
    Value: [0]
Solver:
  Method: GMRES
  RTol: 1.e-12
`

func TestNewFromParameters(t *testing.T) {
	cp := &InputParameters.ConductionParameters{}
	require.NoError(t, cp.Parse([]byte(layeredRod)))
	m, err := NewFromParameters(cp, nil)
	require.NoError(t, err)
	assert.Equal(t, ksp.GMRES, m.SolverConfig().Method)
	assert.Equal(t, 1.e-12, m.SolverConfig().RTol)
	k := m.Diffusivity()
	assert.Equal(t, 1., k[0])
	assert.Equal(t, 4., k[len(k)-1])
	T, err := m.Solve()
	require.NoError(t, err)

	// Source free, so the discrete flux through every face is the same and
	// the temperature drops across each face in proportion to dx / k_face
	var (
		x  = m.AxisCoordinates(0)
		R  = make([]float64, len(x)-1)
		Rt float64
	)
	for i := range R {
		R[i] = (x[i+1] - x[i]) / (0.5 * (k[i] + k[i+1]))
		Rt += R[i]
	}
	var (
		q   = 100 / Rt
		exp = 100.
	)
	for i := range R {
		assert.InDelta(t, exp, T[i], 1.e-6)
		exp -= q * R[i]
	}
	assert.InDelta(t, 0, T[len(T)-1], 1.e-6)
	// Close to the continuous series solution
	_, qExact := analytic.Layered(x, []float64{0, 1, 3}, []float64{1, 4}, 100, 0)
	assert.InEpsilon(t, qExact, q, 5.e-2)
}

func TestNewFromParametersRefine(t *testing.T) {
	cp := &InputParameters.ConductionParameters{
		MinCoord:    []float64{0, 0},
		MaxCoord:    []float64{1, 2},
		Resolution:  []int{5, 9},
		Partitions:  2,
		HeatSource:  1,
		Diffusivity: 2,
		Refine: []InputParameters.RefineParameters{
			{Axis: 1, Map: "stretch", Exponent: 2},
			{Axis: 0, Map: "Affine", Scale: 2, Shift: -1},
		},
		BCs: []InputParameters.BCParameters{
			{Wall: "minX", Value: []float64{0}},
			{Wall: "maxX", Kind: "fixed", Value: []float64{1}},
		},
		Solver: &InputParameters.SolverParameters{Preset: "nd", MaxIterations: 500, Preconditioner: "Jacobi"},
	}
	m, err := NewFromParameters(cp, nil)
	require.NoError(t, err)
	lo, hi := m.Extent()
	assert.Equal(t, []float64{-1, 0}, lo)
	assert.Equal(t, []float64{1, 2}, hi)
	y := m.AxisCoordinates(1)
	assert.InDelta(t, 2*math.Pow(0.25, 2), y[2], 1.e-12)
	cfg := m.SolverConfig()
	assert.Equal(t, ksp.PresetND.RTol, cfg.RTol)
	assert.Equal(t, 500, cfg.MaxIterations)
	assert.Equal(t, ksp.PCJacobi, cfg.Preconditioner)
	assert.Equal(t, 2., m.Diffusivity()[0])
	assert.Equal(t, 1., m.HeatSources()[0])

	// The x spacing stays uniform and the y walls are insulated, so the
	// discrete solution is the quadratic source profile across x
	T, err := m.Solve()
	require.NoError(t, err)
	var (
		c = m.Coordinates()
		s = make([]float64, len(T))
	)
	for i := range s {
		s[i] = c[2*i] + 1
	}
	assert.InDeltaSlice(t, analytic.UniformSource(s, 2, 1, 2, 0, 1), T, 1.e-8)

	{ // Bad input
		bad := *cp
		bad.BCs = []InputParameters.BCParameters{{Wall: "top", Value: []float64{0}}}
		_, err = NewFromParameters(&bad, nil)
		assert.Error(t, err)
		bad = *cp
		bad.Solver = &InputParameters.SolverParameters{Method: "lu"}
		_, err = NewFromParameters(&bad, nil)
		assert.Error(t, err)
		bad = *cp
		bad.Refine = []InputParameters.RefineParameters{{Axis: 2, Map: "stretch"}}
		_, err = NewFromParameters(&bad, nil)
		assert.Error(t, err)
		bad = *cp
		bad.Refine = []InputParameters.RefineParameters{{Axis: 0, Map: "twist"}}
		_, err = NewFromParameters(&bad, nil)
		assert.Error(t, err)
	}
}
