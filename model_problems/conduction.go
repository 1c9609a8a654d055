package model_problems

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/notargets/conduction/InputParameters"
	"github.com/notargets/conduction/conduction"
	"github.com/notargets/conduction/ksp"
	"github.com/notargets/conduction/utils"
)

// Crust parameters in SI units, depth positive downward along z
const (
	CrustDepth        = 40.e3
	CrustWidth        = 100.e3
	CrustConductivity = 2.5
	SurfaceTemp       = 10.
	MantleHeatFlow    = 0.03
	SurfaceProduction = 1.e-6
	ProductionDepth   = 10.e3
)

type Builder func(res []int, opts ...conduction.Option) (*conduction.Model, error)

var registry = map[string]Builder{
	"rod":   NewRod1D,
	"plate": NewPlate2D,
	"crust": NewCrust3D,
}

// Names lists the canned problems known to ByName
func Names() (names []string) {
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// ByName builds a canned problem, res may be nil for the default resolution
func ByName(name string, res []int, opts ...conduction.Option) (m *conduction.Model, err error) {
	build, ok := registry[strings.ToLower(name)]
	if !ok {
		err = fmt.Errorf("unknown model problem %q, should be one of %v", name, Names())
		return
	}
	return build(res, opts...)
}

func resolution(res []int, def ...int) []int {
	if len(res) == 0 {
		return def
	}
	return res
}

// NewRod1D is a unit rod held at 0 on the left and 1 on the right
func NewRod1D(res []int, opts ...conduction.Option) (m *conduction.Model, err error) {
	res = resolution(res, 11)
	if m, err = conduction.New([]float64{0}, []float64{1}, res, opts...); err != nil {
		return
	}
	n := m.NodeCount()
	if err = m.UpdateProperties(utils.ConstArray(n, 1), make([]float64, n)); err != nil {
		return
	}
	if err = m.BoundaryCondition("minX", []float64{0}, false); err != nil {
		return
	}
	err = m.BoundaryCondition("maxX", []float64{1}, false)
	return
}

// NewPlate2D is the unit square with a sin(pi x) temperature on the top edge
// and zero on the other three. The exact solution is PlateSolution.
func NewPlate2D(res []int, opts ...conduction.Option) (m *conduction.Model, err error) {
	res = resolution(res, 21, 21)
	if len(res) != 2 {
		return nil, fmt.Errorf("plate needs two axes, have %v", res)
	}
	if m, err = conduction.New([]float64{0, 0}, []float64{1, 1}, res, opts...); err != nil {
		return
	}
	n := m.NodeCount()
	if err = m.UpdateProperties(utils.ConstArray(n, 1), make([]float64, n)); err != nil {
		return
	}
	var (
		x   = m.AxisCoordinates(0)
		top = make([]float64, len(x))
	)
	for i, xi := range x {
		top[i] = math.Sin(math.Pi * xi)
	}
	for _, wall := range []string{"minX", "maxX", "minY"} {
		if err = m.BoundaryCondition(wall, []float64{0}, false); err != nil {
			return
		}
	}
	err = m.BoundaryCondition("maxY", top, false)
	return
}

// PlateSolution is the exact temperature of NewPlate2D
func PlateSolution(x, y float64) float64 {
	return math.Sin(math.Pi*x) * math.Sinh(math.Pi*y) / math.Sinh(math.Pi)
}

// BasalHeatFlow is the upward heat flow through the base of the crust, the
// mantle contribution plus the production still below CrustDepth
func BasalHeatFlow() float64 {
	return MantleHeatFlow + SurfaceProduction*ProductionDepth*math.Exp(-CrustDepth/ProductionDepth)
}

// NewCrust3D is a block of continental crust with exponentially decaying
// radiogenic heat production, a fixed surface temperature at z = 0 and
// BasalHeatFlow entering through the base. Positive flux values flow into
// the domain.
func NewCrust3D(res []int, opts ...conduction.Option) (m *conduction.Model, err error) {
	res = resolution(res, 5, 5, 41)
	if len(res) != 3 {
		return nil, fmt.Errorf("crust needs three axes, have %v", res)
	}
	cfg := ksp.DefaultConfig()
	cfg.Preconditioner = ksp.PCJacobi
	opts = append([]conduction.Option{conduction.WithSolverConfig(cfg)}, opts...)
	if m, err = conduction.New([]float64{0, 0, 0}, []float64{CrustWidth, CrustWidth, CrustDepth},
		res, opts...); err != nil {
		return
	}
	var (
		n      = m.NodeCount()
		coords = m.Coordinates()
		H      = make([]float64, n)
	)
	for i := range H {
		H[i] = SurfaceProduction * math.Exp(-coords[3*i+2]/ProductionDepth)
	}
	if err = m.UpdateProperties(utils.ConstArray(n, CrustConductivity), H); err != nil {
		return
	}
	if err = m.BoundaryCondition("minZ", []float64{SurfaceTemp}, false); err != nil {
		return
	}
	err = m.BoundaryCondition("maxZ", []float64{BasalHeatFlow()}, true)
	return
}

// NewFromParameters builds a model from a problem file. Layers are applied
// in order along the last axis, later layers win where they overlap.
func NewFromParameters(cp *InputParameters.ConductionParameters, log *slog.Logger,
	opts ...conduction.Option) (m *conduction.Model, err error) {
	var (
		cfg ksp.Config
	)
	cp.SetDefaults()
	if err = cp.Validate(); err != nil {
		return
	}
	if cfg, err = SolverConfig(cp.Solver); err != nil {
		return
	}
	opts = append([]conduction.Option{
		conduction.WithStencilWidth(cp.StencilWidth),
		conduction.WithPartitions(cp.Partitions),
		conduction.WithSolverConfig(cfg),
	}, opts...)
	if log != nil {
		opts = append(opts, conduction.WithLogger(log))
	}
	if m, err = conduction.New(cp.MinCoord, cp.MaxCoord, cp.Resolution, opts...); err != nil {
		return
	}
	for _, r := range cp.Refine {
		var fn conduction.CoordinateMap
		switch strings.ToLower(r.Map) {
		case "stretch":
			if r.Axis < 0 || r.Axis >= m.Dim {
				return nil, fmt.Errorf("refine axis %d out of range for %d dimensions", r.Axis, m.Dim)
			}
			lo, hi := m.Extent()
			exponent := r.Exponent
			if exponent == 0 {
				exponent = 1
			}
			fn = conduction.Stretch(lo[r.Axis], hi[r.Axis], exponent)
		case "affine":
			scale := r.Scale
			if scale == 0 {
				scale = 1
			}
			fn = conduction.Affine(scale, r.Shift)
		}
		if err = m.Refine(r.Axis, fn); err != nil {
			return nil, err
		}
	}
	var (
		n      = m.NodeCount()
		coords = m.Coordinates()
		k      = utils.ConstArray(n, cp.Diffusivity)
		H      = utils.ConstArray(n, cp.HeatSource)
	)
	for _, l := range cp.Layers {
		for i := 0; i < n; i++ {
			z := coords[i*m.Dim+m.Dim-1]
			if z >= l.Min && z <= l.Max {
				k[i], H[i] = l.Diffusivity, l.HeatSource
			}
		}
	}
	if err = m.UpdateProperties(k, H); err != nil {
		return nil, err
	}
	for _, bc := range cp.BCs {
		if err = m.BoundaryCondition(bc.Wall, bc.Value, bc.IsFlux()); err != nil {
			return nil, err
		}
	}
	return
}

// SolverConfig starts from the named preset and applies the non zero fields
// of sp on top of it
func SolverConfig(sp *InputParameters.SolverParameters) (cfg ksp.Config, err error) {
	if sp == nil {
		return ksp.DefaultConfig(), nil
	}
	if cfg, err = ksp.PresetByName(sp.Preset); err != nil {
		return
	}
	if sp.Method != "" {
		cfg.Method = strings.ToLower(sp.Method)
	}
	if sp.RTol != 0 {
		cfg.RTol = sp.RTol
	}
	if sp.ATol != 0 {
		cfg.ATol = sp.ATol
	}
	if sp.MaxIterations != 0 {
		cfg.MaxIterations = sp.MaxIterations
	}
	if sp.Preconditioner != "" {
		cfg.Preconditioner = strings.ToLower(sp.Preconditioner)
	}
	err = cfg.Validate()
	return
}
