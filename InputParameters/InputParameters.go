package InputParameters

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/notargets/conduction/types"
)

// Parameters obtained from a YAML or HCL problem file
type ConductionParameters struct {
	Title        string             `json:"Title" hcl:"title,optional"`
	MinCoord     []float64          `json:"MinCoord" hcl:"min_coord"`
	MaxCoord     []float64          `json:"MaxCoord" hcl:"max_coord"`
	Resolution   []int              `json:"Resolution" hcl:"resolution"`
	StencilWidth int                `json:"StencilWidth" hcl:"stencil_width,optional"`
	Partitions   int                `json:"Partitions" hcl:"partitions,optional"`
	Diffusivity  float64            `json:"Diffusivity" hcl:"diffusivity,optional"`
	HeatSource   float64            `json:"HeatSource" hcl:"heat_source,optional"`
	Layers       []LayerParameters  `json:"Layers" hcl:"layer,block"`
	BCs          []BCParameters     `json:"BCs" hcl:"boundary,block"`
	Refine       []RefineParameters `json:"Refine" hcl:"refine,block"`
	Solver       *SolverParameters  `json:"Solver" hcl:"solver,block"`
}

// LayerParameters overrides the material properties of nodes whose
// coordinate along the last axis lies within [Min, Max]
type LayerParameters struct {
	Name        string  `json:"Name" hcl:"name,label"`
	Min         float64 `json:"Min" hcl:"min"`
	Max         float64 `json:"Max" hcl:"max"`
	Diffusivity float64 `json:"Diffusivity" hcl:"diffusivity"`
	HeatSource  float64 `json:"HeatSource" hcl:"heat_source,optional"`
}

// BCParameters sets one wall. Kind names the condition ("dirichlet",
// "fixed", "flux", "neumann"); when empty, Flux selects it.
type BCParameters struct {
	Wall  string    `json:"Wall" hcl:"wall,label"`
	Kind  string    `json:"Kind" hcl:"kind,optional"`
	Value []float64 `json:"Value" hcl:"value"`
	Flux  bool      `json:"Flux" hcl:"flux,optional"`
}

func (bc BCParameters) Flag() (bf types.BCFLAG, err error) {
	if bc.Kind == "" {
		if bc.Flux {
			return types.BC_Flux, nil
		}
		return types.BC_Dirichlet, nil
	}
	if bf, err = types.NewBCFLAG(bc.Kind); err != nil {
		return
	}
	if bc.Flux && bf != types.BC_Flux {
		err = fmt.Errorf("wall %s is marked as flux but has kind %q", bc.Wall, bc.Kind)
	}
	return
}

func (bc BCParameters) IsFlux() bool {
	bf, _ := bc.Flag()
	return bf == types.BC_Flux
}

// RefineParameters remaps one axis, Map is "stretch" or "affine"
type RefineParameters struct {
	Axis     int     `json:"Axis" hcl:"axis"`
	Map      string  `json:"Map" hcl:"map"`
	Exponent float64 `json:"Exponent" hcl:"exponent,optional"`
	Scale    float64 `json:"Scale" hcl:"scale,optional"`
	Shift    float64 `json:"Shift" hcl:"shift,optional"`
}

type SolverParameters struct {
	Method         string  `json:"Method" hcl:"method,optional"`
	Preset         string  `json:"Preset" hcl:"preset,optional"`
	RTol           float64 `json:"RTol" hcl:"rtol,optional"`
	ATol           float64 `json:"ATol" hcl:"atol,optional"`
	MaxIterations  int     `json:"MaxIterations" hcl:"max_iterations,optional"`
	Preconditioner string  `json:"Preconditioner" hcl:"preconditioner,optional"`
}

func (cp *ConductionParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, cp)
}

// EvalContext is available to expressions in HCL problem files
func EvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"pi": cty.NumberFloatVal(math.Pi),
			"e":  cty.NumberFloatVal(math.E),
		},
	}
}

func (cp *ConductionParameters) ParseHCL(data []byte, filename string) (err error) {
	var (
		parser = hclparse.NewParser()
	)
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	if diags = gohcl.DecodeBody(file.Body, EvalContext(), cp); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return
}

// Load reads a problem file, HCL when the name ends in .hcl and YAML
// otherwise, and fills in defaults.
func Load(filename string) (cp *ConductionParameters, err error) {
	var (
		data []byte
	)
	if data, err = os.ReadFile(filename); err != nil {
		return
	}
	cp = &ConductionParameters{}
	if strings.EqualFold(filepath.Ext(filename), ".hcl") {
		err = cp.ParseHCL(data, filename)
	} else {
		err = cp.Parse(data)
	}
	if err != nil {
		return nil, err
	}
	cp.SetDefaults()
	return cp, cp.Validate()
}

func (cp *ConductionParameters) SetDefaults() {
	if cp.StencilWidth == 0 {
		cp.StencilWidth = 1
	}
	if cp.Partitions == 0 {
		cp.Partitions = 1
	}
	if cp.Diffusivity == 0 {
		cp.Diffusivity = 1
	}
}

func (cp *ConductionParameters) Validate() error {
	dim := len(cp.Resolution)
	if len(cp.MinCoord) != dim || len(cp.MaxCoord) != dim {
		return fmt.Errorf("resolution has %d axes, MinCoord %d and MaxCoord %d",
			dim, len(cp.MinCoord), len(cp.MaxCoord))
	}
	for _, bc := range cp.BCs {
		if _, err := bc.Flag(); err != nil {
			return err
		}
	}
	for _, r := range cp.Refine {
		switch strings.ToLower(r.Map) {
		case "stretch", "affine":
		default:
			return fmt.Errorf("unknown coordinate map %q, should be stretch or affine", r.Map)
		}
	}
	return nil
}

func (cp *ConductionParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", cp.Title)
	fmt.Printf("%v\t\t= Resolution\n", cp.Resolution)
	fmt.Printf("%v -> %v\t= Extent\n", cp.MinCoord, cp.MaxCoord)
	fmt.Printf("[%d]\t\t\t= Stencil Width\n", cp.StencilWidth)
	fmt.Printf("[%d]\t\t\t= Partitions\n", cp.Partitions)
	fmt.Printf("%8.5f\t\t= Diffusivity\n", cp.Diffusivity)
	fmt.Printf("%8.5f\t\t= Heat Source\n", cp.HeatSource)
	for _, l := range cp.Layers {
		fmt.Printf("Layer[%s] = [%g, %g], k = %g, H = %g\n", l.Name, l.Min, l.Max, l.Diffusivity, l.HeatSource)
	}
	for _, bc := range cp.BCs {
		bf, _ := bc.Flag()
		fmt.Printf("BCs[%s] = %s %v\n", bc.Wall, bf, bc.Value)
	}
}
