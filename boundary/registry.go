// Package boundary keeps the per-face boundary conditions of a structured grid
// and the Dirichlet mask they induce on the local nodes.
package boundary

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/conduction/types"
	"github.com/notargets/conduction/utils"
)

var (
	ErrUnknownBoundaryFace = errors.New("unknown boundary face")
	ErrFaceValueShape      = errors.New("boundary value does not match face")
)

type Side uint8

const (
	Min Side = iota
	Max
)

var wallNames = [3][2]string{{"minX", "maxX"}, {"minY", "maxY"}, {"minZ", "maxZ"}}

// Walls lists the faces of a dim dimensional box in their default order
func Walls(dim int) (walls []string) {
	for axis := 0; axis < dim; axis++ {
		walls = append(walls, wallNames[axis][Min], wallNames[axis][Max])
	}
	return
}

// Geometry is the local view of the grid a Registry needs to place its faces.
type Geometry struct {
	Dim              int
	Coords           []float64 // Local coordinates, Dim values per node
	BBoxMin, BBoxMax []float64
	Spacing          [][2]float64 // Per axis, spacing at the min and max faces
	FaceSize         []int        // Per axis, global node count of a face normal to it
	// FaceIndex numbers local node l within the global face normal to axis
	FaceIndex func(l, axis int) int
}

type Face struct {
	Wall  string
	Axis  int
	Side  Side
	Kind  types.BCFLAG
	Raw   []float64 // As supplied
	Value []float64 // Raw for Dirichlet faces, converted to a gradient for flux faces
	Delta float64   // Grid spacing at the face
	Size  int       // Global node count of the face
	Mask  []bool
	Nodes utils.Index // Local nodes where Mask is set
	Slots utils.Index // Position of each of Nodes within the face
	seq   int
}

func (f *Face) IsFlux() bool { return f.Kind == types.BC_Flux }

// ValueAt returns the value applying to the i-th entry of Nodes. A single
// value applies to the whole face.
func (f *Face) ValueAt(i int) (v float64, err error) {
	switch len(f.Value) {
	case 1:
		v = f.Value[0]
	case f.Size:
		v = f.Value[f.Slots[i]]
	default:
		err = fmt.Errorf("%w: %s has %d nodes, value has %d entries",
			ErrFaceValueShape, f.Wall, f.Size, len(f.Value))
	}
	return
}

func (f *Face) convert() {
	f.Value = append(f.Value[:0], f.Raw...)
	if f.IsFlux() {
		for i := range f.Value {
			f.Value[i] /= -f.Delta
		}
	}
}

// Registry holds the faces in precedence order: faces never set come first
// in default order, then faces in the order of their last Set call. Where
// faces share nodes the later face wins.
type Registry struct {
	faces     []*Face
	byName    map[string]*Face
	dirichlet []bool
	seq       int
}

// NewRegistry starts every face as a zero flux condition
func NewRegistry(g Geometry) (r *Registry) {
	r = &Registry{byName: make(map[string]*Face)}
	for axis := 0; axis < g.Dim; axis++ {
		for _, side := range []Side{Min, Max} {
			f := &Face{
				Wall: wallNames[axis][side],
				Axis: axis,
				Side: side,
				Kind: types.BC_Flux,
				Raw:  []float64{0},
			}
			r.faces = append(r.faces, f)
			r.byName[f.Wall] = f
		}
	}
	r.Rebuild(g)
	return
}

// Rebuild places the faces on new geometry. Face values and kinds are kept,
// flux values are converted with the new spacing and the Dirichlet mask is
// replayed in precedence order.
func (r *Registry) Rebuild(g Geometry) {
	var (
		nn = len(g.Coords) / g.Dim
	)
	for _, f := range r.faces {
		bound := g.BBoxMin[f.Axis]
		if f.Side == Max {
			bound = g.BBoxMax[f.Axis]
		}
		f.Delta = g.Spacing[f.Axis][f.Side]
		f.Size = g.FaceSize[f.Axis]
		f.Mask = make([]bool, nn)
		for l := 0; l < nn; l++ {
			f.Mask[l] = g.Coords[l*g.Dim+f.Axis] == bound
		}
		f.Nodes = utils.FindMask(f.Mask)
		f.Slots = utils.NewIndex(len(f.Nodes))
		for i, l := range f.Nodes {
			f.Slots[i] = g.FaceIndex(l, f.Axis)
		}
		f.convert()
	}
	r.dirichlet = make([]bool, nn)
	for _, f := range r.Ordered() {
		r.markDirichlet(f)
	}
}

func (r *Registry) markDirichlet(f *Face) {
	for _, l := range f.Nodes {
		r.dirichlet[l] = !f.IsFlux()
	}
}

// Set applies a boundary condition to a wall. A flux value is positive when
// heat flows into the domain; it is stored as the equivalent gradient,
// value / -spacing. A Dirichlet value is stored unchanged.
func (r *Registry) Set(wall string, value []float64, flux bool) (err error) {
	var (
		f *Face
	)
	if f, err = r.Face(wall); err != nil {
		return
	}
	f.Raw = append([]float64{}, value...)
	f.Kind = types.BC_Dirichlet
	if flux {
		f.Kind = types.BC_Flux
	}
	f.convert()
	r.seq++
	f.seq = r.seq
	r.markDirichlet(f)
	return
}

func (r *Registry) Face(wall string) (f *Face, err error) {
	var (
		ok bool
	)
	if f, ok = r.byName[wall]; !ok {
		err = fmt.Errorf("%w %q: wall should be one of %s", ErrUnknownBoundaryFace,
			wall, strings.Join(r.Walls(), ", "))
	}
	return
}

// Walls lists the face names in default order
func (r *Registry) Walls() (walls []string) {
	for _, f := range r.faces {
		walls = append(walls, f.Wall)
	}
	return
}

// Ordered returns the faces in precedence order, lowest first
func (r *Registry) Ordered() (faces []*Face) {
	faces = append([]*Face{}, r.faces...)
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].seq < faces[j].seq })
	return
}

// DirichletMask flags local nodes whose equation is replaced by a fixed value.
// The slice is owned by the registry.
func (r *Registry) DirichletMask() []bool { return r.dirichlet }
