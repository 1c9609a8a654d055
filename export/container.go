// Package export writes grids and fields to self describing YAML containers
// and renders fields as PNG plots.
package export

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
)

var ErrDuplicateFieldName = errors.New("duplicate field name")

const Suffix = ".yaml"

type Mode uint8

const (
	Write Mode = iota
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "write"
}

// Topology attributes are stored slowest axis first
type Topology struct {
	MinCoord []float64 `json:"minCoord"`
	MaxCoord []float64 `json:"maxCoord"`
	Shape    []int     `json:"shape"`
}

// NewTopology takes its arguments x first and stores them reversed
func NewTopology(minCoord, maxCoord []float64, shape []int) (t *Topology) {
	t = &Topology{
		MinCoord: make([]float64, len(minCoord)),
		MaxCoord: make([]float64, len(maxCoord)),
		Shape:    make([]int, len(shape)),
	}
	for i := range minCoord {
		t.MinCoord[len(minCoord)-1-i] = minCoord[i]
	}
	for i := range maxCoord {
		t.MaxCoord[len(maxCoord)-1-i] = maxCoord[i]
	}
	for i := range shape {
		t.Shape[len(shape)-1-i] = shape[i]
	}
	return
}

type Dataset struct {
	Name string `json:"name"`
	// Components per node, vector datasets interleave them
	Components int       `json:"components"`
	Data       []float64 `json:"data"`
}

type Container struct {
	Topology *Topology `json:"topology,omitempty"`
	Datasets []Dataset `json:"datasets,omitempty"`
}

// Filename adds the container suffix when missing
func Filename(name string) string {
	if !strings.HasSuffix(name, Suffix) {
		name += Suffix
	}
	return name
}

// Open reads an existing container for appending, or starts an empty one
// when the file does not exist.
func Open(filename string) (c *Container, mode Mode, err error) {
	var (
		data []byte
	)
	c = &Container{}
	filename = Filename(filename)
	if data, err = os.ReadFile(filename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, Write, nil
		}
		return nil, Write, err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		err = fmt.Errorf("reading %s: %w", filename, err)
		return nil, Write, err
	}
	return c, Append, nil
}

func (c *Container) Dataset(name string) (ds *Dataset, ok bool) {
	for i := range c.Datasets {
		if c.Datasets[i].Name == name {
			return &c.Datasets[i], true
		}
	}
	return nil, false
}

// Put adds a dataset, replacing one of the same name
func (c *Container) Put(ds Dataset) {
	if old, ok := c.Dataset(ds.Name); ok {
		*old = ds
		return
	}
	c.Datasets = append(c.Datasets, ds)
}

func (c *Container) Save(filename string) (err error) {
	var (
		data []byte
	)
	if data, err = yaml.Marshal(c); err != nil {
		return
	}
	return os.WriteFile(Filename(filename), data, 0644)
}

// NameArgs names positional arguments arr_0, arr_1, ... and merges them with
// the named ones, positional first then names in sorted order. A named
// argument may not take a positional name.
func NameArgs[T any](positional []T, named map[string]T) (names []string, values []T, err error) {
	for i, v := range positional {
		key := fmt.Sprintf("arr_%d", i)
		if _, ok := named[key]; ok {
			err = fmt.Errorf("%w: cannot use un-named arguments and keyword %s", ErrDuplicateFieldName, key)
			return
		}
		names = append(names, key)
		values = append(values, v)
	}
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		names = append(names, k)
		values = append(values, named[k])
	}
	return
}

// Interleave packs per-axis component arrays node by node: x0 y0 x1 y1 ...
func Interleave(components [][]float64) (v []float64, err error) {
	if len(components) == 0 {
		return
	}
	n := len(components[0])
	for i, c := range components {
		if len(c) != n {
			err = fmt.Errorf("component %d has %d values, component 0 has %d", i, len(c), n)
			return
		}
	}
	v = make([]float64, n*len(components))
	for i := 0; i < n; i++ {
		for j, c := range components {
			v[i*len(components)+j] = c[i]
		}
	}
	return
}

// WriteMesh starts a new container holding only the topology
func WriteMesh(filename string, topo *Topology) error {
	return (&Container{Topology: topo}).Save(filename)
}

// WriteFields stores scalar fields, appending when the file exists
func WriteFields(filename string, positional [][]float64, named map[string][]float64) (err error) {
	var (
		names  []string
		fields [][]float64
		c      *Container
	)
	if names, fields, err = NameArgs(positional, named); err != nil {
		return
	}
	if c, _, err = Open(filename); err != nil {
		return
	}
	for i, name := range names {
		c.Put(Dataset{Name: name, Components: 1, Data: fields[i]})
	}
	return c.Save(filename)
}

// WriteVectors stores vector fields given as per-axis component arrays,
// appending when the file exists
func WriteVectors(filename string, positional [][][]float64, named map[string][][]float64) (err error) {
	var (
		names   []string
		vectors [][][]float64
		c       *Container
	)
	if names, vectors, err = NameArgs(positional, named); err != nil {
		return
	}
	if c, _, err = Open(filename); err != nil {
		return
	}
	for i, name := range names {
		var data []float64
		if data, err = Interleave(vectors[i]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.Put(Dataset{Name: name, Components: len(vectors[i]), Data: data})
	}
	return c.Save(filename)
}
