package conduction

import (
	"fmt"

	"github.com/notargets/conduction/export"
)

// SaveMesh writes the grid topology to a new container file
func (m *Model) SaveMesh(filename string) error {
	minCoord, maxCoord := m.Extent()
	return export.WriteMesh(filename, export.NewTopology(minCoord, maxCoord, m.Res))
}

// SaveField stores global scalar fields. Positional fields are named arr_0,
// arr_1, ...; the file is appended to when it exists.
func (m *Model) SaveField(filename string, positional [][]float64, named map[string][]float64) (err error) {
	var (
		names  []string
		fields [][]float64
	)
	if names, fields, err = export.NameArgs(positional, named); err != nil {
		return
	}
	for i, f := range fields {
		if err = m.checkField(names[i], f); err != nil {
			return
		}
	}
	return export.WriteFields(filename, positional, named)
}

// SaveVector stores vector fields given as one global array per axis
func (m *Model) SaveVector(filename string, positional [][][]float64, named map[string][][]float64) (err error) {
	var (
		names   []string
		vectors [][][]float64
	)
	if names, vectors, err = export.NameArgs(positional, named); err != nil {
		return
	}
	for i, v := range vectors {
		if len(v) != m.Dim {
			return fmt.Errorf("%s has %d components for %d dimensions", names[i], len(v), m.Dim)
		}
		for _, c := range v {
			if err = m.checkField(names[i], c); err != nil {
				return
			}
		}
	}
	return export.WriteVectors(filename, positional, named)
}
