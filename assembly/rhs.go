package assembly

import (
	"github.com/notargets/conduction/boundary"
)

// RHS writes -heatSources into dst and applies the faces in order: flux faces
// add their gradient value, Dirichlet faces overwrite with theirs. A node on
// two flux faces receives both contributions.
func RHS(dst, heatSources []float64, faces []*boundary.Face) (err error) {
	for i, h := range heatSources {
		dst[i] = -h
	}
	for _, f := range faces {
		for i, l := range f.Nodes {
			var v float64
			if v, err = f.ValueAt(i); err != nil {
				return
			}
			if f.IsFlux() {
				dst[l] += v
			} else {
				dst[l] = v
			}
		}
	}
	return
}
