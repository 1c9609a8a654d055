package utils

import (
	"fmt"
)

// Gradient differentiates an N-d field (first axis fastest) along every
// axis. Interior points use the second order non-uniform central difference,
// the two end points of each line use one-sided first order differences.
func Gradient(field []float64, shape []int, coords [][]float64) (grad [][]float64, err error) {
	var (
		N       = Product(shape)
		strides = Strides(shape)
	)
	if len(field) != N {
		err = fmt.Errorf("field length %d does not match shape %v", len(field), shape)
		return
	}
	if len(coords) != len(shape) {
		err = fmt.Errorf("need %d coordinate axes, have %d", len(shape), len(coords))
		return
	}
	grad = make([][]float64, len(shape))
	for axis, n := range shape {
		if n < 2 {
			err = fmt.Errorf("axis %d has %d points, gradient needs at least 2", axis, n)
			return
		}
		if len(coords[axis]) != n {
			err = fmt.Errorf("axis %d: %d coordinates for %d points", axis, len(coords[axis]), n)
			return
		}
		grad[axis] = make([]float64, N)
		gradientAxis(field, grad[axis], coords[axis], n, strides[axis], N)
	}
	return
}

func gradientAxis(f, g, x []float64, n, stride, N int) {
	for start := 0; start < N; start++ {
		// Only visit the first point of each line along this axis
		if (start/stride)%n != 0 {
			continue
		}
		at := func(i int) int { return start + i*stride }
		g[at(0)] = (f[at(1)] - f[at(0)]) / (x[1] - x[0])
		g[at(n-1)] = (f[at(n-1)] - f[at(n-2)]) / (x[n-1] - x[n-2])
		for i := 1; i < n-1; i++ {
			var (
				hs = x[i] - x[i-1]
				hd = x[i+1] - x[i]
			)
			g[at(i)] = (hs*hs*f[at(i+1)] + (hd*hd-hs*hs)*f[at(i)] - hd*hd*f[at(i-1)]) /
				(hs * hd * (hd + hs))
		}
	}
}
