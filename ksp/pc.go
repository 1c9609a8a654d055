package ksp

import "gonum.org/v1/gonum/mat"

// jacobi scales by the inverse diagonal of the operator handed to linsolve,
// which carries sign. Zero diagonal entries pass through unscaled.
func jacobi(diag []float64, sign float64) func(dst *mat.VecDense, rhs mat.Vector, trans bool) error {
	inv := make([]float64, len(diag))
	for i, d := range diag {
		if d == 0 {
			inv[i] = 1
			continue
		}
		inv[i] = 1 / (sign * d)
	}
	return func(dst *mat.VecDense, rhs mat.Vector, _ bool) error {
		for i, s := range inv {
			dst.SetVec(i, s*rhs.AtVec(i))
		}
		return nil
	}
}
