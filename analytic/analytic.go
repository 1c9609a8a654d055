// Package analytic holds closed form steady conduction profiles along one
// axis, used to check the discrete solutions.
package analytic

import (
	"math"
)

// Linear is the profile between two fixed temperatures without sources
func Linear(x []float64, x0, x1, t0, t1 float64) (T []float64) {
	T = make([]float64, len(x))
	for i, xi := range x {
		T[i] = t0 + (t1-t0)*(xi-x0)/(x1-x0)
	}
	return
}

// FluxDirichlet has heat flux q entering at x = 0 and the temperature fixed
// to tL at x = L, with uniform diffusivity k.
func FluxDirichlet(x []float64, L, q, k, tL float64) (T []float64) {
	T = make([]float64, len(x))
	for i, xi := range x {
		T[i] = tL + q*(L-xi)/k
	}
	return
}

// UniformSource solves -k T'' = H on [0, L] with T(0) = t0 and T(L) = tL
func UniformSource(x []float64, L, H, k, t0, tL float64) (T []float64) {
	T = make([]float64, len(x))
	for i, xi := range x {
		T[i] = t0 + (tL-t0)*xi/L + H*xi*(L-xi)/(2*k)
	}
	return
}

// Geotherm is the continental geotherm for heat production decaying with
// depth z as h0 exp(-z/hr), surface temperature t0 and mantle heat flow qm.
func Geotherm(z []float64, t0, qm, k, h0, hr float64) (T []float64) {
	T = make([]float64, len(z))
	for i, zi := range z {
		T[i] = t0 + qm*zi/k + (h0*hr*hr/k)*(1-math.Exp(-zi/hr))
	}
	return
}

// SurfaceHeatFlow of the Geotherm profile, qm plus the integrated production
func SurfaceHeatFlow(qm, h0, hr float64) float64 {
	return qm + h0*hr
}

// Layered is the source free profile through layers in series with fixed
// temperatures t0 at x[0] and t1 at the last x. Layer i spans
// interfaces[i] to interfaces[i+1] with diffusivity k[i].
func Layered(x, interfaces, k []float64, t0, t1 float64) (T []float64, q float64) {
	var (
		resistance float64
		tInt       = make([]float64, len(interfaces))
	)
	for i := range k {
		resistance += (interfaces[i+1] - interfaces[i]) / k[i]
	}
	q = (t0 - t1) / resistance
	tInt[0] = t0
	for i := range k {
		tInt[i+1] = tInt[i] - q*(interfaces[i+1]-interfaces[i])/k[i]
	}
	T = make([]float64, len(x))
	for i, xi := range x {
		layer := 0
		for layer < len(k)-1 && xi > interfaces[layer+1] {
			layer++
		}
		T[i] = tInt[layer] - q*(xi-interfaces[layer])/k[layer]
	}
	return
}
