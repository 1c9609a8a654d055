//go:build netlib

package utils

/*
#cgo LDFLAGS: -lopenblas -lm -lpthread
*/
import "C"

import (
	"gonum.org/v1/gonum/blas/blas64"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// Build with -tags netlib to route gonum's dense kernels through OpenBLAS.
func init() {
	blas64.Use(netblas.Implementation{})
}
