package utils

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

// FindMask returns the positions where mask is true
func FindMask(mask []bool) (J Index) {
	for i, m := range mask {
		if m {
			J = append(J, i)
		}
	}
	return
}

// Strides returns the flat-index strides of an array whose first axis varies fastest.
func Strides(shape []int) (strides []int) {
	strides = make([]int, len(shape))
	s := 1
	for i, n := range shape {
		strides[i] = s
		s *= n
	}
	return
}

func Product(shape []int) (p int) {
	p = 1
	for _, n := range shape {
		p *= n
	}
	return
}

// Unravel converts a flat index into per-axis indices, first axis fastest.
func Unravel(ind int, shape []int, ijk []int) {
	for i, n := range shape {
		ijk[i] = ind % n
		ind /= n
	}
}
