package assembly

import "sort"

type triplets struct {
	rows, cols []int
	vals       []float64
}

func (t triplets) Len() int { return len(t.rows) }
func (t triplets) Less(i, j int) bool {
	if t.rows[i] != t.rows[j] {
		return t.rows[i] < t.rows[j]
	}
	return t.cols[i] < t.cols[j]
}
func (t triplets) Swap(i, j int) {
	t.rows[i], t.rows[j] = t.rows[j], t.rows[i]
	t.cols[i], t.cols[j] = t.cols[j], t.cols[i]
	t.vals[i], t.vals[j] = t.vals[j], t.vals[i]
}

// SumDuplicates sorts COO triplets by (row, col) and merges entries sharing a
// position by summing their values. The input slices are reordered in place
// and the returned slices share their storage.
func SumDuplicates(rows, cols []int, vals []float64) (r, c []int, v []float64) {
	var (
		n = 0
	)
	sort.Stable(triplets{rows, cols, vals})
	for i := range rows {
		if n > 0 && rows[i] == rows[n-1] && cols[i] == cols[n-1] {
			vals[n-1] += vals[i]
			continue
		}
		rows[n], cols[n], vals[n] = rows[i], cols[i], vals[i]
		n++
	}
	return rows[:n], cols[:n], vals[:n]
}

// ToCSR builds the row pointer of sorted triplets over nr rows
func ToCSR(nr int, rows []int) (indptr []int) {
	indptr = make([]int, nr+1)
	for _, r := range rows {
		indptr[r+1]++
	}
	for i := 0; i < nr; i++ {
		indptr[i+1] += indptr[i]
	}
	return
}
