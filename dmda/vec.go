package dmda

import (
	"fmt"
)

func (da *DA) NewGlobalVec() []float64 {
	return make([]float64, da.GlobalSize())
}

func (da *DA) NewLocalVec(rank int) []float64 {
	return make([]float64, da.LocalSize(rank))
}

func (da *DA) checkGlobal(g []float64) error {
	return checkLen(g, da.GlobalSize(), "global")
}

func (da *DA) checkLocal(rank int, l []float64) error {
	return checkLen(l, da.LocalSize(rank), fmt.Sprintf("rank %d local", rank))
}

func checkLen(v []float64, n int, what string) error {
	if len(v) != n {
		return fmt.Errorf("%w: %s vector has %d values, need %d", ErrSizeMismatch, what, len(v), n)
	}
	return nil
}

// GlobalToLocal fills rank's local vector, ghosts included, from a global vector
func (da *DA) GlobalToLocal(rank int, g, l []float64) (err error) {
	if err = da.checkGlobal(g); err != nil {
		return
	}
	if err = da.checkLocal(rank, l); err != nil {
		return
	}
	for i, gi := range da.ranks[rank].lgmap {
		l[i] = g[gi]
	}
	return
}

// LocalToGlobal inserts the owned values of rank's local vector into a global
// vector. Ghost values are dropped.
func (da *DA) LocalToGlobal(rank int, l, g []float64) (err error) {
	if err = da.checkGlobal(g); err != nil {
		return
	}
	if err = da.checkLocal(rank, l); err != nil {
		return
	}
	ri := da.ranks[rank]
	for i, gi := range ri.lgmap {
		if ri.owned[i] {
			g[gi] = l[i]
		}
	}
	return
}

// Sync refreshes ghost values from their owners: local to global for every
// rank, then global to local.
func (da *DA) Sync(locals [][]float64) (synced [][]float64, err error) {
	if len(locals) != da.Ranks() {
		err = fmt.Errorf("%w: %d local vectors for %d ranks", ErrSizeMismatch, len(locals), da.Ranks())
		return
	}
	g := da.NewGlobalVec()
	for rank, l := range locals {
		if err = da.LocalToGlobal(rank, l, g); err != nil {
			return
		}
	}
	synced = make([][]float64, da.Ranks())
	for rank := range locals {
		synced[rank] = da.NewLocalVec(rank)
		if err = da.GlobalToLocal(rank, g, synced[rank]); err != nil {
			return
		}
	}
	return
}
