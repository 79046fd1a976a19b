// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"emcmot-go/pkg/shmem"
)

// compensate maps a nominal position through the joint's compensation
// table, using the forward column when moving positive (dir >= 0) and
// the reverse column otherwise. The table is read in place; a torn
// read yields the nominal value.
func compensate(t *shmem.CompTable, dir int, nominal float64) float64 {
	tail := t.BeginRead()
	v := compLookup(t, dir, nominal)
	if !t.Validate(tail) {
		return nominal
	}
	return v
}

func compLookup(t *shmem.CompTable, dir int, nominal float64) float64 {
	nominal += t.Alter

	total := int(t.Total)
	if total < 2 || total > shmem.CompSize || t.AvgInt <= 0 {
		return nominal
	}
	nom := &t.Nominal
	col := &t.Forward
	if dir < 0 {
		col = &t.Reverse
	}

	f := (nominal - nom[0]) / t.AvgInt
	switch {
	case math.IsNaN(f) || f < 0:
		f = 0
	case f > float64(total-1):
		f = float64(total - 1)
	}
	idx := int(f)

	for n := 0; n < total; n++ {
		if nominal == nom[idx] {
			return col[idx]
		}
		if nominal > nom[idx] {
			if idx == total-1 {
				return nominal
			}
			if nominal < nom[idx+1] {
				return interp(nom, col, idx, idx+1, nominal)
			}
			idx++
		} else {
			if idx == 0 {
				return nominal
			}
			if nominal > nom[idx-1] {
				return interp(nom, col, idx-1, idx, nominal)
			}
			idx--
		}
	}
	return nominal
}

func interp(nom, col *[shmem.CompSize]float64, lo, hi int, x float64) float64 {
	denom := nom[hi] - nom[lo]
	if denom <= 0 {
		return x
	}
	return col[lo] + (x-nom[lo])*(col[hi]-col[lo])/denom
}
