// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"
	"testing"

	"emcmot-go/pkg/shmem"
)

func compTable(alter float64, rows ...[3]float64) *shmem.CompTable {
	t := &shmem.CompTable{Total: int32(len(rows)), AvgInt: 1, Alter: alter}
	for i, r := range rows {
		t.Nominal[i], t.Forward[i], t.Reverse[i] = r[0], r[1], r[2]
	}
	return t
}

func TestCompensate(t *testing.T) {
	table := compTable(0,
		[3]float64{0, 0, 0},
		[3]float64{1, 1.1, 0.9},
		[3]float64{2, 2.2, 1.8},
	)
	tests := []struct {
		name    string
		dir     int
		nominal float64
		want    float64
	}{
		{"exact forward", 1, 1, 1.1},
		{"exact reverse", -1, 1, 0.9},
		{"bracket forward", 1, 0.5, 0.55},
		{"bracket upper", 1, 1.5, 1.65},
		{"bracket reverse", -1, 1.5, 1.35},
		{"below table", 1, -1, -1},
		{"above table", 1, 3, 3},
		{"last entry", 1, 2, 2.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compensate(table, tt.dir, tt.nominal)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("compensate(%d, %v) = %v, want %v", tt.dir, tt.nominal, got, tt.want)
			}
		})
	}
}

func TestCompensateAlter(t *testing.T) {
	table := compTable(0.1,
		[3]float64{0, 0, 0},
		[3]float64{1, 1.5, 0.5},
	)
	if got := compensate(table, 1, 0.4); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("got %v, want 0.75", got)
	}
}

func TestCompensateShortTableIsIdentity(t *testing.T) {
	tests := []struct {
		name  string
		table *shmem.CompTable
	}{
		{"empty", compTable(0)},
		{"single entry", compTable(0, [3]float64{0, 5, 5})},
		{"zero interval", func() *shmem.CompTable {
			c := compTable(0, [3]float64{0, 1, 1}, [3]float64{1, 2, 2})
			c.AvgInt = 0
			return c
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compensate(tt.table, 1, 0.7); got != 0.7 {
				t.Errorf("got %v, want 0.7", got)
			}
		})
	}
}

func TestCompensateTornTableIsIdentity(t *testing.T) {
	table := compTable(0, [3]float64{0, 0, 0}, [3]float64{1, 2, 2})
	// supervisor is mid-write
	table.BeginWrite()
	if got := compensate(table, 1, 0.5); got != 0.5 {
		t.Errorf("got %v, want nominal 0.5", got)
	}
}
