// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"
	"testing"

	"emcmot-go/pkg/tp"
)

func TestFerrorThreshold(t *testing.T) {
	j := newJoint(tp.Config{})
	j.Config.MinFerror = 0.01
	j.Config.MaxFerror = 1

	tests := []struct {
		limitVel, vel, want float64
	}{
		{1, 0, 0.01},
		{1, 0.005, 0.01},
		{1, 0.5, 0.5},
		{1, -2, 2},
		{2, 1, 0.5},
		{0, 5, 0.01},
	}
	for _, tt := range tests {
		if got := j.FerrorThreshold(tt.limitVel, tt.vel); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("FerrorThreshold(%v, %v) = %v, want %v", tt.limitVel, tt.vel, got, tt.want)
		}
	}
}

func TestBacklashRamp(t *testing.T) {
	var b backlash
	const (
		magnitude = 0.1
		acc       = 10.0
		dt        = 0.001
	)

	prev := b.applied
	for i := 0; i < 1000; i++ {
		b.update(1e-4, magnitude, acc, dt)
		if b.applied < prev {
			t.Fatalf("cycle %d: ramp went backwards %v -> %v", i, prev, b.applied)
		}
		if b.applied > magnitude/2 {
			t.Fatalf("cycle %d: overshoot %v", i, b.applied)
		}
		prev = b.applied
	}
	if !b.done || b.applied != magnitude/2 {
		t.Fatalf("forward ramp ended at %v done=%v", b.applied, b.done)
	}

	// hold position: no change
	b.update(0, magnitude, acc, dt)
	if b.applied != magnitude/2 {
		t.Fatalf("idle cycle moved compensation to %v", b.applied)
	}

	for i := 0; i < 1000; i++ {
		b.update(-1e-4, magnitude, acc, dt)
	}
	if !b.done || math.Abs(b.applied+magnitude/2) > 1e-15 {
		t.Fatalf("reverse ramp ended at %v done=%v", b.applied, b.done)
	}
}

func TestBacklashReverseMidRamp(t *testing.T) {
	var b backlash
	const (
		magnitude = 0.1
		acc       = 10.0
		dt        = 0.001
	)
	ramp := func(delta float64, n int) {
		for i := 0; i < n; i++ {
			b.update(delta, magnitude, acc, dt)
			if math.Abs(b.applied) > magnitude/2+1e-12 {
				t.Fatalf("compensation %v outside +/-%v", b.applied, magnitude/2)
			}
		}
	}

	ramp(1e-4, 20)
	if b.done || b.applied <= 0 || b.applied >= magnitude/2 {
		t.Fatalf("forward ramp should be partial: %v done=%v", b.applied, b.done)
	}

	ramp(-1e-4, 2000)
	if !b.done || math.Abs(b.applied+magnitude/2) > 1e-12 {
		t.Fatalf("reverse ramp ended at %v done=%v", b.applied, b.done)
	}

	ramp(1e-4, 2000)
	if !b.done || math.Abs(b.applied-magnitude/2) > 1e-12 {
		t.Fatalf("forward ramp ended at %v done=%v", b.applied, b.done)
	}
}

func TestBacklashZeroMagnitude(t *testing.T) {
	var b backlash
	for i := 0; i < 10; i++ {
		b.update(1e-3, 0, 10, 0.001)
		b.update(-1e-3, 0, 10, 0.001)
	}
	if b.applied != 0 {
		t.Errorf("applied = %v with no backlash", b.applied)
	}
}

func TestHomingPhaseString(t *testing.T) {
	if got := HomeLatch.String(); got != "latch" {
		t.Errorf("got %q", got)
	}
	if got := HomingPhase(42).String(); got != "phase(42)" {
		t.Errorf("got %q", got)
	}
}
