// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"emcmot-go/pkg/kinematics"
)

// teleop integrates a Cartesian velocity request under an acceleration
// limit.
type teleop struct {
	desiredVel kinematics.Pose
	currentVel kinematics.Pose
	currentAcc kinematics.Pose
}

func (t *teleop) reset() {
	*t = teleop{}
}

// step advances the velocity one trajectory period toward the desired
// velocity and returns the displacement to apply.
func (t *teleop) step(acc, dt float64) kinematics.Pose {
	dv := t.desiredVel.Sub(t.currentVel)
	if limit := acc * dt; acc > 0 {
		if mag := poseMag(dv); mag > limit {
			dv = dv.Mul(limit / mag)
		}
	}
	if dt > 0 {
		t.currentAcc = dv.Mul(1 / dt)
	}
	t.currentVel = t.currentVel.Add(dv)
	return t.currentVel.Mul(dt)
}

func poseMag(p kinematics.Pose) float64 {
	return math.Sqrt(p.Tran.Norm2() + p.A*p.A + p.B*p.B + p.C*p.C)
}

// probe tracks a probing move.
type probe struct {
	val       bool
	probing   bool
	tripped   bool
	probedPos kinematics.Pose
}
