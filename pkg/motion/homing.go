// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

// The homing sequence is driven from two places. The servo-rate part
// (homeServo) reacts to switches and the index latch while the joint
// moves; the trajectory-rate part (checkHoming) waits for the free
// planner to stop before queueing the next move.
//
//	seek-switch -> seek-index -> latch -> backoff -> final -> idle

// checkHoming advances joints whose free planner has finished its move.
func (c *Controller) checkHoming() {
	for i := 0; i < c.numJoints; i++ {
		j := &c.joints[i]
		if !j.Flags.Homing || !j.free.IsDone() {
			continue
		}
		switch j.Phase {
		case HomeFinal:
			c.finishHoming(i)
		case HomeBackoff:
			target := (j.SaveLatch-j.InputOffset)/j.InputScale + j.Config.HomeOffset
			if err := j.free.SetVmax(2 * j.Config.HomingVel); err != nil {
				c.reportError(i, "axis %d homing velocity: %v", i, err)
				c.cancelHoming(i)
				continue
			}
			if err := j.free.AddLine(freePose(target)); err != nil {
				c.reportError(i, "can't finish homing axis %d: %v", i, err)
				c.cancelHoming(i)
				continue
			}
			j.Phase = HomeFinal
		}
	}
}

// finishHoming declares the joint's current position to be its home and
// shifts every position it holds so the motion stays continuous.
func (c *Controller) finishHoming(axis int) {
	j := &c.joints[axis]
	j.Phase = HomeIdle

	for i := range c.homes {
		c.homes[i] = c.joints[i].Home
	}
	if err := c.kins.Home(&c.worldHome, c.homes[:c.numJoints]); err != nil {
		c.reportError(axis, "axis %d homing kinematics: %v", axis, err)
	}
	c.rehomeAll = false

	j.InputOffset = j.RawInput - (j.Home+j.backlash.applied)*j.InputScale
	j.Input = j.Home
	j.OldInput = j.Home

	j.cubic.Offset(j.Home - j.CoarsePos)
	j.Pos = j.Home
	j.CoarsePos = j.Home
	j.free.SetPos(freePose(j.Home))
	j.pid.Reset()

	j.Flags.Homing = false
	j.Flags.Homed = true

	c.allHomed = true
	for i := 0; i < c.numJoints; i++ {
		if c.joints[i].Flags.Active && !c.joints[i].Flags.Homed {
			c.allHomed = false
			break
		}
	}
	if c.allHomed {
		c.pos = c.worldHome
		c.actualPos = c.worldHome
	}
}

// cancelHoming drops the joint back to idle without marking it homed.
func (c *Controller) cancelHoming(axis int) {
	j := &c.joints[axis]
	j.free.Abort()
	j.Flags.Homing = false
	j.Phase = HomeIdle
}

// homeServo handles the phases that react to inputs every servo cycle.
func (c *Controller) homeServo(axis int) {
	j := &c.joints[axis]
	switch j.Phase {
	case HomeLatch:
		if c.io.ReadLatch(axis) {
			j.free.Abort()
			j.SaveLatch = j.RawInput
			j.Phase = HomeBackoff
		}
	case HomeSeekIndex:
		excursion := 2 * j.Range()
		if j.Config.Polarity.Homing {
			excursion = -excursion
		}
		if err := j.free.AddLine(freePose(j.Pos + excursion)); err == nil {
			c.io.ResetIndex(axis)
			j.Phase = HomeLatch
		}
	case HomeSeekSwitch:
		if j.Flags.HomeSwitch || j.Flags.MaxHardLimit || j.Flags.MinHardLimit {
			j.free.Abort()
			j.Phase = HomeSeekIndex
		}
	}
}
