// Servo cycle
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"emcmot-go/pkg/kinematics"
)

// RunCycle performs one servo period. now is the cycle's start time on
// the controller clock.
func (c *Controller) RunCycle(now float64) {
	c.HandleCommand()
	c.readInputs()
	c.checkLogTrigger()
	c.updateMode()
	c.checkHoming()

	if c.motion.Enabled {
		c.runEnabled()
	} else {
		c.runDisabled()
	}

	c.updateProbe()
	c.writeOutputs()
	c.updateStatus()
	c.updateTiming(now, c.clock())
	c.logServo()
	c.runWatchdog()
	c.publish()
}

// readInputs converts feedback to joint units and debounces the
// switches.
func (c *Controller) readInputs() {
	raw := c.raw[:c.numJoints]
	c.io.ReadEncoders(raw)

	for i := 0; i < c.numJoints; i++ {
		j := &c.joints[i]
		j.RawInput = raw[i]
		if j.oldInputValid {
			j.OldInput = j.Input
		}
		in := (j.RawInput-j.InputOffset)/j.InputScale - j.backlash.applied
		if j.Flags.Homed {
			in = compensate(&c.shm.Comp[i], j.dir, in)
		}
		if !j.oldInputValid {
			j.OldInput = in
			j.oldInputValid = true
		}
		j.Input = c.filterFeedback(j, in)

		c.readSwitches(i)
	}
}

// filterFeedback holds the previous reading when the position jumps
// faster than the joint could move. A jump that persists is accepted
// as motion and extrapolated from the commanded velocity.
func (c *Controller) filterFeedback(j *Joint, in float64) float64 {
	if j.BigVel <= 0 {
		return in
	}
	if math.Abs(in-j.OldInput)/c.servoCycleTime <= j.BigVel {
		j.badFeedbackCount = 0
		return in
	}
	j.badFeedbackCount++
	if j.badFeedbackCount > positionInputDebounce {
		j.badFeedbackCount = positionInputDebounce
		return j.OldInput + j.Vel*c.servoCycleTime
	}
	return j.OldInput
}

func (c *Controller) readSwitches(axis int) {
	j := &c.joints[axis]
	pol := j.Config.Polarity

	if j.Flags.Active {
		limitOverride := c.overrideLimits || c.isHoming()
		if debounce(c.io.MaxLimitSwitch(axis) == pol.MaxHardLimit, &j.maxLimitCount, limitSwitchDebounce) {
			if !j.Flags.MaxHardLimit && !limitOverride {
				c.reportError(axis, "axis %d max hard limit exceeded", axis)
			}
			j.Flags.MaxHardLimit = true
			if !limitOverride {
				j.Flags.Error = true
				c.enabling = false
			}
		} else {
			j.Flags.MaxHardLimit = false
		}
		if debounce(c.io.MinLimitSwitch(axis) == pol.MinHardLimit, &j.minLimitCount, limitSwitchDebounce) {
			if !j.Flags.MinHardLimit && !limitOverride {
				c.reportError(axis, "axis %d min hard limit exceeded", axis)
			}
			j.Flags.MinHardLimit = true
			if !limitOverride {
				j.Flags.Error = true
				c.enabling = false
			}
		} else {
			j.Flags.MinHardLimit = false
		}
	}

	if j.Flags.Active && j.Flags.Enabled {
		if debounce(c.io.AmpFault(axis) == pol.Fault, &j.ampFaultCount, ampFaultDebounce) {
			if !j.Flags.Fault {
				c.reportError(axis, "axis %d amplifier fault", axis)
			}
			j.Flags.Error = true
			j.Flags.Fault = true
			c.enabling = false
		} else {
			j.Flags.Fault = false
		}
	}

	j.Flags.HomeSwitch = c.io.HomeSwitch(axis) == pol.HomeSwitch
}

// debounce counts consecutive active readings and reports true once
// more than limit have been seen.
func debounce(active bool, count *int, limit int) bool {
	if !active {
		*count = 0
		return false
	}
	*count++
	if *count > limit {
		*count = limit + 1
		return true
	}
	return false
}

// updateMode applies requested enable and mode changes. Mode changes
// wait until motion is in position; a request that cannot be honoured
// is withdrawn.
func (c *Controller) updateMode() {
	if !c.enabling && c.motion.Enabled {
		c.disable()
	}
	if c.enabling && !c.motion.Enabled {
		c.enable()
	}

	inpos := c.allInpos()

	if c.teleoperating && !c.motion.Teleop {
		if inpos {
			c.queue.SetPos(c.pos)
			c.drainAll()
			c.teleop.reset()
			c.motion.Teleop = true
			c.motion.Error = false
		} else {
			c.teleoperating = false
		}
	}
	if !c.teleoperating && c.motion.Teleop && inpos {
		c.motion.Teleop = false
		if !c.motion.Coord {
			c.syncFreePlanners()
			c.drainAll()
		}
	}

	if c.coordinating && !c.motion.Coord {
		if inpos {
			c.queue.SetPos(c.pos)
			c.drainAll()
			c.overriding = false
			c.overrideLimits = false
			c.motion.Coord = true
			c.motion.Teleop = false
			c.motion.Error = false
		} else {
			c.coordinating = false
		}
	}
	if !c.coordinating && c.motion.Coord {
		if inpos {
			c.syncFreePlanners()
			c.drainAll()
			c.motion.Coord = false
			c.motion.Teleop = false
			c.motion.Error = false
		} else {
			c.coordinating = true
		}
	}
}

// allInpos reports whether the coordinated queue and every free planner
// are idle.
func (c *Controller) allInpos() bool {
	if !c.queue.IsDone() {
		return false
	}
	for i := 0; i < c.numJoints; i++ {
		if !c.joints[i].free.IsDone() {
			return false
		}
	}
	return true
}

func (c *Controller) disable() {
	c.queue.Clear()
	for i := range c.joints {
		j := &c.joints[i]
		j.free.Clear()
		j.cubic.Drain()
		if j.Flags.Active {
			c.io.AmpEnable(i, !j.Config.Polarity.Enable)
			j.Flags.Enabled = false
			j.Flags.Homing = false
			j.Phase = HomeIdle
			j.Output = 0
		}
	}
	c.interpCounter = 0
	c.motion.Enabled = false
}

func (c *Controller) enable() {
	c.queue.SetPos(c.pos)
	for i := range c.joints {
		j := &c.joints[i]
		j.syncFree()
		j.pid.Reset()
		j.backlash = backlash{}
		if j.Flags.Active {
			c.io.AmpEnable(i, j.Config.Polarity.Enable)
			j.Flags.Enabled = true
			j.Flags.Homing = false
			j.Phase = HomeIdle
		}
		j.Flags.Error = false
	}
	c.motion.Enabled = true
	c.motion.Error = false
	c.timing.reset()
}

func (c *Controller) runEnabled() {
	if c.joints[0].cubic.NeedNextPoint() {
		c.runTrajectory()
	}
	c.checkSoftLimits()
	for i := 0; i < c.numJoints; i++ {
		c.servoJoint(i)
	}
}

// runTrajectory produces the next coarse joint setpoint from the active
// planner and feeds it to the interpolators.
func (c *Controller) runTrajectory() {
	coarse := c.coarse[:c.numJoints]
	old := c.pos

	switch {
	case c.motion.Teleop:
		c.pos = c.pos.Add(c.teleop.step(c.acc, c.trajCycleTime))
		c.inverse(coarse)
		c.addPoints(coarse)
		c.updateActualPos()
	case c.motion.Coord:
		c.queue.RunCycle()
		c.pos = c.queue.Pos()
		c.inverse(coarse)
		c.addPoints(coarse)
		c.updateActualPos()
		c.logTraj(old, c.pos)
	default:
		for i := range coarse {
			j := &c.joints[i]
			j.free.RunCycle()
			coarse[i] = j.free.Pos().Tran.X
		}
		c.addPoints(coarse)
		switch c.kins.Type() {
		case kinematics.Identity:
			c.forward(c.inputs(), &c.actualPos)
			c.forward(coarse, &c.pos)
		case kinematics.InverseOnly:
		default:
			c.forward(c.inputs(), &c.actualPos)
			c.pos = c.actualPos
		}
		c.logTraj(old, c.pos)
	}
}

func (c *Controller) inverse(coarse []float64) {
	if err := c.kins.Inverse(c.pos, coarse); err != nil {
		c.reportError(-1, "inverse kinematics: %v", err)
	}
}

func (c *Controller) forward(joints []float64, pos *kinematics.Pose) {
	if err := c.kins.Forward(joints, pos); err != nil {
		c.reportError(-1, "forward kinematics: %v", err)
	}
}

// inputs gathers joint feedback into the homes scratch slice.
func (c *Controller) inputs() []float64 {
	in := c.homes[:c.numJoints]
	for i := range in {
		in[i] = c.joints[i].Input
	}
	return in
}

func (c *Controller) updateActualPos() {
	if c.kins.Type() == kinematics.Identity {
		c.forward(c.inputs(), &c.actualPos)
	} else {
		c.actualPos = c.pos
	}
}

func (c *Controller) addPoints(coarse []float64) {
	for i, x := range coarse {
		j := &c.joints[i]
		j.CoarsePos = x
		if err := j.cubic.AddPoint(x); err != nil {
			c.reportError(i, "axis %d interpolator: %v", i, err)
		}
	}
}

// checkSoftLimits flags homed joints commanded outside their limits and
// aborts all motion on the first cycle one is found.
func (c *Controller) checkSoftLimits() {
	c.onLimit = false
	for i := 0; i < c.numJoints; i++ {
		j := &c.joints[i]
		j.Flags.MaxSoftLimit = false
		j.Flags.MinSoftLimit = false
		if !j.Flags.Active || !j.Flags.Homed {
			continue
		}
		if j.CoarsePos > j.Config.MaxLimit {
			j.Flags.MaxSoftLimit = true
			c.onLimit = true
		}
		if j.CoarsePos < j.Config.MinLimit {
			j.Flags.MinSoftLimit = true
			c.onLimit = true
		}
	}
	if c.onLimit && !c.wasOnLimit && !c.overrideLimits {
		c.reportError(-1, "soft limit exceeded, aborting motion")
		c.abortAll()
	}
	c.wasOnLimit = c.onLimit
}

// servoJoint interpolates, closes the position loop and checks the
// following error of one joint.
func (c *Controller) servoJoint(axis int) {
	j := &c.joints[axis]
	dt := c.servoCycleTime

	j.OldPos = j.Pos
	j.Pos = j.cubic.Interpolate().Pos
	j.Vel = (j.Pos - j.OldPos) / dt
	switch {
	case j.Vel > 0:
		j.dir = 1
	case j.Vel < 0:
		j.dir = -1
	}
	if !j.Flags.Active {
		return
	}

	j.backlash.update(j.Pos-j.OldPos, j.pid.Gains().Backlash, c.acc, dt)
	out := j.Pos + j.backlash.applied
	j.Output = j.pid.Run(j.Input+j.backlash.applied, out)

	j.Ferror = j.Pos - j.Input
	if math.Abs(j.Ferror) > math.Abs(j.FerrorHighMark) {
		j.FerrorHighMark = j.Ferror
	}
	limitVel := j.Config.LimitVel
	if limitVel <= 0 {
		limitVel = c.limitVel
	}
	j.FerrorLimit = j.FerrorThreshold(limitVel, j.Vel)
	if math.Abs(j.Ferror) > j.FerrorLimit {
		j.Flags.Error = true
		j.Flags.Ferror = true
		if c.enabling {
			c.reportError(axis, "axis %d following error", axis)
		}
		c.enabling = false
	} else {
		j.Flags.Ferror = false
	}

	j.Output = math.Max(j.Config.MinOutput, math.Min(j.Config.MaxOutput, j.Output))

	if j.Flags.Homing {
		c.homeServo(axis)
	}
}

// runDisabled lets the command follow feedback so enabling is bumpless.
func (c *Controller) runDisabled() {
	for i := 0; i < c.numJoints; i++ {
		j := &c.joints[i]
		j.OldPos = j.Pos
		j.Pos = j.Input
		j.CoarsePos = j.Input
		j.Vel = (j.Pos - j.OldPos) / c.servoCycleTime
	}
	c.interpCounter++
	if c.interpCounter < c.interpRate {
		return
	}
	c.interpCounter = 0
	if c.kins.Type() != kinematics.InverseOnly {
		c.forward(c.inputs(), &c.pos)
		c.actualPos = c.pos
	}
}

func (c *Controller) updateProbe() {
	p := &c.probe
	p.val = c.io.ReadDin(c.probeIndex)
	switch {
	case p.probing && p.tripped:
		c.queue.Clear()
		p.probing = false
	case p.probing && c.motion.Inpos && c.queue.Depth() == 0:
		p.probing = false
	case p.probing && p.val == c.probePolarity:
		p.tripped = true
		p.probedPos = c.actualPos
		if c.motion.Coord {
			c.queue.Abort()
			c.motion.Error = false
		} else {
			for i := 0; i < c.numJoints; i++ {
				j := &c.joints[i]
				j.free.Abort()
				j.Flags.Homing = false
				j.Phase = HomeIdle
				j.Flags.Error = false
			}
		}
	}
}

func (c *Controller) writeOutputs() {
	raw := c.raw[:c.numJoints]
	for i := range raw {
		j := &c.joints[i]
		j.RawOutput = (j.Output - j.OutputOffset) / j.OutputScale
		raw[i] = j.RawOutput
	}
	c.io.WriteDACs(raw)
}

func (c *Controller) updateStatus() {
	c.heartbeat++
	c.motion.Inpos = c.queue.IsDone()

	allInpos := true
	for i := 0; i < c.numJoints; i++ {
		j := &c.joints[i]
		j.Flags.Inpos = j.free.IsDone()
		if !j.Flags.Inpos {
			allInpos = false
		}
	}
	if c.overrideLimits {
		if !allInpos {
			c.overriding = true
		} else if c.overriding {
			c.overriding = false
			c.overrideLimits = false
		}
	}

	if c.stepping && c.idForStep != c.queue.ExecID() {
		c.pauseAll()
		c.stepping = false
	}
}
