// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/tp"
)

// Mode requests take effect in the cycle once motion is in position.

func (c *Controller) cmdFree(cmd *shmem.Command) shmem.CommandStatus {
	c.coordinating = false
	c.teleoperating = false
	return shmem.StatusOK
}

func (c *Controller) cmdCoord(cmd *shmem.Command) shmem.CommandStatus {
	if c.kins.Type() != kinematics.Identity && !c.allHomed {
		c.reportError(-1, "all axes must be homed before going into coordinated mode")
		return shmem.StatusInvalidCommand
	}
	c.coordinating = true
	c.teleoperating = false
	return shmem.StatusOK
}

func (c *Controller) cmdTeleop(cmd *shmem.Command) shmem.CommandStatus {
	if c.kins.Type() != kinematics.Identity && !c.allHomed {
		c.reportError(-1, "all axes must be homed before going into teleop mode")
		return shmem.StatusInvalidCommand
	}
	c.teleoperating = true
	return shmem.StatusOK
}

func (c *Controller) cmdEnable(cmd *shmem.Command) shmem.CommandStatus {
	c.enabling = true
	if c.kins.Type() == kinematics.InverseOnly {
		c.teleoperating = false
		c.coordinating = false
	}
	return shmem.StatusOK
}

func (c *Controller) cmdDisable(cmd *shmem.Command) shmem.CommandStatus {
	c.enabling = false
	if c.kins.Type() == kinematics.InverseOnly {
		c.teleoperating = false
		c.coordinating = false
	}
	return shmem.StatusOK
}

func (c *Controller) cmdSetNumAxes(cmd *shmem.Command) shmem.CommandStatus {
	n := int(cmd.Axis)
	if n <= 0 || n > shmem.MaxJoints {
		c.reportError(-1, "axis count %d out of range", n)
		return shmem.StatusInvalidParams
	}
	c.numJoints = n
	return shmem.StatusOK
}

func (c *Controller) cmdSetWorldHome(cmd *shmem.Command) shmem.CommandStatus {
	c.worldHome = cmd.Pos
	return shmem.StatusOK
}

func (c *Controller) cmdSetJointHome(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Home = cmd.Offset
	return shmem.StatusOK
}

func (c *Controller) cmdSetHomeOffset(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Config.HomeOffset = cmd.Offset
	return shmem.StatusOK
}

func (c *Controller) cmdOverrideLimits(cmd *shmem.Command) shmem.CommandStatus {
	c.overrideLimits = cmd.Axis >= 0
	c.overriding = false
	for i := range c.joints {
		c.joints[i].Flags.Error = false
	}
	return shmem.StatusOK
}

func (c *Controller) cmdSetTrajCycleTime(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.CycleTime <= 0 {
		return shmem.StatusInvalidParams
	}
	if err := c.setCycleTimes(c.servoCycleTime, cmd.CycleTime); err != nil {
		c.reportError(-1, "trajectory cycle time: %v", err)
		return shmem.StatusBadExec
	}
	return shmem.StatusOK
}

func (c *Controller) cmdSetServoCycleTime(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.CycleTime <= 0 || cmd.CycleTime > c.trajCycleTime {
		return shmem.StatusInvalidParams
	}
	if err := c.setCycleTimes(cmd.CycleTime, c.trajCycleTime); err != nil {
		c.reportError(-1, "servo cycle time: %v", err)
		return shmem.StatusBadExec
	}
	return shmem.StatusOK
}

func (c *Controller) cmdSetPositionLimits(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.MinLimit > cmd.MaxLimit {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.Config.MinLimit = cmd.MinLimit
	j.Config.MaxLimit = cmd.MaxLimit
	return shmem.StatusOK
}

func (c *Controller) cmdSetOutputLimits(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.MinLimit > cmd.MaxLimit {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.Config.MinOutput = cmd.MinLimit
	j.Config.MaxOutput = cmd.MaxLimit
	j.pid.SetOutputLimit(math.Max(math.Abs(cmd.MinLimit), math.Abs(cmd.MaxLimit)))
	return shmem.StatusOK
}

func (c *Controller) cmdSetOutputScale(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.Scale == 0 {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.OutputScale = cmd.Scale
	j.OutputOffset = cmd.Offset
	return shmem.StatusOK
}

// cmdSetInputScale takes effect immediately; changing it while moving
// makes the joint jump to the rescaled position.
func (c *Controller) cmdSetInputScale(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.Scale == 0 {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.oldInputValid = false
	j.InputScale = cmd.Scale
	j.InputOffset = cmd.Offset
	return shmem.StatusOK
}

func (c *Controller) cmdSetMaxFerror(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.MaxFerror < 0 {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Config.MaxFerror = cmd.MaxFerror
	return shmem.StatusOK
}

func (c *Controller) cmdSetMinFerror(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.MinFerror < 0 {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Config.MinFerror = cmd.MinFerror
	return shmem.StatusOK
}

// jogCheck validates the preconditions shared by every jog: free mode,
// enabled, coordinated queue idle, joint active, and not driving
// further onto a limit.
func (c *Controller) jogCheck(cmd *shmem.Command) (int, shmem.CommandStatus) {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return 0, shmem.StatusInvalidParams
	}
	switch {
	case c.motion.Coord:
		c.reportError(axis, "can't jog axis %d in coordinated mode", axis)
		return axis, shmem.StatusInvalidCommand
	case !c.motion.Inpos:
		c.reportError(axis, "can't jog axis %d when not in position", axis)
		return axis, shmem.StatusInvalidCommand
	case !c.motion.Enabled:
		c.reportError(axis, "can't jog axis %d when not enabled", axis)
		return axis, shmem.StatusInvalidCommand
	case !c.joints[axis].Flags.Active:
		c.reportError(axis, "can't jog inactive axis %d", axis)
		return axis, shmem.StatusInvalidCommand
	case cmd.Vel == 0 || math.IsNaN(cmd.Vel):
		return axis, shmem.StatusInvalidParams
	case !c.jogAllowed(axis, cmd.Vel):
		return axis, shmem.StatusInvalidParams
	}
	return axis, shmem.StatusOK
}

func (c *Controller) jogTo(axis int, vel, target float64) shmem.CommandStatus {
	j := &c.joints[axis]
	if err := j.free.SetVmax(math.Abs(vel)); err != nil {
		return shmem.StatusInvalidParams
	}
	if err := j.free.AddLine(freePose(target)); err != nil {
		c.reportError(axis, "can't jog axis %d: %v", axis, err)
		return shmem.StatusBadExec
	}
	j.Flags.Error = false
	c.clearHomes(axis)
	return shmem.StatusOK
}

// cmdJogCont jogs to the soft limit, or a full range of travel when the
// joint is not homed and the limits mean nothing yet.
func (c *Controller) cmdJogCont(cmd *shmem.Command) shmem.CommandStatus {
	axis, st := c.jogCheck(cmd)
	if st != shmem.StatusOK {
		return st
	}
	j := &c.joints[axis]
	var target float64
	switch {
	case cmd.Vel > 0 && j.Flags.Homed:
		target = j.Config.MaxLimit
	case cmd.Vel > 0:
		target = j.Pos + j.Range()
	case j.Flags.Homed:
		target = j.Config.MinLimit
	default:
		target = j.Pos - j.Range()
	}
	return c.jogTo(axis, cmd.Vel, target)
}

func (c *Controller) cmdJogIncr(cmd *shmem.Command) shmem.CommandStatus {
	axis, st := c.jogCheck(cmd)
	if st != shmem.StatusOK {
		return st
	}
	j := &c.joints[axis]
	goal := j.free.GoalPos().Tran.X
	target := goal - cmd.Offset
	if cmd.Vel > 0 {
		target = goal + cmd.Offset
	}
	if j.Flags.Homed {
		target = math.Max(j.Config.MinLimit, math.Min(j.Config.MaxLimit, target))
	}
	return c.jogTo(axis, cmd.Vel, target)
}

func (c *Controller) cmdJogAbs(cmd *shmem.Command) shmem.CommandStatus {
	axis, st := c.jogCheck(cmd)
	if st != shmem.StatusOK {
		return st
	}
	j := &c.joints[axis]
	target := cmd.Offset
	if j.Flags.Homed {
		target = math.Max(j.Config.MinLimit, math.Min(j.Config.MaxLimit, target))
	}
	return c.jogTo(axis, cmd.Vel, target)
}

func (c *Controller) cmdSetTermCond(cmd *shmem.Command) shmem.CommandStatus {
	tc := tp.TermCond(cmd.TermCond)
	if tc != tp.TermStop && tc != tp.TermBlend {
		return shmem.StatusInvalidParams
	}
	c.queue.SetTermCond(tc)
	return shmem.StatusOK
}

// coordCheck validates a queued Cartesian move. A full queue is
// refused here so the queued moves are left alone.
func (c *Controller) coordCheck(cmd *shmem.Command, what string) shmem.CommandStatus {
	switch {
	case !c.motion.Coord || !c.motion.Enabled:
		c.reportError(-1, "need to be enabled, in coord mode for %s move", what)
		return shmem.StatusInvalidCommand
	case !c.inRange(cmd.Pos):
		c.reportError(-1, "%s move %d out of range", what, cmd.ID)
		return shmem.StatusInvalidParams
	case !c.limitsClear():
		c.reportError(-1, "can't do %s move with limits exceeded", what)
		return shmem.StatusInvalidParams
	case c.queue.Full():
		c.reportError(-1, "can't add %s move %d: queue full", what, cmd.ID)
		return shmem.StatusBadExec
	}
	return shmem.StatusOK
}

// enqueue tags the next segment with id and runs add. A refused segment
// leaves the queue and its pending id as they were.
func (c *Controller) enqueue(id int32, what string, add func() error) shmem.CommandStatus {
	prev := c.queue.NextID()
	c.queue.SetID(id)
	if err := add(); err != nil {
		c.queue.SetID(prev)
		c.reportError(-1, "can't add %s move %d: %v", what, id, err)
		return shmem.StatusBadExec
	}
	c.motion.Error = false
	c.rehomeAll = true
	return shmem.StatusOK
}

func (c *Controller) cmdSetLine(cmd *shmem.Command) shmem.CommandStatus {
	if st := c.coordCheck(cmd, "linear"); st != shmem.StatusOK {
		return st
	}
	return c.enqueue(cmd.ID, "linear", func() error { return c.queue.AddLine(cmd.Pos) })
}

func (c *Controller) cmdSetCircle(cmd *shmem.Command) shmem.CommandStatus {
	if st := c.coordCheck(cmd, "circular"); st != shmem.StatusOK {
		return st
	}
	return c.enqueue(cmd.ID, "circular", func() error {
		return c.queue.AddCircle(cmd.Pos, cmd.Center, cmd.Normal, int(cmd.Turn))
	})
}

func (c *Controller) cmdProbe(cmd *shmem.Command) shmem.CommandStatus {
	if st := c.coordCheck(cmd, "probe"); st != shmem.StatusOK {
		return st
	}
	st := c.enqueue(cmd.ID, "probe", func() error { return c.queue.AddLine(cmd.Pos) })
	if st == shmem.StatusOK {
		c.probe.tripped = false
		c.probe.probing = true
	}
	return st
}

func (c *Controller) cmdSetVel(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Vel <= 0 {
		return shmem.StatusInvalidParams
	}
	c.vel = cmd.Vel
	for i := range c.joints {
		_ = c.joints[i].free.SetVmax(c.vel)
	}
	_ = c.queue.SetVmax(c.vel)
	return shmem.StatusOK
}

func (c *Controller) cmdSetVelLimit(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Vel <= 0 {
		return shmem.StatusInvalidParams
	}
	c.limitVel = cmd.Vel
	c.queue.SetVlimit(c.limitVel)
	return shmem.StatusOK
}

func (c *Controller) cmdSetAxisVelLimit(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.Vel <= 0 {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.free.SetVlimit(cmd.Vel)
	j.Config.LimitVel = cmd.Vel
	j.BigVel = 10 * cmd.Vel
	return shmem.StatusOK
}

// cmdSetHomingVel takes the search direction from the sign of vel.
func (c *Controller) cmdSetHomingVel(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok || cmd.Vel == 0 {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.Config.HomingVel = math.Abs(cmd.Vel)
	j.Config.Polarity.Homing = cmd.Vel > 0
	return shmem.StatusOK
}

func (c *Controller) cmdSetAcc(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Acc <= 0 {
		return shmem.StatusInvalidParams
	}
	c.acc = cmd.Acc
	for i := range c.joints {
		_ = c.joints[i].free.SetAmax(c.acc)
	}
	_ = c.queue.SetAmax(c.acc)
	return shmem.StatusOK
}

func (c *Controller) pauseAll() {
	for i := range c.joints {
		c.joints[i].free.Pause()
	}
	c.queue.Pause()
	c.paused = true
}

func (c *Controller) resumeAll() {
	for i := range c.joints {
		c.joints[i].free.Resume()
	}
	c.queue.Resume()
	c.paused = false
}

func (c *Controller) cmdPause(cmd *shmem.Command) shmem.CommandStatus {
	c.pauseAll()
	return shmem.StatusOK
}

func (c *Controller) cmdResume(cmd *shmem.Command) shmem.CommandStatus {
	c.stepping = false
	c.resumeAll()
	return shmem.StatusOK
}

// cmdStep resumes until the executing motion id changes.
func (c *Controller) cmdStep(cmd *shmem.Command) shmem.CommandStatus {
	c.idForStep = c.queue.ExecID()
	c.stepping = true
	c.resumeAll()
	return shmem.StatusOK
}

func (c *Controller) cmdScale(cmd *shmem.Command) shmem.CommandStatus {
	scale := math.Max(cmd.Scale, 0)
	for i := range c.joints {
		c.joints[i].free.SetVscale(scale)
		c.vscale[i] = scale
	}
	c.queue.SetVscale(scale)
	c.qVscale = scale
	return shmem.StatusOK
}

func (c *Controller) cmdAbort(cmd *shmem.Command) shmem.CommandStatus {
	switch {
	case c.motion.Teleop:
		c.teleop.desiredVel = kinematics.Pose{}
	case c.motion.Coord:
		c.queue.Abort()
		c.motion.Error = false
	default:
		axis, ok := c.axisArg(cmd)
		if !ok {
			return shmem.StatusInvalidParams
		}
		c.cancelHoming(axis)
		c.joints[axis].Flags.Error = false
	}
	return shmem.StatusOK
}

func (c *Controller) cmdSetPID(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].pid.SetGains(cmd.Gains)
	return shmem.StatusOK
}

func (c *Controller) cmdActivateAxis(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Flags.Active = true
	return shmem.StatusOK
}

func (c *Controller) cmdDeactivateAxis(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Flags.Active = false
	return shmem.StatusOK
}

// cmdEnableAmplifier drives the amplifier directly without enabling the
// servo calculations.
func (c *Controller) cmdEnableAmplifier(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.io.AmpEnable(axis, c.joints[axis].Config.Polarity.Enable)
	return shmem.StatusOK
}

func (c *Controller) cmdDisableAmplifier(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.io.AmpEnable(axis, !c.joints[axis].Config.Polarity.Enable)
	return shmem.StatusOK
}

// cmdDacOut writes a raw output. It persists only while the joint is
// not being servoed.
func (c *Controller) cmdDacOut(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	if c.dlog.open && c.dlog.typ == shmem.LogPosVoltage && c.dlog.axis == axis {
		c.dlog.start(c.clock())
	}
	c.joints[axis].Output = cmd.DacOut
	return shmem.StatusOK
}

// cmdHome starts the homing sequence with a long search move in the
// configured direction.
func (c *Controller) cmdHome(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	switch {
	case c.motion.Coord || !c.motion.Enabled:
		c.reportError(axis, "can't home axis %d unless enabled in free mode", axis)
		return shmem.StatusInvalidCommand
	case !j.Flags.Active:
		c.reportError(axis, "can't home inactive axis %d", axis)
		return shmem.StatusInvalidCommand
	case j.Config.HomingVel <= 0 || j.Range() <= 0:
		c.reportError(axis, "axis %d has no homing velocity or travel", axis)
		return shmem.StatusInvalidParams
	}

	excursion := 2 * j.Range()
	if !j.Config.Polarity.Homing {
		excursion = -excursion
	}
	if err := j.free.SetVmax(j.Config.HomingVel); err != nil {
		return shmem.StatusInvalidParams
	}
	if err := j.free.AddLine(freePose(j.Pos + excursion)); err != nil {
		c.reportError(axis, "can't start homing axis %d: %v", axis, err)
		return shmem.StatusBadExec
	}
	j.Phase = HomeSeekSwitch
	j.Flags.Homing = true
	j.Flags.Homed = false
	c.allHomed = false
	return shmem.StatusOK
}

func (c *Controller) cmdEnableWatchdog(cmd *shmem.Command) shmem.CommandStatus {
	c.wd.enable(cmd.WdWait)
	return shmem.StatusOK
}

func (c *Controller) cmdDisableWatchdog(cmd *shmem.Command) shmem.CommandStatus {
	c.wd.enabling = false
	return shmem.StatusOK
}

// cmdSetPolarity sets the signals selected by AxisFlag to active high
// when Level is true and active low otherwise.
func (c *Controller) cmdSetPolarity(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	c.joints[axis].Config.Polarity.Set(cmd.AxisFlag, cmd.Level)
	return shmem.StatusOK
}

func (c *Controller) cmdSetProbeIndex(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.ProbeIndex < 0 {
		return shmem.StatusInvalidParams
	}
	c.probeIndex = int(cmd.ProbeIndex)
	return shmem.StatusOK
}

func (c *Controller) cmdSetProbePolarity(cmd *shmem.Command) shmem.CommandStatus {
	c.probePolarity = cmd.Level
	return shmem.StatusOK
}

func (c *Controller) cmdClearProbeFlags(cmd *shmem.Command) shmem.CommandStatus {
	c.probe.tripped = false
	c.probe.probing = true
	return shmem.StatusOK
}

// cmdSetTeleopVector sets the desired Cartesian velocity, scaled down
// to the machine velocity limit.
func (c *Controller) cmdSetTeleopVector(cmd *shmem.Command) shmem.CommandStatus {
	if !c.motion.Teleop || !c.motion.Enabled {
		c.reportError(-1, "need to be enabled, in teleop mode for teleop move")
		return shmem.StatusInvalidCommand
	}
	v := cmd.Pos
	if mag := poseMag(v); mag > c.limitVel {
		v = v.Mul(c.limitVel / mag)
	}
	c.teleop.desiredVel = v
	c.rehomeAll = true
	return shmem.StatusOK
}

func (c *Controller) cmdSetDebug(cmd *shmem.Command) shmem.CommandStatus {
	c.debug = cmd.Debug
	return shmem.StatusOK
}

// cmdSetAout attaches an analog output change to the next queued move.
func (c *Controller) cmdSetAout(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Index < 0 {
		return shmem.StatusInvalidParams
	}
	c.queue.SetAout(int(cmd.Index), cmd.AoutStart, cmd.AoutEnd)
	return shmem.StatusOK
}

// cmdSetDout attaches a digital output change to the next queued move.
func (c *Controller) cmdSetDout(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Index < 0 {
		return shmem.StatusInvalidParams
	}
	c.queue.SetDout(int(cmd.Index), cmd.Start, cmd.End)
	return shmem.StatusOK
}

func (c *Controller) cmdSetIndexBit(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Index < 0 {
		return shmem.StatusInvalidParams
	}
	c.io.SetDout(int(cmd.Index), cmd.Level)
	return shmem.StatusOK
}

func (c *Controller) cmdReadIndexBit(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.Index < 0 {
		return shmem.StatusInvalidParams
	}
	c.inputLevel = c.io.ReadDin(int(cmd.Index))
	return shmem.StatusOK
}

// cmdSetStepParams sets step pulse timing, with a floor of one unit.
func (c *Controller) cmdSetStepParams(cmd *shmem.Command) shmem.CommandStatus {
	axis, ok := c.axisArg(cmd)
	if !ok {
		return shmem.StatusInvalidParams
	}
	j := &c.joints[axis]
	j.Config.SetupTime = math.Max(cmd.SetupTime, 1)
	j.Config.HoldTime = math.Max(cmd.HoldTime, 1)
	return shmem.StatusOK
}
