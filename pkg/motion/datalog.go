// Data logging into the shared log buffer
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/shmem"
)

type datalog struct {
	open      bool
	started   bool
	typ       shmem.LogType
	axis      int
	size      int32
	skip      int32
	skipCount int32

	trigger   shmem.LogTrigger
	variable  shmem.LogVariable
	threshold float64
	startVal  float64
	startTime float64

	trajVel kinematics.Pose
}

func (d *datalog) start(now float64) {
	d.started = true
	d.skipCount = 0
	d.startTime = now
}

// due reports whether this cycle's sample should be taken.
func (d *datalog) due() bool {
	if d.skipCount < d.skip {
		d.skipCount++
		return false
	}
	d.skipCount = 0
	return true
}

func (c *Controller) cmdOpenLog(cmd *shmem.Command) shmem.CommandStatus {
	if cmd.LogSize <= 0 || cmd.LogSize > shmem.LogMax || cmd.LogSkip < 0 {
		return shmem.StatusInvalidParams
	}
	if cmd.LogType <= shmem.LogNone || cmd.LogType > shmem.LogPosVoltage {
		return shmem.StatusInvalidParams
	}
	axis := 0
	if cmd.LogType.AxisSpecific() || cmd.LogTriggerType != shmem.TriggerManual {
		a, ok := c.axisArg(cmd)
		if !ok {
			return shmem.StatusInvalidParams
		}
		axis = a
	}
	c.dlog = datalog{
		open:      true,
		typ:       cmd.LogType,
		axis:      axis,
		size:      cmd.LogSize,
		skip:      cmd.LogSkip,
		trigger:   cmd.LogTriggerType,
		variable:  cmd.LogTriggerVariable,
		threshold: cmd.LogTriggerThreshold,
	}
	if c.dlog.trigger != shmem.TriggerManual {
		c.dlog.startVal = c.triggerValue()
	}
	c.shm.Log.Reset(cmd.LogType, cmd.LogSize)
	return shmem.StatusOK
}

func (c *Controller) cmdStartLog(cmd *shmem.Command) shmem.CommandStatus {
	if !c.dlog.open {
		return shmem.StatusInvalidCommand
	}
	// pos-voltage logs start with the first DAC write
	if c.dlog.typ != shmem.LogPosVoltage {
		c.dlog.start(c.clock())
	}
	return shmem.StatusOK
}

func (c *Controller) cmdStopLog(cmd *shmem.Command) shmem.CommandStatus {
	c.dlog.started = false
	return shmem.StatusOK
}

func (c *Controller) cmdCloseLog(cmd *shmem.Command) shmem.CommandStatus {
	c.dlog.open = false
	c.dlog.started = false
	return shmem.StatusOK
}

// triggerValue samples the watched variable of the logged joint.
func (c *Controller) triggerValue() float64 {
	j := &c.joints[c.dlog.axis]
	switch c.dlog.variable {
	case shmem.VarFerror:
		return j.Ferror
	case shmem.VarVolt:
		return j.RawOutput
	case shmem.VarPos:
		return j.Pos
	case shmem.VarVel:
		return j.Pos - j.OldPos
	}
	return 0
}

// checkLogTrigger starts an armed log once its trigger condition holds.
func (c *Controller) checkLogTrigger() {
	d := &c.dlog
	if !d.open || d.started || d.trigger == shmem.TriggerManual {
		return
	}
	v := c.triggerValue()
	var fire bool
	switch d.trigger {
	case shmem.TriggerDelta:
		fire = math.Abs(d.startVal-v) > d.threshold
	case shmem.TriggerOver:
		fire = v > d.threshold
	case shmem.TriggerUnder:
		fire = v < d.threshold
	}
	if fire {
		d.start(c.clock())
	}
}

func (c *Controller) logItem(t shmem.LogType) shmem.LogItem {
	return shmem.LogItem{
		Type:       t,
		Command:    c.commandEcho,
		CommandNum: c.commandNumEcho,
		Time:       c.clock() - c.dlog.startTime,
	}
}

// logCommand records a received command when a command log runs.
func (c *Controller) logCommand(cmd *shmem.Command) {
	d := &c.dlog
	if !d.open || !d.started || d.typ != shmem.LogCmd {
		return
	}
	item := c.logItem(shmem.LogCmd)
	item.Command = cmd.Code
	item.CommandNum = cmd.CommandNum
	item.Time = c.clock()
	c.shm.Log.Add(item)
}

// logTraj records one trajectory-rate sample of the Cartesian command.
func (c *Controller) logTraj(old, pos kinematics.Pose) {
	d := &c.dlog
	vel := pos.Sub(old).Mul(1 / c.trajCycleTime)
	acc := vel.Sub(d.trajVel).Mul(1 / c.trajCycleTime)
	d.trajVel = vel
	if !d.open || !d.started {
		return
	}
	var v kinematics.Pose
	switch d.typ {
	case shmem.LogTrajPos:
		v = pos
	case shmem.LogTrajVel:
		v = vel
	case shmem.LogTrajAcc:
		v = acc
	default:
		return
	}
	if !d.due() {
		return
	}
	item := c.logItem(d.typ)
	for i := 0; i < 6; i++ {
		item.Value[i] = v.Axis(i)
	}
	item.Extra[0] = poseMag(v)
	c.shm.Log.Add(item)
}

// logServo records one servo-rate sample.
func (c *Controller) logServo() {
	d := &c.dlog
	if !d.open || !d.started || !d.typ.ServoRate() || !d.due() {
		return
	}
	item := c.logItem(d.typ)
	j := &c.joints[d.axis]
	switch d.typ {
	case shmem.LogAxisPos:
		item.Value[0] = j.Input
		item.Value[1] = j.Pos
	case shmem.LogAxisVel:
		item.Value[0] = j.Pos - j.OldPos
		item.Value[1] = j.Input - j.OldInput
	case shmem.LogAllInpos:
		for i := 0; i < c.numJoints; i++ {
			item.Value[i] = c.joints[i].Input
		}
	case shmem.LogAllOutpos:
		for i := 0; i < c.numJoints; i++ {
			item.Value[i] = c.joints[i].Pos
		}
	case shmem.LogAllFerror:
		for i := 0; i < c.numJoints; i++ {
			item.Value[i] = c.joints[i].Ferror
		}
	case shmem.LogPosVoltage:
		// a full pos-voltage log stops the drive rather than wrapping
		if c.shm.Log.HowMany >= d.size {
			j.Output = 0
			d.started = false
			return
		}
		item.Value[0] = j.Input
		item.Value[1] = j.RawOutput
	}
	c.shm.Log.Add(item)
}
