// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import "emcmot-go/pkg/shmem"

// publish copies the controller state into the shared status and debug
// blocks, and into the config block when a tunable changed.
func (c *Controller) publish() {
	c.fillStatus(&c.status)
	shmem.Publish(&c.shm.Status, &c.status)

	c.fillDebug(&c.dbg)
	shmem.Publish(&c.shm.Debug, &c.dbg)

	if c.configDirty {
		c.fillConfig(&c.config)
		shmem.Publish(&c.shm.Config, &c.config)
		c.configDirty = false
	}
}

func (c *Controller) fillStatus(s *shmem.Status) {
	s.CommandEcho = c.commandEcho
	s.CommandNumEcho = c.commandNumEcho
	s.CommandStatus = c.commandStatus

	s.MotionFlag = c.motion.Bits()
	s.Pos = c.pos
	s.ActualPos = c.actualPos
	s.Vel = c.queue.Vel()
	s.Acc = c.acc

	for i := range c.joints {
		j := &c.joints[i]
		s.AxisFlag[i] = j.Flags.Bits()
		s.AxisPos[i] = j.Pos
		s.Input[i] = j.Input
		s.Output[i] = j.Output
		s.Ferror[i] = j.Ferror
		s.FerrorHighMark[i] = j.FerrorHighMark
		s.HomingPhase[i] = int32(j.Phase)
		s.InputScale[i] = j.InputScale
		s.InputOffset[i] = j.InputOffset
		s.OutputScale[i] = j.OutputScale
		s.OutputOffset[i] = j.OutputOffset
		s.AxVscale[i] = c.vscale[i]
	}
	s.QVscale = c.qVscale

	s.ID = c.queue.ExecID()
	s.Depth = int32(c.queue.Depth())
	s.ActiveDepth = int32(c.queue.ActiveDepth())
	s.QueueFull = c.queue.Full()
	s.Paused = c.paused
	s.OverrideLimits = c.overrideLimits
	s.TermCond = int32(c.queue.TermCond())

	s.Heartbeat = c.heartbeat
	s.ComputeTime = c.timing.lastTime

	s.ProbeVal = c.probe.val
	s.ProbeTripped = c.probe.tripped
	s.Probing = c.probe.probing
	s.ProbedPos = c.probe.probedPos

	s.Level = c.inputLevel

	d := &c.dlog
	s.LogOpen = d.open
	s.LogStarted = d.started
	s.LogType = d.typ
	s.LogSize = d.size
	s.LogSkip = d.skip
	s.LogPoints = c.shm.Log.HowMany
	s.LogTriggerType = d.trigger
	s.LogTriggerVariable = d.variable
	s.LogTriggerThreshold = d.threshold
	s.LogStartVal = d.startVal
}

func (c *Controller) fillDebug(d *shmem.Debug) {
	d.Split = c.split
	d.Enabling = c.enabling
	d.Coordinating = c.coordinating
	d.Teleoperating = c.teleoperating
	d.AllHomed = c.allHomed
	d.Overriding = c.overriding
	d.OnLimit = c.onLimit
	d.WasOnLimit = c.wasOnLimit
	d.Stepping = c.stepping
	d.IDForStep = c.idForStep

	for i := range c.joints {
		j := &c.joints[i]
		d.JointPos[i] = j.Pos
		d.CoarseJointPos[i] = j.CoarsePos
		d.JointVel[i] = j.Vel
		d.JointHome[i] = j.Home
		d.RawInput[i] = j.RawInput
		d.RawOutput[i] = j.RawOutput
		d.Bcomp[i] = j.backlash.start + j.backlash.total
		d.BcompIncr[i] = j.backlash.applied
		d.BcompDir[i] = int32(j.backlash.dir)
		d.SaveLatch[i] = j.SaveLatch
		d.BigVel[i] = j.BigVel
		d.MaxLimitSwitchCount[i] = int32(j.maxLimitCount)
		d.MinLimitSwitchCount[i] = int32(j.minLimitCount)
		d.AmpFaultCount[i] = int32(j.ampFaultCount)
		d.BadFeedbackCount[i] = int32(j.badFeedbackCount)
	}
	d.TeleopVel = c.teleop.currentVel
	d.WorldHome = c.worldHome

	d.WdEnabling = c.wd.enabling
	d.WdWait = c.wd.wait
	d.WdCount = c.wd.count

	d.CycleTime = c.timing.cycle.current()
	d.ComputeTime = c.timing.compute.current()
	d.Overruns = c.timing.overruns
	d.Cycles = c.timing.cycles
	d.LastTime = c.timing.lastTime
}

func (c *Controller) fillConfig(cfg *shmem.Config) {
	cfg.ConfigNum = c.configNum
	cfg.NumAxes = int32(c.numJoints)
	cfg.TrajCycleTime = c.trajCycleTime
	cfg.ServoCycleTime = c.servoCycleTime
	cfg.InterpolationRate = int32(c.interpRate)
	cfg.LimitVel = c.limitVel
	cfg.KinematicsType = int32(c.kins.Type())
	cfg.Debug = c.debug

	for i := range c.joints {
		jc := &c.joints[i].Config
		cfg.AxisLimitVel[i] = jc.LimitVel
		cfg.MaxLimit[i] = jc.MaxLimit
		cfg.MinLimit[i] = jc.MinLimit
		cfg.MaxOutput[i] = jc.MaxOutput
		cfg.MinOutput[i] = jc.MinOutput
		cfg.MaxFerror[i] = jc.MaxFerror
		cfg.MinFerror[i] = jc.MinFerror
		cfg.HomingVel[i] = jc.HomingVel
		cfg.HomeOffset[i] = jc.HomeOffset
		cfg.AxisPolarity[i] = jc.Polarity.Bits()
		cfg.Gains[i] = c.joints[i].pid.Gains()
		cfg.SetupTime[i] = jc.SetupTime
		cfg.HoldTime[i] = jc.HoldTime
	}

	cfg.ProbeIndex = int32(c.probeIndex)
	cfg.ProbePolarity = c.probePolarity
}
