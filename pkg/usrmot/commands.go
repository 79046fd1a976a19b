// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package usrmot

import (
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/shmem"
)

func (c *Client) simple(code shmem.CommandCode) error {
	return c.WriteCommand(shmem.Command{Code: code})
}

func (c *Client) axisCommand(axis int, cmd shmem.Command) error {
	if err := checkAxis(axis, cmd.Code.String()); err != nil {
		return err
	}
	cmd.Axis = int32(axis)
	return c.WriteCommand(cmd)
}

// Enable requests the enabled state.
func (c *Client) Enable() error { return c.simple(shmem.CmdEnable) }

// Disable requests the disabled state.
func (c *Client) Disable() error { return c.simple(shmem.CmdDisable) }

// Free requests free (joint) mode.
func (c *Client) Free() error { return c.simple(shmem.CmdFree) }

// Coord requests coordinated mode.
func (c *Client) Coord() error { return c.simple(shmem.CmdCoord) }

// Teleop requests teleoperation mode.
func (c *Client) Teleop() error { return c.simple(shmem.CmdTeleop) }

// Pause pauses every planner.
func (c *Client) Pause() error { return c.simple(shmem.CmdPause) }

// Resume resumes every planner.
func (c *Client) Resume() error { return c.simple(shmem.CmdResume) }

// Step runs one queued move while paused.
func (c *Client) Step() error { return c.simple(shmem.CmdStep) }

// Abort stops the queue in coordinated mode, the teleop velocity in
// teleop mode, and the jog or homing of axis in free mode.
func (c *Client) Abort(axis int) error {
	return c.WriteCommand(shmem.Command{Code: shmem.CmdAbort, Axis: int32(axis)})
}

// Home starts homing axis.
func (c *Client) Home(axis int) error {
	return c.axisCommand(axis, shmem.Command{Code: shmem.CmdHome})
}

// ActivateAxis includes axis in servo calculations.
func (c *Client) ActivateAxis(axis int) error {
	return c.axisCommand(axis, shmem.Command{Code: shmem.CmdActivateAxis})
}

// JogCont jogs axis at vel until aborted.
func (c *Client) JogCont(axis int, vel float64) error {
	return c.axisCommand(axis, shmem.Command{Code: shmem.CmdJogCont, Vel: vel})
}

// JogIncr jogs axis by offset at speed vel.
func (c *Client) JogIncr(axis int, vel, offset float64) error {
	return c.axisCommand(axis, shmem.Command{Code: shmem.CmdJogIncr, Vel: vel, Offset: offset})
}

// JogAbs jogs axis to pos at speed vel.
func (c *Client) JogAbs(axis int, vel, pos float64) error {
	return c.axisCommand(axis, shmem.Command{Code: shmem.CmdJogAbs, Vel: vel, Offset: pos})
}

// SetLine queues a coordinated straight move to pos tagged with id.
func (c *Client) SetLine(pos kinematics.Pose, id int32) error {
	return c.WriteCommand(shmem.Command{Code: shmem.CmdSetLine, Pos: pos, ID: id})
}

// SetCircle queues a coordinated arc.
func (c *Client) SetCircle(end, center, normal kinematics.Pose, turn, id int32) error {
	return c.WriteCommand(shmem.Command{
		Code:   shmem.CmdSetCircle,
		Pos:    end,
		Center: center,
		Normal: normal,
		Turn:   turn,
		ID:     id,
	})
}

// Probe queues a probing move to pos.
func (c *Client) Probe(pos kinematics.Pose, id int32) error {
	return c.WriteCommand(shmem.Command{Code: shmem.CmdProbe, Pos: pos, ID: id})
}

// Scale sets the feed override.
func (c *Client) Scale(scale float64) error {
	return c.WriteCommand(shmem.Command{Code: shmem.CmdScale, Scale: scale})
}

// OverrideLimits allows jogging off a hard limit until the next move.
func (c *Client) OverrideLimits(on bool) error {
	axis := int32(-1)
	if on {
		axis = 0
	}
	return c.WriteCommand(shmem.Command{Code: shmem.CmdOverrideLimits, Axis: axis})
}

// SetTeleopVector sets the teleoperation velocity.
func (c *Client) SetTeleopVector(vel kinematics.Pose) error {
	return c.WriteCommand(shmem.Command{Code: shmem.CmdSetTeleopVector, Pos: vel})
}

// LogOptions describe a data log to open.
type LogOptions struct {
	Type      shmem.LogType
	Axis      int
	Size      int
	Skip      int
	Trigger   shmem.LogTrigger
	Variable  shmem.LogVariable
	Threshold float64
}

// OpenLog opens the data log.
func (c *Client) OpenLog(o LogOptions) error {
	return c.WriteCommand(shmem.Command{
		Code:                shmem.CmdOpenLog,
		Axis:                int32(o.Axis),
		LogType:             o.Type,
		LogSize:             int32(o.Size),
		LogSkip:             int32(o.Skip),
		LogTriggerType:      o.Trigger,
		LogTriggerVariable:  o.Variable,
		LogTriggerThreshold: o.Threshold,
	})
}

// StartLog starts recording into an open log.
func (c *Client) StartLog() error { return c.simple(shmem.CmdStartLog) }

// StopLog stops recording.
func (c *Client) StopLog() error { return c.simple(shmem.CmdStopLog) }

// CloseLog closes the log.
func (c *Client) CloseLog() error { return c.simple(shmem.CmdCloseLog) }
