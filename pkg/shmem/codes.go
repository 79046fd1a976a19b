// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import (
	"fmt"
	"strings"
)

// CommandCode selects the operation carried in the command slot.
type CommandCode int32

const (
	CmdNone CommandCode = iota
	CmdFree
	CmdCoord
	CmdTeleop
	CmdSetNumAxes
	CmdSetWorldHome
	CmdSetJointHome
	CmdSetHomeOffset
	CmdOverrideLimits
	CmdSetTrajCycleTime
	CmdSetServoCycleTime
	CmdSetPositionLimits
	CmdSetOutputLimits
	CmdSetOutputScale
	CmdSetInputScale
	CmdSetMaxFerror
	CmdSetMinFerror
	CmdJogCont
	CmdJogIncr
	CmdJogAbs
	CmdSetTermCond
	CmdSetLine
	CmdSetCircle
	CmdSetVel
	CmdSetVelLimit
	CmdSetAxisVelLimit
	CmdSetHomingVel
	CmdSetAcc
	CmdPause
	CmdResume
	CmdStep
	CmdScale
	CmdAbort
	CmdDisable
	CmdEnable
	CmdSetPID
	CmdActivateAxis
	CmdDeactivateAxis
	CmdEnableAmplifier
	CmdDisableAmplifier
	CmdOpenLog
	CmdStartLog
	CmdStopLog
	CmdCloseLog
	CmdDacOut
	CmdHome
	CmdEnableWatchdog
	CmdDisableWatchdog
	CmdSetPolarity
	CmdSetProbeIndex
	CmdSetProbePolarity
	CmdClearProbeFlags
	CmdProbe
	CmdSetTeleopVector
	CmdSetDebug
	CmdSetAout
	CmdSetDout
	CmdSetIndexBit
	CmdReadIndexBit
	CmdSetStepParams
)

var commandNames = map[CommandCode]string{
	CmdNone:              "NONE",
	CmdFree:              "FREE",
	CmdCoord:             "COORD",
	CmdTeleop:            "TELEOP",
	CmdSetNumAxes:        "SET_NUM_AXES",
	CmdSetWorldHome:      "SET_WORLD_HOME",
	CmdSetJointHome:      "SET_JOINT_HOME",
	CmdSetHomeOffset:     "SET_HOME_OFFSET",
	CmdOverrideLimits:    "OVERRIDE_LIMITS",
	CmdSetTrajCycleTime:  "SET_TRAJ_CYCLE_TIME",
	CmdSetServoCycleTime: "SET_SERVO_CYCLE_TIME",
	CmdSetPositionLimits: "SET_POSITION_LIMITS",
	CmdSetOutputLimits:   "SET_OUTPUT_LIMITS",
	CmdSetOutputScale:    "SET_OUTPUT_SCALE",
	CmdSetInputScale:     "SET_INPUT_SCALE",
	CmdSetMaxFerror:      "SET_MAX_FERROR",
	CmdSetMinFerror:      "SET_MIN_FERROR",
	CmdJogCont:           "JOG_CONT",
	CmdJogIncr:           "JOG_INCR",
	CmdJogAbs:            "JOG_ABS",
	CmdSetTermCond:       "SET_TERM_COND",
	CmdSetLine:           "SET_LINE",
	CmdSetCircle:         "SET_CIRCLE",
	CmdSetVel:            "SET_VEL",
	CmdSetVelLimit:       "SET_VEL_LIMIT",
	CmdSetAxisVelLimit:   "SET_AXIS_VEL_LIMIT",
	CmdSetHomingVel:      "SET_HOMING_VEL",
	CmdSetAcc:            "SET_ACC",
	CmdPause:             "PAUSE",
	CmdResume:            "RESUME",
	CmdStep:              "STEP",
	CmdScale:             "SCALE",
	CmdAbort:             "ABORT",
	CmdDisable:           "DISABLE",
	CmdEnable:            "ENABLE",
	CmdSetPID:            "SET_PID",
	CmdActivateAxis:      "ACTIVATE_AXIS",
	CmdDeactivateAxis:    "DEACTIVATE_AXIS",
	CmdEnableAmplifier:   "ENABLE_AMPLIFIER",
	CmdDisableAmplifier:  "DISABLE_AMPLIFIER",
	CmdOpenLog:           "OPEN_LOG",
	CmdStartLog:          "START_LOG",
	CmdStopLog:           "STOP_LOG",
	CmdCloseLog:          "CLOSE_LOG",
	CmdDacOut:            "DAC_OUT",
	CmdHome:              "HOME",
	CmdEnableWatchdog:    "ENABLE_WATCHDOG",
	CmdDisableWatchdog:   "DISABLE_WATCHDOG",
	CmdSetPolarity:       "SET_POLARITY",
	CmdSetProbeIndex:     "SET_PROBE_INDEX",
	CmdSetProbePolarity:  "SET_PROBE_POLARITY",
	CmdClearProbeFlags:   "CLEAR_PROBE_FLAGS",
	CmdProbe:             "PROBE",
	CmdSetTeleopVector:   "SET_TELEOP_VECTOR",
	CmdSetDebug:          "SET_DEBUG",
	CmdSetAout:           "SET_AOUT",
	CmdSetDout:           "SET_DOUT",
	CmdSetIndexBit:       "SET_INDEX_BIT",
	CmdReadIndexBit:      "READ_INDEX_BIT",
	CmdSetStepParams:     "SET_STEP_PARAMS",
}

func (c CommandCode) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("COMMAND_%d", int32(c))
}

// ParseCommandCode looks up a command by name, case-insensitively.
func ParseCommandCode(name string) (CommandCode, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for c, s := range commandNames {
		if s == name {
			return c, true
		}
	}
	return CmdNone, false
}

// CommandStatus is the result echoed for a processed command.
type CommandStatus int32

const (
	StatusOK CommandStatus = iota
	StatusUnknownCommand
	StatusInvalidCommand
	StatusInvalidParams
	StatusBadExec
)

func (s CommandStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnknownCommand:
		return "UNKNOWN_COMMAND"
	case StatusInvalidCommand:
		return "INVALID_COMMAND"
	case StatusInvalidParams:
		return "INVALID_PARAMS"
	case StatusBadExec:
		return "BAD_EXEC"
	}
	return fmt.Sprintf("STATUS_%d", int32(s))
}

// Motion mode bits in Status.MotionFlag.
const (
	MotionEnable uint32 = 1 << iota
	MotionInpos
	MotionCoord
	MotionError
	MotionTeleop
)

// Per-joint bits in Status.AxisFlag. The same bit positions select the
// signal in SET_POLARITY and Config.AxisPolarity.
const (
	AxisEnable uint32 = 1 << iota
	AxisActive
	AxisInpos
	AxisError
	AxisMaxSoftLimit
	AxisMinSoftLimit
	AxisMaxHardLimit
	AxisMinHardLimit
	AxisHomeSwitch
	AxisHoming
	AxisHomed
	AxisFerror
	AxisFault
)

// LogType selects the quantity recorded by the data log.
type LogType int32

const (
	LogNone LogType = iota
	LogAxisPos
	LogAllInpos
	LogAllOutpos
	LogCmd
	LogAxisVel
	LogAllFerror
	LogTrajPos
	LogTrajVel
	LogTrajAcc
	LogPosVoltage
)

var logTypeNames = map[LogType]string{
	LogNone:       "none",
	LogAxisPos:    "axis_pos",
	LogAllInpos:   "all_inpos",
	LogAllOutpos:  "all_outpos",
	LogCmd:        "cmd",
	LogAxisVel:    "axis_vel",
	LogAllFerror:  "all_ferror",
	LogTrajPos:    "traj_pos",
	LogTrajVel:    "traj_vel",
	LogTrajAcc:    "traj_acc",
	LogPosVoltage: "pos_voltage",
}

func (t LogType) String() string {
	if s, ok := logTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("log_type_%d", int32(t))
}

// ParseLogType looks up a log type by name.
func ParseLogType(name string) (LogType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, s := range logTypeNames {
		if s == name {
			return t, true
		}
	}
	return LogNone, false
}

// AxisSpecific reports whether the log type records a single joint.
func (t LogType) AxisSpecific() bool {
	return t == LogAxisPos || t == LogAxisVel || t == LogPosVoltage
}

// ServoRate reports whether the log type is sampled every servo cycle
// rather than every trajectory cycle.
func (t LogType) ServoRate() bool {
	switch t {
	case LogAxisPos, LogAllInpos, LogAllOutpos, LogAxisVel, LogAllFerror, LogPosVoltage:
		return true
	}
	return false
}

// LogTrigger selects how a started log begins recording.
type LogTrigger int32

const (
	TriggerManual LogTrigger = iota
	TriggerDelta
	TriggerOver
	TriggerUnder
)

// LogVariable selects the quantity a trigger watches.
type LogVariable int32

const (
	VarFerror LogVariable = iota
	VarVolt
	VarPos
	VarVel
)
