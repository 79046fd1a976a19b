// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package shmem defines the region shared by the real-time controller
// and the supervisor.
//
// Every type here is fixed size and pointer free so the region can be
// a plain heap value for in-process use or an mmap'd file shared
// between processes. Ownership is split by block: the supervisor
// writes Command and the compensation tables, the controller writes
// everything else.
package shmem

import (
	"unsafe"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/pid"
)

const (
	// MaxJoints is the number of joint slots in every block.
	MaxJoints = 8

	// ErrorSlots and ErrorLen bound the error message ring.
	ErrorSlots = 32
	ErrorLen   = 256

	// CompSize is the number of entries in a compensation table.
	CompSize = 256

	// LogMax is the capacity of the data log.
	LogMax = 4000

	Magic   uint32 = 0x4d434d45 // "EMCM"
	Version uint32 = 1
)

// Header identifies a region and its layout.
type Header struct {
	Magic    uint32
	Version  uint32
	Size     uint64
	Instance [16]byte
	Started  int64
}

// Command is the single-slot mailbox written by the supervisor.
type Command struct {
	Seq
	Code       CommandCode `json:"code"`
	CommandNum uint32      `json:"command_num"`
	Axis       int32       `json:"axis"`

	Pos    kinematics.Pose `json:"pos"`
	Center kinematics.Pose `json:"center"`
	Normal kinematics.Pose `json:"normal"`
	Turn   int32           `json:"turn"`

	ID       int32   `json:"id"`
	TermCond int32   `json:"term_cond"`
	Vel      float64 `json:"vel"`
	Acc      float64 `json:"acc"`
	Scale    float64 `json:"scale"`
	Offset   float64 `json:"offset"`

	CycleTime float64 `json:"cycle_time"`
	MinLimit  float64 `json:"min_limit"`
	MaxLimit  float64 `json:"max_limit"`
	MinFerror float64 `json:"min_ferror"`
	MaxFerror float64 `json:"max_ferror"`
	DacOut    float64 `json:"dac_out"`

	Gains pid.Gains `json:"gains"`

	WdWait     int32  `json:"wd_wait"`
	Debug      int32  `json:"debug"`
	Level      bool   `json:"level"`
	AxisFlag   uint32 `json:"axis_flag"`
	ProbeIndex int32  `json:"probe_index"`

	Index     int32   `json:"index"`
	Start     bool    `json:"start"`
	End       bool    `json:"end"`
	AoutStart float64 `json:"aout_start"`
	AoutEnd   float64 `json:"aout_end"`

	SetupTime float64 `json:"setup_time"`
	HoldTime  float64 `json:"hold_time"`

	LogSize             int32       `json:"log_size"`
	LogSkip             int32       `json:"log_skip"`
	LogType             LogType     `json:"log_type"`
	LogTriggerType      LogTrigger  `json:"log_trigger_type"`
	LogTriggerVariable  LogVariable `json:"log_trigger_variable"`
	LogTriggerThreshold float64     `json:"log_trigger_threshold"`
}

// Status is published by the controller every servo cycle.
type Status struct {
	Seq

	CommandEcho    CommandCode
	CommandNumEcho uint32
	CommandStatus  CommandStatus

	MotionFlag uint32
	AxisFlag   [MaxJoints]uint32

	Pos       kinematics.Pose
	ActualPos kinematics.Pose
	Vel       float64
	Acc       float64

	AxisPos        [MaxJoints]float64
	Input          [MaxJoints]float64
	Output         [MaxJoints]float64
	Ferror         [MaxJoints]float64
	FerrorHighMark [MaxJoints]float64
	HomingPhase    [MaxJoints]int32
	InputScale     [MaxJoints]float64
	InputOffset    [MaxJoints]float64
	OutputScale    [MaxJoints]float64
	OutputOffset   [MaxJoints]float64
	AxVscale       [MaxJoints]float64
	QVscale        float64

	ID             int32
	Depth          int32
	ActiveDepth    int32
	QueueFull      bool
	Paused         bool
	OverrideLimits bool
	TermCond       int32

	Heartbeat   uint32
	ComputeTime float64

	ProbeVal     bool
	ProbeTripped bool
	Probing      bool
	ProbedPos    kinematics.Pose

	Level bool

	LogOpen             bool
	LogStarted          bool
	LogType             LogType
	LogSize             int32
	LogSkip             int32
	LogPoints           int32
	LogTriggerType      LogTrigger
	LogTriggerVariable  LogVariable
	LogTriggerThreshold float64
	LogStartVal         float64
}

// Config holds the persistent tunables. ConfigNum changes whenever one
// of them does.
type Config struct {
	Seq

	ConfigNum         uint32
	NumAxes           int32
	TrajCycleTime     float64
	ServoCycleTime    float64
	InterpolationRate int32
	LimitVel          float64
	KinematicsType    int32
	Debug             int32

	AxisLimitVel [MaxJoints]float64
	MaxLimit     [MaxJoints]float64
	MinLimit     [MaxJoints]float64
	MaxOutput    [MaxJoints]float64
	MinOutput    [MaxJoints]float64
	MaxFerror    [MaxJoints]float64
	MinFerror    [MaxJoints]float64
	HomingVel    [MaxJoints]float64
	HomeOffset   [MaxJoints]float64
	AxisPolarity [MaxJoints]uint32
	Gains        [MaxJoints]pid.Gains
	SetupTime    [MaxJoints]float64
	HoldTime     [MaxJoints]float64

	ProbeIndex    int32
	ProbePolarity bool
}

// Stats summarises a timing quantity over a window.
type Stats struct {
	Min float64
	Max float64
	Avg float64
}

// Debug exposes controller internals for diagnosis.
type Debug struct {
	Seq

	Split uint32

	Enabling      bool
	Coordinating  bool
	Teleoperating bool
	AllHomed      bool
	Overriding    bool
	OnLimit       bool
	WasOnLimit    bool
	Stepping      bool
	IDForStep     int32

	JointPos       [MaxJoints]float64
	CoarseJointPos [MaxJoints]float64
	JointVel       [MaxJoints]float64
	JointHome      [MaxJoints]float64
	RawInput       [MaxJoints]float64
	RawOutput      [MaxJoints]float64
	Bcomp          [MaxJoints]float64
	BcompIncr      [MaxJoints]float64
	BcompDir       [MaxJoints]int32
	SaveLatch      [MaxJoints]float64
	BigVel         [MaxJoints]float64

	MaxLimitSwitchCount [MaxJoints]int32
	MinLimitSwitchCount [MaxJoints]int32
	AmpFaultCount       [MaxJoints]int32
	BadFeedbackCount    [MaxJoints]int32

	TeleopVel kinematics.Pose
	WorldHome kinematics.Pose

	WdEnabling bool
	WdWait     int32
	WdCount    int32

	CycleTime   Stats
	ComputeTime Stats
	Overruns    uint32
	Cycles      uint64
	LastTime    float64
}

// CompTable maps nominal positions to forward and reverse corrected
// positions for one joint. Written by the supervisor.
type CompTable struct {
	Seq
	Total   int32
	AvgInt  float64
	Alter   float64
	Nominal [CompSize]float64
	Forward [CompSize]float64
	Reverse [CompSize]float64
}

// LogItem is one data log sample.
type LogItem struct {
	Type       LogType
	Command    CommandCode
	CommandNum uint32
	Time       float64
	Value      [MaxJoints]float64
	Extra      [2]float64
}

// LogBuffer is the data log ring written in place by the controller.
type LogBuffer struct {
	Seq
	Type    LogType
	Size    int32
	Start   int32
	End     int32
	HowMany int32
	Items   [LogMax]LogItem
}

// Shmem is the whole shared region.
type Shmem struct {
	Header  Header
	Command Command
	Status  Status
	Config  Config
	Debug   Debug
	Errors  ErrorRing
	Comp    [MaxJoints]CompTable
	Log     LogBuffer
}

// Size is the byte size of the shared region.
const Size = int(unsafe.Sizeof(Shmem{}))
