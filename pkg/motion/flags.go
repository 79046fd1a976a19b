// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import "emcmot-go/pkg/shmem"

// JointFlags is the live status of one joint.
type JointFlags struct {
	Enabled      bool
	Active       bool
	Inpos        bool
	Error        bool
	MaxSoftLimit bool
	MinSoftLimit bool
	MaxHardLimit bool
	MinHardLimit bool
	HomeSwitch   bool
	Homing       bool
	Homed        bool
	Ferror       bool
	Fault        bool
}

var jointBits = []struct {
	bit uint32
	get func(*JointFlags) *bool
}{
	{shmem.AxisEnable, func(f *JointFlags) *bool { return &f.Enabled }},
	{shmem.AxisActive, func(f *JointFlags) *bool { return &f.Active }},
	{shmem.AxisInpos, func(f *JointFlags) *bool { return &f.Inpos }},
	{shmem.AxisError, func(f *JointFlags) *bool { return &f.Error }},
	{shmem.AxisMaxSoftLimit, func(f *JointFlags) *bool { return &f.MaxSoftLimit }},
	{shmem.AxisMinSoftLimit, func(f *JointFlags) *bool { return &f.MinSoftLimit }},
	{shmem.AxisMaxHardLimit, func(f *JointFlags) *bool { return &f.MaxHardLimit }},
	{shmem.AxisMinHardLimit, func(f *JointFlags) *bool { return &f.MinHardLimit }},
	{shmem.AxisHomeSwitch, func(f *JointFlags) *bool { return &f.HomeSwitch }},
	{shmem.AxisHoming, func(f *JointFlags) *bool { return &f.Homing }},
	{shmem.AxisHomed, func(f *JointFlags) *bool { return &f.Homed }},
	{shmem.AxisFerror, func(f *JointFlags) *bool { return &f.Ferror }},
	{shmem.AxisFault, func(f *JointFlags) *bool { return &f.Fault }},
}

// Bits packs the flags into the shared-memory bitmask.
func (f JointFlags) Bits() uint32 {
	var b uint32
	for _, jb := range jointBits {
		if *jb.get(&f) {
			b |= jb.bit
		}
	}
	return b
}

// JointFlagsFromBits unpacks a shared-memory bitmask.
func JointFlagsFromBits(b uint32) JointFlags {
	var f JointFlags
	for _, jb := range jointBits {
		*jb.get(&f) = b&jb.bit != 0
	}
	return f
}

// OnLimit reports whether any soft or hard limit is set.
func (f JointFlags) OnLimit() bool {
	return f.MaxSoftLimit || f.MinSoftLimit || f.MaxHardLimit || f.MinHardLimit
}

// MotionFlags is the machine-wide mode.
type MotionFlags struct {
	Enabled bool
	Inpos   bool
	Coord   bool
	Error   bool
	Teleop  bool
}

// Bits packs the flags into the shared-memory bitmask.
func (f MotionFlags) Bits() uint32 {
	var b uint32
	if f.Enabled {
		b |= shmem.MotionEnable
	}
	if f.Inpos {
		b |= shmem.MotionInpos
	}
	if f.Coord {
		b |= shmem.MotionCoord
	}
	if f.Error {
		b |= shmem.MotionError
	}
	if f.Teleop {
		b |= shmem.MotionTeleop
	}
	return b
}

// MotionFlagsFromBits unpacks a shared-memory bitmask.
func MotionFlagsFromBits(b uint32) MotionFlags {
	return MotionFlags{
		Enabled: b&shmem.MotionEnable != 0,
		Inpos:   b&shmem.MotionInpos != 0,
		Coord:   b&shmem.MotionCoord != 0,
		Error:   b&shmem.MotionError != 0,
		Teleop:  b&shmem.MotionTeleop != 0,
	}
}

// Polarity gives the raw level at which each signal is asserted. For
// Homing it gives the search direction: true homes toward positive.
type Polarity struct {
	Enable       bool
	MaxHardLimit bool
	MinHardLimit bool
	HomeSwitch   bool
	Homing       bool
	Fault        bool
}

// DefaultPolarity treats every signal as active high.
func DefaultPolarity() Polarity {
	return Polarity{true, true, true, true, true, true}
}

// Bits packs the polarity using the axis flag bit positions.
func (p Polarity) Bits() uint32 {
	var b uint32
	for _, pb := range p.fields() {
		if *pb.v {
			b |= pb.bit
		}
	}
	return b
}

// Set assigns level to every signal selected by mask.
func (p *Polarity) Set(mask uint32, level bool) {
	for _, pb := range p.fields() {
		if mask&pb.bit != 0 {
			*pb.v = level
		}
	}
}

// PolarityFromBits unpacks a polarity bitmask.
func PolarityFromBits(b uint32) Polarity {
	var p Polarity
	p.Set(b, true)
	return p
}

func (p *Polarity) fields() []struct {
	bit uint32
	v   *bool
} {
	return []struct {
		bit uint32
		v   *bool
	}{
		{shmem.AxisEnable, &p.Enable},
		{shmem.AxisMaxHardLimit, &p.MaxHardLimit},
		{shmem.AxisMinHardLimit, &p.MinHardLimit},
		{shmem.AxisHomeSwitch, &p.HomeSwitch},
		{shmem.AxisHoming, &p.Homing},
		{shmem.AxisFault, &p.Fault},
	}
}
