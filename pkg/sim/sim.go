// Simulated servo machine
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package sim is a software machine behind the motion.IO interface. Each
// axis is a drive whose encoder either follows the DAC value directly
// (position drive) or integrates it as a velocity (velocity drive), with
// limit and home switches, an index pulse and fault injection.
//
// The servo cycle calls into a Machine while tests or the daemon may
// inject faults from another goroutine; a mutex guards the state and is
// held only for the duration of a call.
package sim

import (
	"math"
	"sync"
)

// DriveMode selects how a DAC value moves an axis.
type DriveMode int

const (
	// PositionDrive moves the axis to Gain*dac each cycle.
	PositionDrive DriveMode = iota
	// VelocityDrive moves the axis at Gain*dac units per second.
	VelocityDrive
)

// AxisConfig describes the switches and drive of one simulated axis.
// Positions are in encoder counts.
type AxisConfig struct {
	Mode DriveMode
	Gain float64

	MinSwitch float64 // min limit trips at or below
	MaxSwitch float64 // max limit trips at or above
	HomeLow   float64 // home switch is active between HomeLow and HomeHigh
	HomeHigh  float64

	IndexSpacing float64 // distance between index pulses, 0 disables
}

// DefaultAxis returns a position-drive axis with switches far away.
func DefaultAxis() AxisConfig {
	return AxisConfig{
		Mode:      PositionDrive,
		Gain:      1,
		MinSwitch: math.Inf(-1),
		MaxSwitch: math.Inf(1),
		HomeLow:   math.Inf(1),
		HomeHigh:  math.Inf(1),
	}
}

type axis struct {
	cfg AxisConfig

	pos     float64
	dac     float64
	glitch  float64
	amp     bool
	fault   bool
	armed   bool
	latched bool
	lastIdx float64
}

// Machine is a set of simulated axes plus digital and analog IO.
type Machine struct {
	mu     sync.Mutex
	period float64
	axes   []axis

	din  map[int]bool
	dout map[int]bool
	aout map[int]float64

	watchdog    bool
	watchdogCnt int
}

// New creates a machine with n default axes advancing by period
// seconds per servo cycle.
func New(n int, period float64) *Machine {
	m := &Machine{
		period: period,
		axes:   make([]axis, n),
		din:    make(map[int]bool),
		dout:   make(map[int]bool),
		aout:   make(map[int]float64),
	}
	for i := range m.axes {
		m.axes[i].cfg = DefaultAxis()
	}
	return m
}

// Configure replaces the configuration of axis i.
func (m *Machine) Configure(i int, cfg AxisConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		a.cfg = cfg
		a.lastIdx = a.pos
	}
}

func (m *Machine) get(i int) *axis {
	if i < 0 || i >= len(m.axes) {
		return nil
	}
	return &m.axes[i]
}

// SetPosition moves axis i instantly.
func (m *Machine) SetPosition(i int, pos float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		a.pos = pos
		a.lastIdx = pos
	}
}

// Position returns the encoder count of axis i.
func (m *Machine) Position(i int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		return a.pos
	}
	return 0
}

// DAC returns the last raw output written to axis i.
func (m *Machine) DAC(i int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		return a.dac
	}
	return 0
}

// AmpEnabled reports the amplifier enable level of axis i.
func (m *Machine) AmpEnabled(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		return a.amp
	}
	return false
}

// SetFault drives the amplifier fault line of axis i.
func (m *Machine) SetFault(i int, fault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		a.fault = fault
	}
}

// Glitch adds delta to the next encoder reading of axis i only.
func (m *Machine) Glitch(i int, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		a.glitch += delta
	}
}

// SetDin sets a digital input level.
func (m *Machine) SetDin(index int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.din[index] = level
}

// Dout returns a digital output level.
func (m *Machine) Dout(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dout[index]
}

// Aout returns an analog output value.
func (m *Machine) Aout(index int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aout[index]
}

// WatchdogToggles returns how many times the watchdog line changed.
func (m *Machine) WatchdogToggles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchdogCnt
}

// ReadEncoders implements motion.IO.
func (m *Machine) ReadEncoders(raw []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range raw {
		a := m.get(i)
		if a == nil {
			raw[i] = 0
			continue
		}
		raw[i] = a.pos + a.glitch
		a.glitch = 0
	}
}

// ResetIndex implements motion.IO.
func (m *Machine) ResetIndex(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		a.armed = true
		a.latched = false
		a.lastIdx = a.pos
	}
}

// ReadLatch implements motion.IO.
func (m *Machine) ReadLatch(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		return a.latched
	}
	return false
}

// MaxLimitSwitch implements motion.IO.
func (m *Machine) MaxLimitSwitch(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.get(i)
	return a != nil && a.pos >= a.cfg.MaxSwitch
}

// MinLimitSwitch implements motion.IO.
func (m *Machine) MinLimitSwitch(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.get(i)
	return a != nil && a.pos <= a.cfg.MinSwitch
}

// HomeSwitch implements motion.IO.
func (m *Machine) HomeSwitch(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.get(i)
	return a != nil && a.pos >= a.cfg.HomeLow && a.pos <= a.cfg.HomeHigh
}

// AmpFault implements motion.IO.
func (m *Machine) AmpFault(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.get(i)
	return a != nil && a.fault
}

// AmpEnable implements motion.IO.
func (m *Machine) AmpEnable(i int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.get(i); a != nil {
		a.amp = level
	}
}

// WriteDACs implements motion.IO. It also advances the simulation by
// one servo period.
func (m *Machine) WriteDACs(raw []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range raw {
		a := m.get(i)
		if a == nil {
			continue
		}
		a.dac = v
		if !a.amp {
			continue
		}
		switch a.cfg.Mode {
		case PositionDrive:
			a.pos = a.cfg.Gain * v
		case VelocityDrive:
			a.pos += a.cfg.Gain * v * m.period
		}
		a.checkIndex()
	}
}

// checkIndex latches when the axis crossed an index pulse since the
// latch was armed.
func (a *axis) checkIndex() {
	sp := a.cfg.IndexSpacing
	if !a.armed || a.latched || sp <= 0 {
		return
	}
	if math.Floor(a.pos/sp) != math.Floor(a.lastIdx/sp) {
		a.latched = true
		a.armed = false
	}
	a.lastIdx = a.pos
}

// ReadDin implements motion.IO.
func (m *Machine) ReadDin(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.din[index]
}

// SetDout implements motion.IO.
func (m *Machine) SetDout(index int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dout[index] = level
}

// SetAout implements motion.IO.
func (m *Machine) SetAout(index int, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aout[index] = value
}

// Watchdog implements motion.IO.
func (m *Machine) Watchdog(level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level != m.watchdog {
		m.watchdogCnt++
	}
	m.watchdog = level
}
