// Hardware access used by the control cycle
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

// IO is the signal layer between the controller and the machine. Every
// method is called from the servo cycle and must return without
// blocking. Digital levels are raw; the controller compares them with
// the configured polarity.
type IO interface {
	// ReadEncoders latches all feedback counts into raw.
	ReadEncoders(raw []float64)
	// ResetIndex arms the index latch of an axis.
	ResetIndex(axis int)
	// ReadLatch reports whether the armed index latch has fired.
	ReadLatch(axis int) bool

	MaxLimitSwitch(axis int) bool
	MinLimitSwitch(axis int) bool
	HomeSwitch(axis int) bool
	AmpFault(axis int) bool
	AmpEnable(axis int, level bool)

	// WriteDACs sends the raw output of every axis.
	WriteDACs(raw []float64)

	ReadDin(index int) bool
	SetDout(index int, level bool)
	SetAout(index int, value float64)

	// Watchdog drives the external watchdog line.
	Watchdog(level bool)
}
