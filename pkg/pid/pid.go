// Servo position loop controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pid

import (
	"errors"
	"math"
)

var ErrInvalidCycleTime = errors.New("pid: cycle time must be positive")

// Gains holds the loop tuning for one joint. The struct is plain data so
// it can be carried in the shared configuration block.
type Gains struct {
	P        float64 // Proportional gain
	I        float64 // Integral gain
	D        float64 // Derivative gain
	FF0      float64 // Position feed-forward
	FF1      float64 // Velocity feed-forward
	FF2      float64 // Acceleration feed-forward
	Backlash float64 // Backlash magnitude used by compensation
	Bias     float64 // Constant output offset
	MaxError float64 // Error clamp, 0 disables
	Deadband float64 // Errors within the band are treated as zero
}

// Controller is a discrete PID with command feed-forward. It is owned by
// the control cycle and is not safe for concurrent use.
type Controller struct {
	gains     Gains
	cycleTime float64

	maxOutput float64 // symmetric bound used for integral anti-windup

	integral  float64
	prevError float64
	prevCmd   float64
	prevCmdD  float64
	primed    bool

	lastError  float64
	lastOutput float64
}

// New creates a controller with the given gains and a 1ms cycle.
func New(g Gains) *Controller {
	return &Controller{gains: g, cycleTime: 0.001}
}

// Gains returns the active tuning.
func (c *Controller) Gains() Gains {
	return c.gains
}

// SetGains replaces the tuning and resets the integral term.
func (c *Controller) SetGains(g Gains) {
	c.gains = g
	c.integral = 0
}

// SetCycleTime sets the sample period in seconds.
func (c *Controller) SetCycleTime(t float64) error {
	if t <= 0 {
		return ErrInvalidCycleTime
	}
	c.cycleTime = t
	return nil
}

// SetOutputLimit bounds the integral contribution to +/-limit.
// Zero disables the bound.
func (c *Controller) SetOutputLimit(limit float64) {
	c.maxOutput = math.Abs(limit)
}

// Reset clears integrator and history, e.g. when the loop is closed.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.prevCmd = 0
	c.prevCmdD = 0
	c.primed = false
	c.lastError = 0
	c.lastOutput = 0
}

// LastError returns the error used in the most recent Run.
func (c *Controller) LastError() float64 {
	return c.lastError
}

// LastOutput returns the most recent output.
func (c *Controller) LastOutput() float64 {
	return c.lastOutput
}

// Run computes one sample from feedback and command positions.
func (c *Controller) Run(feedback, command float64) float64 {
	g := c.gains
	dt := c.cycleTime

	err := command - feedback
	if math.Abs(err) <= g.Deadband {
		err = 0
	}
	if g.MaxError > 0 {
		err = clamp(err, -g.MaxError, g.MaxError)
	}

	if !c.primed {
		c.prevError = err
		c.prevCmd = command
		c.prevCmdD = 0
		c.primed = true
	}

	c.integral += err * dt
	if g.I != 0 && c.maxOutput > 0 {
		limit := c.maxOutput / math.Abs(g.I)
		c.integral = clamp(c.integral, -limit, limit)
	}

	deriv := (err - c.prevError) / dt
	cmdD := (command - c.prevCmd) / dt
	cmdDD := (cmdD - c.prevCmdD) / dt

	out := g.Bias +
		g.P*err +
		g.I*c.integral +
		g.D*deriv +
		g.FF0*command +
		g.FF1*cmdD +
		g.FF2*cmdDD

	c.prevError = err
	c.prevCmd = command
	c.prevCmdD = cmdD
	c.lastError = err
	c.lastOutput = out
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
