// Trajectory planner queue
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package tp queues line and arc segments and advances along them one
// trajectory cycle at a time with a trapezoidal velocity profile.
//
// The same Planner serves the coordinated Cartesian queue and the
// per-joint free-mode planners, which only use the X component of the
// pose. Every segment ends in an exact stop; the termination condition
// is recorded but blending is not performed.
package tp

import (
	"errors"
	"math"

	"emcmot-go/pkg/kinematics"
)

var (
	ErrQueueFull        = errors.New("tp: queue full")
	ErrAborting         = errors.New("tp: cannot queue while aborting")
	ErrInvalidVelocity  = errors.New("tp: velocity must be positive")
	ErrInvalidAccel     = errors.New("tp: acceleration must be positive")
	ErrInvalidCycleTime = errors.New("tp: cycle time must be positive")
	ErrDegenerateCircle = errors.New("tp: circle has zero radius or normal")
)

// DefaultDepth is the queue size used when Config.Depth is zero.
const DefaultDepth = 32

// TermCond selects how a segment hands over to the next one.
type TermCond int32

const (
	TermStop TermCond = iota
	TermBlend
)

// OutputSink receives motion-synchronized digital and analog outputs.
type OutputSink interface {
	SetDout(index int, value bool)
	SetAout(index int, value float64)
}

// Config holds planner limits.
type Config struct {
	CycleTime float64
	Vmax      float64
	Amax      float64
	Vlimit    float64 // 0 means no global cap
	Depth     int
}

// Planner is owned by the control cycle and is not safe for concurrent
// use. Queue storage is allocated once in New.
type Planner struct {
	cycleTime float64
	vMax      float64
	aMax      float64
	vLimit    float64
	vScale    float64
	termCond  TermCond

	ring  []segment
	head  int
	count int

	pos     kinematics.Pose
	goalPos kinematics.Pose
	vel     float64

	nextID int32
	execID int32

	paused   bool
	aborting bool

	pendingDout []syncDout
	pendingAout []syncAout
	sink        OutputSink
}

// New creates a planner. Non-positive limits fall back to 1.
func New(cfg Config) *Planner {
	depth := cfg.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	p := &Planner{
		cycleTime: positiveOr(cfg.CycleTime, 0.001),
		vMax:      positiveOr(cfg.Vmax, 1),
		aMax:      positiveOr(cfg.Amax, 1),
		vLimit:    math.Max(cfg.Vlimit, 0),
		vScale:    1,
		ring:      make([]segment, depth),
	}
	return p
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// SetOutputSink sets the receiver of synchronized outputs.
func (p *Planner) SetOutputSink(s OutputSink) {
	p.sink = s
}

// SetCycleTime sets the trajectory period.
func (p *Planner) SetCycleTime(t float64) error {
	if t <= 0 {
		return ErrInvalidCycleTime
	}
	p.cycleTime = t
	return nil
}

// SetVmax sets the velocity used for subsequently queued segments.
func (p *Planner) SetVmax(v float64) error {
	if v <= 0 {
		return ErrInvalidVelocity
	}
	p.vMax = v
	return nil
}

// SetAmax sets the acceleration used for subsequently queued segments.
func (p *Planner) SetAmax(a float64) error {
	if a <= 0 {
		return ErrInvalidAccel
	}
	p.aMax = a
	return nil
}

// SetVlimit caps the velocity of every segment. Zero or negative
// removes the cap.
func (p *Planner) SetVlimit(v float64) {
	p.vLimit = math.Max(v, 0)
}

// SetVscale scales the velocity of every segment, negative clamps to 0.
func (p *Planner) SetVscale(s float64) {
	p.vScale = math.Max(s, 0)
}

// SetTermCond sets the termination condition for later segments.
func (p *Planner) SetTermCond(tc TermCond) {
	p.termCond = tc
}

// SetID sets the id given to the next queued segment.
func (p *Planner) SetID(id int32) {
	p.nextID = id
}

// NextID returns the id the next queued segment will carry.
func (p *Planner) NextID() int32 { return p.nextID }

// SetPos redefines the current and goal position. Used when the
// planner is idle and the machine position changed under it.
func (p *Planner) SetPos(pos kinematics.Pose) {
	p.pos = pos
	p.goalPos = pos
}

// SetDout arranges for a digital output to change when the next queued
// segment starts and ends.
func (p *Planner) SetDout(index int, start, end bool) {
	p.pendingDout = append(p.pendingDout, syncDout{index, start, end})
}

// SetAout arranges for an analog output to change when the next queued
// segment starts and ends.
func (p *Planner) SetAout(index int, start, end float64) {
	p.pendingAout = append(p.pendingAout, syncAout{index, start, end})
}

// Pos returns the current commanded position.
func (p *Planner) Pos() kinematics.Pose { return p.pos }

// GoalPos returns the position at the end of the queue.
func (p *Planner) GoalPos() kinematics.Pose { return p.goalPos }

// Vel returns the current path velocity.
func (p *Planner) Vel() float64 { return p.vel }

// Vmax returns the velocity applied to new segments.
func (p *Planner) Vmax() float64 { return p.vMax }

// Amax returns the acceleration applied to new segments.
func (p *Planner) Amax() float64 { return p.aMax }

// TermCond returns the active termination condition.
func (p *Planner) TermCond() TermCond { return p.termCond }

// Depth returns the number of queued segments including the active one.
func (p *Planner) Depth() int { return p.count }

// ActiveDepth returns the number of segments currently in motion.
func (p *Planner) ActiveDepth() int {
	if p.count > 0 && p.ring[p.head].started {
		return 1
	}
	return 0
}

// ExecID returns the id of the executing segment, or of the last one
// executed when the queue is empty.
func (p *Planner) ExecID() int32 { return p.execID }

// Full reports whether another segment would be rejected.
func (p *Planner) Full() bool { return p.count == len(p.ring) }

// IsDone reports whether the queue is empty and no abort is pending.
func (p *Planner) IsDone() bool { return p.count == 0 && !p.aborting }

// IsPaused reports whether motion is held.
func (p *Planner) IsPaused() bool { return p.paused }

// Pause decelerates to a stop and holds position, keeping the queue.
func (p *Planner) Pause() { p.paused = true }

// Resume continues after Pause.
func (p *Planner) Resume() { p.paused = false }

// Abort decelerates to a stop and then discards the queue.
func (p *Planner) Abort() {
	if p.count > 0 {
		p.aborting = true
	}
}

// Clear discards the queue immediately, keeping the current position.
func (p *Planner) Clear() {
	for i := range p.ring {
		p.ring[i] = segment{}
	}
	p.head = 0
	p.count = 0
	p.vel = 0
	p.goalPos = p.pos
	p.aborting = false
	p.paused = false
	p.nextID = 0
	p.execID = 0
	p.pendingDout = p.pendingDout[:0]
	p.pendingAout = p.pendingAout[:0]
}

// AddLine queues a straight move from the goal position to end.
func (p *Planner) AddLine(end kinematics.Pose) error {
	if err := p.canAdd(); err != nil {
		return err
	}
	seg := newLine(p.goalPos, end)
	p.push(seg, end)
	return nil
}

// AddCircle queues an arc from the goal position to end about center
// in the plane given by normal, adding turns full revolutions. A
// component of end along the normal gives a helix.
func (p *Planner) AddCircle(end kinematics.Pose, center, normal kinematics.Pose, turns int) error {
	if err := p.canAdd(); err != nil {
		return err
	}
	seg, err := newCircle(p.goalPos, end, center.Tran, normal.Tran, turns)
	if err != nil {
		return err
	}
	p.push(seg, end)
	return nil
}

func (p *Planner) canAdd() error {
	if p.aborting {
		return ErrAborting
	}
	if p.Full() {
		return ErrQueueFull
	}
	return nil
}

func (p *Planner) push(seg segment, end kinematics.Pose) {
	seg.id = p.nextID
	seg.vMax = p.vMax
	seg.aMax = p.aMax
	seg.termCond = p.termCond
	seg.dout = append(seg.dout[:0], p.pendingDout...)
	seg.aout = append(seg.aout[:0], p.pendingAout...)
	p.pendingDout = p.pendingDout[:0]
	p.pendingAout = p.pendingAout[:0]

	idx := (p.head + p.count) % len(p.ring)
	p.ring[idx] = seg
	p.count++
	p.goalPos = end
}

func (p *Planner) pop() {
	p.ring[p.head] = segment{}
	p.head = (p.head + 1) % len(p.ring)
	p.count--
}

// RunCycle advances the active segment by one trajectory period.
func (p *Planner) RunCycle() {
	if p.count == 0 {
		p.vel = 0
		p.aborting = false
		return
	}

	seg := &p.ring[p.head]
	if !seg.started {
		seg.started = true
		p.execID = seg.id
		p.fireStart(seg)
	}

	dt := p.cycleTime
	a := seg.aMax
	vmax := seg.vMax * p.vScale
	if p.vLimit > 0 && vmax > p.vLimit {
		vmax = p.vLimit
	}
	if p.paused || p.aborting {
		vmax = 0
	}

	remaining := seg.length - seg.progress
	v := p.vel + a*dt
	if v > vmax {
		v = math.Max(vmax, p.vel-a*dt)
	}
	// fastest speed from which we can still stop at the segment end
	stop := -0.5*a*dt + math.Sqrt(0.25*a*a*dt*dt+2*a*math.Max(remaining, 0))
	if v > stop {
		v = stop
	}
	if v < 0 {
		v = 0
	}

	if v*dt >= remaining || remaining <= 0 {
		seg.progress = seg.length
		p.pos = seg.end
		p.vel = 0
		p.fireEnd(seg)
		p.pop()
		if p.aborting {
			p.finishAbort()
		}
		return
	}

	seg.progress += v * dt
	p.vel = v
	p.pos = seg.at(seg.progress)

	if p.aborting && v == 0 {
		p.finishAbort()
	}
}

func (p *Planner) finishAbort() {
	pos := p.pos
	p.Clear()
	p.pos = pos
	p.goalPos = pos
}

func (p *Planner) fireStart(seg *segment) {
	if p.sink == nil {
		return
	}
	for _, d := range seg.dout {
		p.sink.SetDout(d.index, d.start)
	}
	for _, a := range seg.aout {
		p.sink.SetAout(a.index, a.start)
	}
}

func (p *Planner) fireEnd(seg *segment) {
	if p.sink == nil {
		return
	}
	for _, d := range seg.dout {
		p.sink.SetDout(d.index, d.end)
	}
	for _, a := range seg.aout {
		p.sink.SetAout(a.index, a.end)
	}
}
