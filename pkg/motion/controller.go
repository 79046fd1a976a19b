// Real-time motion controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package motion is the real-time kernel of the machine controller. A
// Controller owns the joints and the trajectory planners and exchanges
// commands and status with the supervisor through a shmem.Shmem.
//
// RunCycle is called once per servo period from a single goroutine.
// Nothing reachable from it blocks; diagnostics leave through the
// shared error ring and an optional non-blocking log mailbox.
package motion

import (
	"fmt"
	"time"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/log"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/tp"
)

// Options configure a Controller.
type Options struct {
	NumJoints      int
	ServoCycleTime float64 // seconds
	TrajCycleTime  float64 // seconds, rounded to a multiple of the servo period
	Vmax           float64
	Amax           float64
	LimitVel       float64
	QueueDepth     int

	// Clock returns seconds on a monotonic scale. Defaults to wall time.
	Clock func() float64

	// Mailbox receives a copy of every reported error.
	Mailbox *log.Mailbox
}

func (o *Options) setDefaults() {
	if o.NumJoints == 0 {
		o.NumJoints = 3
	}
	if o.ServoCycleTime == 0 {
		o.ServoCycleTime = 0.001
	}
	if o.TrajCycleTime == 0 {
		o.TrajCycleTime = 10 * o.ServoCycleTime
	}
	if o.Vmax == 0 {
		o.Vmax = 1
	}
	if o.Amax == 0 {
		o.Amax = 10
	}
	if o.LimitVel == 0 {
		o.LimitVel = o.Vmax
	}
	if o.Clock == nil {
		epoch := time.Now()
		o.Clock = func() float64 { return time.Since(epoch).Seconds() }
	}
}

// Controller is the explicit context of the real-time side.
type Controller struct {
	shm     *shmem.Shmem
	io      IO
	kins    kinematics.Kinematics
	clock   func() float64
	mailbox *log.Mailbox

	numJoints int
	joints    [shmem.MaxJoints]Joint
	queue     *tp.Planner

	servoCycleTime float64
	trajCycleTime  float64
	interpRate     int
	interpCounter  int

	vel      float64
	acc      float64
	limitVel float64
	debug    int32

	probeIndex    int
	probePolarity bool

	// requested modes, honoured by the cycle
	enabling      bool
	coordinating  bool
	teleoperating bool

	motion    MotionFlags
	pos       kinematics.Pose
	actualPos kinematics.Pose
	worldHome kinematics.Pose

	allHomed       bool
	rehomeAll      bool
	overrideLimits bool
	overriding     bool
	onLimit        bool
	wasOnLimit     bool
	paused         bool
	stepping       bool
	idForStep      int32
	qVscale        float64
	vscale         [shmem.MaxJoints]float64

	teleop teleop
	probe  probe
	wd     watchdog
	dlog   datalog
	timing timing

	inputLevel bool

	commandNumEcho uint32
	commandEcho    shmem.CommandCode
	commandStatus  shmem.CommandStatus
	configNum      uint32
	configDirty    bool
	split          uint32
	heartbeat      uint32

	// scratch, sized once
	cmd    shmem.Command
	status shmem.Status
	config shmem.Config
	dbg    shmem.Debug
	raw    []float64
	coarse []float64
	homes  []float64
}

// NewController creates a disabled controller in free mode with every
// joint inactive, and publishes its initial status and configuration.
func NewController(opts Options, shm *shmem.Shmem, io IO, kins kinematics.Kinematics) (*Controller, error) {
	opts.setDefaults()
	if opts.NumJoints < 1 || opts.NumJoints > shmem.MaxJoints {
		return nil, errors.RuntimeErrorInit("motion",
			fmt.Sprintf("joint count %d outside 1..%d", opts.NumJoints, shmem.MaxJoints))
	}
	if opts.ServoCycleTime <= 0 || opts.TrajCycleTime < opts.ServoCycleTime {
		return nil, errors.RuntimeErrorInit("motion",
			fmt.Sprintf("servo period %g and trajectory period %g", opts.ServoCycleTime, opts.TrajCycleTime))
	}
	if kins == nil {
		kins = kinematics.Trivial{}
	}

	c := &Controller{
		shm:       shm,
		io:        io,
		kins:      kins,
		clock:     opts.Clock,
		mailbox:   opts.Mailbox,
		numJoints: opts.NumJoints,
		vel:       opts.Vmax,
		acc:       opts.Amax,
		limitVel:  opts.LimitVel,
		qVscale:   1,
		raw:       make([]float64, shmem.MaxJoints),
		coarse:    make([]float64, shmem.MaxJoints),
		homes:     make([]float64, shmem.MaxJoints),

		probePolarity: true,
	}

	cfg := tp.Config{
		CycleTime: opts.TrajCycleTime,
		Vmax:      opts.Vmax,
		Amax:      opts.Amax,
		Vlimit:    opts.LimitVel,
		Depth:     opts.QueueDepth,
	}
	c.queue = tp.New(cfg)
	c.queue.SetOutputSink(io)
	cfg.Depth = 0
	cfg.Vlimit = 0
	for i := range c.joints {
		c.joints[i] = newJoint(cfg)
		c.joints[i].Config.LimitVel = opts.LimitVel
		c.joints[i].BigVel = 10 * opts.LimitVel
		c.joints[i].Flags.Inpos = true
		c.vscale[i] = 1
	}
	c.motion.Inpos = true
	if err := c.setCycleTimes(opts.ServoCycleTime, opts.TrajCycleTime); err != nil {
		return nil, errors.Wrap(err, errors.ErrRuntimeInit, "motion timing")
	}
	c.timing.reset()

	c.configDirty = true
	c.publish()
	return c, nil
}

func (c *Controller) setCycleTimes(servo, traj float64) error {
	if servo <= 0 || traj <= 0 {
		return errInvalidCycleTime
	}
	rate := int(traj/servo + 0.5)
	if rate < 1 {
		rate = 1
	}
	segment := float64(rate) * servo

	c.servoCycleTime = servo
	c.trajCycleTime = segment
	c.interpRate = rate
	if err := c.queue.SetCycleTime(segment); err != nil {
		return err
	}
	for i := range c.joints {
		j := &c.joints[i]
		if err := j.free.SetCycleTime(segment); err != nil {
			return err
		}
		if err := j.cubic.SetSegmentTime(segment); err != nil {
			return err
		}
		if err := j.cubic.SetInterpolationRate(rate); err != nil {
			return err
		}
		if err := j.pid.SetCycleTime(servo); err != nil {
			return err
		}
	}
	return nil
}

// Joint returns joint i for inspection. The pointer must only be used
// from the goroutine running the cycle.
func (c *Controller) Joint(i int) *Joint {
	if i < 0 || i >= shmem.MaxJoints {
		return nil
	}
	return &c.joints[i]
}

// NumJoints returns the number of joints in use.
func (c *Controller) NumJoints() int { return c.numJoints }

// Motion returns the machine mode flags.
func (c *Controller) Motion() MotionFlags { return c.motion }

// Pos returns the commanded Cartesian pose.
func (c *Controller) Pos() kinematics.Pose { return c.pos }

// ActualPos returns the Cartesian pose derived from feedback.
func (c *Controller) ActualPos() kinematics.Pose { return c.actualPos }

// ServoCycleTime returns the servo period in seconds.
func (c *Controller) ServoCycleTime() float64 { return c.servoCycleTime }

// TrajCycleTime returns the trajectory period in seconds.
func (c *Controller) TrajCycleTime() float64 { return c.trajCycleTime }

// Queue returns the coordinated-mode planner.
func (c *Controller) Queue() *tp.Planner { return c.queue }

// reportError queues a message for the supervisor. It never blocks; a
// full ring drops the message.
func (c *Controller) reportError(axis int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.shm.Errors.Put(msg)
	if c.mailbox != nil {
		fields := log.Fields{"heartbeat": c.heartbeat}
		if axis >= 0 {
			fields["axis"] = axis
		}
		c.mailbox.Post(log.ERROR, msg, fields)
	}
}

func (c *Controller) markConfigChange() {
	c.configNum++
	c.configDirty = true
}

func (c *Controller) isHoming() bool {
	for i := 0; i < c.numJoints; i++ {
		if c.joints[i].Flags.Homing {
			return true
		}
	}
	return false
}

// clearHomes forgets homing after a joint-mode move on machines that
// cannot recompute world position from joints.
func (c *Controller) clearHomes(axis int) {
	if c.kins.Type() == kinematics.InverseOnly {
		if c.rehomeAll {
			for i := range c.joints {
				c.joints[i].Flags.Homed = false
			}
		} else {
			c.joints[axis].Flags.Homed = false
		}
	}
	c.allHomed = false
}

// inRange reports whether pos maps to joint positions inside the limits
// of every active joint.
func (c *Controller) inRange(pos kinematics.Pose) bool {
	joints := c.coarse[:c.numJoints]
	for i := range joints {
		joints[i] = 0
	}
	if err := c.kins.Inverse(pos, joints); err != nil {
		return false
	}
	for i, p := range joints {
		j := &c.joints[i]
		if j.Flags.Active && !j.InRange(p) {
			return false
		}
	}
	return true
}

// limitsClear reports whether no active joint sits on a limit.
func (c *Controller) limitsClear() bool {
	for i := 0; i < c.numJoints; i++ {
		j := &c.joints[i]
		if j.Flags.Active && j.Flags.OnLimit() {
			return false
		}
	}
	return true
}

// jogAllowed rejects jogs that would drive further onto a limit.
func (c *Controller) jogAllowed(axis int, vel float64) bool {
	if c.overrideLimits {
		return true
	}
	f := c.joints[axis].Flags
	switch {
	case vel > 0 && f.MaxSoftLimit:
		c.reportError(axis, "can't jog axis %d further past max soft limit", axis)
	case vel > 0 && f.MaxHardLimit:
		c.reportError(axis, "can't jog axis %d further past max hard limit", axis)
	case vel < 0 && f.MinSoftLimit:
		c.reportError(axis, "can't jog axis %d further past min soft limit", axis)
	case vel < 0 && f.MinHardLimit:
		c.reportError(axis, "can't jog axis %d further past min hard limit", axis)
	default:
		return true
	}
	return false
}

func (c *Controller) drainAll() {
	for i := range c.joints {
		c.joints[i].cubic.Drain()
	}
}

func (c *Controller) syncFreePlanners() {
	for i := range c.joints {
		c.joints[i].syncFree()
	}
}

func (c *Controller) abortAll() {
	c.queue.Abort()
	for i := range c.joints {
		c.joints[i].free.Abort()
	}
}
