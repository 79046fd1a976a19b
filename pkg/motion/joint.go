// Per-joint state of the motion controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"fmt"
	"math"

	"emcmot-go/pkg/cubic"
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/pid"
	"emcmot-go/pkg/tp"
)

// Debounce thresholds, in servo cycles.
const (
	limitSwitchDebounce   = 10
	ampFaultDebounce      = 100
	positionInputDebounce = 10
)

// HomingPhase is the step of a joint's homing sequence.
type HomingPhase int32

const (
	HomeIdle HomingPhase = iota
	// HomeSeekSwitch moves toward the home switch.
	HomeSeekSwitch
	// HomeSeekIndex queues the move back across the index.
	HomeSeekIndex
	// HomeLatch waits for the index latch.
	HomeLatch
	// HomeBackoff waits for the stop, then queues the final move.
	HomeBackoff
	// HomeFinal waits for the final move and establishes home.
	HomeFinal
)

func (p HomingPhase) String() string {
	switch p {
	case HomeIdle:
		return "idle"
	case HomeSeekSwitch:
		return "seek-switch"
	case HomeSeekIndex:
		return "seek-index"
	case HomeLatch:
		return "latch"
	case HomeBackoff:
		return "backoff"
	case HomeFinal:
		return "final"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// JointConfig holds the tunables of one joint.
type JointConfig struct {
	MinLimit   float64
	MaxLimit   float64
	MinOutput  float64
	MaxOutput  float64
	MinFerror  float64
	MaxFerror  float64
	LimitVel   float64
	HomingVel  float64
	HomeOffset float64
	Polarity   Polarity
	SetupTime  float64
	HoldTime   float64
}

// Joint is one controlled degree of freedom.
type Joint struct {
	Config JointConfig
	Flags  JointFlags
	Phase  HomingPhase

	InputScale   float64
	InputOffset  float64
	OutputScale  float64
	OutputOffset float64
	Home         float64

	RawInput      float64
	Input         float64
	OldInput      float64
	oldInputValid bool

	Pos       float64 // interpolated command
	OldPos    float64
	CoarsePos float64 // trajectory-rate command
	Vel       float64

	Output    float64
	RawOutput float64

	Ferror         float64
	FerrorLimit    float64
	FerrorHighMark float64

	SaveLatch float64
	BigVel    float64

	maxLimitCount    int
	minLimitCount    int
	ampFaultCount    int
	badFeedbackCount int

	backlash backlash
	dir      int

	cubic *cubic.Interpolator
	free  *tp.Planner
	pid   *pid.Controller
}

func newJoint(cfg tp.Config) Joint {
	return Joint{
		Config: JointConfig{
			MinLimit:  -1,
			MaxLimit:  1,
			MinOutput: -10,
			MaxOutput: 10,
			MinFerror: 0.01,
			MaxFerror: 1,
			Polarity:  DefaultPolarity(),
			SetupTime: 1,
			HoldTime:  1,
		},
		InputScale:  1,
		OutputScale: 1,
		dir:         1,
		cubic:       cubic.New(),
		free:        tp.New(cfg),
		pid:         pid.New(pid.Gains{}),
	}
}

// Range is the distance between the position limits.
func (j *Joint) Range() float64 {
	return j.Config.MaxLimit - j.Config.MinLimit
}

// InRange reports whether pos lies within the position limits.
func (j *Joint) InRange(pos float64) bool {
	return pos >= j.Config.MinLimit && pos <= j.Config.MaxLimit
}

// FerrorThreshold is the following error allowed at velocity vel. It
// grows linearly from MinFerror up to MaxFerror at limitVel.
func (j *Joint) FerrorThreshold(limitVel, vel float64) float64 {
	limit := j.Config.MinFerror
	if limitVel > 0 {
		if scaled := j.Config.MaxFerror / limitVel * math.Abs(vel); scaled > limit {
			limit = scaled
		}
	}
	return limit
}

// Gains returns the servo loop tuning.
func (j *Joint) Gains() pid.Gains {
	return j.pid.Gains()
}

// FreePlanner returns the joint-mode planner.
func (j *Joint) FreePlanner() *tp.Planner {
	return j.free
}

// Interpolator returns the joint's cubic interpolator.
func (j *Joint) Interpolator() *cubic.Interpolator {
	return j.cubic
}

func freePose(x float64) kinematics.Pose {
	var p kinematics.Pose
	p.Tran.X = x
	return p
}

func (j *Joint) syncFree() {
	j.free.SetPos(freePose(j.Pos))
}

// backlash meters out the compensation for a direction reversal along
// a ramp whose step grows and shrinks by acc*dt*dt per cycle.
type backlash struct {
	applied  float64 // compensation in effect this cycle
	dir      int
	done     bool
	start    float64
	d        float64
	total    float64
	half     float64
	step     float64
	stepStep float64
}

func (b *backlash) update(delta, magnitude, acc, dt float64) {
	switch {
	case delta > 0:
		b.reverse(1, magnitude/2, acc, dt)
	case delta < 0:
		b.reverse(-1, -magnitude/2, acc, dt)
	}
	if b.done {
		return
	}

	b.applied = b.start + b.d
	if b.total > 0 {
		if b.d < b.half {
			b.step += b.stepStep
			b.d += b.step
		} else if b.d < b.total {
			b.step -= b.stepStep
			b.d += b.step
		}
		b.done = b.d >= b.total || b.step <= 0
	} else {
		if b.d > b.half {
			b.step += b.stepStep
			b.d -= b.step
		} else if b.d > b.total {
			b.step -= b.stepStep
			b.d -= b.step
		}
		b.done = b.d <= b.total || b.step <= 0
	}
	if b.done {
		b.d = b.total
		b.applied = b.start + b.total
	}
}

func (b *backlash) reverse(dir int, target, acc, dt float64) {
	if b.dir == dir {
		return
	}
	b.dir = dir
	b.done = false
	b.start = b.applied
	b.d = 0
	b.total = target - b.applied
	b.half = b.total / 2
	b.stepStep = acc * dt * dt
	b.step = -0.5 * b.stepStep
}
