// Cubic sub-interpolation of coarse trajectory setpoints
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package cubic turns a stream of setpoints produced at the trajectory
// rate into a smooth curve sampled at the servo rate.
//
// The four most recent setpoints are blended into two waypoints
// (uniform cubic B-spline weights 1/6, 4/6, 1/6) and a Hermite cubic is
// fitted between them, matching position and central-difference
// velocity at both ends. Consecutive segments therefore join with
// continuous position and velocity.
package cubic

import (
	"errors"
)

var (
	ErrInvalidSegmentTime = errors.New("cubic: segment time must be positive")
	ErrInvalidRate        = errors.New("cubic: interpolation rate must be positive")
	ErrNotConfigured      = errors.New("cubic: segment time and interpolation rate not set")
	ErrPointNotNeeded     = errors.New("cubic: point added before it was needed")
)

// Sample is one evaluation of the current cubic.
type Sample struct {
	Pos  float64
	Vel  float64
	Acc  float64
	Jerk float64
}

// Interpolator holds the sliding window of setpoints for one joint.
// It is not safe for concurrent use; each joint owns its own.
type Interpolator struct {
	x0, x1, x2, x3 float64

	wp0, wp1       float64
	velWp0, velWp1 float64

	a, b, c, d float64

	segmentTime float64
	rate        int
	step        float64
	elapsed     float64

	segmentSet bool
	rateSet    bool
	needNext   bool
	filled     bool
}

// New returns a drained interpolator with no configuration.
func New() *Interpolator {
	ci := &Interpolator{}
	ci.Init()
	return ci
}

// Init clears all state including configuration.
func (ci *Interpolator) Init() {
	*ci = Interpolator{needNext: true}
}

// SetSegmentTime sets the trajectory period the interpolator spans.
func (ci *Interpolator) SetSegmentTime(t float64) error {
	if t <= 0 {
		return ErrInvalidSegmentTime
	}
	ci.segmentTime = t
	ci.segmentSet = true
	ci.updateStep()
	return nil
}

// SetInterpolationRate sets the number of servo sub-steps per segment.
func (ci *Interpolator) SetInterpolationRate(n int) error {
	if n <= 0 {
		return ErrInvalidRate
	}
	ci.rate = n
	ci.rateSet = true
	ci.updateStep()
	return nil
}

func (ci *Interpolator) updateStep() {
	if ci.segmentSet && ci.rateSet {
		ci.step = ci.segmentTime / float64(ci.rate)
	}
}

// Configured reports whether both segment time and rate are set.
func (ci *Interpolator) Configured() bool {
	return ci.segmentSet && ci.rateSet
}

// Filled reports whether at least one point has been added since the
// last drain.
func (ci *Interpolator) Filled() bool {
	return ci.filled
}

// NeedNextPoint reports whether the current segment is exhausted.
func (ci *Interpolator) NeedNextPoint() bool {
	return ci.needNext
}

// SegmentTime returns the configured segment duration.
func (ci *Interpolator) SegmentTime() float64 {
	return ci.segmentTime
}

// Rate returns the configured number of sub-steps per segment.
func (ci *Interpolator) Rate() int {
	return ci.rate
}

// Elapsed returns the time into the current segment.
func (ci *Interpolator) Elapsed() float64 {
	return ci.elapsed
}

// Waypoints returns the blended start and end positions of the current
// segment.
func (ci *Interpolator) Waypoints() (float64, float64) {
	return ci.wp0, ci.wp1
}

// AddPoint shifts x into the window and fits a new segment. The first
// point after a drain seeds the whole window, giving a zero-velocity
// start.
func (ci *Interpolator) AddPoint(x float64) error {
	if !ci.Configured() {
		return ErrNotConfigured
	}
	if !ci.needNext {
		return ErrPointNotNeeded
	}

	if !ci.filled {
		ci.x0, ci.x1, ci.x2, ci.x3 = x, x, x, x
		ci.filled = true
	} else {
		ci.x0, ci.x1, ci.x2, ci.x3 = ci.x1, ci.x2, ci.x3, x
	}

	ci.wp0 = (ci.x0 + 4.0*ci.x1 + ci.x2) / 6.0
	ci.wp1 = (ci.x1 + 4.0*ci.x2 + ci.x3) / 6.0

	t := ci.segmentTime
	ci.velWp0 = (ci.x2 - ci.x0) / (2.0 * t)
	ci.velWp1 = (ci.x3 - ci.x1) / (2.0 * t)

	ci.d = ci.wp0
	ci.c = ci.velWp0
	ci.b = 3.0*(ci.wp1-ci.wp0)/(t*t) - (2.0*ci.velWp0+ci.velWp1)/t
	ci.a = (ci.velWp1-ci.velWp0)/(3.0*t*t) - 2.0*ci.b/(3.0*t)

	ci.elapsed = 0
	ci.needNext = false
	return nil
}

// Interpolate evaluates the cubic at the current time and advances one
// sub-step. If the owner did not service NeedNextPoint, the last point
// is repeated so the output holds rather than running off the curve.
// An unconfigured or empty interpolator yields a zero sample.
func (ci *Interpolator) Interpolate() Sample {
	if !ci.Configured() || !ci.filled {
		return Sample{}
	}
	if ci.needNext {
		// cannot fail: configured and a point is needed
		_ = ci.AddPoint(ci.x3)
	}

	s := ci.eval(ci.elapsed)

	ci.elapsed += ci.step
	if ci.elapsed >= ci.segmentTime-0.5*ci.step {
		ci.elapsed = ci.segmentTime
		ci.needNext = true
	}
	return s
}

// EndPosition returns the current cubic evaluated at the segment end.
func (ci *Interpolator) EndPosition() float64 {
	return ci.eval(ci.segmentTime).Pos
}

func (ci *Interpolator) eval(t float64) Sample {
	t2 := t * t
	t3 := t2 * t
	return Sample{
		Pos:  ci.a*t3 + ci.b*t2 + ci.c*t + ci.d,
		Vel:  3.0*ci.a*t2 + 2.0*ci.b*t + ci.c,
		Acc:  6.0*ci.a*t + 2.0*ci.b,
		Jerk: 6.0 * ci.a,
	}
}

// Drain discards all points and marks the interpolator as needing a
// point. Configuration is kept.
func (ci *Interpolator) Drain() {
	segmentTime, rate := ci.segmentTime, ci.rate
	segmentSet, rateSet := ci.segmentSet, ci.rateSet
	*ci = Interpolator{
		segmentTime: segmentTime,
		rate:        rate,
		segmentSet:  segmentSet,
		rateSet:     rateSet,
		needNext:    true,
	}
	ci.updateStep()
}

// Offset translates the stored curve by delta without changing its
// shape, for use when the coordinate origin moves under it.
func (ci *Interpolator) Offset(delta float64) {
	ci.x0 += delta
	ci.x1 += delta
	ci.x2 += delta
	ci.x3 += delta
	ci.wp0 += delta
	ci.wp1 += delta
	ci.d += delta
}
