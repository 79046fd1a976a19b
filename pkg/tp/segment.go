// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tp

import (
	"math"

	"github.com/golang/geo/r3"

	"emcmot-go/pkg/kinematics"
)

type segmentKind int

const (
	kindLine segmentKind = iota
	kindCircle
)

type syncDout struct {
	index      int
	start, end bool
}

type syncAout struct {
	index      int
	start, end float64
}

type segment struct {
	kind       segmentKind
	id         int32
	start, end kinematics.Pose
	length     float64
	progress   float64
	started    bool
	vMax, aMax float64
	termCond   TermCond

	// circle geometry
	center    r3.Vector
	normal    r3.Vector
	rTan      r3.Vector // unit, start radius direction
	rPerp     r3.Vector // unit, normal x rTan
	radius    float64
	endRadius float64
	angle     float64
	helix     float64

	dout []syncDout
	aout []syncAout
}

func newLine(start, end kinematics.Pose) segment {
	d := end.Sub(start)
	length := d.Tran.Norm()
	if length == 0 {
		length = math.Sqrt(d.A*d.A + d.B*d.B + d.C*d.C)
	}
	return segment{
		kind:   kindLine,
		start:  start,
		end:    end,
		length: length,
	}
}

func newCircle(start, end kinematics.Pose, center, normal r3.Vector, turns int) (segment, error) {
	if normal.Norm() == 0 {
		return segment{}, ErrDegenerateCircle
	}
	n := normal.Normalize()

	// project radius vectors into the plane of the circle
	rs := start.Tran.Sub(center)
	rs = rs.Sub(n.Mul(rs.Dot(n)))
	re := end.Tran.Sub(center)
	helix := re.Dot(n) - start.Tran.Sub(center).Dot(n)
	re = re.Sub(n.Mul(re.Dot(n)))

	radius := rs.Norm()
	if radius == 0 {
		return segment{}, ErrDegenerateCircle
	}
	rTan := rs.Normalize()
	rPerp := n.Cross(rTan)

	angle := math.Atan2(rs.Cross(re).Dot(n), rs.Dot(re))
	if angle <= 0 {
		angle += 2 * math.Pi
	}
	if turns > 0 {
		angle += 2 * math.Pi * float64(turns)
	}

	endRadius := re.Norm()
	meanRadius := 0.5 * (radius + endRadius)
	arc := angle * meanRadius
	return segment{
		kind:      kindCircle,
		start:     start,
		end:       end,
		length:    math.Sqrt(arc*arc + helix*helix),
		center:    center,
		normal:    n,
		rTan:      rTan,
		rPerp:     rPerp,
		radius:    radius,
		endRadius: endRadius,
		angle:     angle,
		helix:     helix,
	}, nil
}

// at returns the pose at path distance s along the segment.
func (s *segment) at(dist float64) kinematics.Pose {
	if s.length == 0 {
		return s.end
	}
	f := dist / s.length
	d := s.end.Sub(s.start)
	pos := kinematics.Pose{
		A: s.start.A + d.A*f,
		B: s.start.B + d.B*f,
		C: s.start.C + d.C*f,
	}
	switch s.kind {
	case kindCircle:
		theta := s.angle * f
		r := s.radius + (s.endRadius-s.radius)*f
		radial := s.rTan.Mul(math.Cos(theta)).Add(s.rPerp.Mul(math.Sin(theta))).Mul(r)
		base := s.center.Add(s.normal.Mul(s.start.Tran.Sub(s.center).Dot(s.normal)))
		pos.Tran = base.Add(radial).Add(s.normal.Mul(s.helix * f))
	default:
		pos.Tran = s.start.Tran.Add(d.Tran.Mul(f))
	}
	return pos
}
