// Package kinematics converts between joint space and Cartesian space.
package kinematics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

var (
	ErrTooFewJoints = errors.New("kinematics: not enough joints for this machine")
	ErrUnknownType  = errors.New("kinematics: unsupported kinematics type")
)

// Pose is a Cartesian position with three rotary axes. It contains no
// pointers so it can live in the shared-memory blocks.
type Pose struct {
	Tran    r3.Vector
	A, B, C float64
}

// Add returns p+q component-wise.
func (p Pose) Add(q Pose) Pose {
	return Pose{Tran: p.Tran.Add(q.Tran), A: p.A + q.A, B: p.B + q.B, C: p.C + q.C}
}

// Sub returns p-q component-wise.
func (p Pose) Sub(q Pose) Pose {
	return Pose{Tran: p.Tran.Sub(q.Tran), A: p.A - q.A, B: p.B - q.B, C: p.C - q.C}
}

// Mul scales every component by k.
func (p Pose) Mul(k float64) Pose {
	return Pose{Tran: p.Tran.Mul(k), A: p.A * k, B: p.B * k, C: p.C * k}
}

// Axis returns component i in X,Y,Z,A,B,C order.
func (p Pose) Axis(i int) float64 {
	switch i {
	case 0:
		return p.Tran.X
	case 1:
		return p.Tran.Y
	case 2:
		return p.Tran.Z
	case 3:
		return p.A
	case 4:
		return p.B
	case 5:
		return p.C
	}
	return 0
}

// SetAxis sets component i in X,Y,Z,A,B,C order.
func (p *Pose) SetAxis(i int, v float64) {
	switch i {
	case 0:
		p.Tran.X = v
	case 1:
		p.Tran.Y = v
	case 2:
		p.Tran.Z = v
	case 3:
		p.A = v
	case 4:
		p.B = v
	case 5:
		p.C = v
	}
}

func (p Pose) String() string {
	return fmt.Sprintf("X%.4f Y%.4f Z%.4f A%.4f B%.4f C%.4f",
		p.Tran.X, p.Tran.Y, p.Tran.Z, p.A, p.B, p.C)
}

// Type describes which transforms a machine supports.
type Type int32

const (
	// Identity means joint i is Cartesian axis i.
	Identity Type = iota + 1
	// ForwardOnly machines can compute pose from joints but not back.
	ForwardOnly
	// InverseOnly machines can compute joints from a pose only.
	InverseOnly
	// Both transforms are available but are not the identity.
	Both
)

func (t Type) String() string {
	switch t {
	case Identity:
		return "identity"
	case ForwardOnly:
		return "forward-only"
	case InverseOnly:
		return "inverse-only"
	case Both:
		return "both"
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// Kinematics is the interface for all kinematic implementations.
type Kinematics interface {
	// Name returns the kinematics name used in configuration.
	Name() string

	// Type returns which transforms are meaningful.
	Type() Type

	// Forward computes the Cartesian pose from joint positions.
	Forward(joints []float64, pos *Pose) error

	// Inverse computes joint positions for a Cartesian pose.
	Inverse(pos Pose, joints []float64) error

	// Home reconciles the world home pose with the joint home
	// positions once homing has established the joints. Machines with a
	// forward transform overwrite world; the others may adjust joints.
	Home(world *Pose, joints []float64) error
}

// New creates a kinematics instance by configuration name.
func New(name string) (Kinematics, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "trivial", "trivkins", "cartesian":
		return Trivial{}, nil
	case "corexy":
		return CoreXY{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
}
