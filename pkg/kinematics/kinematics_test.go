package kinematics

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestRoundTrip(t *testing.T) {
	pose := Pose{Tran: r3.Vector{X: 12.5, Y: -3, Z: 7}, A: 90, B: 1, C: -45}
	for _, name := range []string{"trivial", "corexy"} {
		t.Run(name, func(t *testing.T) {
			k, err := New(name)
			if err != nil {
				t.Fatal(err)
			}
			joints := make([]float64, 6)
			if err := k.Inverse(pose, joints); err != nil {
				t.Fatal(err)
			}
			var back Pose
			if err := k.Forward(joints, &back); err != nil {
				t.Fatal(err)
			}
			d := back.Sub(pose)
			if d.Tran.Norm() > 1e-12 || math.Abs(d.A)+math.Abs(d.B)+math.Abs(d.C) > 1e-12 {
				t.Errorf("round trip %v -> %v", pose, back)
			}
		})
	}
}

func TestCoreXYMotorMapping(t *testing.T) {
	joints := make([]float64, 3)
	if err := (CoreXY{}).Inverse(Pose{Tran: r3.Vector{X: 10, Y: 4, Z: 2}}, joints); err != nil {
		t.Fatal(err)
	}
	want := []float64{14, 6, 2}
	for i := range want {
		if joints[i] != want[i] {
			t.Errorf("joint %d = %v, want %v", i, joints[i], want[i])
		}
	}
	if err := (CoreXY{}).Inverse(Pose{}, make([]float64, 1)); !errors.Is(err, ErrTooFewJoints) {
		t.Errorf("single joint: got %v", err)
	}
}

func TestTypes(t *testing.T) {
	if (Trivial{}).Type() != Identity {
		t.Error("trivial should be identity")
	}
	if (CoreXY{}).Type() != Both {
		t.Error("corexy should be both")
	}
	if _, err := New("scara"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestPoseAxisOrder(t *testing.T) {
	var p Pose
	for i := 0; i < 6; i++ {
		p.SetAxis(i, float64(i+1))
	}
	if p.Tran != (r3.Vector{X: 1, Y: 2, Z: 3}) || p.A != 4 || p.B != 5 || p.C != 6 {
		t.Errorf("unexpected pose %v", p)
	}
	if p.Mul(2).Axis(5) != 12 {
		t.Errorf("Mul: got %v", p.Mul(2))
	}
}

func TestHomeDerivesWorldFromJoints(t *testing.T) {
	world := Pose{Tran: r3.Vector{X: 99, Y: 99}}
	if err := (CoreXY{}).Home(&world, []float64{3, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if world.Tran.X != 2 || world.Tran.Y != 1 || world.Tran.Z != 2 {
		t.Errorf("corexy home pose %v", world)
	}
}
