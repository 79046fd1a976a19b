// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"testing"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/pid"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/sim"
)

const testServo = 0.001

// rig runs a controller against a simulated machine on a fake clock.
type rig struct {
	t   *testing.T
	shm *shmem.Shmem
	m   *sim.Machine
	c   *Controller
	now float64
	num uint32
}

func newRig(t *testing.T, joints int) *rig {
	t.Helper()
	r := &rig{
		t:   t,
		shm: shmem.NewHeap().Shmem(),
		m:   sim.New(joints, testServo),
	}
	c, err := NewController(Options{
		NumJoints:      joints,
		ServoCycleTime: testServo,
		TrajCycleTime:  10 * testServo,
		Clock:          func() float64 { return r.now },
	}, r.shm, r.m, kinematics.Trivial{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	r.c = c
	return r
}

func (r *rig) cycle(n int) {
	for i := 0; i < n; i++ {
		r.now += testServo
		r.c.RunCycle(r.now)
	}
}

// send publishes cmd as a new command, runs one cycle and returns the
// result the controller echoed.
func (r *rig) send(cmd shmem.Command) shmem.CommandStatus {
	r.t.Helper()
	r.num++
	cmd.CommandNum = r.num
	shmem.Publish(&r.shm.Command, &cmd)
	r.cycle(1)

	var st shmem.Status
	if !shmem.Snapshot(&st, &r.shm.Status) {
		r.t.Fatal("status torn after a completed cycle")
	}
	if st.CommandNumEcho != r.num {
		r.t.Fatalf("command %d not echoed, echo=%d", r.num, st.CommandNumEcho)
	}
	return st.CommandStatus
}

func (r *rig) mustSend(cmd shmem.Command) {
	r.t.Helper()
	if st := r.send(cmd); st != shmem.StatusOK {
		r.t.Fatalf("%s: status %s", cmd.Code, st)
	}
}

// servoJoint activates joint i with a position-following loop.
func (r *rig) servoJoint(i int) {
	r.t.Helper()
	r.mustSend(shmem.Command{Code: shmem.CmdActivateAxis, Axis: int32(i)})
	r.mustSend(shmem.Command{Code: shmem.CmdSetPID, Axis: int32(i), Gains: pid.Gains{FF0: 1}})
}

func (r *rig) enable() {
	r.t.Helper()
	r.mustSend(shmem.Command{Code: shmem.CmdEnable})
	if !r.c.Motion().Enabled {
		r.t.Fatal("controller not enabled")
	}
}

// drainErrors empties the error ring.
func (r *rig) drainErrors() []string {
	var out []string
	for {
		msg, ok := r.shm.Errors.Get()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func (r *rig) status() shmem.Status {
	var st shmem.Status
	if !shmem.Snapshot(&st, &r.shm.Status) {
		r.t.Fatal("status torn")
	}
	return st
}

func (r *rig) config() shmem.Config {
	var cfg shmem.Config
	if !shmem.Snapshot(&cfg, &r.shm.Config) {
		r.t.Fatal("config torn")
	}
	return cfg
}
