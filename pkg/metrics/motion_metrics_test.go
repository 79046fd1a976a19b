// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/motion"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/sim"
	"emcmot-go/pkg/usrmot"
)

func TestUpdateStatus(t *testing.T) {
	m := NewMotionMetrics()
	clock := time.Unix(100, 0)
	m.now = func() time.Time { return clock }

	st := shmem.Status{
		Heartbeat:      7,
		MotionFlag:     shmem.MotionEnable | shmem.MotionInpos,
		CommandEcho:    shmem.CmdEnable,
		CommandNumEcho: 1,
		CommandStatus:  shmem.StatusOK,
		Depth:          3,
		ComputeTime:    40e-6,
	}
	st.AxisFlag[1] = shmem.AxisActive | shmem.AxisFerror
	st.Ferror[1] = 0.25
	m.UpdateStatus(&st, 2)

	if m.Heartbeat.Get(nil) != 7 || m.QueueDepth.Get(nil) != 3 {
		t.Error("status gauges not set")
	}
	if m.MotionFlag.Get(Labels{"flag": "enable"}) != 1 || m.MotionFlag.Get(Labels{"flag": "coord"}) != 0 {
		t.Error("motion flags wrong")
	}
	if m.AxisFlag.Get(Labels{"axis": "1", "flag": "ferror"}) != 1 ||
		m.AxisFlag.Get(Labels{"axis": "1", "flag": "homed"}) != 0 {
		t.Error("axis flags wrong")
	}
	if m.Ferror.Get(Labels{"axis": "1"}) != 0.25 {
		t.Error("ferror not recorded")
	}
	if m.ComputeTime.Snapshot(nil).Count != 1 {
		t.Error("compute time not observed")
	}
	results := Labels{"command": shmem.CmdEnable.String(), "status": shmem.StatusOK.String()}
	if m.CommandResults.Get(results) != 1 {
		t.Error("command result not counted")
	}

	// the same echo is not counted twice, and a stalled heartbeat ages
	clock = clock.Add(2 * time.Second)
	m.UpdateStatus(&st, 2)
	if m.CommandResults.Get(results) != 1 {
		t.Error("echo counted twice")
	}
	if age := m.HeartbeatAge.Get(nil); age != 2 {
		t.Errorf("heartbeat age = %v, want 2", age)
	}
	st.Heartbeat++
	m.UpdateStatus(&st, 2)
	if age := m.HeartbeatAge.Get(nil); age != 0 {
		t.Errorf("heartbeat age after beat = %v", age)
	}
}

func TestUpdateDebugAndClient(t *testing.T) {
	m := NewMotionMetrics()
	var d shmem.Debug
	d.Cycles = 1000
	d.Overruns = 2
	d.CycleTime.Max = 0.0012
	d.MaxLimitSwitchCount[0] = 3
	d.AmpFaultCount[0] = 1
	m.UpdateDebug(&d, 1)
	m.UpdateClient(usrmot.Stats{Commands: 4, Timeouts: 1})

	if m.Cycles.Get(nil) != 1000 || m.Overruns.Get(nil) != 2 {
		t.Error("cycle counters not mirrored")
	}
	if m.LimitTrips.Get(Labels{"axis": "0", "side": "max"}) != 3 || m.AmpFaults.Get(Labels{"axis": "0"}) != 1 {
		t.Error("joint counters not mirrored")
	}
	if m.Commands.Get(nil) != 4 || m.Timeouts.Get(nil) != 1 {
		t.Error("client counters not mirrored")
	}
}

func TestRefreshFromController(t *testing.T) {
	shm := shmem.NewHeap().Shmem()
	now := 0.0
	ctrl, err := motion.NewController(motion.Options{
		NumJoints:      2,
		ServoCycleTime: 0.001,
		TrajCycleTime:  0.01,
		Clock:          func() float64 { return now },
	}, shm, sim.New(2, 0.001), kinematics.Trivial{})
	if err != nil {
		t.Fatal(err)
	}
	cl := usrmot.New(shm, usrmot.Options{
		Timeout: time.Second,
		Sleep: func(time.Duration) {
			now += 0.001
			ctrl.RunCycle(now)
		},
	})
	if err := cl.Enable(); err != nil {
		t.Fatal(err)
	}

	m := NewMotionMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Run(ctx, cl, time.Hour)

	if m.Cycles.Get(nil) == 0 {
		t.Error("no cycles recorded")
	}
	if m.MotionFlag.Get(Labels{"flag": "enable"}) != 1 {
		t.Error("enable flag not seen")
	}
	if m.Commands.Get(nil) != 1 {
		t.Errorf("commands = %d", m.Commands.Get(nil))
	}
	out := m.Gather()
	for _, name := range []string{"emcmot_heartbeat ", "emcmot_cycles_total ", "emcmot_go_goroutines "} {
		if !strings.Contains(out, name) {
			t.Errorf("gather missing %s", name)
		}
	}
}
