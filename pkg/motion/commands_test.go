// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"strings"
	"testing"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/shmem"
)

func TestJogIncrRejectedInCoordMode(t *testing.T) {
	r := newRig(t, 3)
	r.servoJoint(0)
	r.enable()
	r.mustSend(shmem.Command{Code: shmem.CmdCoord})
	if !r.c.Motion().Coord {
		t.Fatal("not in coordinated mode")
	}
	r.drainErrors()

	j := r.c.Joint(0)
	flags, phase, pos := j.Flags, j.Phase, j.Pos
	goal, depth := j.FreePlanner().GoalPos(), j.FreePlanner().Depth()

	st := r.send(shmem.Command{Code: shmem.CmdJogIncr, Axis: 0, Vel: 1.0, Offset: 0.5})
	if st != shmem.StatusInvalidCommand {
		t.Fatalf("status = %s, want INVALID_COMMAND", st)
	}
	if j.Flags.Homed || j.Flags.Homing || j.Phase != phase {
		t.Errorf("homing state changed: %+v phase %s", j.Flags, j.Phase)
	}
	if j.Flags != flags {
		t.Errorf("flags changed: %+v -> %+v", flags, j.Flags)
	}
	if j.Pos != pos || j.FreePlanner().GoalPos() != goal || j.FreePlanner().Depth() != depth {
		t.Errorf("free planner changed: goal %v depth %d", j.FreePlanner().GoalPos(), j.FreePlanner().Depth())
	}
	if msgs := r.drainErrors(); len(msgs) != 1 || !strings.Contains(msgs[0], "coordinated") {
		t.Errorf("errors = %q", msgs)
	}
}

func TestTornCommandIgnored(t *testing.T) {
	r := newRig(t, 1)
	r.shm.Command = shmem.Command{Code: shmem.CmdEnable, CommandNum: 1}
	r.shm.Command.Head = 5
	r.shm.Command.Tail = 4

	r.cycle(1)
	if r.status().CommandNumEcho != 0 || r.c.Motion().Enabled {
		t.Fatal("torn command was executed")
	}
	if r.c.split != 1 {
		t.Errorf("split = %d, want 1", r.c.split)
	}

	r.shm.Command.Tail = 5
	r.cycle(1)
	if r.status().CommandNumEcho != 1 || !r.c.Motion().Enabled {
		t.Fatal("completed command was not executed")
	}
}

func TestRepeatedCommandNumIgnored(t *testing.T) {
	r := newRig(t, 1)
	r.enable()

	cmd := shmem.Command{Code: shmem.CmdDisable, CommandNum: r.num}
	shmem.Publish(&r.shm.Command, &cmd)
	r.cycle(2)
	if !r.c.Motion().Enabled {
		t.Fatal("command with an already echoed number was executed")
	}
	if got := r.status().CommandEcho; got != shmem.CmdEnable {
		t.Errorf("echo = %s, want ENABLE", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	r := newRig(t, 1)
	if st := r.send(shmem.Command{Code: 999}); st != shmem.StatusUnknownCommand {
		t.Fatalf("status = %s", st)
	}
	msgs := r.drainErrors()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "unrecognized") {
		t.Errorf("errors = %q", msgs)
	}
}

func TestConfigNumChangesOnAcceptedTunables(t *testing.T) {
	r := newRig(t, 2)
	base := r.config().ConfigNum

	r.mustSend(shmem.Command{Code: shmem.CmdSetPositionLimits, Axis: 1, MinLimit: -3, MaxLimit: 4})
	cfg := r.config()
	if cfg.ConfigNum != base+1 {
		t.Fatalf("config num = %d, want %d", cfg.ConfigNum, base+1)
	}
	if cfg.MinLimit[1] != -3 || cfg.MaxLimit[1] != 4 {
		t.Errorf("limits = %v..%v", cfg.MinLimit[1], cfg.MaxLimit[1])
	}

	if st := r.send(shmem.Command{Code: shmem.CmdSetPositionLimits, Axis: 1, MinLimit: 5, MaxLimit: 4}); st != shmem.StatusInvalidParams {
		t.Fatalf("inverted limits: status %s", st)
	}
	r.mustSend(shmem.Command{Code: shmem.CmdEnable})
	if got := r.config().ConfigNum; got != base+1 {
		t.Errorf("config num = %d after rejected and non-config commands", got)
	}
	if j := r.c.Joint(1); j.Config.MinLimit != -3 || j.Config.MaxLimit != 4 {
		t.Errorf("rejected command changed limits: %+v", j.Config)
	}
}

func TestRejectedCommands(t *testing.T) {
	tests := []struct {
		name string
		cmd  shmem.Command
		want shmem.CommandStatus
	}{
		{"zero axes", shmem.Command{Code: shmem.CmdSetNumAxes, Axis: 0}, shmem.StatusInvalidParams},
		{"too many axes", shmem.Command{Code: shmem.CmdSetNumAxes, Axis: shmem.MaxJoints + 1}, shmem.StatusInvalidParams},
		{"axis out of range", shmem.Command{Code: shmem.CmdSetPID, Axis: 5}, shmem.StatusInvalidParams},
		{"negative axis", shmem.Command{Code: shmem.CmdActivateAxis, Axis: -1}, shmem.StatusInvalidParams},
		{"inverted output limits", shmem.Command{Code: shmem.CmdSetOutputLimits, MinLimit: 1, MaxLimit: -1}, shmem.StatusInvalidParams},
		{"zero input scale", shmem.Command{Code: shmem.CmdSetInputScale, Scale: 0}, shmem.StatusInvalidParams},
		{"zero output scale", shmem.Command{Code: shmem.CmdSetOutputScale, Scale: 0}, shmem.StatusInvalidParams},
		{"negative max ferror", shmem.Command{Code: shmem.CmdSetMaxFerror, MaxFerror: -1}, shmem.StatusInvalidParams},
		{"negative min ferror", shmem.Command{Code: shmem.CmdSetMinFerror, MinFerror: -1}, shmem.StatusInvalidParams},
		{"bad term cond", shmem.Command{Code: shmem.CmdSetTermCond, TermCond: 7}, shmem.StatusInvalidParams},
		{"zero velocity", shmem.Command{Code: shmem.CmdSetVel, Vel: 0}, shmem.StatusInvalidParams},
		{"zero acceleration", shmem.Command{Code: shmem.CmdSetAcc, Acc: 0}, shmem.StatusInvalidParams},
		{"zero homing velocity", shmem.Command{Code: shmem.CmdSetHomingVel, Vel: 0}, shmem.StatusInvalidParams},
		{"negative probe index", shmem.Command{Code: shmem.CmdSetProbeIndex, ProbeIndex: -1}, shmem.StatusInvalidParams},
		{"negative index bit", shmem.Command{Code: shmem.CmdSetIndexBit, Index: -1}, shmem.StatusInvalidParams},
		{"servo slower than trajectory", shmem.Command{Code: shmem.CmdSetServoCycleTime, CycleTime: 1}, shmem.StatusInvalidParams},
		{"line outside coord", shmem.Command{Code: shmem.CmdSetLine}, shmem.StatusInvalidCommand},
		{"home while disabled", shmem.Command{Code: shmem.CmdHome}, shmem.StatusInvalidCommand},
		{"jog while disabled", shmem.Command{Code: shmem.CmdJogCont, Vel: 1}, shmem.StatusInvalidCommand},
		{"start log not open", shmem.Command{Code: shmem.CmdStartLog}, shmem.StatusInvalidCommand},
		{"log too big", shmem.Command{Code: shmem.CmdOpenLog, LogType: shmem.LogAllInpos, LogSize: shmem.LogMax + 1}, shmem.StatusInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, 2)
			base := r.config().ConfigNum
			if got := r.send(tt.cmd); got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
			if got := r.config().ConfigNum; got != base {
				t.Errorf("config num changed on rejection")
			}
		})
	}
}

func TestAcceptedParameterNormalisation(t *testing.T) {
	r := newRig(t, 2)

	r.mustSend(shmem.Command{Code: shmem.CmdSetStepParams, Axis: 1, SetupTime: 0.2, HoldTime: 3})
	if j := r.c.Joint(1); j.Config.SetupTime != 1 || j.Config.HoldTime != 3 {
		t.Errorf("step params = %v/%v", j.Config.SetupTime, j.Config.HoldTime)
	}

	r.mustSend(shmem.Command{Code: shmem.CmdSetHomingVel, Axis: 0, Vel: -2})
	if j := r.c.Joint(0); j.Config.HomingVel != 2 || j.Config.Polarity.Homing {
		t.Errorf("homing vel %v polarity %v", j.Config.HomingVel, j.Config.Polarity.Homing)
	}

	r.mustSend(shmem.Command{Code: shmem.CmdSetAxisVelLimit, Axis: 0, Vel: 2})
	if j := r.c.Joint(0); j.Config.LimitVel != 2 || j.BigVel != 20 {
		t.Errorf("limit vel %v big vel %v", j.Config.LimitVel, j.BigVel)
	}

	r.mustSend(shmem.Command{Code: shmem.CmdScale, Scale: -1})
	if st := r.status(); st.QVscale != 0 || st.AxVscale[0] != 0 {
		t.Errorf("scale = %v/%v, want 0", st.QVscale, st.AxVscale[0])
	}

	r.mustSend(shmem.Command{Code: shmem.CmdSetPolarity, Axis: 0, AxisFlag: shmem.AxisMaxHardLimit, Level: false})
	if p := r.c.Joint(0).Config.Polarity; p.MaxHardLimit || !p.MinHardLimit {
		t.Errorf("polarity = %+v", p)
	}
}

func TestInputScaleRebasesFeedback(t *testing.T) {
	r := newRig(t, 1)
	r.m.SetPosition(0, 10)
	r.cycle(1)
	r.mustSend(shmem.Command{Code: shmem.CmdSetInputScale, Axis: 0, Scale: 2, Offset: 4})
	if got := r.c.Joint(0).Input; got != 3 {
		t.Errorf("input = %v, want (10-4)/2", got)
	}
}

func TestTrajectoryCycleRoundsToServoMultiple(t *testing.T) {
	r := newRig(t, 1)
	r.mustSend(shmem.Command{Code: shmem.CmdSetTrajCycleTime, CycleTime: 0.0074})
	cfg := r.config()
	if cfg.InterpolationRate != 7 {
		t.Errorf("rate = %d, want 7", cfg.InterpolationRate)
	}
	if d := cfg.TrajCycleTime - 7*testServo; d > 1e-12 || d < -1e-12 {
		t.Errorf("traj cycle = %v", cfg.TrajCycleTime)
	}
}

func TestCoordRequiresHomingOnNonIdentityMachines(t *testing.T) {
	r := newRig(t, 3)
	r.c.kins = kinematics.CoreXY{}
	r.enable()
	if st := r.send(shmem.Command{Code: shmem.CmdCoord}); st != shmem.StatusInvalidCommand {
		t.Fatalf("status = %s", st)
	}
	if r.c.Motion().Coord || r.c.coordinating {
		t.Error("coordinated mode entered without homing")
	}
}
