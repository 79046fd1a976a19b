package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/motion"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/sim"
	"emcmot-go/pkg/usrmot"
)

const servo = 0.001

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	shm := shmem.NewHeap().Shmem()
	now := 0.0
	ctrl, err := motion.NewController(motion.Options{
		NumJoints:      2,
		ServoCycleTime: servo,
		TrajCycleTime:  10 * servo,
		Clock:          func() float64 { return now },
	}, shm, sim.New(2, servo), kinematics.Trivial{})
	if err != nil {
		t.Fatal(err)
	}
	client := usrmot.New(shm, usrmot.Options{
		Timeout: 50 * time.Millisecond,
		Wait:    time.Millisecond,
		Sleep: func(time.Duration) {
			now += servo
			ctrl.RunCycle(now)
		},
	})
	var out bytes.Buffer
	sh, err := newShell(client, &out)
	if err != nil {
		t.Fatal(err)
	}
	return sh, &out
}

func TestExecCommands(t *testing.T) {
	sh, out := newTestShell(t)

	for _, line := range []string{
		"",
		"# comment",
		"enable",
		"activate 1",
		"ENABLE",
		`status "{{ enabled }} {{ echo }}"`,
	} {
		if err := sh.Exec(line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
	if got := strings.TrimSpace(out.String()); got != "True ENABLE" {
		t.Errorf("status output = %q", got)
	}
}

func TestExecErrors(t *testing.T) {
	sh, _ := newTestShell(t)

	tests := []struct {
		line string
		code errors.ErrorCode
	}{
		{"fly", errors.ErrCommInvalid},
		{"jog 0", errors.ErrCommInvalid},
		{"jog x 1", errors.ErrCommInvalid},
		{"override maybe", errors.ErrCommInvalid},
		{`status "unterminated`, errors.ErrCommInvalid},
		{"log open nosuch 10", errors.ErrCommInvalid},
		{"home 99", errors.ErrCommInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := sh.Exec(tt.line)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestStatusTemplate(t *testing.T) {
	sh, out := newTestShell(t)
	if err := sh.Exec("enable"); err != nil {
		t.Fatal(err)
	}
	if err := sh.Exec("status"); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"mode:    enabled free", "command: ENABLE", "axis 0:", "axis 1:"} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "axis 2:") {
		t.Errorf("status reports unconfigured axis:\n%s", got)
	}
}

func TestCompAndAlter(t *testing.T) {
	sh, out := newTestShell(t)
	file := filepath.Join(t.TempDir(), "comp.txt")
	if err := os.WriteFile(file, []byte("0 0 0\n1 0.01 -0.01\n2 0.02 -0.02\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"loadcomp 0 " + file, "alter 0 0.5", "alter 0"} {
		if err := sh.Exec(line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
	if got := strings.TrimSpace(out.String()); got != "0.500000" {
		t.Errorf("alter = %q", got)
	}
}

func TestRunStopsAtQuit(t *testing.T) {
	sh, out := newTestShell(t)
	in := strings.NewReader("enable\nbogus\nquit\nstats\n")
	if err := sh.Run(in, false); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, `error: `) || !strings.Contains(got, "bogus") {
		t.Errorf("bad command not reported: %q", got)
	}
	if strings.Contains(got, "commands") {
		t.Errorf("lines after quit were run: %q", got)
	}
}

func TestQuoteArgs(t *testing.T) {
	sh, out := newTestShell(t)
	line := quoteArgs([]string{"status", `{{ echo }} "x"`})
	if err := sh.Exec(line); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != `NONE "x"` {
		t.Errorf("output = %q", got)
	}
}
