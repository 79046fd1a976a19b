package safety

import (
	stderrors "errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/shmem"
)

type fakeController struct {
	heartbeat uint32
	fail      error
}

func (f *fakeController) ReadStatus(st *shmem.Status) error {
	if f.fail != nil {
		return f.fail
	}
	st.Heartbeat = f.heartbeat
	return nil
}

type mockStopper struct {
	calls atomic.Int32
	err   error
}

func (s *mockStopper) Disable() error {
	s.calls.Add(1)
	return s.err
}

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Unix(1000, 0)} }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig(c *clock) Config {
	return Config{HeartbeatTimeout: 100 * time.Millisecond, MaxReadFailures: 3, Now: c.now}
}

func TestHeartbeatKeepsArmed(t *testing.T) {
	c := newClock()
	ctl := &fakeController{}
	w := New(ctl, testConfig(c))

	for i := 0; i < 10; i++ {
		ctl.heartbeat++
		c.advance(80 * time.Millisecond)
		if !w.Check() {
			t.Fatalf("tripped at step %d: %+v", i, w.Report())
		}
	}
	if err := w.Ready(); err != nil {
		t.Errorf("Ready: %v", err)
	}
	if r := w.Report(); !r.Armed || r.At != nil {
		t.Errorf("report = %+v", r)
	}
}

func TestHeartbeatStallTrips(t *testing.T) {
	c := newClock()
	ctl := &fakeController{heartbeat: 5}
	w := New(ctl, testConfig(c))
	stop := &mockStopper{}
	w.AddStopper(stop)

	var events []Event
	w.Subscribe(func(ev Event) { events = append(events, ev) })

	w.Check()
	c.advance(50 * time.Millisecond)
	if !w.Check() {
		t.Fatal("tripped before the timeout")
	}
	c.advance(60 * time.Millisecond)
	if w.Check() {
		t.Fatal("stall not detected")
	}

	if w.State() != Faulted || !w.Tripped() {
		t.Errorf("state = %s", w.State())
	}
	if stop.calls.Load() != 1 {
		t.Errorf("stopper called %d times", stop.calls.Load())
	}
	if len(events) != 1 || events[0].From != Armed || events[0].To != Faulted || events[0].Trip.Cause != CauseHeartbeat {
		t.Errorf("events = %+v", events)
	}
	if !events[0].Trip.At.Equal(c.now()) {
		t.Errorf("trip time = %v", events[0].Trip.At)
	}
	if err := w.Ready(); !errors.Is(err, errors.ErrRuntime) {
		t.Errorf("Ready = %v", err)
	}

	// tripping again is a no-op
	w.EStop("again")
	if stop.calls.Load() != 1 || len(events) != 1 {
		t.Error("trip ran twice")
	}
}

func TestReadFailuresTrip(t *testing.T) {
	c := newClock()
	ctl := &fakeController{fail: stderrors.New("torn")}
	w := New(ctl, testConfig(c))

	if !w.Check() || !w.Check() {
		t.Fatal("tripped before MaxReadFailures")
	}
	if w.Check() {
		t.Fatal("third failure should trip")
	}
	if r := w.Report(); r.Cause != string(CauseCommLost) || r.At == nil {
		t.Errorf("report = %+v", r)
	}
}

func TestReadFailuresResetOnSuccess(t *testing.T) {
	c := newClock()
	ctl := &fakeController{fail: stderrors.New("torn")}
	w := New(ctl, testConfig(c))
	w.Check()
	w.Check()
	ctl.fail = nil
	w.Check()
	ctl.fail = stderrors.New("torn")
	if !w.Check() || !w.Check() {
		t.Error("failure count not reset by a good read")
	}
}

func TestOperatorStopAndRearm(t *testing.T) {
	c := newClock()
	w := New(&fakeController{}, testConfig(c))
	if err := w.Rearm(); err == nil {
		t.Error("rearm while armed accepted")
	}

	w.AddStopper(&mockStopper{err: stderrors.New("timeout")})
	w.AddStopper(&mockStopper{})
	err := w.Stop("operator")
	if !errors.Is(err, errors.ErrRuntime) || !strings.Contains(err.Error(), "1 of 2 stoppers failed") {
		t.Errorf("stopper failure not reported: %v", err)
	}
	if w.State() != Stopped || !w.Tripped() {
		t.Errorf("state = %s", w.State())
	}

	if err := w.Rearm(); err != nil {
		t.Fatal(err)
	}
	if r := w.Report(); !r.Armed || r.Cause != "" || r.At != nil {
		t.Errorf("report after rearm = %+v", r)
	}
	if !w.Check() {
		t.Error("first check after rearm should restart heartbeat tracking")
	}
}

func TestEStopIsFault(t *testing.T) {
	w := New(&fakeController{}, Config{})
	if err := w.EStop("button"); err != nil {
		t.Fatal(err)
	}
	if w.State() != Faulted {
		t.Errorf("state = %s", w.State())
	}
	if State(7).String() != "state(7)" {
		t.Errorf("unknown state = %s", State(7))
	}
}
