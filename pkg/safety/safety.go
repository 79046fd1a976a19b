// Package safety supervises a running motion controller from the user
// side. A Watchdog follows the controller heartbeat and disables
// motion when the heartbeat stalls, status reads keep failing, or an
// emergency stop is pressed.
package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/log"
	"emcmot-go/pkg/shmem"
)

// State is the watchdog's view of the machine.
type State int

const (
	Armed State = iota
	// Tripping while the stoppers are being disabled.
	Tripping
	// Stopped by the operator.
	Stopped
	// Faulted by a trip other than an operator stop.
	Faulted
)

var stateNames = [...]string{"armed", "tripping", "stopped", "faulted"}

func (s State) String() string {
	if s < Armed || s > Faulted {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Cause says what tripped the watchdog.
type Cause string

const (
	CauseNone      Cause = ""
	CauseEstop     Cause = "estop"
	CauseHeartbeat Cause = "heartbeat_stall"
	CauseCommLost  Cause = "comm_lost"
	CauseOperator  Cause = "operator"
)

// Trip records one stop.
type Trip struct {
	Cause   Cause
	Message string
	At      time.Time
}

// Event is delivered to subscribers once a trip has completed.
type Event struct {
	From, To State
	Trip     Trip
}

// StatusReader reads the controller status block. *usrmot.Client
// satisfies it.
type StatusReader interface {
	ReadStatus(*shmem.Status) error
}

// Stopper disables motion. *usrmot.Client satisfies it.
type Stopper interface {
	Disable() error
}

type Config struct {
	// HeartbeatTimeout is how long the heartbeat may stay unchanged.
	HeartbeatTimeout time.Duration

	// Poll is the interval between checks in Run.
	Poll time.Duration

	// MaxReadFailures consecutive failed reads mean the controller is
	// gone.
	MaxReadFailures int

	Now func() time.Time
}

func (c *Config) fill() {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = time.Second
	}
	if c.Poll <= 0 {
		c.Poll = 100 * time.Millisecond
	}
	if c.MaxReadFailures <= 0 {
		c.MaxReadFailures = 10
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Watchdog supervises one controller.
type Watchdog struct {
	src StatusReader
	cfg Config
	log *log.Logger

	mu          sync.Mutex
	state       State
	last        Trip
	stoppers    []Stopper
	subscribers []func(Event)

	// owned by Check
	beat     uint32
	beatAt   time.Time
	failures int
}

func New(src StatusReader, cfg Config) *Watchdog {
	cfg.fill()
	return &Watchdog{src: src, cfg: cfg, log: log.GetLogger("safety")}
}

// AddStopper adds s to what a trip disables.
func (w *Watchdog) AddStopper(s Stopper) {
	w.mu.Lock()
	w.stoppers = append(w.stoppers, s)
	w.mu.Unlock()
}

// Subscribe calls fn after every completed trip.
func (w *Watchdog) Subscribe(fn func(Event)) {
	w.mu.Lock()
	w.subscribers = append(w.subscribers, fn)
	w.mu.Unlock()
}

func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Tripped reports whether a trip has completed and not been rearmed.
func (w *Watchdog) Tripped() bool {
	s := w.State()
	return s == Stopped || s == Faulted
}

// Ready returns nil while armed and an ErrRuntime naming the trip
// otherwise.
func (w *Watchdog) Ready() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Armed {
		return nil
	}
	return errors.New(errors.ErrRuntime, fmt.Sprintf("machine stopped: %s: %s", w.last.Cause, w.last.Message)).
		SetContext("cause", string(w.last.Cause))
}

// EStop trips the watchdog as a fault.
func (w *Watchdog) EStop(msg string) error { return w.trip(CauseEstop, msg) }

// Stop trips the watchdog on operator request.
func (w *Watchdog) Stop(msg string) error { return w.trip(CauseOperator, msg) }

// trip disables every stopper once. Later trips are ignored until
// Rearm. Stopper failures are combined into the returned error.
func (w *Watchdog) trip(cause Cause, msg string) error {
	w.mu.Lock()
	if w.state != Armed {
		w.mu.Unlock()
		return nil
	}
	w.state = Tripping
	w.last = Trip{Cause: cause, Message: msg, At: w.cfg.Now()}
	stoppers := append([]Stopper(nil), w.stoppers...)
	w.mu.Unlock()

	w.log.WithField("cause", string(cause)).Error(msg)

	var errs error
	for _, s := range stoppers {
		errs = multierr.Append(errs, s.Disable())
	}

	final := Faulted
	if cause == CauseOperator {
		final = Stopped
	}
	w.mu.Lock()
	w.state = final
	ev := Event{From: Armed, To: final, Trip: w.last}
	subs := append(([]func(Event))(nil), w.subscribers...)
	w.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	if errs != nil {
		n := len(multierr.Errors(errs))
		return errors.Wrap(errs, errors.ErrRuntime, fmt.Sprintf("%d of %d stoppers failed", n, len(stoppers)))
	}
	return nil
}

// Check reads the status once and trips on a stalled heartbeat or too
// many failed reads. It reports whether the watchdog is still armed.
func (w *Watchdog) Check() bool {
	if w.State() != Armed {
		return false
	}
	now := w.cfg.Now()

	var st shmem.Status
	if err := w.src.ReadStatus(&st); err != nil {
		w.failures++
		if w.failures < w.cfg.MaxReadFailures {
			return true
		}
		_ = w.trip(CauseCommLost, fmt.Sprintf("%d consecutive status reads failed: %v", w.failures, err))
		return false
	}
	w.failures = 0

	if w.beatAt.IsZero() || st.Heartbeat != w.beat {
		w.beat, w.beatAt = st.Heartbeat, now
		return true
	}
	stalled := now.Sub(w.beatAt)
	if stalled <= w.cfg.HeartbeatTimeout {
		return true
	}
	_ = w.trip(CauseHeartbeat, fmt.Sprintf("controller heartbeat stuck at %d for %v", w.beat, stalled.Round(time.Millisecond)))
	return false
}

// Run checks every Poll until ctx is done or the watchdog trips.
func (w *Watchdog) Run(ctx context.Context) {
	t := time.NewTicker(w.cfg.Poll)
	defer t.Stop()
	for w.Check() {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Rearm clears a completed trip. Heartbeat tracking starts over.
func (w *Watchdog) Rearm() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Armed:
		return errors.New(errors.ErrRuntime, "watchdog is already armed")
	case Tripping:
		return errors.New(errors.ErrRuntime, "trip still in progress")
	}
	w.state = Armed
	w.last = Trip{}
	w.beatAt = time.Time{}
	w.failures = 0
	return nil
}

// Report is the JSON view of the watchdog.
type Report struct {
	State   string     `json:"state"`
	Armed   bool       `json:"armed"`
	Cause   string     `json:"cause,omitempty"`
	Message string     `json:"message,omitempty"`
	At      *time.Time `json:"at,omitempty"`
}

func (w *Watchdog) Report() Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := Report{
		State:   w.state.String(),
		Armed:   w.state == Armed,
		Cause:   string(w.last.Cause),
		Message: w.last.Message,
	}
	if !w.last.At.IsZero() {
		at := w.last.At
		r.At = &at
	}
	return r
}
