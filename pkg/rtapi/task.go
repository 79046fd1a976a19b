// Periodic real-time task
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package rtapi runs a function at a fixed period on a dedicated OS
// thread. Wake times are absolute so jitter in one cycle does not
// accumulate into the next.
package rtapi

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"emcmot-go/pkg/errors"
)

// CycleFunc is called once per period with the scheduled start time in
// seconds on the Monotonic clock.
type CycleFunc func(now float64)

// Options configure a Task.
type Options struct {
	Name   string
	Period time.Duration

	// LockMemory pins the process's pages before the first cycle.
	LockMemory bool
}

// Task is a periodic real-time task.
type Task struct {
	name       string
	period     int64 // ns
	fn         CycleFunc
	lockMemory bool

	running atomic.Bool
	cycles  atomic.Uint64
	skipped atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// New creates a stopped task.
func New(opts Options, fn CycleFunc) (*Task, error) {
	if opts.Period <= 0 {
		return nil, errors.RuntimeErrorInit("rtapi", fmt.Sprintf("period %v must be positive", opts.Period))
	}
	if fn == nil {
		return nil, errors.RuntimeErrorInit("rtapi", "no cycle function")
	}
	if opts.Name == "" {
		opts.Name = "rt"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		name:       opts.Name,
		period:     opts.Period.Nanoseconds(),
		fn:         fn,
		lockMemory: opts.LockMemory,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Period returns the cycle period.
func (t *Task) Period() time.Duration { return time.Duration(t.period) }

// Cycles returns the number of completed cycles.
func (t *Task) Cycles() uint64 { return t.cycles.Load() }

// Skipped returns the number of wake times dropped because a cycle
// overran by more than a whole period.
func (t *Task) Skipped() uint64 { return t.skipped.Load() }

// Err returns the error that stopped the task, if any.
func (t *Task) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *Task) setErr(err error) {
	t.errMu.Lock()
	t.err = err
	t.errMu.Unlock()
}

// Run starts the task loop.
func (t *Task) Run() {
	if t.running.Swap(true) {
		return
	}
	t.wg.Add(1)
	go t.loop()
}

// End signals the task to stop after the current cycle.
func (t *Task) End() {
	t.running.Store(false)
	t.cancel()
}

// Wait waits for the task loop to exit.
func (t *Task) Wait() {
	t.wg.Wait()
}

// Done is closed once End has been called or the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.ctx.Done()
}

func (t *Task) loop() {
	defer t.wg.Done()
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			t.setErr(errors.RecoverPanic(r))
			t.running.Store(false)
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if t.lockMemory {
		if err := lockMemory(); err != nil {
			t.setErr(errors.Wrap(err, errors.ErrRuntimeInit, "lock memory"))
			t.running.Store(false)
			return
		}
	}

	next := monotonicNanos()
	for t.running.Load() {
		next += t.period
		if err := sleepUntil(next); err != nil {
			t.setErr(errors.Wrap(err, errors.ErrRuntime, "sleep"))
			t.running.Store(false)
			return
		}
		if !t.running.Load() {
			return
		}
		t.fn(float64(next) / 1e9)
		t.cycles.Add(1)

		// drop wake times that already passed instead of bursting
		if now := monotonicNanos(); now-next > t.period {
			missed := (now - next) / t.period
			t.skipped.Add(uint64(missed))
			next += missed * t.period
		}
	}
}

// Monotonic returns seconds on the clock the task schedules against.
func Monotonic() float64 {
	return float64(monotonicNanos()) / 1e9
}
