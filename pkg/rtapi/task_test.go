package rtapi

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{}, func(float64) {}); err == nil {
		t.Error("expected error for zero period")
	}
	if _, err := New(Options{Period: time.Millisecond}, nil); err == nil {
		t.Error("expected error for nil cycle function")
	}
}

func TestMonotonic(t *testing.T) {
	t1 := Monotonic()
	time.Sleep(10 * time.Millisecond)
	t2 := Monotonic()

	if t2 <= t1 {
		t.Errorf("Monotonic time not increasing: %f <= %f", t2, t1)
	}
	if elapsed := t2 - t1; elapsed < 0.009 || elapsed > 0.5 {
		t.Errorf("Unexpected elapsed time: %f (expected ~0.01)", elapsed)
	}
}

func TestTaskRunsPeriodically(t *testing.T) {
	var calls atomic.Int32
	var last atomic.Int64
	var backwards atomic.Bool

	task, err := New(Options{Name: "servo", Period: time.Millisecond}, func(now float64) {
		ns := int64(now * 1e9)
		if ns <= last.Swap(ns) {
			backwards.Store(true)
		}
		calls.Add(1)
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	task.Run()
	time.Sleep(100 * time.Millisecond)
	task.End()
	task.Wait()

	n := calls.Load()
	if n < 10 {
		t.Errorf("only %d cycles in 100ms", n)
	}
	if uint64(n) != task.Cycles() {
		t.Errorf("Cycles() = %d, callback saw %d", task.Cycles(), n)
	}
	if backwards.Load() {
		t.Error("cycle start times not strictly increasing")
	}
	if task.Err() != nil {
		t.Errorf("unexpected error: %v", task.Err())
	}

	// stopped: no further calls
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != n {
		t.Error("task kept running after End")
	}
}

func TestTaskRecoversPanic(t *testing.T) {
	task, err := New(Options{Period: time.Millisecond}, func(float64) {
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}
	task.Run()
	task.Wait()
	if task.Err() == nil {
		t.Error("expected panic to be reported")
	}
}

func TestTaskSkipsMissedPeriods(t *testing.T) {
	var calls atomic.Int32
	task, err := New(Options{Period: time.Millisecond}, func(float64) {
		if calls.Add(1) == 1 {
			time.Sleep(20 * time.Millisecond)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	task.Run()
	time.Sleep(40 * time.Millisecond)
	task.End()
	task.Wait()

	if task.Skipped() == 0 {
		t.Error("expected missed wake times to be skipped")
	}
}
