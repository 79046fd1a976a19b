// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"emcmot-go/pkg/shmem"
)

// statsWindow is the number of samples averaged before a window rolls.
const statsWindow = 1000

// deadlineFactor is how many servo periods may pass between cycle
// starts before the controller reports a missed deadline.
const deadlineFactor = 10

type windowStats struct {
	min, max, sum float64
	n             int
	last          shmem.Stats
}

func (w *windowStats) reset() {
	*w = windowStats{min: math.Inf(1), max: math.Inf(-1)}
}

func (w *windowStats) add(v float64) {
	w.min = math.Min(w.min, v)
	w.max = math.Max(w.max, v)
	w.sum += v
	w.n++
	if w.n >= statsWindow {
		w.last = w.current()
		w.min, w.max, w.sum, w.n = math.Inf(1), math.Inf(-1), 0, 0
	}
}

// current returns the stats for the window in progress, or the last
// complete window when nothing has been added since it rolled.
func (w *windowStats) current() shmem.Stats {
	if w.n == 0 {
		return w.last
	}
	return shmem.Stats{Min: w.min, Max: w.max, Avg: w.sum / float64(w.n)}
}

// timing measures the period between cycle starts and the compute
// time within each cycle.
type timing struct {
	cycle     windowStats
	compute   windowStats
	lastStart float64
	haveLast  bool
	reported  bool
	overruns  uint32
	cycles    uint64
	lastTime  float64
}

func (t *timing) reset() {
	t.cycle.reset()
	t.compute.reset()
	t.haveLast = false
	t.reported = false
}

// update records one cycle and reports whether it overran the deadline.
func (t *timing) update(start, end, servo float64) bool {
	t.cycles++
	t.lastTime = end - start
	t.compute.add(t.lastTime)
	overrun := false
	if t.haveLast {
		period := start - t.lastStart
		t.cycle.add(period)
		if period > deadlineFactor*servo {
			t.overruns++
			overrun = true
		}
	}
	t.lastStart = start
	t.haveLast = true
	return overrun
}

func (c *Controller) updateTiming(start, end float64) {
	if !c.timing.update(start, end, c.servoCycleTime) || !c.motion.Enabled {
		return
	}
	if !c.timing.reported {
		c.timing.reported = true
		c.reportError(-1, "controller missed realtime deadline")
	}
}

// watchdog toggles an output at a fixed cycle divisor while enabled so
// external hardware can detect a stalled controller.
type watchdog struct {
	enabling bool
	wait     int32
	count    int32
	level    bool
}

func (w *watchdog) enable(wait int32) {
	if wait < 0 {
		wait = 0
	}
	w.wait = wait
	w.count = 0
	w.enabling = true
}

func (c *Controller) runWatchdog() {
	w := &c.wd
	if !w.enabling {
		return
	}
	w.count++
	if w.count > w.wait {
		w.count = 0
		w.level = !w.level
		c.io.Watchdog(w.level)
	}
}
