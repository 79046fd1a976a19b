// Motion controller metrics
//
// Mirrors the controller's status and debug blocks, and the supervisor
// client's command counters, into Prometheus series.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	goruntime "runtime"
	"strconv"
	"time"

	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/usrmot"
)

// Source is the view of the controller that metrics are taken from.
// *usrmot.Client satisfies it.
type Source interface {
	ReadStatus(*shmem.Status) error
	ReadDebug(*shmem.Debug) error
	ReadConfig(*shmem.Config) error
	Stats() usrmot.Stats
}

var axisFlagNames = []struct {
	bit  uint32
	name string
}{
	{shmem.AxisEnable, "enable"},
	{shmem.AxisActive, "active"},
	{shmem.AxisInpos, "inpos"},
	{shmem.AxisError, "error"},
	{shmem.AxisMaxSoftLimit, "max_soft_limit"},
	{shmem.AxisMinSoftLimit, "min_soft_limit"},
	{shmem.AxisMaxHardLimit, "max_hard_limit"},
	{shmem.AxisMinHardLimit, "min_hard_limit"},
	{shmem.AxisHoming, "homing"},
	{shmem.AxisHomed, "homed"},
	{shmem.AxisFerror, "ferror"},
	{shmem.AxisFault, "fault"},
}

var motionFlagNames = []struct {
	bit  uint32
	name string
}{
	{shmem.MotionEnable, "enable"},
	{shmem.MotionInpos, "inpos"},
	{shmem.MotionCoord, "coord"},
	{shmem.MotionError, "error"},
	{shmem.MotionTeleop, "teleop"},
}

// MotionMetrics holds the controller series.
type MotionMetrics struct {
	Heartbeat     *Gauge
	HeartbeatAge  *Gauge
	Cycles        *Counter
	Overruns      *Counter
	ComputeTime   *Histogram
	CycleTimeMax  *Gauge
	MotionFlag    *Gauge
	QueueDepth    *Gauge
	ActiveDepth   *Gauge
	Velocity      *Gauge
	Position      *Gauge
	JointPosition *Gauge
	Ferror        *Gauge
	FerrorHigh    *Gauge
	AxisFlag      *Gauge
	HomingPhase   *Gauge
	LimitTrips    *Counter
	AmpFaults     *Counter
	BadFeedback   *Counter

	CommandResults *Counter
	Commands       *Counter
	Rejected       *Counter
	Failed         *Counter
	Timeouts       *Counter
	SplitReads     *Counter

	Goroutines *Gauge
	HeapBytes  *Gauge

	registry      *Registry
	lastHeartbeat uint32
	lastBeatAt    time.Time
	lastEcho      uint32
	now           func() time.Time
}

// NewMotionMetrics creates and registers the controller series.
func NewMotionMetrics() *MotionMetrics {
	m := &MotionMetrics{registry: NewRegistry(), now: time.Now}

	m.Heartbeat = NewGauge("emcmot_heartbeat", "Servo cycle heartbeat counter")
	m.HeartbeatAge = NewGauge("emcmot_heartbeat_age_seconds", "Time since the heartbeat last changed")
	m.Cycles = NewCounter("emcmot_cycles_total", "Servo cycles run")
	m.Overruns = NewCounter("emcmot_overruns_total", "Servo cycles that missed their deadline")
	m.ComputeTime = NewHistogram("emcmot_compute_seconds", "Time spent in one servo cycle",
		ExponentialBuckets(25e-6, 2, 10))
	m.CycleTimeMax = NewGauge("emcmot_cycle_seconds_max", "Longest observed period between servo cycles")
	m.MotionFlag = NewGauge("emcmot_motion_flag", "Controller state flags (1=set)")
	m.QueueDepth = NewGauge("emcmot_queue_depth", "Segments in the coordinated queue")
	m.ActiveDepth = NewGauge("emcmot_queue_active_depth", "Segments currently blending")
	m.Velocity = NewGauge("emcmot_velocity", "Commanded Cartesian velocity")
	m.Position = NewGauge("emcmot_position", "Commanded Cartesian position")
	m.JointPosition = NewGauge("emcmot_joint_position", "Commanded joint position")
	m.Ferror = NewGauge("emcmot_joint_ferror", "Joint following error")
	m.FerrorHigh = NewGauge("emcmot_joint_ferror_high_mark", "Largest following error seen")
	m.AxisFlag = NewGauge("emcmot_joint_flag", "Joint state flags (1=set)")
	m.HomingPhase = NewGauge("emcmot_joint_homing_phase", "Homing sequence step")
	m.LimitTrips = NewCounter("emcmot_joint_limit_trips_total", "Debounced hard limit trips")
	m.AmpFaults = NewCounter("emcmot_joint_amp_faults_total", "Amplifier fault events")
	m.BadFeedback = NewCounter("emcmot_joint_bad_feedback_total", "Feedback samples rejected as spurious")

	m.CommandResults = NewCounter("emcmot_command_results_total", "Commands echoed by the controller")
	m.Commands = NewCounter("emcmot_client_commands_total", "Commands written by the supervisor")
	m.Rejected = NewCounter("emcmot_client_rejected_total", "Commands refused while one was pending")
	m.Failed = NewCounter("emcmot_client_failed_total", "Commands echoed with an error status")
	m.Timeouts = NewCounter("emcmot_client_timeouts_total", "Commands not echoed in time")
	m.SplitReads = NewCounter("emcmot_client_split_reads_total", "Reads abandoned as inconsistent")

	m.Goroutines = NewGauge("emcmot_go_goroutines", "Number of goroutines")
	m.HeapBytes = NewGauge("emcmot_go_heap_bytes", "Go heap in use")

	m.registry.MustRegister(
		m.Heartbeat, m.HeartbeatAge, m.Cycles, m.Overruns, m.ComputeTime, m.CycleTimeMax,
		m.MotionFlag, m.QueueDepth, m.ActiveDepth, m.Velocity, m.Position,
		m.JointPosition, m.Ferror, m.FerrorHigh, m.AxisFlag, m.HomingPhase,
		m.LimitTrips, m.AmpFaults, m.BadFeedback,
		m.CommandResults, m.Commands, m.Rejected, m.Failed, m.Timeouts, m.SplitReads,
		m.Goroutines, m.HeapBytes,
	)
	return m
}

// Registry returns the registry holding the controller series.
func (m *MotionMetrics) Registry() *Registry { return m.registry }

// Gather returns all series in Prometheus text format.
func (m *MotionMetrics) Gather() string {
	var ms goruntime.MemStats
	goruntime.ReadMemStats(&ms)
	m.Goroutines.Set(nil, float64(goruntime.NumGoroutine()))
	m.HeapBytes.Set(nil, float64(ms.HeapAlloc))
	return m.registry.Gather()
}

func axisLabel(i int) Labels { return Labels{"axis": strconv.Itoa(i)} }

// UpdateStatus records one status snapshot for the first axes joints.
func (m *MotionMetrics) UpdateStatus(st *shmem.Status, axes int) {
	now := m.now()
	if st.Heartbeat != m.lastHeartbeat || m.lastBeatAt.IsZero() {
		m.lastHeartbeat = st.Heartbeat
		m.lastBeatAt = now
	}
	m.Heartbeat.Set(nil, float64(st.Heartbeat))
	m.HeartbeatAge.Set(nil, now.Sub(m.lastBeatAt).Seconds())
	m.ComputeTime.Observe(nil, st.ComputeTime)

	for _, f := range motionFlagNames {
		m.MotionFlag.SetBool(Labels{"flag": f.name}, st.MotionFlag&f.bit != 0)
	}
	m.QueueDepth.Set(nil, float64(st.Depth))
	m.ActiveDepth.Set(nil, float64(st.ActiveDepth))
	m.Velocity.Set(nil, st.Vel)
	for i, name := range []string{"x", "y", "z"} {
		m.Position.Set(Labels{"axis": name}, st.Pos.Axis(i))
	}

	if st.CommandNumEcho != m.lastEcho {
		m.lastEcho = st.CommandNumEcho
		m.CommandResults.Inc(Labels{"command": st.CommandEcho.String(), "status": st.CommandStatus.String()})
	}

	for i := 0; i < axes && i < shmem.MaxJoints; i++ {
		l := axisLabel(i)
		m.JointPosition.Set(l, st.AxisPos[i])
		m.Ferror.Set(l, st.Ferror[i])
		m.FerrorHigh.Set(l, st.FerrorHighMark[i])
		m.HomingPhase.Set(l, float64(st.HomingPhase[i]))
		for _, f := range axisFlagNames {
			m.AxisFlag.SetBool(l.With("flag", f.name), st.AxisFlag[i]&f.bit != 0)
		}
	}
}

// UpdateDebug records the controller's running counters.
func (m *MotionMetrics) UpdateDebug(d *shmem.Debug, axes int) {
	m.Cycles.Observe(nil, d.Cycles)
	m.Overruns.Observe(nil, uint64(d.Overruns))
	m.CycleTimeMax.Set(nil, d.CycleTime.Max)
	for i := 0; i < axes && i < shmem.MaxJoints; i++ {
		l := axisLabel(i)
		m.LimitTrips.Observe(l.With("side", "max"), uint64(d.MaxLimitSwitchCount[i]))
		m.LimitTrips.Observe(l.With("side", "min"), uint64(d.MinLimitSwitchCount[i]))
		m.AmpFaults.Observe(l, uint64(d.AmpFaultCount[i]))
		m.BadFeedback.Observe(l, uint64(d.BadFeedbackCount[i]))
	}
}

// UpdateClient records the supervisor client's counters.
func (m *MotionMetrics) UpdateClient(s usrmot.Stats) {
	m.Commands.Observe(nil, s.Commands)
	m.Rejected.Observe(nil, s.Rejected)
	m.Failed.Observe(nil, s.Failed)
	m.Timeouts.Observe(nil, s.Timeouts)
	m.SplitReads.Observe(nil, s.SplitReads)
}

// Refresh reads every block from src once. Blocks that cannot be read
// consistently are skipped until the next refresh.
func (m *MotionMetrics) Refresh(src Source) {
	axes := shmem.MaxJoints
	var cfg shmem.Config
	if src.ReadConfig(&cfg) == nil && cfg.NumAxes > 0 {
		axes = int(cfg.NumAxes)
	}
	var st shmem.Status
	if src.ReadStatus(&st) == nil {
		m.UpdateStatus(&st, axes)
	}
	var d shmem.Debug
	if src.ReadDebug(&d) == nil {
		m.UpdateDebug(&d, axes)
	}
	m.UpdateClient(src.Stats())
}

// Run refreshes from src every interval until ctx is done.
func (m *MotionMetrics) Run(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.Refresh(src)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
