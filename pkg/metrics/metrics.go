// Prometheus text-format metrics
//
// Counters, gauges and histograms keyed by label set, collected in a
// Registry that renders them in registration order.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"emcmot-go/pkg/errors"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

// Key generates a unique key for a label set
func (l Labels) Key() string {
	keys := l.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + l[k]
	}
	return strings.Join(parts, ",")
}

// String returns labels in Prometheus format
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	keys := l.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escapeLabel(l[k]) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// With returns a copy of l with key set to value.
func (l Labels) With(key, value string) Labels {
	out := make(Labels, len(l)+1)
	for k, v := range l {
		out[k] = v
	}
	out[key] = value
	return out
}

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// desc carries the name and help shared by every metric type.
type desc struct {
	name string
	help string
}

func (d desc) Name() string { return d.name }
func (d desc) Help() string { return d.help }

func (d desc) writeHeader(sb *strings.Builder, t MetricType) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", d.name, d.help, d.name, t)
}

// series returns the value stored under labels, creating it with mk.
func series[V any](m *sync.Map, labels Labels, mk func() *V) *V {
	key := labels.Key()
	if v, ok := m.Load(key); ok {
		return v.(*V)
	}
	v, _ := m.LoadOrStore(key, mk())
	return v.(*V)
}

// Counter is a monotonically increasing metric
type Counter struct {
	desc
	values sync.Map // label key -> *counterValue
}

type counterValue struct {
	labels Labels
	value  atomic.Uint64
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{desc: desc{name, help}}
}

func (c *Counter) Type() MetricType { return TypeCounter }

func (c *Counter) get(labels Labels) *counterValue {
	return series(&c.values, labels, func() *counterValue { return &counterValue{labels: labels} })
}

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) { c.Add(labels, 1) }

// Add increments the counter by the given value
func (c *Counter) Add(labels Labels, delta uint64) { c.get(labels).value.Add(delta) }

// Observe raises the counter to total, a running count kept elsewhere.
// Smaller totals are ignored so the series never decreases.
func (c *Counter) Observe(labels Labels, total uint64) {
	v := c.get(labels)
	for {
		cur := v.value.Load()
		if total <= cur || v.value.CompareAndSwap(cur, total) {
			return
		}
	}
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	if v, ok := c.values.Load(labels.Key()); ok {
		return v.(*counterValue).value.Load()
	}
	return 0
}

func (c *Counter) Write(sb *strings.Builder) {
	c.writeHeader(sb, TypeCounter)
	rangeSorted(&c.values, func(v *counterValue) {
		fmt.Fprintf(sb, "%s%s %d\n", c.name, v.labels, v.value.Load())
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	desc
	values sync.Map // label key -> *gaugeValue
}

type gaugeValue struct {
	labels Labels
	mu     sync.Mutex
	value  float64
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{desc: desc{name, help}}
}

func (g *Gauge) Type() MetricType { return TypeGauge }

func (g *Gauge) get(labels Labels) *gaugeValue {
	return series(&g.values, labels, func() *gaugeValue { return &gaugeValue{labels: labels} })
}

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	v := g.get(labels)
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
}

// SetBool sets the gauge to 1 or 0.
func (g *Gauge) SetBool(labels Labels, on bool) {
	if on {
		g.Set(labels, 1)
	} else {
		g.Set(labels, 0)
	}
}

// Add adds the given value to the gauge
func (g *Gauge) Add(labels Labels, delta float64) {
	v := g.get(labels)
	v.mu.Lock()
	v.value += delta
	v.mu.Unlock()
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	raw, ok := g.values.Load(labels.Key())
	if !ok {
		return 0
	}
	v := raw.(*gaugeValue)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

func (g *Gauge) Write(sb *strings.Builder) {
	g.writeHeader(sb, TypeGauge)
	rangeSorted(&g.values, func(v *gaugeValue) {
		v.mu.Lock()
		val := v.value
		v.mu.Unlock()
		fmt.Fprintf(sb, "%s%s %s\n", g.name, v.labels, formatFloat(val))
	})
}

// Histogram tracks the distribution of observations
type Histogram struct {
	desc
	bounds []float64
	values sync.Map // label key -> *histogramValue
}

type histogramValue struct {
	labels Labels
	mu     sync.Mutex
	count  uint64
	sum    float64
	counts []uint64 // per bucket, not cumulative
}

// NewHistogram creates a new histogram metric with the given upper
// bounds.
func NewHistogram(name, help string, bounds []float64) *Histogram {
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	return &Histogram{desc: desc{name, help}, bounds: sorted}
}

// ExponentialBuckets creates count bounds starting at start with factor
// multiplier.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	b := make([]float64, count)
	for i := range b {
		b[i] = start
		start *= factor
	}
	return b
}

func (h *Histogram) Type() MetricType { return TypeHistogram }

// Observe records a value in the histogram
func (h *Histogram) Observe(labels Labels, value float64) {
	v := series(&h.values, labels, func() *histogramValue {
		return &histogramValue{labels: labels, counts: make([]uint64, len(h.bounds))}
	})
	i := sort.SearchFloat64s(h.bounds, value)
	v.mu.Lock()
	v.count++
	v.sum += value
	if i < len(v.counts) {
		v.counts[i]++
	}
	v.mu.Unlock()
}

// HistogramSnapshot contains a point-in-time copy of histogram values.
// Buckets maps each upper bound to its cumulative count.
type HistogramSnapshot struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// Snapshot returns the histogram values for labels.
func (h *Histogram) Snapshot(labels Labels) HistogramSnapshot {
	snap := HistogramSnapshot{Buckets: make(map[float64]uint64, len(h.bounds))}
	raw, ok := h.values.Load(labels.Key())
	if !ok {
		return snap
	}
	v := raw.(*histogramValue)
	v.mu.Lock()
	defer v.mu.Unlock()
	snap.Count, snap.Sum = v.count, v.sum
	var cum uint64
	for i, b := range h.bounds {
		cum += v.counts[i]
		snap.Buckets[b] = cum
	}
	return snap
}

func (h *Histogram) Write(sb *strings.Builder) {
	h.writeHeader(sb, TypeHistogram)
	rangeSorted(&h.values, func(v *histogramValue) {
		snap := h.Snapshot(v.labels)
		for _, b := range h.bounds {
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, v.labels.With("le", formatFloat(b)), snap.Buckets[b])
		}
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, v.labels.With("le", "+Inf"), snap.Count)
		fmt.Fprintf(sb, "%s_sum%s %s\n", h.name, v.labels, formatFloat(snap.Sum))
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, v.labels, snap.Count)
	})
}

// rangeSorted visits the series of m ordered by label key so that output
// is stable between scrapes.
func rangeSorted[V any](m *sync.Map, fn func(*V)) {
	var keys []string
	vals := map[string]*V{}
	m.Range(func(k, v any) bool {
		keys = append(keys, k.(string))
		vals[k.(string)] = v.(*V)
		return true
	})
	sort.Strings(keys)
	for _, k := range keys {
		fn(vals[k])
	}
}

// Registry holds registered metrics
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[m.Name()]; ok {
		return errors.New(errors.ErrRuntime, fmt.Sprintf("metric %q already registered", m.Name()))
	}
	r.metrics[m.Name()] = m
	r.order = append(r.order, m.Name())
	return nil
}

// MustRegister adds metrics and panics on error
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get returns a metric by name
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather renders every metric in Prometheus text format
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
