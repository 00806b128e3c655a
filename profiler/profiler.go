// Package profiler - Stage timings and memory figures for batch loss runs.
package profiler

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"
)

// MetricTracker tracks statistics for a recorded value, such as a loss
// component across repeated runs.
type MetricTracker struct {
	Name  string
	Sum   float64
	Min   float64
	Max   float64
	Count int64
}

// Mean returns the average recorded value.
func (m *MetricTracker) Mean() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}

// TimeTracker tracks timing statistics of a named stage.
type TimeTracker struct {
	Name      string
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	Count     int64
}

// Mean returns the average stage duration.
func (t *TimeTracker) Mean() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.TotalTime / time.Duration(t.Count)
}

// Profiler collects stage timings and metrics. It is safe for concurrent use.
type Profiler struct {
	mu        sync.Mutex
	startTime time.Time
	order     []string
	stages    map[string]*TimeTracker
	metrics   map[string]*MetricTracker
}

// New creates a profiler whose uptime starts now.
func New() *Profiler {
	return &Profiler{
		startTime: time.Now(),
		stages:    make(map[string]*TimeTracker),
		metrics:   make(map[string]*MetricTracker),
	}
}

// StartOperation begins timing a stage.
//
// Arguments:
// - name: The name of the stage to track
//
// Returns:
// - A function to call when the stage completes
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records one completed run of a stage.
func (p *Profiler) RecordDuration(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.stages[name]
	if !exists {
		tracker = &TimeTracker{Name: name, MinTime: duration, MaxTime: duration}
		p.stages[name] = tracker
		p.order = append(p.order, name)
	}

	tracker.TotalTime += duration
	tracker.Count++
	if duration < tracker.MinTime {
		tracker.MinTime = duration
	}
	if duration > tracker.MaxTime {
		tracker.MaxTime = duration
	}
}

// RecordMetric records a value under name.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.metrics[name]
	if !exists {
		tracker = &MetricTracker{Name: name, Min: value, Max: value}
		p.metrics[name] = tracker
	}

	tracker.Sum += value
	tracker.Count++
	if value < tracker.Min {
		tracker.Min = value
	}
	if value > tracker.Max {
		tracker.Max = value
	}
}

// Stage returns a copy of the tracker for name and whether it exists.
func (p *Profiler) Stage(name string) (TimeTracker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.stages[name]
	if !ok {
		return TimeTracker{}, false
	}
	return *t, true
}

// Metric returns a copy of the metric tracker for name and whether it exists.
func (p *Profiler) Metric(name string) (MetricTracker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		return MetricTracker{}, false
	}
	return *m, true
}

// Report writes stage timings in first-seen order, metrics sorted by name and
// the current heap figures.
func (p *Profiler) Report(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "Uptime: %v\n", time.Since(p.startTime).Truncate(time.Millisecond))

	if len(p.order) > 0 {
		fmt.Fprintf(w, "\nSTAGE TIMINGS:\n")
		for _, name := range p.order {
			t := p.stages[name]
			fmt.Fprintf(w, "  %s: avg=%v, min=%v, max=%v, count=%d\n",
				name, t.Mean().Truncate(time.Microsecond),
				t.MinTime.Truncate(time.Microsecond),
				t.MaxTime.Truncate(time.Microsecond),
				t.Count)
		}
	}

	if len(p.metrics) > 0 {
		names := make([]string, 0, len(p.metrics))
		for name := range p.metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "\nMETRICS:\n")
		for _, name := range names {
			m := p.metrics[name]
			fmt.Fprintf(w, "  %s: avg=%.6f, min=%.6f, max=%.6f, samples=%d\n",
				name, m.Mean(), m.Min, m.Max, m.Count)
		}
	}

	fmt.Fprintf(w, "\nMEMORY USAGE:\n")
	fmt.Fprintf(w, "  Heap Alloc: %s\n", formatBytes(mem.HeapAlloc))
	fmt.Fprintf(w, "  Total Alloc: %s\n", formatBytes(mem.TotalAlloc))
	fmt.Fprintf(w, "  GC Cycles: %d\n", mem.NumGC)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
