// Package profiler - Per-stage timing of the frame pipeline.
package profiler

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one tracked operation.
type OperationStats struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// StageProfiler records how long each named stage of a run takes.
//
// It is safe for concurrent use, though a run records from a single goroutine.
type StageProfiler struct {
	clock clock.Clock

	mu             sync.Mutex
	order          []string
	operationTimes map[string]*TimeTracker
}

// NewStageProfiler creates a profiler reading time from clk. A nil clock uses the wall clock.
func NewStageProfiler(clk clock.Clock) *StageProfiler {
	if clk == nil {
		clk = clock.New()
	}
	return &StageProfiler{
		clock:          clk,
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *StageProfiler) StartOperation(name string) func() {
	start := p.clock.Now()
	return func() {
		p.Record(name, p.clock.Since(start))
	}
}

// Record adds one completed operation.
func (p *StageProfiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		p.operationTimes[name] = tracker
		p.order = append(p.order, name)
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Stats returns the tracked operations in the order they were first recorded.
func (p *StageProfiler) Stats() []OperationStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]OperationStats, 0, len(p.order))
	for _, name := range p.order {
		t := p.operationTimes[name]
		out = append(out, OperationStats{
			Name:  t.name,
			Count: t.count,
			Total: t.totalTime,
			Min:   t.minTime,
			Max:   t.maxTime,
			Avg:   t.totalTime / time.Duration(t.count),
		})
	}
	return out
}

// Report logs one line per operation and a memory summary.
func (p *StageProfiler) Report(logger logrus.FieldLogger) {
	for _, s := range p.Stats() {
		logger.WithFields(logrus.Fields{
			"avg":   s.Avg.Truncate(time.Microsecond),
			"min":   s.Min.Truncate(time.Microsecond),
			"max":   s.Max.Truncate(time.Microsecond),
			"count": s.Count,
		}).Infof("⏱️ %s", s.Name)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	logger.WithFields(logrus.Fields{
		"heap_alloc":  formatBytes(mem.HeapAlloc),
		"total_alloc": formatBytes(mem.TotalAlloc),
		"gc_cycles":   mem.NumGC,
	}).Debug("memory usage")
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
