// Package perfmonitor measures wall-clock time between a start and a stop
// mark. The echo server uses it for session durations and the client for
// exchange round trips.
package perfmonitor

import "time"

// PerformanceMonitor records one start/stop interval. It is not safe for
// concurrent use; each session or exchange owns its own monitor.
type PerformanceMonitor struct {
	startTime time.Time
	endTime   time.Time
}

// NewPerformanceMonitor returns a monitor with no interval recorded.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{}
}

// Start marks the beginning of a new interval and discards any previous stop mark.
func (p *PerformanceMonitor) Start() {
	p.startTime = time.Now()
	p.endTime = time.Time{}
}

// Stop marks the end of the interval. It does nothing if Start was not called.
// Calling Stop again moves the end mark.
func (p *PerformanceMonitor) Stop() {
	if p.startTime.IsZero() {
		return
	}

	p.endTime = time.Now()
}

// Reset clears both marks.
func (p *PerformanceMonitor) Reset() {
	p.startTime = time.Time{}
	p.endTime = time.Time{}
}

// Elapsed returns the recorded interval, or zero if it is incomplete.
func (p *PerformanceMonitor) Elapsed() time.Duration {
	if p.startTime.IsZero() || p.endTime.IsZero() {
		return 0
	}

	return p.endTime.Sub(p.startTime)
}

// ElapsedMilliseconds returns Elapsed as fractional milliseconds.
func (p *PerformanceMonitor) ElapsedMilliseconds() float64 {
	return float64(p.Elapsed()) / float64(time.Millisecond)
}
