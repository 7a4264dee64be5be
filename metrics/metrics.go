// Package metrics collects in-process pipeline counters. Counters are
// job-scoped aggregates; there is no export surface beyond Snapshot.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates pipeline counters.
//
// Thread-safety: all methods are safe for concurrent use.
type Collector struct {
	mu            sync.Mutex
	jobsStarted   int64
	jobsCompleted int64
	jobsFailed    int64
	retries       int64
	totalDuration time.Duration
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	JobsStarted   int64
	JobsCompleted int64
	JobsFailed    int64
	Retries       int64

	// AvgDuration is the mean wall time of completed jobs
	AvgDuration time.Duration
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// JobStarted records a newly queued job.
func (c *Collector) JobStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsStarted++
}

// JobCompleted records a successful job and its wall time.
func (c *Collector) JobCompleted(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsCompleted++
	c.totalDuration += d
}

// JobFailed records a terminally failed job.
func (c *Collector) JobFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsFailed++
}

// RetryScheduled records one retry attempt.
func (c *Collector) RetryScheduled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		JobsStarted:   c.jobsStarted,
		JobsCompleted: c.jobsCompleted,
		JobsFailed:    c.jobsFailed,
		Retries:       c.retries,
	}
	if c.jobsCompleted > 0 {
		s.AvgDuration = c.totalDuration / time.Duration(c.jobsCompleted)
	}
	return s
}
