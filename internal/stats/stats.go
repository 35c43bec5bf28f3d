package stats

import (
	"sync"
	"time"
)

// Sample is one recorded failure, kept in a bounded ring so a melting-down
// cycle cannot grow memory without bound.
type Sample struct {
	AccountID string
	Error     string
	At        time.Time
}

// Collector accumulates one cycle's outcomes. Process-local and discarded
// after the cycle summary is emitted; replicas never share collectors.
type Collector struct {
	mu sync.Mutex

	attempted int
	succeeded int
	failed    int
	awards    int
	roleSyncs int

	latencySum time.Duration
	latencyMin time.Duration
	latencyMax time.Duration

	errors    []Sample
	errorCap  int
	startedAt time.Time
	nowFunc   func() time.Time
}

// NewCollector creates a collector keeping at most errorCap recent failures.
func NewCollector(errorCap int) *Collector {
	if errorCap <= 0 {
		errorCap = 10
	}
	now := time.Now
	return &Collector{
		errorCap:  errorCap,
		startedAt: now(),
		nowFunc:   now,
	}
}

// RecordSuccess records one account evaluated successfully.
func (c *Collector) RecordSuccess(latency time.Duration, awards, roleSyncs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempted++
	c.succeeded++
	c.awards += awards
	c.roleSyncs += roleSyncs
	c.observeLatency(latency)
}

// RecordFailure records one account that failed after retry exhaustion.
func (c *Collector) RecordFailure(accountID string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempted++
	c.failed++
	c.observeLatency(latency)

	sample := Sample{AccountID: accountID, At: c.nowFunc()}
	if err != nil {
		sample.Error = err.Error()
	}
	c.errors = append(c.errors, sample)
	if len(c.errors) > c.errorCap {
		c.errors = c.errors[1:]
	}
}

func (c *Collector) observeLatency(latency time.Duration) {
	c.latencySum += latency
	if c.latencyMin == 0 || latency < c.latencyMin {
		c.latencyMin = latency
	}
	if latency > c.latencyMax {
		c.latencyMax = latency
	}
}

// Summary is a point-in-time snapshot of the cycle. SuccessRate is 1.0 when
// nothing has been attempted yet so pacing starts from the fast path.
type Summary struct {
	Attempted    int
	Succeeded    int
	Failed       int
	Awards       int
	RoleSyncs    int
	SuccessRate  float64
	AvgLatency   time.Duration
	MinLatency   time.Duration
	MaxLatency   time.Duration
	Duration     time.Duration
	Throughput   float64 // accounts per second
	RecentErrors []Sample
}

// Snapshot returns the current rolling statistics.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Attempted:   c.attempted,
		Succeeded:   c.succeeded,
		Failed:      c.failed,
		Awards:      c.awards,
		RoleSyncs:   c.roleSyncs,
		SuccessRate: 1.0,
		MinLatency:  c.latencyMin,
		MaxLatency:  c.latencyMax,
		Duration:    c.nowFunc().Sub(c.startedAt),
	}
	if c.attempted > 0 {
		s.SuccessRate = float64(c.succeeded) / float64(c.attempted)
		s.AvgLatency = c.latencySum / time.Duration(c.attempted)
	}
	if secs := s.Duration.Seconds(); secs > 0 && c.attempted > 0 {
		s.Throughput = float64(c.attempted) / secs
	}
	s.RecentErrors = append([]Sample(nil), c.errors...)
	return s
}
