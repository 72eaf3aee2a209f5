package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metric names used across the bot
const (
	CounterJoins           = "signup_joins"
	CounterSwitches        = "signup_switches"
	CounterLeaves          = "signup_leaves"
	CounterRemovals        = "signup_removals"
	CounterFullRejections  = "signup_full_rejections"
	CounterPartiesCreated  = "parties_created"
	CounterPartiesClosed   = "parties_closed"
	CounterRemindersSent   = "reminders_sent"
	CounterInteractions    = "interactions_handled"
	CounterHandlerFailures = "handler_failures"
)

// Metrics is a small in-process collector for counters, gauges and
// health checks, exposed on the ops API
type Metrics struct {
	mu           sync.RWMutex
	counters     map[string]*int64
	gauges       map[string]*int64
	healthChecks map[string]*int64
	startTime    time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:     make(map[string]*int64),
		gauges:       make(map[string]*int64),
		healthChecks: make(map[string]*int64),
		startTime:    time.Now(),
	}
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	atomic.AddInt64(m.slot(&m.counters, name), 1)
}

// SetGauge sets a gauge to the given value
func (m *Metrics) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.slot(&m.gauges, name), value)
}

// SetHealthCheck records a named health status
func (m *Metrics) SetHealthCheck(name string, healthy bool) {
	var v int64
	if healthy {
		v = 1
	}
	atomic.StoreInt64(m.slot(&m.healthChecks, name), v)
}

// slot returns the value cell for a name, creating it on first use
func (m *Metrics) slot(table *map[string]*int64, name string) *int64 {
	m.mu.RLock()
	cell, ok := (*table)[name]
	m.mu.RUnlock()
	if ok {
		return cell
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Check again to avoid race conditions
	if cell, ok = (*table)[name]; !ok {
		var v int64
		cell = &v
		(*table)[name] = cell
	}
	return cell
}

// Snapshot is the JSON shape returned by the metrics endpoint
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Counters      map[string]int64 `json:"counters"`
	Gauges        map[string]int64 `json:"gauges"`
	Health        map[string]bool  `json:"health"`
}

// GetAllMetrics returns a point-in-time snapshot of all metrics
func (m *Metrics) GetAllMetrics() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		Counters:      make(map[string]int64, len(m.counters)),
		Gauges:        make(map[string]int64, len(m.gauges)),
		Health:        make(map[string]bool, len(m.healthChecks)),
	}
	for name, cell := range m.counters {
		snap.Counters[name] = atomic.LoadInt64(cell)
	}
	for name, cell := range m.gauges {
		snap.Gauges[name] = atomic.LoadInt64(cell)
	}
	for name, cell := range m.healthChecks {
		snap.Health[name] = atomic.LoadInt64(cell) == 1
	}
	return snap
}

// GetHealthChecks returns the current health statuses
func (m *Metrics) GetHealthChecks() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := make(map[string]bool, len(m.healthChecks))
	for name, cell := range m.healthChecks {
		health[name] = atomic.LoadInt64(cell) == 1
	}
	return health
}
