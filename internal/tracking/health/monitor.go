package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// Monitor aggregates health status from the service's dependencies and the
// last chain audit.
type Monitor struct {
	checks     []check
	cacheFor   time.Duration
	timeout    time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	audit      *AuditSummary
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		cacheFor: 10 * time.Second,
		timeout:  2 * time.Second,
	}
}

// AddCheck registers a dependency. A failing critical check makes the whole
// service critical; any other failure only degrades it.
func (m *Monitor) AddCheck(name string, critical bool, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, critical: critical, fn: fn})
	m.lastCheck = time.Time{}
}

// RecordAudit publishes the outcome of an audit pass.
func (m *Monitor) RecordAudit(summary AuditSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = &summary
	m.lastCheck = time.Time{}
}

// CheckHealth runs every check, reusing the previous report for a few seconds
// so health checks cannot hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
		CheckedAt:    time.Now().UTC(),
	}

	for _, c := range m.checks {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		err := c.fn(cctx)
		cancel()

		component := ComponentHealth{
			Name:     c.name,
			Status:   StatusHealthy,
			Latency:  time.Since(start),
			Critical: c.critical,
		}
		if err != nil {
			component.Error = err.Error()
			component.Status = StatusDegraded
			if c.critical {
				component.Status = StatusCritical
			}
		}
		report.Components[c.name] = component
		report.SystemStatus = worst(report.SystemStatus, component.Status)
	}

	if m.audit != nil {
		a := *m.audit
		report.LastAudit = &a
		if a.Broken > 0 {
			report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
