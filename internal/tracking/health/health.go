// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of one dependency check.
type ComponentHealth struct {
	Name     string        `json:"name"`
	Status   SystemStatus  `json:"status"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
	Critical bool          `json:"critical"`
}

// AuditSummary is the outcome of the most recent chain audit.
type AuditSummary struct {
	At        time.Time `json:"at"`
	Checked   int       `json:"checked"`
	Broken    int       `json:"broken"`
	BrokenIDs []string  `json:"broken_ids,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
	LastAudit    *AuditSummary              `json:"last_audit,omitempty"`
	CheckedAt    time.Time                  `json:"checked_at"`
}
