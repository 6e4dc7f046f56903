// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth contains health details for one pipeline component.
type ComponentHealth struct {
	Name    string       `json:"name"`
	Status  SystemStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
	DLQPending   int                        `json:"dlq_pending"`
}
