package component

import "context"

// HealthStatus is the health of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health is the result of a health check.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed piece of infrastructure.
type Component interface {
	// Name is unique within a Registry.
	Name() string
	Start(ctx context.Context) error
	// Stop releases resources. It is only called after a successful Start.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Check builds a Health from the result of a probe: healthy when err is
// nil, unhealthy with err as the message otherwise.
func Check(name string, err error) Health {
	if err != nil {
		return Health{Name: name, Status: StatusUnhealthy, Message: err.Error()}
	}
	return Health{Name: name, Status: StatusHealthy}
}
