package gateway

import (
	"context"
	"fmt"

	"github.com/zoobzio/clockz"
)

// ProbeFunc performs a provider liveness call and returns details to report.
type ProbeFunc func(ctx context.Context) (map[string]any, error)

// SafeHealthCheck runs probe and converts any error or panic into an unhealthy
// status. It never panics.
func SafeHealthCheck(ctx context.Context, clock clockz.Clock, probe ProbeFunc) (status HealthStatus) {
	if clock == nil {
		clock = clockz.RealClock
	}
	start := clock.Now()

	defer func() {
		if r := recover(); r != nil {
			status = HealthStatus{
				Healthy: false,
				Error:   fmt.Sprintf("health check panicked: %v", r),
			}
		}
		status.ResponseTime = clock.Now().Sub(start)
		status.ResponseMs = float64(status.ResponseTime.Microseconds()) / 1000
		status.CheckedAt = clock.Now().UTC()
	}()

	details, err := probe(ctx)
	if err != nil {
		return HealthStatus{Healthy: false, Details: details, Error: err.Error()}
	}
	return HealthStatus{Healthy: true, Details: details}
}
