package activityclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/actividades/metrics"
)

type clientMetrics struct {
	requests metrics.CounterVec
	duration metrics.GaugeVec
}

func newClientMetrics(r metrics.Registry) (*clientMetrics, error) {
	requests, err := r.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_client_requests_total",
		Help: "Activity client calls by operation and outcome",
	}, []string{"operation", "outcome"})
	if err != nil {
		return nil, err
	}

	duration, err := r.NewGaugeVec(prometheus.GaugeOpts{
		Name: "activity_client_request_duration_seconds",
		Help: "Duration of the most recent activity client call",
	}, []string{"operation"})
	if err != nil {
		return nil, err
	}

	return &clientMetrics{requests: requests, duration: duration}, nil
}

// observe is a no-op when the client was built without a registry.
func (c *Client) observe(op string, outcome Outcome, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.requests.With(prometheus.Labels{"operation": op, "outcome": outcome.String()}).Inc()
	c.metrics.duration.With(prometheus.Labels{"operation": op}).Set(elapsed.Seconds())
}
