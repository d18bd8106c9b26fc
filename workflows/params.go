// Package workflows provides application-specific workflow definitions.
// Unlike the generic workflow package (which handles sequencing),
// this package contains types specific to the actividades application.
package workflows

import (
	"log/slog"

	"github.com/nomis52/actividades/clients/activityclient"
	"github.com/nomis52/actividades/narrator"
	"github.com/nomis52/actividades/workflow"
)

// Params contains common parameters for workflow construction.
type Params struct {
	// Client talks to the activities collection. Required.
	Client *activityclient.Client

	// Logger is the base logger for the workflow.
	Logger *slog.Logger

	// Narrator prints step banners and payloads. Required.
	Narrator *narrator.Narrator

	// Metrics records step results. May be nil if metrics are not needed.
	Metrics *workflow.Metrics
}

// SequenceOptions returns the sequence options shared by every workflow.
func (p Params) SequenceOptions(logger *slog.Logger) []workflow.Option {
	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithNarrator(p.Narrator),
	}
	if p.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(p.Metrics))
	}
	return opts
}
