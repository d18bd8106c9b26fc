// Package demo provides the narrated nine-step walkthrough of the
// activities collection: create, list, read, full update, verify, partial
// update, verify, delete and a final list.
package demo

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nomis52/actividades/clients/activityclient"
	"github.com/nomis52/actividades/workflow"
	"github.com/nomis52/actividades/workflows"
)

// Fixtures used by the walkthrough.
var (
	// Initial is the activity created in step 1.
	Initial = activityclient.Activity{
		Descripcion:     "Escuchar un cuento corto y dibujar tu parte favorita.",
		TipoActividad:   "Actividad Literaria",
		Titulo:          "Cuento y dibujo",
		EmocionAsociada: "tranquilo",
	}

	// Replacement holds the values sent by the full update in step 4.
	Replacement = activityclient.Activity{
		Descripcion:     "Hacer figuras con plastilina de animales.",
		TipoActividad:   "Actividad Artistica",
		Titulo:          "Animales en plastilina",
		EmocionAsociada: "feliz",
	}

	// PartialTitulo and PartialEmocion are sent by the partial update in step 6.
	PartialTitulo  = "Juega con plastilina"
	PartialEmocion = "alegre"
)

// NewWorkflow creates the walkthrough. Each call gets a fresh run id that is
// attached to every log line of the run.
func NewWorkflow(params workflows.Params) (*workflow.Sequence, error) {
	if params.Client == nil {
		return nil, errors.New("demo workflow requires a client")
	}
	if params.Narrator == nil {
		return nil, errors.New("demo workflow requires a narrator")
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", uuid.NewString())

	r := &run{
		client:   params.Client,
		narrator: params.Narrator,
		logger:   logger,
	}

	seq := workflow.NewSequence(params.SequenceOptions(logger)...)
	if err := seq.Add(r.steps()...); err != nil {
		return nil, fmt.Errorf("failed to build demo workflow: %w", err)
	}
	return seq, nil
}
