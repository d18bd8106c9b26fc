package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nomis52/actividades/clients/activityclient"
	"github.com/nomis52/actividades/narrator"
	"github.com/nomis52/actividades/workflow"
)

const createStep = 1

// run holds the state shared between the steps of one walkthrough.
type run struct {
	client   *activityclient.Client
	narrator *narrator.Narrator
	logger   *slog.Logger

	// id is set by step 1 and read by every later step that requires it.
	id string
}

func (r *run) steps() []workflow.Step {
	after := []int{createStep}
	return []workflow.Step{
		{
			Number: createStep,
			Title:  "Crear actividad de prueba",
			Note:   "Se enviará una petición POST para crear la actividad.",
			Run:    r.create,
		},
		{
			Number: 2,
			Title:  "Obtener todas las actividades",
			Note:   "Se enviará una petición GET para listar actividades.",
			Run:    r.listAll,
		},
		{
			Number:   3,
			Title:    "Obtener actividad por ID",
			NoteFunc: r.idNote,
			Requires: after,
			Run:      r.show,
		},
		{
			Number:   4,
			Title:    "Actualizar actividad completamente (PUT)",
			Note:     "Se enviará una petición PUT con todos los campos.",
			Requires: after,
			Run:      r.replace,
		},
		{
			Number:   5,
			Title:    "Verificar actividad actualizada",
			NoteFunc: r.idNote,
			Requires: after,
			Run:      r.verify(activityclient.FieldsFrom(Replacement)),
		},
		{
			Number:   6,
			Title:    fmt.Sprintf("Actualizar parcialmente (%s)", r.client.PartialUpdateMethod()),
			Note:     "Se enviarán solo los campos a cambiar.",
			Requires: after,
			Run:      r.patch,
		},
		{
			Number:   7,
			Title:    "Verificar actividad actualizada",
			NoteFunc: r.idNote,
			Requires: after,
			Run:      r.verify(partialFields()),
		},
		{
			Number:   8,
			Title:    "Eliminar actividad de prueba",
			NoteFunc: r.idNote,
			Requires: after,
			Run:      r.remove,
		},
		{
			Number:   9,
			Title:    "Listar todas las actividades (verificación final)",
			Note:     "Se enviará una petición GET para listar todas las actividades tras la eliminación.",
			Requires: after,
			Run:      r.finalList,
		},
	}
}

// idNote names the record a step targets. It is read when the step starts.
func (r *run) idNote() string {
	return "ID: " + r.id
}

func partialFields() activityclient.Fields {
	return activityclient.Fields{
		Titulo:          activityclient.String(PartialTitulo),
		EmocionAsociada: activityclient.String(PartialEmocion),
	}
}

func (r *run) create(ctx context.Context) (string, error) {
	res := r.client.Create(ctx, activityclient.FieldsFrom(Initial))
	if !res.OK() {
		return "", resultError(res, "")
	}
	if res.Value.ObjectID == "" {
		return "", errors.New("server did not assign an objectId")
	}
	r.id = res.Value.ObjectID
	r.logger.Info("test activity created", "id", r.id)
	r.print(res.Value)
	return "ID: " + r.id, nil
}

func (r *run) listAll(ctx context.Context) (string, error) {
	res := r.client.List(ctx)
	if !res.OK() {
		return "No se pudieron obtener las actividades.", resultError(res, "")
	}
	r.print(res.Value)
	return fmt.Sprintf("Se obtuvieron %s actividades.", countLabel(res.Value)), nil
}

func (r *run) show(ctx context.Context) (string, error) {
	res := r.client.Get(ctx, r.id)
	if !res.OK() {
		return "", resultError(res, r.id)
	}
	r.print(res.Value)
	return "ID: " + r.id, nil
}

func (r *run) replace(ctx context.Context) (string, error) {
	res := r.client.Update(ctx, r.id, activityclient.FieldsFrom(Replacement))
	if !res.OK() {
		return "", resultError(res, r.id)
	}
	r.print(res.Value)
	return "", nil
}

func (r *run) patch(ctx context.Context) (string, error) {
	res := r.client.UpdatePartial(ctx, r.id, partialFields())
	if !res.OK() {
		return "", resultError(res, r.id)
	}
	r.print(res.Value)
	return "", nil
}

// verify fetches the activity and checks every field set in want.
func (r *run) verify(want activityclient.Fields) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		res := r.client.Get(ctx, r.id)
		if !res.OK() {
			return "", resultError(res, r.id)
		}
		r.print(res.Value)

		got := activityclient.FieldsFrom(res.Value).Payload()
		var mismatches []string
		for key, value := range want.Payload() {
			if got[key] != value {
				mismatches = append(mismatches, fmt.Sprintf("%s: want %q, got %q", key, value, got[key]))
			}
		}
		if len(mismatches) > 0 {
			slices.Sort(mismatches)
			return "", fmt.Errorf("activity %s does not match the update: %s", r.id, strings.Join(mismatches, "; "))
		}
		return "Campos verificados.", nil
	}
}

func (r *run) remove(ctx context.Context) (string, error) {
	res := r.client.Delete(ctx, r.id)
	if !res.OK() {
		return "", resultError(res, r.id)
	}
	r.logger.Info("test activity deleted", "id", r.id)
	return "ID: " + r.id, nil
}

func (r *run) finalList(ctx context.Context) (string, error) {
	res := r.client.List(ctx)
	if !res.OK() {
		return "No fue posible obtener la lista final (error en la petición).", resultError(res, "")
	}
	if n, isList := res.Value.Len(); isList && n == 0 {
		return "Lista vacía, eliminación verificada.", nil
	}
	return fmt.Sprintf("Lista final contiene %s actividades (no vacía).", countLabel(res.Value)), nil
}

func (r *run) print(v any) {
	if err := r.narrator.JSON(v); err != nil {
		r.logger.Warn("failed to print response", "error", err)
	}
}

func countLabel(c activityclient.Collection) string {
	n, isList := c.Len()
	if !isList {
		return "desconocido"
	}
	return fmt.Sprint(n)
}

// resultError turns a result that is not OK into a step error.
func resultError[T any](res activityclient.Result[T], id string) error {
	switch {
	case res.NotFound():
		return fmt.Errorf("activity %s not found", id)
	case res.NothingToDo():
		return errors.New("no fields to send")
	case res.Err != nil:
		return res.Err
	default:
		return fmt.Errorf("request failed with status %d", res.StatusCode)
	}
}
