package demo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/actividades/clients/activityclient"
	"github.com/nomis52/actividades/clients/activityclient/activitytest"
	"github.com/nomis52/actividades/narrator"
	"github.com/nomis52/actividades/workflow"
	"github.com/nomis52/actividades/workflows"
)

func newParams(t *testing.T, baseURL string, out io.Writer, opts ...activityclient.Option) workflows.Params {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := activityclient.New(baseURL, append([]activityclient.Option{activityclient.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return workflows.Params{
		Client:   client,
		Logger:   logger,
		Narrator: narrator.New(out),
	}
}

func TestNewWorkflow_RequiresClientAndNarrator(t *testing.T) {
	_, err := NewWorkflow(workflows.Params{Narrator: narrator.New(io.Discard)})
	assert.ErrorContains(t, err, "requires a client")

	client, err := activityclient.New("http://localhost")
	require.NoError(t, err)
	_, err = NewWorkflow(workflows.Params{Client: client})
	assert.ErrorContains(t, err, "requires a narrator")
}

func TestWorkflow_AllStepsSucceed(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithoutPatch())
	defer srv.Close()

	var out bytes.Buffer
	seq, err := NewWorkflow(newParams(t, srv.CollectionURL(), &out, activityclient.WithPartialUpdateMethod("PUT")))
	require.NoError(t, err)

	require.NoError(t, seq.Execute(context.Background()))

	results := seq.GetAllResults()
	require.Len(t, results, 9)
	for n := 1; n <= 9; n++ {
		assert.True(t, results[n].IsSuccess(), "step %d: %v", n, results[n].Error)
	}

	assert.Equal(t, "Se obtuvieron 1 actividades.", results[2].Message)
	assert.Equal(t, "Campos verificados.", results[5].Message)
	assert.Equal(t, "Campos verificados.", results[7].Message)
	assert.Equal(t, "Lista vacía, eliminación verificada.", results[9].Message)
	assert.Zero(t, srv.Len())

	reqs := srv.Requests()
	require.Len(t, reqs, 9)
	methods := make([]string, len(reqs))
	for i, r := range reqs {
		methods[i] = strings.Fields(r)[0]
	}
	assert.Equal(t, []string{"POST", "GET", "GET", "PUT", "GET", "PUT", "GET", "DELETE", "GET"}, methods)

	text := out.String()
	for n := 1; n <= 9; n++ {
		assert.Contains(t, text, fmt.Sprintf("STEP %d COMPLETED", n))
	}
	id := results[1].Message
	require.True(t, strings.HasPrefix(id, "ID: "))
	for _, title := range []string{
		"Obtener actividad por ID",
		"Verificar actividad actualizada",
		"Eliminar actividad de prueba",
	} {
		assert.Regexp(t, title+`    \(.*\)\n`+regexp.QuoteMeta(id)+"\n", text)
	}
	assert.Equal(t, 2, strings.Count(text, "actualizada    ("), "both verification banners are printed")
	assert.Contains(t, text, "Actualizar parcialmente (PUT)")
	assert.Contains(t, text, `"titulo": "Juega con plastilina"`)
	assert.Contains(t, text, `"descripcion": "Hacer figuras con plastilina de animales."`)
}

func TestWorkflow_PartialUpdateRejected(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithoutPatch())
	defer srv.Close()

	seq, err := NewWorkflow(newParams(t, srv.CollectionURL(), io.Discard))
	require.NoError(t, err)

	err = seq.Execute(context.Background())
	require.Error(t, err)

	results := seq.GetAllResults()
	assert.True(t, results[5].IsSuccess())

	assert.Equal(t, workflow.Completed, results[6].State)
	assert.ErrorContains(t, results[6].Error, "unexpected status code: 405")

	require.Error(t, results[7].Error)
	assert.Contains(t, results[7].Error.Error(), `titulo: want "Juega con plastilina", got "Animales en plastilina"`)

	assert.True(t, results[8].IsSuccess(), "delete still runs after a failed verification")
	assert.True(t, results[9].IsSuccess())
}

func TestWorkflow_CreateFailureSkipsDependentSteps(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Method)
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":0,"message":"boom"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	seq, err := NewWorkflow(newParams(t, srv.URL+activitytest.CollectionPath, &out))
	require.NoError(t, err)

	err = seq.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unexpected status code: 500")

	results := seq.GetAllResults()
	assert.Equal(t, workflow.Completed, results[1].State)
	assert.Error(t, results[1].Error)
	assert.Equal(t, workflow.Completed, results[2].State)
	assert.Equal(t, "No se pudieron obtener las actividades.", results[2].Message)
	for n := 3; n <= 9; n++ {
		assert.Equal(t, workflow.Skipped, results[n].State, "step %d", n)
	}

	mu.Lock()
	assert.Equal(t, []string{"POST", "GET"}, requests)
	mu.Unlock()
	assert.Equal(t, 7, strings.Count(out.String(), "SKIPPED"))
}

func TestWorkflow_ListNotAnArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	seq, err := NewWorkflow(newParams(t, srv.URL, io.Discard))
	require.NoError(t, err)
	_ = seq.Execute(context.Background())

	assert.Equal(t, "Se obtuvieron desconocido actividades.", seq.Result(2).Message)
}

func TestWorkflow_FinalListNotEmpty(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()
	ctx := context.Background()

	params := newParams(t, srv.CollectionURL(), io.Discard)
	require.True(t, params.Client.Create(ctx, activityclient.Fields{Titulo: activityclient.String("otra")}).OK())

	seq, err := NewWorkflow(params)
	require.NoError(t, err)
	require.NoError(t, seq.Execute(ctx))

	assert.Equal(t, "Se obtuvieron 2 actividades.", seq.Result(2).Message)
	assert.Equal(t, "Lista final contiene 1 actividades (no vacía).", seq.Result(9).Message)
}
