package activityclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/actividades/metrics"
)

const collectionPath = "/api/data/actividades"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := New(ts.URL+collectionPath, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		opts     []Option
		wantBase string
		errMsg   string
	}{
		{
			name:     "valid https url",
			baseURL:  "https://smartaunt-us.backendless.app/api/data/actividades",
			opts:     []Option{WithLogger(discardLogger())},
			wantBase: "https://smartaunt-us.backendless.app/api/data/actividades",
		},
		{
			name:     "trailing slash trimmed",
			baseURL:  "http://localhost:8080/api/data/actividades/",
			wantBase: "http://localhost:8080/api/data/actividades",
		},
		{
			name:    "missing scheme",
			baseURL: "backendless.app/api/data/actividades",
			errMsg:  "base URL must include scheme and host",
		},
		{
			name:    "invalid url",
			baseURL: "http://:invalid",
			errMsg:  "invalid base URL",
		},
		{
			name:    "unsupported partial method",
			baseURL: "http://localhost",
			opts:    []Option{WithPartialUpdateMethod("POST")},
			errMsg:  "partial update method must be PATCH or PUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.baseURL, tt.opts...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, client.BaseURL)
			assert.NotNil(t, client.Logger)
			assert.Equal(t, http.MethodPatch, client.PartialUpdateMethod())
		})
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantOutcome Outcome
		wantErr     string
		verifyFn    func(t *testing.T, res Result[Activity])
	}{
		{
			name:   "success",
			status: http.StatusOK,
			response: `{"objectId":"ABC-123","descripcion":"D","tipo_actividad":"T","titulo":"Ti",
				"emocion_asociada":"tranquilo","created":1700000000000,"___class":"actividades"}`,
			wantOutcome: OutcomeOK,
			verifyFn: func(t *testing.T, res Result[Activity]) {
				assert.Equal(t, "ABC-123", res.Value.ObjectID)
				assert.Equal(t, "Ti", res.Value.Titulo)
				assert.Equal(t, "tranquilo", res.Value.EmocionAsociada)
				assert.JSONEq(t, `"actividades"`, string(res.Value.Extra["___class"]))
			},
		},
		{
			name:        "server error",
			status:      http.StatusBadRequest,
			response:    `{"code":1000,"message":"bad"}`,
			wantOutcome: OutcomeFailed,
			wantErr:     "unexpected status code: 400",
			verifyFn: func(t *testing.T, res Result[Activity]) {
				assert.Equal(t, http.StatusBadRequest, res.StatusCode)
				assert.Equal(t, `{"code":1000,"message":"bad"}`, res.Body)
			},
		},
		{
			name:        "not found on collection is a failure",
			status:      http.StatusNotFound,
			response:    `{"code":1009,"message":"Table not found"}`,
			wantOutcome: OutcomeFailed,
			wantErr:     "unexpected status code: 404",
		},
		{
			name:        "invalid json",
			status:      http.StatusOK,
			response:    `not json`,
			wantOutcome: OutcomeFailed,
			wantErr:     "failed to unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, collectionPath, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]any{
					"descripcion":      "D",
					"tipo_actividad":   "T",
					"titulo":           "Ti",
					"emocion_asociada": "tranquilo",
				}, body)

				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			})

			res := client.Create(context.Background(), FieldsFrom(Activity{
				Descripcion:     "D",
				TipoActividad:   "T",
				Titulo:          "Ti",
				EmocionAsociada: "tranquilo",
			}))

			assert.Equal(t, tt.wantOutcome, res.Outcome)
			if tt.wantErr != "" {
				require.Error(t, res.Err)
				assert.Contains(t, res.Err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, res.Err)
			}
			if tt.verifyFn != nil {
				tt.verifyFn(t, res)
			}
		})
	}
}

func TestCreate_OnlyProvidedFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"titulo": "Solo", "nivel": float64(2)}, body)
		w.Write([]byte(`{"objectId":"X","titulo":"Solo","nivel":2}`))
	})

	res := client.Create(context.Background(), Fields{
		Titulo: String("Solo"),
		Extra:  map[string]any{"nivel": 2, "ignored": nil, "objectId": "client-made"},
	})
	require.True(t, res.OK())
	assert.Equal(t, "X", res.Value.ObjectID)
}

func TestList(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantOutcome Outcome
		wantCount   int
		wantList    bool
		wantErr     string
	}{
		{
			name:        "array of activities",
			status:      http.StatusOK,
			response:    `[{"objectId":"A","titulo":"uno"},{"objectId":"B","titulo":"dos"}]`,
			wantOutcome: OutcomeOK,
			wantCount:   2,
			wantList:    true,
		},
		{
			name:        "empty array",
			status:      http.StatusOK,
			response:    `[]`,
			wantOutcome: OutcomeOK,
			wantCount:   0,
			wantList:    true,
		},
		{
			name:        "non-list shape is accepted",
			status:      http.StatusOK,
			response:    `{"data":[],"totalObjects":0}`,
			wantOutcome: OutcomeOK,
			wantList:    false,
		},
		{
			name:        "invalid json",
			status:      http.StatusOK,
			response:    `[{`,
			wantOutcome: OutcomeFailed,
			wantErr:     "failed to unmarshal response",
		},
		{
			name:        "http error",
			status:      http.StatusInternalServerError,
			response:    "boom",
			wantOutcome: OutcomeFailed,
			wantErr:     "unexpected status code: 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, collectionPath, r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			})

			res := client.List(context.Background())
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			if tt.wantErr != "" {
				require.Error(t, res.Err)
				assert.Contains(t, res.Err.Error(), tt.wantErr)
				return
			}
			count, isList := res.Value.Len()
			assert.Equal(t, tt.wantCount, count)
			assert.Equal(t, tt.wantList, isList)
			assert.JSONEq(t, tt.response, string(res.Value.Raw))
		})
	}
}

func TestList_KeepsUndecodableElements(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"objectId":"A"}, "odd", {"objectId":"B"}]`))
	})

	res := client.List(context.Background())
	require.True(t, res.OK())
	count, isList := res.Value.Len()
	assert.True(t, isList)
	assert.Equal(t, 3, count)
	require.Len(t, res.Value.Items, 2)
	assert.Equal(t, "B", res.Value.Items[1].ObjectID)
}

func TestGet(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantOutcome Outcome
	}{
		{
			name:        "found",
			status:      http.StatusOK,
			response:    `{"objectId":"ID 1","titulo":"Cuento y dibujo"}`,
			wantOutcome: OutcomeOK,
		},
		{
			name:        "not found",
			status:      http.StatusNotFound,
			response:    `{"code":1000,"message":"Entity with the specified ID cannot be found"}`,
			wantOutcome: OutcomeNotFound,
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			response:    `{"code":3064}`,
			wantOutcome: OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, collectionPath+"/ID%201", r.URL.EscapedPath())
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			})

			res := client.Get(context.Background(), "ID 1")
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			switch tt.wantOutcome {
			case OutcomeOK:
				assert.Equal(t, "ID 1", res.Value.ObjectID)
				assert.Equal(t, "Cuento y dibujo", res.Value.Titulo)
			case OutcomeNotFound:
				assert.NoError(t, res.Err)
				assert.Equal(t, http.StatusNotFound, res.StatusCode)
			case OutcomeFailed:
				assert.Error(t, res.Err)
				assert.Equal(t, tt.response, res.Body)
			}
		})
	}
}

func TestEmptyIDSendsNoRequest(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	ctx := context.Background()

	get := client.Get(ctx, "")
	assert.True(t, get.Failed())
	assert.ErrorIs(t, get.Err, ErrMissingID)

	del := client.Delete(ctx, "")
	assert.True(t, del.Failed())
	assert.False(t, del.Value)

	upd := client.Update(ctx, "", Fields{Titulo: String("x")})
	assert.ErrorIs(t, upd.Err, ErrMissingID)

	assert.Zero(t, calls)
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name        string
		fields      Fields
		status      int
		response    string
		wantOutcome Outcome
		wantBody    map[string]any
		wantCalls   int
	}{
		{
			name:        "only set fields are sent",
			fields:      Fields{Titulo: String("Nuevo")},
			status:      http.StatusOK,
			response:    `{"objectId":"A","titulo":"Nuevo","descripcion":"D"}`,
			wantOutcome: OutcomeOK,
			wantBody:    map[string]any{"titulo": "Nuevo"},
			wantCalls:   1,
		},
		{
			name:        "named field wins over extra",
			fields:      Fields{Titulo: String("Nuevo"), Extra: map[string]any{"titulo": "viejo", "orden": "1"}},
			status:      http.StatusOK,
			response:    `{"objectId":"A","titulo":"Nuevo","orden":"1"}`,
			wantOutcome: OutcomeOK,
			wantBody:    map[string]any{"titulo": "Nuevo", "orden": "1"},
			wantCalls:   1,
		},
		{
			name:        "no fields is nothing to do",
			fields:      Fields{},
			wantOutcome: OutcomeNothingToDo,
			wantCalls:   0,
		},
		{
			name:        "only nil extras is nothing to do",
			fields:      Fields{Extra: map[string]any{"a": nil}},
			wantOutcome: OutcomeNothingToDo,
			wantCalls:   0,
		},
		{
			name:        "not found",
			fields:      Fields{Titulo: String("Nuevo")},
			status:      http.StatusNotFound,
			response:    `{"code":1000}`,
			wantOutcome: OutcomeNotFound,
			wantBody:    map[string]any{"titulo": "Nuevo"},
			wantCalls:   1,
		},
		{
			name:        "server error",
			fields:      Fields{Titulo: String("Nuevo")},
			status:      http.StatusInternalServerError,
			response:    `oops`,
			wantOutcome: OutcomeFailed,
			wantBody:    map[string]any{"titulo": "Nuevo"},
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, collectionPath+"/A", r.URL.Path)
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tt.wantBody, body)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			})

			res := client.Update(context.Background(), "A", tt.fields)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantCalls, calls)
			if res.OK() {
				assert.Equal(t, "Nuevo", res.Value.Titulo)
			}
		})
	}
}

func TestUpdatePartial(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantMethod string
	}{
		{name: "defaults to PATCH", wantMethod: http.MethodPatch},
		{name: "PUT for backends without PATCH", opts: []Option{WithPartialUpdateMethod("put")}, wantMethod: http.MethodPut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantMethod, r.Method)
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]any{"emocion_asociada": "alegre"}, body)
				w.Write([]byte(`{"objectId":"A","emocion_asociada":"alegre"}`))
			}, tt.opts...)

			res := client.UpdatePartial(context.Background(), "A", Fields{EmocionAsociada: String("alegre")})
			require.True(t, res.OK())
			assert.Equal(t, "alegre", res.Value.EmocionAsociada)

			empty := client.UpdatePartial(context.Background(), "A", Fields{})
			assert.True(t, empty.NothingToDo())
		})
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantOutcome Outcome
		wantValue   bool
	}{
		{name: "ok", status: http.StatusOK, response: `{"deletionTime":1700000000000}`, wantOutcome: OutcomeOK, wantValue: true},
		{name: "no content", status: http.StatusNoContent, wantOutcome: OutcomeOK, wantValue: true},
		{name: "not found", status: http.StatusNotFound, response: `{"code":1000}`, wantOutcome: OutcomeNotFound},
		{name: "server error", status: http.StatusInternalServerError, response: `oops`, wantOutcome: OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, collectionPath+"/A", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			})

			res := client.Delete(context.Background(), "A")
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantValue, res.Value)
		})
	}
}

func TestConnectionError(t *testing.T) {
	client, err := New("http://localhost:1"+collectionPath, WithLogger(discardLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	create := client.Create(ctx, Fields{Titulo: String("x")})
	assert.True(t, create.Failed())
	assert.Zero(t, create.StatusCode)
	assert.Contains(t, create.Err.Error(), "request failed")

	get := client.Get(ctx, "A")
	assert.True(t, get.Failed())

	del := client.Delete(ctx, "A")
	assert.True(t, del.Failed())
	assert.False(t, del.Value)
}

type errorReader struct{}

func (e *errorReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read error")
}

func (e *errorReader) Close() error {
	return nil
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestReadError(t *testing.T) {
	hc := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       &errorReader{},
			}, nil
		}),
	}
	client, err := New("http://example.com"+collectionPath, WithLogger(discardLogger()), WithHTTPClient(hc))
	require.NoError(t, err)

	res := client.Get(context.Background(), "A")
	assert.True(t, res.Failed())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Err.Error(), "failed to read response body")
}

func TestFailureLogMessages(t *testing.T) {
	var requests int
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"objectId":"A"}`))
	}))
	defer live.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name        string
		baseURL     string
		ctx         context.Context
		call        func(ctx context.Context, c *Client) error
		wantLog     string
		wantErr     string
		connectHint bool
	}{
		{
			name:    "unreachable server",
			baseURL: "http://localhost:1" + collectionPath,
			ctx:     context.Background(),
			call: func(ctx context.Context, c *Client) error {
				return c.Get(ctx, "A").Err
			},
			wantLog:     "connection error, check the activities service base URL",
			wantErr:     "request failed",
			connectHint: true,
		},
		{
			name:    "cancelled context",
			baseURL: live.URL + collectionPath,
			ctx:     cancelled,
			call: func(ctx context.Context, c *Client) error {
				return c.Get(ctx, "A").Err
			},
			wantLog: "failed to fetch activity",
			wantErr: "context canceled",
		},
		{
			name:    "payload that cannot be encoded",
			baseURL: live.URL + collectionPath,
			ctx:     context.Background(),
			call: func(ctx context.Context, c *Client) error {
				return c.Create(ctx, Fields{Extra: map[string]any{"canal": make(chan int)}}).Err
			},
			wantLog: "failed to create activity",
			wantErr: "failed to marshal request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			client, err := New(tt.baseURL, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
			require.NoError(t, err)

			err = tt.call(tt.ctx, client)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			out := buf.String()
			assert.Contains(t, out, tt.wantLog)
			if !tt.connectHint {
				assert.NotContains(t, out, "connection error")
			}
		})
	}
	assert.Zero(t, requests, "no request reaches the server for encoding or cancellation failures")
}

func TestNarration(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend exploded"))
	}, WithLogger(logger))

	client.Delete(context.Background(), "A")

	out := buf.String()
	assert.Contains(t, out, "deleting activity")
	assert.Contains(t, out, "failed to delete activity")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "backend exploded")
}

func TestMetrics(t *testing.T) {
	registry, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"objectId":"A"}`))
	}, WithMetricsRegistry(registry))

	ctx := context.Background()
	client.Get(ctx, "A")
	client.Get(ctx, "A")
	client.Delete(ctx, "A")
	client.Update(ctx, "A", Fields{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `activity_client_requests_total{operation="get",outcome="ok"} 2`)
	assert.Contains(t, body, `activity_client_requests_total{operation="delete",outcome="not_found"} 1`)
	assert.Contains(t, body, `activity_client_requests_total{operation="update",outcome="nothing_to_do"} 1`)
	assert.Contains(t, body, `activity_client_request_duration_seconds{operation="get"}`)

	_, err = New("http://localhost", WithMetricsRegistry(registry))
	assert.Error(t, err, "registering the same metrics twice should fail")
}
