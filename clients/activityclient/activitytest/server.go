// Package activitytest provides an in-memory stand-in for a hosted activities
// collection, for use in tests.
//
// It follows the behaviour of a Backendless data table: the server assigns
// objectId on create, updates merge the sent keys into the stored record, and
// missing ids answer 404 with a JSON error body.
package activitytest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CollectionPath is where the fake collection is mounted.
const CollectionPath = "/api/data/actividades"

// Server is a fake activities collection backed by a map.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  map[string]map[string]any
	order    []string
	requests []string
	noPatch  bool
}

// Option configures a Server.
type Option func(*Server)

// WithoutPatch makes the server reject PATCH with 405, as Backendless does.
func WithoutPatch() Option {
	return func(s *Server) {
		s.noPatch = true
	}
}

// NewServer starts a fake collection. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{records: make(map[string]map[string]any)}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// CollectionURL returns the base URL to hand to activityclient.New.
func (s *Server) CollectionURL() string {
	return s.URL + CollectionPath
}

// Requests returns every request seen so far as "METHOD path".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Len returns the number of stored records.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Record returns a copy of the stored record with the given id.
func (s *Server) Record(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return maps.Clone(rec), ok
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	if r.URL.Path == CollectionPath {
		switch r.Method {
		case http.MethodGet:
			s.list(w)
		case http.MethodPost:
			s.create(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, 405, "method not allowed")
		}
		return
	}

	id, ok := strings.CutPrefix(r.URL.Path, CollectionPath+"/")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, 404, "unknown path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.get(w, id)
	case http.MethodPut:
		s.update(w, r, id)
	case http.MethodPatch:
		if s.noPatch {
			writeError(w, http.StatusMethodNotAllowed, 405, "PATCH is not supported")
			return
		}
		s.update(w, r, id)
	case http.MethodDelete:
		s.delete(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, 405, "method not allowed")
	}
}

func (s *Server) list(w http.ResponseWriter) {
	out := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	id := strings.ToUpper(uuid.NewString())
	now := time.Now().UnixMilli()
	body["objectId"] = id
	body["created"] = now
	body["updated"] = nil
	body["___class"] = "actividades"

	s.records[id] = body
	s.order = append(s.order, id)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) get(w http.ResponseWriter, id string) {
	rec, ok := s.records[id]
	if !ok {
		notFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := s.records[id]
	if !ok {
		notFound(w, id)
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	for k, v := range body {
		if k == "objectId" {
			continue
		}
		rec[k] = v
	}
	rec["updated"] = time.Now().UnixMilli()
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) delete(w http.ResponseWriter, id string) {
	if _, ok := s.records[id]; !ok {
		notFound(w, id)
		return
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletionTime": time.Now().UnixMilli()})
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, 8002, "could not parse request body")
		return nil, false
	}
	return body, true
}

func notFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, 1000, fmt.Sprintf("Entity with the specified ID cannot be found: Id - %s", id))
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
