// Package remotetest provides an in-memory management API for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/mailtmpl/cli/internal/model"
)

// TokenPath is where the server issues client-credentials access tokens.
const TokenPath = "/oidc/token"

// AccessToken is the bearer token handed out by TokenPath.
const AccessToken = "test-access-token"

// Request is one request received by the server.
type Request struct {
	Method string
	Path   string
	Body   string
}

// IsWrite reports whether the request could have changed server state.
func (r Request) IsWrite() bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

// Options shape which endpoints the fake server exposes.
type Options struct {
	// BasePath is the collection path, /api/email-templates when empty.
	BasePath string
	// NoListing makes GET on the collection answer 404.
	NoListing bool
	// NoItemPut makes PUT on an item path answer 405.
	NoItemPut bool
	// NoItemPatch makes PATCH on an item path answer 405.
	NoItemPatch bool
	// NoBatchWithID makes a batch write carrying ids answer 404.
	NoBatchWithID bool
	// EmptyWriteBodies answers successful writes with 204 and no body.
	EmptyWriteBodies bool
}

// Server is a fake template collection backed by a map.
type Server struct {
	*httptest.Server

	opts Options

	mu        sync.Mutex
	templates map[string]model.Template
	nextID    int
	requests  []Request
}

// NewServer starts a fake server. Call Close when done.
func NewServer(opts Options) *Server {
	if opts.BasePath == "" {
		opts.BasePath = "/api/email-templates"
	}
	s := &Server{
		opts:      opts,
		templates: make(map[string]model.Template),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed stores templates as if they had been created earlier, assigning ids
// to those without one.
func (s *Server) Seed(templates ...model.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range templates {
		s.store(t)
	}
}

// Templates returns the stored templates sorted by key.
func (s *Server) Templates() []model.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, copyTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Writes returns the requests that could have changed state.
func (s *Server) Writes() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.IsWrite() {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == TokenPath {
		s.handleToken(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})

	if !authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	switch {
	case r.URL.Path == s.opts.BasePath:
		s.handleCollection(w, r, body)
	case strings.HasPrefix(r.URL.Path, s.opts.BasePath+"/"):
		s.handleItem(w, r, strings.TrimPrefix(r.URL.Path, s.opts.BasePath+"/"), body)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleToken answers client-credentials grants. Token requests are not recorded.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeError(w, http.StatusBadRequest, "unsupported grant")
		return
	}
	if _, _, ok := r.BasicAuth(); !ok {
		writeError(w, http.StatusUnauthorized, "missing client credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": AccessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// authorized reports whether r carries the token issued by TokenPath. Requests
// without an Authorization header are let through so tests can use a plain client.
func authorized(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	return h == "" || h == "Bearer "+AccessToken
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request, body []byte) {
	switch r.Method {
	case http.MethodGet:
		if s.opts.NoListing {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		out := make([]model.Template, 0, len(s.templates))
		for _, t := range s.templates {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
		writeJSON(w, http.StatusOK, out)

	case http.MethodPut:
		var batch struct {
			Templates []model.Template `json:"templates"`
		}
		if err := json.Unmarshal(body, &batch); err != nil || len(batch.Templates) == 0 {
			writeError(w, http.StatusBadRequest, "invalid batch")
			return
		}
		for _, t := range batch.Templates {
			if s.opts.NoBatchWithID && t.ID != "" {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			if t.TemplateType == "" || t.LanguageTag == "" || t.Details == nil {
				writeError(w, http.StatusBadRequest, "templateType, languageTag and details are required")
				return
			}
		}
		written := make([]model.Template, 0, len(batch.Templates))
		for _, t := range batch.Templates {
			written = append(written, s.store(t))
		}
		s.writeResult(w, written)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request, id string, body []byte) {
	if r.Method == http.MethodPut && s.opts.NoItemPut || r.Method == http.MethodPatch && s.opts.NoItemPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var existing *model.Template
	for _, t := range s.templates {
		if t.ID == id {
			t := t
			existing = &t
			break
		}
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	var t model.Template
	if err := json.Unmarshal(body, &t); err != nil || t.Details == nil {
		writeError(w, http.StatusBadRequest, "invalid template")
		return
	}
	t.ID = id
	t.TemplateType = existing.TemplateType
	t.LanguageTag = existing.LanguageTag
	s.writeResult(w, []model.Template{s.store(t)})
}

// store inserts or replaces t by key and returns the stored copy. Callers hold mu.
func (s *Server) store(t model.Template) model.Template {
	key := t.Key()
	if prev, ok := s.templates[key]; ok {
		t.ID = prev.ID
	} else if t.ID == "" {
		s.nextID++
		t.ID = fmt.Sprintf("tpl_%d", s.nextID)
	}
	t = copyTemplate(t)
	s.templates[key] = t
	return copyTemplate(t)
}

func (s *Server) writeResult(w http.ResponseWriter, written []model.Template) {
	if s.opts.EmptyWriteBodies {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, written)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"code": http.StatusText(status), "message": message})
}

func copyTemplate(t model.Template) model.Template {
	if t.Details != nil {
		d := *t.Details
		t.Details = &d
	}
	return t
}
