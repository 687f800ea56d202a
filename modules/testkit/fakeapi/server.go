// Package fakeapi is an in-process stand-in for the user management API.
// It serves the roles listing and the bulk-create endpoint, records every
// request and can be told to fail.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/iota-uz/userimport/modules/userimport/domain/payload"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
	"github.com/iota-uz/userimport/pkg/httpapi"
)

type Options struct {
	Roles []role.Role
	// WrapRoles answers {"data": [...]} instead of a bare array.
	WrapRoles bool
	// Token is the expected Authorization header value; empty disables the check.
	Token         string
	RolesPublic   bool
	RolesPath     string
	UsersBulkPath string
}

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type failure struct {
	status  int
	code    string
	message string
}

type Server struct {
	opts Options
	srv  *httptest.Server

	mu           sync.Mutex
	requests     []Request
	created      []payload.User
	emails       map[string]struct{}
	bulkCalls    int
	rolesFailure *failure
	bulkFailure  *failure
}

// New starts the fake backend; it is shut down when the test ends.
func New(t testing.TB, opts Options) *Server {
	t.Helper()

	if opts.RolesPath == "" {
		opts.RolesPath = "/roles"
	}
	if opts.UsersBulkPath == "" {
		opts.UsersBulkPath = "/users/bulk"
	}
	s := &Server{
		opts:   opts,
		emails: map[string]struct{}{},
	}
	r := mux.NewRouter()
	s.Register(r)
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) URL() string {
	return s.srv.URL
}

func (s *Server) Register(r *mux.Router) {
	r.Use(s.recordMiddleware)
	r.HandleFunc(s.opts.RolesPath, s.handleRoles).Methods(http.MethodGet)
	r.HandleFunc(s.opts.UsersBulkPath, s.handleBulkCreate).Methods(http.MethodPost)
}

// FailRoles makes the roles listing answer with status until cleared with status 0.
func (s *Server) FailRoles(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolesFailure = newFailure(status, "", message)
}

// FailBulk makes bulk-create answer with status until cleared with status 0.
func (s *Server) FailBulk(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkFailure = newFailure(status, code, message)
}

func newFailure(status int, code, message string) *failure {
	if status == 0 {
		return nil
	}
	return &failure{status: status, code: code, message: message}
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Created returns every user accepted so far.
func (s *Server) Created() []payload.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]payload.User(nil), s.created...)
}

// BulkCalls counts bulk-create requests, accepted or not.
func (s *Server) BulkCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkCalls
}

func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.ErrorEnvelope{Code: "BAD_REQUEST", Message: "failed to read request body"})
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	return s.opts.Token == "" || r.Header.Get("Authorization") == s.opts.Token
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	if !s.opts.RolesPublic && !s.authorized(r) {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, httpapi.ErrorEnvelope{Code: "UNAUTHORIZED", Message: "missing or invalid token"})
		return
	}

	s.mu.Lock()
	f := s.rolesFailure
	s.mu.Unlock()
	if f != nil {
		// the roles endpoint predates the envelope and still answers {"error": "..."}
		_ = httpapi.WriteError(w, f.status, httpapi.ErrorEnvelope{Error: f.message})
		return
	}

	roles := s.opts.Roles
	if roles == nil {
		roles = []role.Role{}
	}
	if s.opts.WrapRoles {
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"data": roles})
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, roles)
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.bulkCalls++
	f := s.bulkFailure
	s.mu.Unlock()

	if !s.authorized(r) {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, httpapi.ErrorEnvelope{Code: "UNAUTHORIZED", Message: "missing or invalid token"})
		return
	}
	if f != nil {
		_ = httpapi.WriteError(w, f.status, httpapi.ErrorEnvelope{Code: f.code, Message: f.message})
		return
	}

	var req payload.BulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.ErrorEnvelope{Code: "INVALID_JSON", Message: "invalid request body"})
		return
	}
	if len(req.Users) == 0 {
		_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.ErrorEnvelope{Code: "EMPTY_BATCH", Message: "users must not be empty"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the whole batch is rejected when any email is taken
	for _, u := range req.Users {
		if _, taken := s.emails[strings.ToLower(u.Email)]; taken {
			_ = httpapi.WriteError(w, http.StatusConflict, httpapi.ErrorEnvelope{Code: "EMAIL_TAKEN", Message: fmt.Sprintf("email %s already exists", u.Email)})
			return
		}
	}
	for _, u := range req.Users {
		s.emails[strings.ToLower(u.Email)] = struct{}{}
	}
	s.created = append(s.created, req.Users...)
	_ = httpapi.WriteJSON(w, http.StatusCreated, map[string]any{"created": len(req.Users)})
}
