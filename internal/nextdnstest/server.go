// Package nextdnstest runs an in-memory stand-in for the NextDNS API.
// It should only be used in tests.
package nextdnstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Travis-Britz/nextdns"
)

// Call is one request received by the Server.
type Call struct {
	Method string
	Path   string
}

// Server implements the profile, list read, add, remove and update endpoints.
type Server struct {
	*httptest.Server

	// APIKey is the only key accepted in X-Api-Key.
	APIKey string
	// PageSize splits list reads into cursor pages when positive.
	PageSize int
	// OnCall, when set, runs for every request before it is handled.
	OnCall func(Call)

	mu       sync.Mutex
	profiles []nextdns.Profile
	lists    map[string]map[nextdns.ListKind][]nextdns.Entry
	failures map[string]int
	calls    []Call
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB, apiKey string) *Server {
	t.Helper()
	s := &Server{
		APIKey:   apiKey,
		lists:    map[string]map[nextdns.ListKind][]nextdns.Entry{},
		failures: map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.record, s.auth)
	r.Get("/profiles", s.listProfiles)
	r.Get("/profiles/{profile}/{list}", s.listEntries)
	r.Post("/profiles/{profile}/{list}", s.addEntry)
	r.Delete("/profiles/{profile}/{list}/{domain}", s.removeEntry)
	r.Patch("/profiles/{profile}/{list}/{domain}", s.updateEntry)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddProfile registers an empty profile.
func (s *Server) AddProfile(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, nextdns.Profile{ID: id, Name: name})
	s.lists[id] = map[nextdns.ListKind][]nextdns.Entry{}
}

// SetEntries replaces a profile list.
func (s *Server) SetEntries(profileID string, kind nextdns.ListKind, entries ...nextdns.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lists[profileID] == nil {
		s.lists[profileID] = map[nextdns.ListKind][]nextdns.Entry{}
	}
	s.lists[profileID][kind] = slices.Clone(entries)
}

// Entries returns a profile list sorted by domain.
func (s *Server) Entries(profileID string, kind nextdns.ListKind) []nextdns.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.lists[profileID][kind])
	slices.SortFunc(out, func(a, b nextdns.Entry) int { return strings.Compare(a.Domain, b.Domain) })
	return out
}

// FailOn makes every add, remove or update of domain answer with status.
func (s *Server) FailOn(domain string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[domain] = status
}

// Calls returns the recorded requests with the given method, or all of them when method is empty.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{Method: r.Method, Path: r.URL.Path}
		s.mu.Lock()
		s.calls = append(s.calls, call)
		s.mu.Unlock()
		if s.OnCall != nil {
			s.OnCall(call)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey == "" || r.Header.Get("X-Api-Key") != s.APIKey {
			writeError(w, http.StatusForbidden, "forbidden", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := slices.Clone(s.profiles)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// list returns the entries for the request's profile and list, or false after writing a 404.
func (s *Server) list(w http.ResponseWriter, r *http.Request) (string, nextdns.ListKind, bool) {
	profile := chi.URLParam(r, "profile")
	kind, err := nextdns.ParseListKind(chi.URLParam(r, "list"))
	if err != nil {
		writeError(w, http.StatusNotFound, "notFound", "Not Found")
		return "", "", false
	}
	if _, found := s.lists[profile]; !found {
		writeError(w, http.StatusNotFound, "notFound", "Not Found")
		return "", "", false
	}
	return profile, kind, true
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, kind, ok := s.list(w, r)
	if !ok {
		return
	}
	entries := s.lists[profile][kind]
	if entries == nil {
		entries = []nextdns.Entry{}
	}

	start := 0
	if c := r.URL.Query().Get("cursor"); c != "" {
		start, _ = strconv.Atoi(c)
	}
	start = min(max(start, 0), len(entries))
	end := len(entries)
	cursor := ""
	if s.PageSize > 0 && start+s.PageSize < len(entries) {
		end = start + s.PageSize
		cursor = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": entries[start:end],
		"meta": map[string]any{"pagination": map[string]any{"cursor": cursor}},
	})
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, kind, ok := s.list(w, r)
	if !ok {
		return
	}
	var e nextdns.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil || e.Domain == "" {
		writeError(w, http.StatusBadRequest, "invalid", "Invalid request body")
		return
	}
	if status, fail := s.failures[e.Domain]; fail {
		writeError(w, status, "injected", "injected failure")
		return
	}
	for _, existing := range s.lists[profile][kind] {
		if existing.Domain == e.Domain {
			writeError(w, http.StatusBadRequest, "duplicate", "Domain already listed")
			return
		}
	}
	s.lists[profile][kind] = append(s.lists[profile][kind], e)
	writeJSON(w, http.StatusOK, map[string]any{"data": e})
}

func (s *Server) removeEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, kind, ok := s.list(w, r)
	if !ok {
		return
	}
	domain := chi.URLParam(r, "domain")
	if status, fail := s.failures[domain]; fail {
		writeError(w, status, "injected", "injected failure")
		return
	}
	entries := s.lists[profile][kind]
	i := slices.IndexFunc(entries, func(e nextdns.Entry) bool { return e.Domain == domain })
	if i < 0 {
		writeError(w, http.StatusNotFound, "notFound", "Not Found")
		return
	}
	s.lists[profile][kind] = slices.Delete(entries, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, kind, ok := s.list(w, r)
	if !ok {
		return
	}
	domain := chi.URLParam(r, "domain")
	if status, fail := s.failures[domain]; fail {
		writeError(w, status, "injected", "injected failure")
		return
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		writeError(w, http.StatusBadRequest, "invalid", "Invalid request body")
		return
	}
	entries := s.lists[profile][kind]
	i := slices.IndexFunc(entries, func(e nextdns.Entry) bool { return e.Domain == domain })
	if i < 0 {
		writeError(w, http.StatusNotFound, "notFound", "Not Found")
		return
	}
	entries[i].Active = *body.Active
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]any{
		"errors": []map[string]string{{"code": code, "detail": detail}},
	})
}
