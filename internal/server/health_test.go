package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/studykit-go/internal/modeltest"
)

// ---------------------------------------------------------------------------
// Fake Pinger for readiness tests
// ---------------------------------------------------------------------------

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	s, _ := newTestServer(t, &fakeService{}, func(c *Config) { c.Pingers = pingers })
	return s
}

// ---------------------------------------------------------------------------
// GET /api/health: liveness
// ---------------------------------------------------------------------------

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t)
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
}

// ---------------------------------------------------------------------------
// GET /api/ready: readiness
// ---------------------------------------------------------------------------

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	cases := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		failing   []string
	}{
		{"no pingers", nil, http.StatusOK, true, nil},
		{
			"all healthy",
			[]Pinger{&fakePinger{name: "llm"}, &fakePinger{name: "vector_store"}, &fakePinger{name: "checkpoint"}},
			http.StatusOK, true, nil,
		},
		{
			"one failing",
			[]Pinger{&fakePinger{name: "llm"}, &fakePinger{name: "checkpoint", err: down}},
			http.StatusServiceUnavailable, false, []string{"checkpoint"},
		},
		{
			"all failing",
			[]Pinger{&fakePinger{name: "llm", err: down}, &fakePinger{name: "vector_store", err: down}},
			http.StatusServiceUnavailable, false, []string{"llm", "vector_store"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newReadyTestServer(t, tc.pingers...)
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: body: %s", tc.wantCode, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: expected application/json, got %q", ct)
			}
			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("expected %d checks, got %d", len(tc.pingers), len(resp.Checks))
			}
			var failing []string
			for _, c := range resp.Checks {
				if !c.OK {
					failing = append(failing, c.Name)
					if c.Error == "" {
						t.Errorf("check %q: expected non-empty error", c.Name)
					}
				}
			}
			if strings.Join(failing, ",") != strings.Join(tc.failing, ",") {
				t.Errorf("failing checks = %v, want %v", failing, tc.failing)
			}
		})
	}
}

func TestMultiPinger(t *testing.T) {
	t.Parallel()

	ok := NewMultiPinger(&fakePinger{name: "a"}, &fakePinger{name: "b"})
	if err := ok.Ping(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	bad := NewMultiPinger(&fakePinger{name: "a"}, &fakePinger{name: "b", err: errors.New("down")})
	err := bad.Ping(context.Background())
	if err == nil || !strings.HasPrefix(err.Error(), "b: ") {
		t.Errorf("expected error naming b, got %v", err)
	}
}

// pingable adapts a func to the Ping method set.
type pingable func(context.Context) error

func (p pingable) Ping(ctx context.Context) error { return p(ctx) }

func TestDependencyPinger(t *testing.T) {
	t.Parallel()

	p := NewDependencyPinger("checkpoint", pingable(func(context.Context) error { return errors.New("disk full") }))
	if p.Name() != "checkpoint" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Ping(context.Background()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestLLMPinger(t *testing.T) {
	t.Parallel()

	healthy := NewLLMPinger(modeltest.New(modeltest.Text("pong")), "ollama")
	if err := healthy.Ping(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	broken := NewLLMPinger(modeltest.New(modeltest.Fail(errors.New("unauthorized"))), "openai")
	if err := broken.Ping(context.Background()); err == nil {
		t.Error("expected error from failing model")
	}
}
