package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// metricValue returns the value of the counter or gauge called name whose
// labels match the given name/value pairs, or 0 when no series matches.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := make(map[string]string, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		want[labels[i]] = labels[i+1]
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok {
					if v != lp.GetValue() {
						continue series
					}
					matched++
				}
			}
			if matched != len(want) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func Test_Metrics_EndpointServesRegistry(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeService{})
	s.metrics.chatTurnsTotal.WithLabelValues("global", "ok").Inc()

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_ChatTurnsByRoute(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakeService{})

	s.metrics.chatTurnsTotal.WithLabelValues("global", "ok").Inc()
	s.metrics.chatTurnsTotal.WithLabelValues("local", "ok").Inc()
	s.metrics.chatTurnsTotal.WithLabelValues("local", "ok").Inc()

	if got := metricValue(t, reg, "studykit_chat_turns_total", "route", "local", "outcome", "ok"); got != 2 {
		t.Errorf("local turns = %v, want 2", got)
	}
	if got := metricValue(t, reg, "studykit_chat_turns_total", "route", "global"); got != 1 {
		t.Errorf("global turns = %v, want 1", got)
	}
}

func Test_Metrics_ActiveTurnsGauge(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakeService{})

	s.metrics.chatActiveTurns.Inc()
	s.metrics.chatActiveTurns.Inc()
	s.metrics.chatActiveTurns.Dec()

	if got := metricValue(t, reg, "studykit_chat_active_turns"); got != 1 {
		t.Errorf("want active_turns=1, got %v", got)
	}
}
