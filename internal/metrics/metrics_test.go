// v0
// internal/metrics/metrics_test.go
package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"nrgchamp/buildingrl/internal/agent"
	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/circuitbreaker"
)

func TestObserverUpdatesCollectors(t *testing.T) {
	m := New()
	next := building.Snapshot{
		TotalEnergyUsed:     2.5,
		ExpectedEnergyUsage: 3,
		OccupiedFloors:      2,
		AverageComfort:      1.75,
		ComfortDefined:      true,
	}
	m.OnStep(0, 1, agent.Transition{Next: next})
	m.OnStep(0, 2, agent.Transition{Next: next})
	m.OnEpisode(agent.EpisodeResult{Done: true, Final: next, Reward: 0.3, Steps: 2})
	m.OnEpisode(agent.EpisodeResult{Done: true, Final: building.Snapshot{}, Steps: 501})

	if got := testutil.ToFloat64(m.stepsTotal); got != 2 {
		t.Fatalf("expected 2 steps, got %v", got)
	}
	if got := testutil.ToFloat64(m.energyUsed); got != 2.5 {
		t.Fatalf("expected energy 2.5, got %v", got)
	}
	if got := testutil.ToFloat64(m.averageComfort); got != 1.75 {
		t.Fatalf("expected comfort 1.75, got %v", got)
	}
	if got := testutil.ToFloat64(m.episodesTotal.WithLabelValues("goal")); got != 1 {
		t.Fatalf("expected one goal episode, got %v", got)
	}
	if got := testutil.ToFloat64(m.episodesTotal.WithLabelValues("truncated")); got != 1 {
		t.Fatalf("expected one truncated episode, got %v", got)
	}

	m.ObserveBuilding(building.Snapshot{})
	if got := testutil.ToFloat64(m.averageComfort); got != -1 {
		t.Fatalf("expected -1 for undefined comfort, got %v", got)
	}
}

func TestWrapHandlerAndExposition(t *testing.T) {
	m := New()
	m.SetCircuitBreakerState("kafka", circuitbreaker.Open)
	m.Publish("mqtt", "ok")
	h := m.WrapHandler("teapot", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("teapot", "418")); got != 1 {
		t.Fatalf("expected one 418 request, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`buildingrl_cb_state{target="kafka"} 2`,
		`buildingrl_publish_total{result="ok",sink="mqtt"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.FrameDropped()
	m.Publish("kafka", "fail")
	m.ObserveBuilding(building.Snapshot{})
	m.SetCircuitBreakerState("kafka", circuitbreaker.Closed)
}
