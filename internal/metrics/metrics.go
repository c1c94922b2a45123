// v1
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nrgchamp/buildingrl/internal/agent"
	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/circuitbreaker"
	"nrgchamp/buildingrl/internal/env"
)

const namespace = "buildingrl"

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	stepsTotal        prometheus.Counter
	episodesTotal     *prometheus.CounterVec
	episodeReward     prometheus.Histogram
	episodeSteps      prometheus.Histogram
	energyUsed        prometheus.Gauge
	expectedEnergy    prometheus.Gauge
	averageComfort    prometheus.Gauge
	occupiedFloors    prometheus.Gauge
	framesDropped     prometheus.Counter
	publishTotal      *prometheus.CounterVec
	cbState           *prometheus.GaugeVec
}

// New registers every collector on a private registry so several
// instances can coexist in one process.
func New() *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Environment steps taken by agents.",
		}),
		episodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Finished episodes by outcome.",
		}, []string{"outcome"}),
		episodeReward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_reward",
			Help:      "Total shaped reward per episode.",
			Buckets:   prometheus.LinearBuckets(-500, 50, 21),
		}),
		episodeSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_steps",
			Help:      "Steps taken per episode.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		energyUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "building_energy_used_kwh",
			Help:      "Current total energy used by the building.",
		}),
		expectedEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "building_expected_energy_kwh",
			Help:      "Energy target of the building.",
		}),
		averageComfort: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "building_average_comfort",
			Help:      "Mean comfort over occupied floors, -1 when none is occupied.",
		}),
		occupiedFloors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "building_occupied_floors",
			Help:      "Number of floors with at least one occupant.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_frames_dropped_total",
			Help:      "Snapshots overwritten before the display consumer read them.",
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by sink and result.",
		}, []string{"sink", "result"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cb_state",
			Help:      "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.stepsTotal,
		m.episodesTotal,
		m.episodeReward,
		m.episodeSteps,
		m.energyUsed,
		m.expectedEnergy,
		m.averageComfort,
		m.occupiedFloors,
		m.framesDropped,
		m.publishTotal,
		m.cbState,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBuilding sets the building gauges from s.
func (m *Metrics) ObserveBuilding(s building.Snapshot) {
	if m == nil {
		return
	}
	m.energyUsed.Set(s.TotalEnergyUsed)
	m.expectedEnergy.Set(s.ExpectedEnergyUsage)
	m.occupiedFloors.Set(float64(s.OccupiedFloors))
	if avg, ok := s.Comfort(); ok {
		m.averageComfort.Set(avg)
	} else {
		m.averageComfort.Set(building.ComfortUninhabited)
	}
}

// OnStep implements agent.Observer.
func (m *Metrics) OnStep(_ int, _ int, tr agent.Transition) {
	if m == nil {
		return
	}
	m.stepsTotal.Inc()
	m.ObserveBuilding(tr.Next)
}

// OnEpisode implements agent.Observer.
func (m *Metrics) OnEpisode(res agent.EpisodeResult) {
	if m == nil {
		return
	}
	m.EpisodeFinished(outcomeLabel(res), res.Reward, res.Steps)
}

// EpisodeFinished records an episode that ended with the given outcome.
func (m *Metrics) EpisodeFinished(outcome string, reward float64, steps int) {
	if m == nil {
		return
	}
	m.episodesTotal.WithLabelValues(outcome).Inc()
	m.episodeReward.Observe(reward)
	m.episodeSteps.Observe(float64(steps))
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

// Publish counts one publish attempt; result is "ok" or "fail".
func (m *Metrics) Publish(sink, result string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(sink, result).Inc()
}

// SetCircuitBreakerState maps the breaker state onto the 0/1/2 gauge.
func (m *Metrics) SetCircuitBreakerState(target string, s circuitbreaker.State) {
	if m == nil {
		return
	}
	value := 0.0
	switch s {
	case circuitbreaker.HalfOpen:
		value = 1
	case circuitbreaker.Open:
		value = 2
	}
	m.cbState.WithLabelValues(target).Set(value)
}

func outcomeLabel(res agent.EpisodeResult) string {
	switch {
	case !res.Done:
		return "aborted"
	case env.GoalReached(res.Final):
		return env.Goal.String()
	default:
		return env.Truncated.String()
	}
}
