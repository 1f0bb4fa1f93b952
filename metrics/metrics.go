package metrics

import (
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/resource"
)

// OutcomeOK labels successful parses; failures are labeled by error kind.
const OutcomeOK = "ok"

// Metrics holds all Prometheus metrics
type Metrics struct {
	Parses         *prometheus.CounterVec
	ParseDuration  *prometheus.HistogramVec
	HostCalls      *prometheus.CounterVec
	HostErrors     *prometheus.CounterVec
	SectionsLive   prometheus.Gauge
	SectionsLeaked prometheus.Counter

	snapshot Snapshot
	mu       sync.Mutex
}

// Snapshot holds current metric values.
type Snapshot struct {
	Outcomes        map[string]int64
	HostCalls       map[string]int64
	Parses          int64
	Failures        int64
	SectionsCreated int64
	SectionsLive    int64
	SectionsLeaked  int64
	TotalDuration   time.Duration
}

// New creates the metrics and registers them with reg.
// A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Parses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dyparser_parses_total",
				Help: "Total number of parse calls",
			},
			[]string{"plugin", "outcome"},
		),
		ParseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dyparser_parse_duration_seconds",
				Help:    "Parse call duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"plugin"},
		),
		HostCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dyparser_host_calls_total",
				Help: "Total number of host callbacks invoked by plugins",
			},
			[]string{"op"},
		),
		HostErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dyparser_host_call_errors_total",
				Help: "Host callbacks rejected as protocol violations",
			},
			[]string{"op", "kind"},
		),
		SectionsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dyparser_sections_live",
				Help: "Sections currently held in resource tables",
			},
		),
		SectionsLeaked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dyparser_sections_leaked_total",
				Help: "Sections discarded because a plugin neither attached nor released them",
			},
		),
		snapshot: Snapshot{
			Outcomes:  make(map[string]int64),
			HostCalls: make(map[string]int64),
		},
	}
}

// HostCall implements host.Tracer.
func (m *Metrics) HostCall(op host.Op, err error) {
	m.HostCalls.WithLabelValues(op.String()).Inc()
	if err != nil {
		m.HostErrors.WithLabelValues(op.String(), outcome(err)).Inc()
	}

	m.mu.Lock()
	m.snapshot.HostCalls[op.String()]++
	m.mu.Unlock()
}

// OnResourceEvent implements resource.Observer.
func (m *Metrics) OnResourceEvent(e resource.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Type {
	case resource.EventCreated:
		m.SectionsLive.Inc()
		m.snapshot.SectionsCreated++
		m.snapshot.SectionsLive++
	case resource.EventTaken, resource.EventDropped:
		m.SectionsLive.Dec()
		m.snapshot.SectionsLive--
	}
}

// ParseDone records one finished parse call.
func (m *Metrics) ParseDone(plugin string, elapsed time.Duration, err error) {
	o := outcome(err)
	m.Parses.WithLabelValues(plugin, o).Inc()
	m.ParseDuration.WithLabelValues(plugin).Observe(elapsed.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Parses++
	if err != nil {
		m.snapshot.Failures++
	}
	m.snapshot.Outcomes[o]++
	m.snapshot.TotalDuration += elapsed
}

// SectionsDiscarded records sections left over when a session ended.
func (m *Metrics) SectionsDiscarded(n int) {
	if n <= 0 {
		return
	}
	m.SectionsLeaked.Add(float64(n))

	m.mu.Lock()
	m.snapshot.SectionsLeaked += int64(n)
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.snapshot
	s.Outcomes = maps.Clone(m.snapshot.Outcomes)
	s.HostCalls = maps.Clone(m.snapshot.HostCalls)
	return s
}

// AverageDuration returns the mean parse duration.
func (s Snapshot) AverageDuration() time.Duration {
	if s.Parses == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Parses)
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if k := errors.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
