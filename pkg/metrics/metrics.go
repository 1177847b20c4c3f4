// Package metrics exposes Prometheus counters for the session lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Event string

const (
	EventRegister     Event = "register"
	EventLogin        Event = "login"
	EventLogout       Event = "logout"
	EventRefresh      Event = "refresh"
	EventAuthenticate Event = "authenticate"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Recorder is what the session service reports to.
type Recorder interface {
	RecordEvent(event Event, outcome Outcome)
	RecordLockout()
	RecordPasswordHash(d time.Duration)
}

type Collector struct {
	events       *prometheus.CounterVec
	lockouts     prometheus.Counter
	passwordHash prometheus.Histogram
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qtube_session_events_total",
			Help: "Session lifecycle operations by event and outcome.",
		}, []string{"event", "outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qtube_login_lockouts_total",
			Help: "Login attempts rejected because the identity is locked out.",
		}),
		passwordHash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qtube_password_hash_seconds",
			Help:    "Time spent hashing or verifying passwords.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}

	reg.MustRegister(c.events, c.lockouts, c.passwordHash)
	return c
}

func (c *Collector) RecordEvent(event Event, outcome Outcome) {
	c.events.WithLabelValues(string(event), string(outcome)).Inc()
}

func (c *Collector) RecordLockout() {
	c.lockouts.Inc()
}

func (c *Collector) RecordPasswordHash(d time.Duration) {
	c.passwordHash.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordEvent(Event, Outcome)       {}
func (Nop) RecordLockout()                   {}
func (Nop) RecordPasswordHash(time.Duration) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
