// Package metrics exposes Prometheus collectors for the terminal daemon.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/recovery"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds every collector. It satisfies command.Observer,
// snapshot.Observer and recovery.Observer.
type Recorder struct {
	commandsDispatched *prometheus.CounterVec
	gateRejections     prometheus.Counter
	snapshotFetches    *prometheus.CounterVec
	recoveryRuns       *prometheus.CounterVec
	recoveryAttempts   prometheus.Histogram
	wsClients          prometheus.Gauge
	httpDuration       *prometheus.HistogramVec
}

var (
	_ command.Observer  = (*Recorder)(nil)
	_ snapshot.Observer = (*Recorder)(nil)
	_ recovery.Observer = (*Recorder)(nil)
)

// NewRecorder registers collectors with the default registerer.
func NewRecorder() *Recorder {
	return NewRecorderWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRecorderWithRegisterer registers collectors with registerer. Collectors
// already present are reused, so repeated construction is safe.
func NewRecorderWithRegisterer(registerer prometheus.Registerer) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Recorder{
		commandsDispatched: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_commands_dispatched_total",
			Help: "Commands dispatched to the backend by type and outcome",
		}, []string{"type", "outcome"})),
		gateRejections: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_command_gate_rejections_total",
			Help: "Commands refused locally by the command gate",
		})),
		snapshotFetches: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_snapshot_fetches_total",
			Help: "Snapshot source lookups by source and outcome",
		}, []string{"source", "outcome"})),
		recoveryRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_recovery_runs_total",
			Help: "Recovery monitor runs by final state",
		}, []string{"state"})),
		recoveryAttempts: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_recovery_attempts",
			Help:    "Polls issued by a recovery run",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 20},
		})),
		wsClients: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_ws_clients",
			Help: "UI websocket clients currently connected",
		})),
		httpDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "Local terminal API latency by route, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// CommandDispatched counts one dispatch.
func (r *Recorder) CommandDispatched(cmdType command.Type, outcome string) {
	r.commandsDispatched.WithLabelValues(string(cmdType), outcome).Inc()
	if outcome == command.OutcomeGated {
		r.gateRejections.Inc()
	}
}

// SnapshotFetched counts one source lookup.
func (r *Recorder) SnapshotFetched(source snapshot.Source, ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	r.snapshotFetches.WithLabelValues(string(source), outcome).Inc()
}

// RecoveryFinished records the final state of a recovery run.
func (r *Recorder) RecoveryFinished(state recovery.State, attempts int) {
	r.recoveryRuns.WithLabelValues(string(state)).Inc()
	r.recoveryAttempts.Observe(float64(attempts))
}

// ClientConnected and ClientDisconnected track UI websocket clients.
func (r *Recorder) ClientConnected()    { r.wsClients.Inc() }
func (r *Recorder) ClientDisconnected() { r.wsClients.Dec() }

// ObserveHTTP records one terminal API request.
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	r.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}
