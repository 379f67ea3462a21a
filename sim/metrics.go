// Tracks run-wide counters such as dispatched events, registered tasks and
// transfer behavior under contention.

package sim

import (
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const metricsNamespace = "learning_sim"

// Metrics aggregates statistics about one simulation run.
// Each run owns its registry, so concurrent runs never share collectors.
type Metrics struct {
	registry *prometheus.Registry

	eventsDispatched   *prometheus.CounterVec
	tasksRegistered    *prometheus.CounterVec
	transfersStarted   prometheus.Counter
	transfersCompleted prometheus.Counter
	transferDuration   prometheus.Histogram
	reschedules        prometheus.Counter
	staleCompletions   prometheus.Counter
	modelsDropped      prometheus.Counter
	modelsQueued       prometheus.Counter
	simEndedTime       prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dispatched_total",
			Help:      "Events dispatched to participant handlers, by event kind.",
		}, []string{"kind"}),
		tasksRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_registered_total",
			Help:      "Compute tasks registered in the workflow DAG, by task kind.",
		}, []string{"kind"}),
		transfersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_started_total",
			Help:      "Model transfers handed to a bandwidth scheduler.",
		}),
		transfersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_completed_total",
			Help:      "Model transfers that reached their receiver.",
		}),
		transferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transfer_duration_sim_seconds",
			Help:      "Simulated duration of completed transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		reschedules: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfer_reschedules_total",
			Help:      "Completion events moved because the set of concurrent transfers changed.",
		}),
		staleCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_completions_total",
			Help:      "Completion notifications ignored because the transfer was already done or rescheduled.",
		}),
		modelsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "models_dropped_total",
			Help:      "Incoming models discarded because the receiver was busy.",
		}),
		modelsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "models_queued_total",
			Help:      "Incoming models buffered because the receiver was busy.",
		}),
		simEndedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sim_ended_time",
			Help:      "Simulated time of the last dispatched event.",
		}),
	}
	m.registry.MustRegister(
		m.eventsDispatched,
		m.tasksRegistered,
		m.transfersStarted,
		m.transfersCompleted,
		m.transferDuration,
		m.reschedules,
		m.staleCompletions,
		m.modelsDropped,
		m.modelsQueued,
		m.simEndedTime,
	)
	return m
}

// Registry exposes the run's registry, e.g. for tests or an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) eventDispatched(kind EventKind) {
	m.eventsDispatched.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) taskRegistered(kind string) {
	m.tasksRegistered.WithLabelValues(kind).Inc()
}

func (m *Metrics) transferStarted() { m.transfersStarted.Inc() }

func (m *Metrics) transferCompleted(duration float64) {
	m.transfersCompleted.Inc()
	m.transferDuration.Observe(duration)
}

func (m *Metrics) transferRescheduled() { m.reschedules.Inc() }

func (m *Metrics) staleCompletion() { m.staleCompletions.Inc() }

func (m *Metrics) modelDropped() { m.modelsDropped.Inc() }

func (m *Metrics) modelQueued() { m.modelsQueued.Inc() }

func (m *Metrics) simEnded(t float64) { m.simEndedTime.Set(t) }

// MetricsSummary is a plain snapshot of the counters, for printing and tests.
type MetricsSummary struct {
	EventsDispatched   map[string]float64 `json:"events_dispatched"`
	TasksRegistered    map[string]float64 `json:"tasks_registered"`
	TransfersStarted   float64            `json:"transfers_started"`
	TransfersCompleted float64            `json:"transfers_completed"`
	Reschedules        float64            `json:"transfer_reschedules"`
	StaleCompletions   float64            `json:"stale_completions"`
	ModelsDropped      float64            `json:"models_dropped"`
	ModelsQueued       float64            `json:"models_queued"`
	SimEndedTime       float64            `json:"sim_ended_time"`
}

// Summary gathers the registry into a MetricsSummary.
func (m *Metrics) Summary() (MetricsSummary, error) {
	s := MetricsSummary{
		EventsDispatched: make(map[string]float64),
		TasksRegistered:  make(map[string]float64),
	}
	families, err := m.registry.Gather()
	if err != nil {
		return s, fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value := scalarValue(metric)
			switch mf.GetName() {
			case metricsNamespace + "_events_dispatched_total":
				s.EventsDispatched[labelValue(metric, "kind")] = value
			case metricsNamespace + "_tasks_registered_total":
				s.TasksRegistered[labelValue(metric, "kind")] = value
			case metricsNamespace + "_transfers_started_total":
				s.TransfersStarted = value
			case metricsNamespace + "_transfers_completed_total":
				s.TransfersCompleted = value
			case metricsNamespace + "_transfer_reschedules_total":
				s.Reschedules = value
			case metricsNamespace + "_stale_completions_total":
				s.StaleCompletions = value
			case metricsNamespace + "_models_dropped_total":
				s.ModelsDropped = value
			case metricsNamespace + "_models_queued_total":
				s.ModelsQueued = value
			case metricsNamespace + "_sim_ended_time":
				s.SimEndedTime = value
			}
		}
	}
	return s, nil
}

// WriteText writes the registry in the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Print displays the aggregated metrics at the end of the simulation.
func (s MetricsSummary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulation Ended At  : %.3f\n", s.SimEndedTime)
	for _, kind := range sortedKeys(s.EventsDispatched) {
		fmt.Fprintf(w, "Events %-13s : %.0f\n", kind, s.EventsDispatched[kind])
	}
	for _, kind := range sortedKeys(s.TasksRegistered) {
		fmt.Fprintf(w, "Tasks %-14s : %.0f\n", kind, s.TasksRegistered[kind])
	}
	fmt.Fprintf(w, "Transfers Completed  : %.0f / %.0f\n", s.TransfersCompleted, s.TransfersStarted)
	fmt.Fprintf(w, "Transfer Reschedules : %.0f\n", s.Reschedules)
	fmt.Fprintf(w, "Stale Completions    : %.0f\n", s.StaleCompletions)
	fmt.Fprintf(w, "Models Dropped       : %.0f\n", s.ModelsDropped)
	fmt.Fprintf(w, "Models Queued        : %.0f\n", s.ModelsQueued)
}

func scalarValue(metric *dto.Metric) float64 {
	switch {
	case metric.GetCounter() != nil:
		return metric.GetCounter().GetValue()
	case metric.GetGauge() != nil:
		return metric.GetGauge().GetValue()
	case metric.GetHistogram() != nil:
		return float64(metric.GetHistogram().GetSampleCount())
	}
	return 0
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
