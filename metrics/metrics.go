package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tournaments"

// Metrics records tournament progression. A nil *Metrics records nothing.
type Metrics struct {
	stagesCreated       *prometheus.CounterVec
	fixturesScored      prometheus.Counter
	fixturesConfirmed   prometheus.Counter
	tournamentsFinished prometheus.Counter
	dryRuns             *prometheus.CounterVec
	sweepDuration       prometheus.Histogram
	activeTournaments   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stagesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_created_total",
			Help:      "Stages whose fixtures were created, by mode.",
		}, []string{"mode"}),
		fixturesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixtures_scored_total",
			Help:      "Scores submitted for fixtures.",
		}),
		fixturesConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixture_confirmations_total",
			Help:      "Confirmations added to fixture scores.",
		}),
		tournamentsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_finished_total",
			Help:      "Tournaments whose podium was resolved.",
		}),
		dryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "definition_dry_runs_total",
			Help:      "Definition dry runs, by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "progress_sweep_duration_seconds",
			Help:      "Duration of the background progression sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		activeTournaments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tournaments",
			Help:      "Active tournaments seen by the last sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.stagesCreated,
			m.fixturesScored,
			m.fixturesConfirmed,
			m.tournamentsFinished,
			m.dryRuns,
			m.sweepDuration,
			m.activeTournaments,
		)
	}
	return m
}

func (m *Metrics) StageCreated(mode string) {
	if m == nil {
		return
	}
	m.stagesCreated.WithLabelValues(mode).Inc()
}

func (m *Metrics) FixtureScored() {
	if m == nil {
		return
	}
	m.fixturesScored.Inc()
}

func (m *Metrics) FixtureConfirmed() {
	if m == nil {
		return
	}
	m.fixturesConfirmed.Inc()
}

func (m *Metrics) TournamentFinished() {
	if m == nil {
		return
	}
	m.tournamentsFinished.Inc()
}

func (m *Metrics) DryRun(passed bool) {
	if m == nil {
		return
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	m.dryRuns.WithLabelValues(result).Inc()
}

// Sweep records one background sweep over the given number of active tournaments.
func (m *Metrics) Sweep(active int, took time.Duration) {
	if m == nil {
		return
	}
	m.activeTournaments.Set(float64(active))
	m.sweepDuration.Observe(took.Seconds())
}
