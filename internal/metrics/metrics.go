// Package metrics holds the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

// Registry collects every lsocheck metric. It is separate from the
// default registry so tests and embedders get a predictable set.
var Registry = prometheus.NewRegistry()

var (
	questionnairesCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsocheck_questionnaires_completed_total",
			Help: "Total number of questionnaires that reached a verdict, by verdict.",
		},
		[]string{"verdict"},
	)

	disqualifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsocheck_disqualifications_total",
			Help: "Total number of disqualification reasons reported, by reason code.",
		},
		[]string{"reason"},
	)

	submissions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsocheck_submissions_total",
			Help: "Total number of submission deliveries, by sink and status.",
		},
		[]string{"sink", "status"},
	)

	submissionDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsocheck_submission_duration_seconds",
			Help:    "Time spent delivering a submission to a sink, retries included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	activeSessions = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "lsocheck_active_sessions",
		Help: "Number of questionnaire sessions held in memory.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Verdict label values.
const (
	VerdictEligible   = "eligible"
	VerdictIneligible = "ineligible"
)

// QuestionnaireCompleted counts a finished questionnaire and each reason it
// was disqualified for.
func QuestionnaireCompleted(v questionnaire.Verdict) {
	if v.Eligible {
		questionnairesCompleted.WithLabelValues(VerdictEligible).Inc()
		return
	}
	questionnairesCompleted.WithLabelValues(VerdictIneligible).Inc()
	for _, r := range v.Reasons {
		disqualifications.WithLabelValues(string(r)).Inc()
	}
}

// SubmissionDelivered records one sink's delivery outcome and duration.
func SubmissionDelivered(sink, status string, took time.Duration) {
	submissions.WithLabelValues(sink, status).Inc()
	submissionDuration.WithLabelValues(sink).Observe(took.Seconds())
}

// SetActiveSessions reports the number of live questionnaire sessions.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
