package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	// DefaultJob is the Pushgateway job name.
	DefaultJob = "setup_cf"
)

// Registry holds every setup-cf metric. It is separate from the default
// registry so pushes carry no process or Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	PhaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "setup_cf_phase_duration_seconds",
		Help:    "Duration of each setup phase",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"phase", "outcome"})
	PhaseTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "setup_cf_phase_total",
		Help: "Total number of setup phases run, by outcome",
	}, []string{"phase", "outcome"})
	// GrantTotal counts authentications; method is "token_endpoint" for flows
	// that write the session file and "cf_auth" for delegated flows.
	GrantTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "setup_cf_grant_total",
		Help: "Total number of authentications by grant type",
	}, []string{"grant_type", "method", "outcome"})
	InstallCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "setup_cf_install_cache_lookups_total",
		Help: "Tool cache lookups for the cf CLI, by result (hit/miss)",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(PhaseDuration)
	Registry.MustRegister(PhaseTotal)
	Registry.MustRegister(GrantTotal)
	Registry.MustRegister(InstallCacheLookups)
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObservePhase records one finished phase.
func ObservePhase(phase string, start time.Time, err error) {
	outcome := Outcome(err)
	PhaseDuration.WithLabelValues(phase, outcome).Observe(time.Since(start).Seconds())
	PhaseTotal.WithLabelValues(phase, outcome).Inc()
}

// Push sends the registry to the Pushgateway at url, grouped by run id.
// client may be nil.
func Push(ctx context.Context, url, job, runID string, client *http.Client) error {
	if job == "" {
		job = DefaultJob
	}
	pusher := push.New(url, job).Gatherer(Registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if client != nil {
		pusher = pusher.Client(client)
	}
	return pusher.PushContext(ctx)
}
