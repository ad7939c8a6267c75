package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsScheduledTotal,
		jobsClaimedTotal,
		jobsClaimRacesTotal,
		jobsFinishedTotal,
		ticksTotal,
		jobRunDurationSec,
	)
}

var (
	jobsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_jobs_scheduled_total",
			Help: "Schedule requests by result (written, unchanged).",
		},
		[]string{"result"},
	)

	jobsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_jobs_claimed_total",
			Help: "Successful job claims by scope (user, manual, system).",
		},
		[]string{"scope"},
	)

	jobsClaimRacesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_jobs_claim_races_total",
			Help: "Claim compare-and-set updates that matched zero rows.",
		},
		[]string{"scope"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_jobs_finished_total",
			Help: "Job attempts closed, labeled by resulting status.",
		},
		[]string{"status"}, // 'succeeded', 'scheduled', 'failed'
	)

	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_plan_ticks_total",
			Help: "System ticks by outcome.",
		},
		[]string{"outcome"}, // 'no_due_job', 'succeeded', 'failed', 'error'
	)

	jobRunDurationSec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meal_plan_job_run_duration_seconds",
			Help:    "Wall time of plan generation per attempt.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"status"},
	)
)

func IncJobScheduled(result string) {
	jobsScheduledTotal.WithLabelValues(norm(result)).Inc()
}

func IncJobClaimed(scope string) {
	jobsClaimedTotal.WithLabelValues(norm(scope)).Inc()
}

func IncClaimRace(scope string) {
	jobsClaimRacesTotal.WithLabelValues(norm(scope)).Inc()
}

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncTick(outcome string) {
	ticksTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveJobRun(status string, seconds float64) {
	jobRunDurationSec.WithLabelValues(norm(status)).Observe(seconds)
}
