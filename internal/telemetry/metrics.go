// Package telemetry registers the Prometheus instruments shared across the
// pipeline. Registration happens at package init via promauto; callers just
// touch the exported collectors.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Slate builder.
	SlateEventsBefore = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slate_events_before_total",
		Help: "Events returned by upstream before the ET day gate",
	}, []string{"sport"})
	SlateEventsAfter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slate_events_after_total",
		Help: "Events admitted by the ET day gate",
	}, []string{"sport"})
	SlateDroppedOutOfWindow = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slate_dropped_out_of_window_total",
		Help: "Events rejected for starting outside the ET day window",
	}, []string{"sport"})
	SlateDroppedMissingTime = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slate_dropped_missing_time_total",
		Help: "Events rejected for a missing or zero start time",
	}, []string{"sport"})

	// Scoring pipeline.
	ContradictionBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contradiction_blocked_total",
		Help: "Picks suppressed by the contradiction gate",
	}, []string{"class"}) // class: props|games
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pick_validation_failures_total",
		Help: "Picks dropped for failing schema validation",
	}, []string{"stage"})
	InternalBugs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pick_internal_bugs_total",
		Help: "Precondition violations recovered inside the scoring pipeline",
	})

	// Pick store.
	PicksPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picks_persisted_total",
		Help: "Pick store write outcomes",
	}, []string{"status"}) // status: logged|duplicate|error

	// Grader.
	GradeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_outcomes_total",
		Help: "Grading outcomes by result",
	}, []string{"sport", "result"})
	GradeUnresolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_unresolved_total",
		Help: "Picks left pending because results were unavailable",
	}, []string{"sport", "code"})

	// Upstreams.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_errors_total",
		Help: "Upstream failures by integration and error kind",
	}, []string{"integration", "kind"})
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Upstream calls by integration",
	}, []string{"integration"})

	// Scheduler.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Job executions by name and outcome",
	}, []string{"job", "outcome"}) // outcome: ok|error|panic
	JobOverlapsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_overlaps_dropped_total",
		Help: "Job firings dropped because the previous run was still active",
	}, []string{"job"})

	// Requests.
	RequestTimedOutComponents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_timed_out_components_total",
		Help: "Pipeline components that exceeded their slice of the request budget",
	}, []string{"component"})
)
