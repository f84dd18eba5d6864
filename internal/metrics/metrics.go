// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Telemetry ingestion metrics
	IncVisitorIngested(status string) // status: "success" or "failed"

	// Attribution pipeline metrics
	IncSaleEvaluated(outcome string) // outcome: "matched", "unmatched", "duplicate", "ineligible"
	ObserveMatchCandidates(count int)
	ObserveMatchConfidence(confidence int)

	// Conversion forwarding metrics
	IncConversionForwarded(status string) // status: "success" or "error"
	ObserveForwardDuration(duration time.Duration)

	// Sales polling metrics
	IncPollRun(status string) // status: "success" or "failed"
	ObservePollSales(count int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
