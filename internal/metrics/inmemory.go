package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	VisitorsIngested       uint64
	VisitorIngestFailures  uint64
	SalesMatched           uint64
	SalesUnmatched         uint64
	SalesDuplicate         uint64
	SalesIneligible        uint64
	MatchCandidatesTotal   uint64
	MatchConfidenceTotal   uint64
	MatchConfidenceCount   uint64
	ForwardsSucceeded      uint64
	ForwardsFailed         uint64
	ForwardDurationCount   uint64
	ForwardDurationTotalNs int64
	PollRuns               uint64
	PollFailures           uint64
	PollSalesTotal         uint64
}

// InMemoryRecorder stores metrics in memory for tests and the stats endpoint.
type InMemoryRecorder struct {
	visitorsIngested       uint64
	visitorIngestFailures  uint64
	salesMatched           uint64
	salesUnmatched         uint64
	salesDuplicate         uint64
	salesIneligible        uint64
	matchCandidatesTotal   uint64
	matchConfidenceTotal   uint64
	matchConfidenceCount   uint64
	forwardsSucceeded      uint64
	forwardsFailed         uint64
	forwardDurationCount   uint64
	forwardDurationTotalNs int64
	pollRuns               uint64
	pollFailures           uint64
	pollSalesTotal         uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		VisitorsIngested:       atomic.LoadUint64(&m.visitorsIngested),
		VisitorIngestFailures:  atomic.LoadUint64(&m.visitorIngestFailures),
		SalesMatched:           atomic.LoadUint64(&m.salesMatched),
		SalesUnmatched:         atomic.LoadUint64(&m.salesUnmatched),
		SalesDuplicate:         atomic.LoadUint64(&m.salesDuplicate),
		SalesIneligible:        atomic.LoadUint64(&m.salesIneligible),
		MatchCandidatesTotal:   atomic.LoadUint64(&m.matchCandidatesTotal),
		MatchConfidenceTotal:   atomic.LoadUint64(&m.matchConfidenceTotal),
		MatchConfidenceCount:   atomic.LoadUint64(&m.matchConfidenceCount),
		ForwardsSucceeded:      atomic.LoadUint64(&m.forwardsSucceeded),
		ForwardsFailed:         atomic.LoadUint64(&m.forwardsFailed),
		ForwardDurationCount:   atomic.LoadUint64(&m.forwardDurationCount),
		ForwardDurationTotalNs: atomic.LoadInt64(&m.forwardDurationTotalNs),
		PollRuns:               atomic.LoadUint64(&m.pollRuns),
		PollFailures:           atomic.LoadUint64(&m.pollFailures),
		PollSalesTotal:         atomic.LoadUint64(&m.pollSalesTotal),
	}
}

// IncVisitorIngested increments the ingestion counter for the given status.
func (m *InMemoryRecorder) IncVisitorIngested(status string) {
	if status == "success" {
		atomic.AddUint64(&m.visitorsIngested, 1)
		return
	}
	atomic.AddUint64(&m.visitorIngestFailures, 1)
}

// IncSaleEvaluated increments the per-outcome sale counter.
func (m *InMemoryRecorder) IncSaleEvaluated(outcome string) {
	switch outcome {
	case "matched":
		atomic.AddUint64(&m.salesMatched, 1)
	case "unmatched":
		atomic.AddUint64(&m.salesUnmatched, 1)
	case "duplicate":
		atomic.AddUint64(&m.salesDuplicate, 1)
	case "ineligible":
		atomic.AddUint64(&m.salesIneligible, 1)
	}
}

// ObserveMatchCandidates records the candidate pool size for one evaluation.
func (m *InMemoryRecorder) ObserveMatchCandidates(count int) {
	if count > 0 {
		atomic.AddUint64(&m.matchCandidatesTotal, uint64(count))
	}
}

// ObserveMatchConfidence records the winning confidence for one match.
func (m *InMemoryRecorder) ObserveMatchConfidence(confidence int) {
	if confidence >= 0 {
		atomic.AddUint64(&m.matchConfidenceTotal, uint64(confidence))
		atomic.AddUint64(&m.matchConfidenceCount, 1)
	}
}

// IncConversionForwarded increments the forward counter for the given status.
func (m *InMemoryRecorder) IncConversionForwarded(status string) {
	if status == "success" {
		atomic.AddUint64(&m.forwardsSucceeded, 1)
		return
	}
	atomic.AddUint64(&m.forwardsFailed, 1)
}

// ObserveForwardDuration records one delivery duration.
func (m *InMemoryRecorder) ObserveForwardDuration(duration time.Duration) {
	atomic.AddUint64(&m.forwardDurationCount, 1)
	atomic.AddInt64(&m.forwardDurationTotalNs, duration.Nanoseconds())
}

// IncPollRun increments the poll counter for the given status.
func (m *InMemoryRecorder) IncPollRun(status string) {
	if status == "success" {
		atomic.AddUint64(&m.pollRuns, 1)
		return
	}
	atomic.AddUint64(&m.pollFailures, 1)
}

// ObservePollSales records how many sales one poll returned.
func (m *InMemoryRecorder) ObservePollSales(count int) {
	if count > 0 {
		atomic.AddUint64(&m.pollSalesTotal, uint64(count))
	}
}
