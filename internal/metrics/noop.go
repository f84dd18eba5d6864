package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncVisitorIngested is a no-op.
func (n *NoopRecorder) IncVisitorIngested(status string) {}

// IncSaleEvaluated is a no-op.
func (n *NoopRecorder) IncSaleEvaluated(outcome string) {}

// ObserveMatchCandidates is a no-op.
func (n *NoopRecorder) ObserveMatchCandidates(count int) {}

// ObserveMatchConfidence is a no-op.
func (n *NoopRecorder) ObserveMatchConfidence(confidence int) {}

// IncConversionForwarded is a no-op.
func (n *NoopRecorder) IncConversionForwarded(status string) {}

// ObserveForwardDuration is a no-op.
func (n *NoopRecorder) ObserveForwardDuration(duration time.Duration) {}

// IncPollRun is a no-op.
func (n *NoopRecorder) IncPollRun(status string) {}

// ObservePollSales is a no-op.
func (n *NoopRecorder) ObservePollSales(count int) {}
