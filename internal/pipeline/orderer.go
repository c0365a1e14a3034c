package pipeline

import (
	"log/slog"

	"influnest/internal/metrics"
)

// Orderer receives results from the workers in completion order and releases
// them in submission order
type Orderer struct {
	nextExpected int
	pending      map[int]*Result // Buffered out-of-order results
	ordered      []*Result
}

// NewOrderer creates an orderer expecting indexes 0..size-1
func NewOrderer(size int) *Orderer {
	return &Orderer{
		pending: make(map[int]*Result),
		ordered: make([]*Result, 0, size),
	}
}

// ProcessResult buffers a result and releases every result that is now in
// sequence
func (o *Orderer) ProcessResult(result *Result) {
	o.pending[result.Index] = result

	for {
		next, exists := o.pending[o.nextExpected]
		if !exists {
			break
		}
		o.ordered = append(o.ordered, next)
		delete(o.pending, o.nextExpected)
		o.nextExpected++
	}

	slog.Debug("Orderer received result",
		"index", result.Index,
		"worker_id", result.WorkerID,
		"pending_count", len(o.pending),
		"next_expected", o.nextExpected,
	)

	metrics.PipelineQueueDepth.Set(float64(len(o.pending)))
}

// Results returns the results released so far, in submission order
func (o *Orderer) Results() []*Result {
	return o.ordered
}

// GetPendingCount returns the number of results waiting for an earlier index
func (o *Orderer) GetPendingCount() int {
	return len(o.pending)
}

// GetNextExpected returns the next index the orderer is waiting for
func (o *Orderer) GetNextExpected() int {
	return o.nextExpected
}
