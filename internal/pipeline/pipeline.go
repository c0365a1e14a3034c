package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"influnest/internal/metrics"
	"influnest/internal/models"
)

// BatchReporter applies a batch of oracle reports in parallel. Reports are
// sharded by campaign so that all reports of one campaign run on the same
// worker in submission order, while different campaigns proceed
// independently. Results come back in submission order.
type BatchReporter struct {
	config   Config
	reporter MetricsReporter
}

// NewBatchReporter creates a batch reporter
func NewBatchReporter(config Config, reporter MetricsReporter) *BatchReporter {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.BufferSize < 1 {
		config.BufferSize = 1
	}
	metrics.PipelineWorkerCount.Set(float64(config.WorkerCount))
	return &BatchReporter{config: config, reporter: reporter}
}

// Submit processes every report and returns one result per report. Report
// indexes are reassigned to the position in the slice.
func (b *BatchReporter) Submit(ctx context.Context, caller models.Identity, reports []Report) ([]*Result, error) {
	if len(reports) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}

	start := time.Now()
	metrics.BatchReportSize.Observe(float64(len(reports)))

	workerCount := b.config.WorkerCount
	if workerCount > len(reports) {
		workerCount = len(reports)
	}

	shards := make([]chan Report, workerCount)
	for i := range shards {
		shards[i] = make(chan Report, b.config.BufferSize)
	}
	results := make(chan *Result, b.config.BufferSize)

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(w *Worker, in <-chan Report) {
			defer wg.Done()
			for report := range in {
				results <- w.ProcessReport(ctx, caller, report)
			}
		}(NewWorker(i, b.reporter), shards[i])
	}

	// Feed shards in submission order
	go func() {
		for i, report := range reports {
			report.Index = i
			shards[shardFor(report.Campaign, workerCount)] <- report
		}
		for _, shard := range shards {
			close(shard)
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	orderer := NewOrderer(len(reports))
	for result := range results {
		orderer.ProcessResult(result)
	}

	failed := 0
	for _, r := range orderer.Results() {
		if r.Err != nil {
			failed++
		}
	}

	slog.Info("📦 Batch report processed",
		"reports", len(reports),
		"failed", failed,
		"workers", workerCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return orderer.Results(), nil
}

func shardFor(key models.CampaignKey, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return int(h.Sum32() % uint32(shards))
}
