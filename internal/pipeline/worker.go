package pipeline

import (
	"context"
	"log/slog"
	"time"

	"influnest/internal/models"
	"influnest/internal/progress"
)

// MetricsReporter applies a single oracle report
type MetricsReporter interface {
	ReportMetrics(ctx context.Context, caller models.Identity, key models.CampaignKey, report models.Metrics) (*models.Campaign, progress.Payout, error)
}

// Worker applies the reports of its shard one after another
type Worker struct {
	id       int
	reporter MetricsReporter
}

// NewWorker creates a new pipeline worker
func NewWorker(id int, reporter MetricsReporter) *Worker {
	return &Worker{id: id, reporter: reporter}
}

// ProcessReport runs one report and never fails as a whole; the error is
// carried in the result
func (w *Worker) ProcessReport(ctx context.Context, caller models.Identity, report Report) *Result {
	start := time.Now()
	result := &Result{
		Index:    report.Index,
		Key:      report.Campaign,
		WorkerID: w.id,
	}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	result.Campaign, result.Payout, result.Err = w.reporter.ReportMetrics(ctx, caller, report.Campaign, report.Metrics)
	result.ProcessingTime = time.Since(start)

	slog.Debug("Worker completed report",
		"worker_id", w.id,
		"index", report.Index,
		"campaign", report.Campaign.String(),
		"error", result.Err,
		"duration_ms", result.ProcessingTime.Milliseconds(),
	)

	return result
}
