package pipeline

import (
	"time"

	"influnest/internal/models"
	"influnest/internal/progress"
)

// Report is one metrics observation inside a batch submission
type Report struct {
	Index    int
	Campaign models.CampaignKey
	Metrics  models.Metrics
}

// Result is the outcome of one report. Each report is its own atomic
// operation, so a failed report never affects the others.
type Result struct {
	Index    int
	Key      models.CampaignKey
	Campaign *models.Campaign
	Payout   progress.Payout
	Err      error

	// Processing metrics
	ProcessingTime time.Duration
	WorkerID       int
}

// Config contains configuration for the batch pipeline
type Config struct {
	WorkerCount int
	BufferSize  int
}
