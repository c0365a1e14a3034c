package services

import (
	"context"

	"influnest/internal/metrics"
	"influnest/internal/models"
)

// MetricsService turns lifecycle events into prometheus counters
type MetricsService struct{}

// NewMetricsService creates a new MetricsService instance
func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

// Process updates the counters matching the event type
func (s *MetricsService) Process(_ context.Context, event *models.CampaignEvent) error {
	amount := float64(event.Amount)

	switch event.EventType {
	case models.EventCampaignCreated:
		metrics.CampaignsCreated.Inc()
	case models.EventCampaignFunded:
		metrics.CampaignTransitions.WithLabelValues(string(models.StatusActive)).Inc()
		metrics.AmountDeposited.Add(amount)
	case models.EventPostAdded:
		metrics.PostsAdded.Inc()
	case models.EventMetricsReported:
		metrics.MetricReports.Inc()
	case models.EventPayoutReleased:
		metrics.PayoutsReleased.Inc()
		metrics.AmountReleased.Add(amount)
	case models.EventCampaignCompleted:
		metrics.CampaignTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()
	case models.EventStakeReclaimed:
		metrics.AmountReclaimed.Add(amount)
	case models.EventCampaignExpired:
		metrics.CampaignTransitions.WithLabelValues(string(models.StatusExpired)).Inc()
	case models.EventCampaignCancelled:
		metrics.CampaignTransitions.WithLabelValues(string(models.StatusCancelled)).Inc()
	case models.EventOracleRotated:
		metrics.OracleRotations.Inc()
	}
	return nil
}

// Name returns the service name
func (s *MetricsService) Name() string {
	return "MetricsService"
}
