package services

import (
	"context"
	"log/slog"

	"influnest/internal/models"
	"influnest/internal/retry"
)

// PublishService streams events to the broker, retrying transient failures
type PublishService struct {
	publisher Publisher
	strategy  retry.Strategy
}

// NewPublishService creates a new PublishService instance
func NewPublishService(publisher Publisher, strategy retry.Strategy) *PublishService {
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	return &PublishService{publisher: publisher, strategy: strategy}
}

// Process publishes the event
func (s *PublishService) Process(ctx context.Context, event *models.CampaignEvent) error {
	err := s.strategy.Execute(ctx, "publish "+string(event.EventType), func(ctx context.Context) error {
		return s.publisher.Publish(ctx, event)
	})
	if err != nil {
		return err
	}

	slog.Debug("📤 PublishService: Event published",
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

// Name returns the service name
func (s *PublishService) Name() string {
	return "PublishService"
}
