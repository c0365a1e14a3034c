package services

import (
	"context"
	"fmt"
	"log/slog"

	"influnest/internal/debug"
	"influnest/internal/models"
)

// AuditService persists every event to the campaign audit trail
type AuditService struct {
	repository EventSaver
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repository EventSaver) *AuditService {
	return &AuditService{repository: repository}
}

// Process saves the event
func (s *AuditService) Process(ctx context.Context, event *models.CampaignEvent) error {
	if err := s.repository.SaveCampaignEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.EventID, err)
	}

	slog.Debug("AuditService: Event saved",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"campaign", event.Campaign.String(),
	)
	debug.PrintEvent(event)
	return nil
}

// Name returns the service name
func (s *AuditService) Name() string {
	return "AuditService"
}
