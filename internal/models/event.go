package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle event
type EventType string

const (
	EventCampaignCreated   EventType = "campaign_created"
	EventCampaignFunded    EventType = "campaign_funded"
	EventPostAdded         EventType = "post_added"
	EventMetricsReported   EventType = "metrics_reported"
	EventPayoutReleased    EventType = "payout_released"
	EventCampaignCompleted EventType = "campaign_completed"
	EventStakeReclaimed    EventType = "stake_reclaimed"
	EventCampaignExpired   EventType = "campaign_expired"
	EventCampaignCancelled EventType = "campaign_cancelled"
	EventOracleInitialized EventType = "oracle_initialized"
	EventOracleRotated     EventType = "oracle_rotated"
)

// CampaignEvent records one committed state change for auditing and fan-out
type CampaignEvent struct {
	// Identification
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`

	// Campaign the event belongs to. Zero for oracle registry events.
	Campaign CampaignKey `json:"campaign"`

	// Who performed the operation
	Actor Identity `json:"actor"`

	// Value moved by the operation, if any
	Amount uint64 `json:"amount,omitempty"`

	// Event specific data
	Data map[string]interface{} `json:"data,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// HasCampaign reports whether the event is scoped to a campaign
func (e *CampaignEvent) HasCampaign() bool {
	return !e.Campaign.Influencer.IsUnset()
}

// NewCampaignEvent builds an event with a fresh random ID
func NewCampaignEvent(eventType EventType, campaign CampaignKey, actor Identity, amount uint64, occurredAt time.Time) *CampaignEvent {
	return &CampaignEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Campaign:   campaign,
		Actor:      actor,
		Amount:     amount,
		Data:       map[string]interface{}{},
		OccurredAt: occurredAt.UTC(),
	}
}

// With sets a data field and returns the event for chaining
func (e *CampaignEvent) With(key string, value interface{}) *CampaignEvent {
	if e.Data == nil {
		e.Data = map[string]interface{}{}
	}
	e.Data[key] = value
	return e
}
