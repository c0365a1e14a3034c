package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	StatusPending   CampaignStatus = "Pending"
	StatusActive    CampaignStatus = "Active"
	StatusCompleted CampaignStatus = "Completed"
	StatusCancelled CampaignStatus = "Cancelled"
	StatusExpired   CampaignStatus = "Expired"
)

// legalTransitions is the complete status graph. Anything not listed is illegal.
var legalTransitions = map[CampaignStatus][]CampaignStatus{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusCompleted, StatusExpired},
}

// ParseCampaignStatus accepts a status name case-insensitively
func ParseCampaignStatus(s string) (CampaignStatus, error) {
	for _, status := range []CampaignStatus{StatusPending, StatusActive, StatusCompleted, StatusCancelled, StatusExpired} {
		if strings.EqualFold(s, string(status)) {
			return status, nil
		}
	}
	return "", ErrUnknownStatus
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s CampaignStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// Metrics is the quadruple of social counters a campaign targets
type Metrics struct {
	Likes    uint64 `json:"likes"`
	Comments uint64 `json:"comments"`
	Views    uint64 `json:"views"`
	Shares   uint64 `json:"shares"`
}

// HasPositive reports whether at least one counter is non-zero
func (m Metrics) HasPositive() bool {
	return m.Likes > 0 || m.Comments > 0 || m.Views > 0 || m.Shares > 0
}

// CampaignKey identifies a campaign record: its creator and creation timestamp
type CampaignKey struct {
	Influencer Identity `json:"influencer"`
	CreatedAt  int64    `json:"created_at"`
}

// ParseCampaignKey builds a key from its path representation
func ParseCampaignKey(influencer, createdAt string) (CampaignKey, error) {
	id, err := ParseIdentity(influencer)
	if err != nil {
		return CampaignKey{}, ErrInvalidCampaignKey
	}
	ts, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return CampaignKey{}, ErrInvalidCampaignKey
	}
	return CampaignKey{Influencer: id, CreatedAt: ts}, nil
}

func (k CampaignKey) String() string {
	return fmt.Sprintf("%s:%d", k.Influencer, k.CreatedAt)
}

// Post is one piece of deliverable evidence attached by the influencer
type Post struct {
	PostID  PostID  `json:"post_id"`
	PostURL PostURL `json:"post_url"`
	AddedAt int64   `json:"added_at"`
}

// Campaign is one escrow and milestone agreement between an influencer and a brand
type Campaign struct {
	// Parties
	Influencer Identity `json:"influencer"`
	Brand      Identity `json:"brand"` // UnsetIdentity until funded

	// Descriptive
	Name              CampaignName    `json:"name"`
	Description       Description     `json:"description"`
	InstagramUsername InstagramHandle `json:"instagram_username"`

	// Financials, in the smallest unit of the escrowed asset
	AmountTotal uint64 `json:"amount_total"`
	AmountPaid  uint64 `json:"amount_paid"`

	// Targets are fixed at creation, currents are overwritten by each oracle report
	Target  Metrics `json:"target"`
	Current Metrics `json:"current"`

	// Unix seconds
	DeadlineTS int64 `json:"deadline_ts"`
	CreatedAt  int64 `json:"created_at"`

	Status CampaignStatus `json:"status"`
	Posts  []Post         `json:"posts"`

	// Version counts committed updates. Caches keep the highest one they see.
	Version uint64 `json:"version"`
}

// Key returns the identity of the record
func (c *Campaign) Key() CampaignKey {
	return CampaignKey{Influencer: c.Influencer, CreatedAt: c.CreatedAt}
}

// Remaining is the escrow not yet paid out, saturating at zero
func (c *Campaign) Remaining() uint64 {
	if c.AmountPaid >= c.AmountTotal {
		return 0
	}
	return c.AmountTotal - c.AmountPaid
}

// Deadline returns DeadlineTS as a time
func (c *Campaign) Deadline() time.Time {
	return time.Unix(c.DeadlineTS, 0).UTC()
}

// Clone returns a deep copy safe to mutate
func (c *Campaign) Clone() *Campaign {
	out := *c
	out.Posts = make([]Post, len(c.Posts))
	copy(out.Posts, c.Posts)
	return &out
}

// CheckInvariants verifies the record-level invariants that must hold after
// every operation
func (c *Campaign) CheckInvariants() error {
	if c.AmountPaid > c.AmountTotal {
		return ErrPaidExceedsTotal
	}
	if len(c.Posts) > MaxPosts {
		return ErrTooManyPosts
	}
	if !c.Target.HasPositive() {
		return ErrNoTargetMetrics
	}
	unfunded := c.Status == StatusPending || c.Status == StatusCancelled
	if unfunded != c.Brand.IsUnset() {
		return fmt.Errorf("brand assignment inconsistent with status %s", c.Status)
	}
	return nil
}

// CampaignFilter provides criteria for listing campaigns
type CampaignFilter struct {
	Status     *CampaignStatus
	Influencer *Identity
	Brand      *Identity
	Limit      int
	Offset     int
}
