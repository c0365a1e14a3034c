package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"influnest/internal/cache"
	"influnest/internal/debug"
	"influnest/internal/escrow"
	"influnest/internal/metrics"
	"influnest/internal/models"
	"influnest/internal/progress"
	"influnest/internal/storage"
)

// OracleAuthorizer decides whether a caller may report metrics
type OracleAuthorizer interface {
	Authorize(ctx context.Context, caller models.Identity) error
}

// Dispatcher receives committed lifecycle events
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.CampaignEvent)
}

// Dependencies wires the service to its collaborators. Dispatcher and Cache
// are optional; Clock defaults to time.Now.
type Dependencies struct {
	Repository storage.Repository
	Oracle     OracleAuthorizer
	Custodian  *escrow.Custodian
	Dispatcher Dispatcher
	Cache      cache.CampaignCache
	Clock      func() time.Time
}

// Service runs the campaign state machine. Every mutating operation is one
// atomic repository update: preconditions are checked first, then at most
// one value transfer runs, and the record is written only if the transfer
// succeeded.
type Service struct {
	repository storage.Repository
	oracle     OracleAuthorizer
	custodian  *escrow.Custodian
	dispatcher Dispatcher
	cache      cache.CampaignCache
	clock      func() time.Time
}

// NewService creates a lifecycle service
func NewService(deps Dependencies) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repository: deps.Repository,
		oracle:     deps.Oracle,
		custodian:  deps.Custodian,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		clock:      clock,
	}
}

// CreateParams are the caller supplied fields of a new campaign
type CreateParams struct {
	Name              string
	Description       string
	InstagramUsername string
	Amount            uint64
	Target            models.Metrics
	DeadlineTS        int64
	// CreatedAt is part of the campaign key. Zero means now.
	CreatedAt int64
}

// Create registers a Pending campaign owned by caller
func (s *Service) Create(ctx context.Context, caller models.Identity, p CreateParams) (campaign *models.Campaign, err error) {
	defer observe("create", time.Now(), &err)

	if caller.IsUnset() {
		return nil, models.ErrMissingCaller
	}

	name, err := models.NewCampaignName(p.Name)
	if err != nil {
		return nil, err
	}
	description, err := models.NewDescription(p.Description)
	if err != nil {
		return nil, err
	}
	handle, err := models.NewInstagramHandle(p.InstagramUsername)
	if err != nil {
		return nil, err
	}

	if p.Amount == 0 {
		return nil, models.ErrInvalidAmount
	}

	now := s.clock().Unix()
	createdAt := p.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}
	if p.DeadlineTS <= now || p.DeadlineTS <= createdAt {
		return nil, models.ErrInvalidDeadline
	}

	if !p.Target.HasPositive() {
		return nil, models.ErrNoTargetMetrics
	}

	campaign = &models.Campaign{
		Influencer:        caller,
		Brand:             models.UnsetIdentity,
		Name:              name,
		Description:       description,
		InstagramUsername: handle,
		AmountTotal:       p.Amount,
		Target:            p.Target,
		DeadlineTS:        p.DeadlineTS,
		CreatedAt:         createdAt,
		Status:            models.StatusPending,
		Posts:             []models.Post{},
	}
	if err := campaign.CheckInvariants(); err != nil {
		return nil, err
	}
	if _, err := escrow.VaultFor(campaign.Key()); err != nil {
		return nil, err
	}

	if err := s.repository.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	slog.Info("📝 Campaign created",
		"campaign", campaign.Key().String(),
		"amount", campaign.AmountTotal,
		"deadline", campaign.Deadline(),
	)
	debug.PrintCampaign(campaign)
	s.writeThrough(ctx, campaign)

	s.emit(ctx, models.NewCampaignEvent(models.EventCampaignCreated, campaign.Key(), caller, campaign.AmountTotal, s.clock()).
		With("name", string(campaign.Name)).
		With("deadline_ts", campaign.DeadlineTS))

	return campaign, nil
}

// Fund moves the full campaign amount from caller into the escrow vault and
// activates the campaign with caller as brand
func (s *Service) Fund(ctx context.Context, caller models.Identity, key models.CampaignKey) (campaign *models.Campaign, err error) {
	defer observe("fund", time.Now(), &err)

	if caller.IsUnset() {
		return nil, models.ErrMissingCaller
	}
	vault, err := escrow.VaultFor(key)
	if err != nil {
		return nil, err
	}

	campaign, err = s.repository.UpdateCampaign(ctx, key, func(ctx context.Context, c *models.Campaign) error {
		if c.Status != models.StatusPending {
			return models.ErrCampaignNotPending
		}
		if s.clock().Unix() >= c.DeadlineTS {
			return models.ErrCampaignExpired
		}
		if err := transition(c, models.StatusActive); err != nil {
			return err
		}

		if err := s.custodian.Deposit(ctx, vault, caller, c.AmountTotal); err != nil {
			return &models.TransferError{Op: "fund", Err: err}
		}

		c.Brand = caller
		c.Status = models.StatusActive
		return c.CheckInvariants()
	})
	if err != nil {
		return nil, err
	}

	slog.Info("💰 Campaign funded",
		"campaign", key.String(),
		"brand", caller,
		"amount", campaign.AmountTotal,
		"vault", vault.Address,
	)
	s.writeThrough(ctx, campaign)

	s.emit(ctx, models.NewCampaignEvent(models.EventCampaignFunded, key, caller, campaign.AmountTotal, s.clock()).
		With("vault", vault.Address.String()))

	return campaign, nil
}

// AddPost attaches deliverable evidence to an active campaign. Only the
// influencer may add posts.
func (s *Service) AddPost(ctx context.Context, caller models.Identity, key models.CampaignKey, postID, postURL string) (campaign *models.Campaign, err error) {
	defer observe("add_post", time.Now(), &err)

	if caller.IsUnset() {
		return nil, models.ErrMissingCaller
	}

	var post models.Post
	campaign, err = s.repository.UpdateCampaign(ctx, key, func(_ context.Context, c *models.Campaign) error {
		if c.Influencer != caller {
			return models.ErrUnauthorizedInfluencer
		}
		if c.Status != models.StatusActive {
			return models.ErrCampaignNotActive
		}

		id, err := models.NewPostID(postID)
		if err != nil {
			return err
		}
		url, err := models.NewPostURL(postURL)
		if err != nil {
			return err
		}
		if len(c.Posts) >= models.MaxPosts {
			return models.ErrTooManyPosts
		}

		post = models.Post{PostID: id, PostURL: url, AddedAt: s.clock().Unix()}
		c.Posts = append(c.Posts, post)
		return c.CheckInvariants()
	})
	if err != nil {
		return nil, err
	}

	slog.Info("📸 Post added",
		"campaign", key.String(),
		"post_id", post.PostID,
		"posts", len(campaign.Posts),
	)
	s.writeThrough(ctx, campaign)

	s.emit(ctx, models.NewCampaignEvent(models.EventPostAdded, key, caller, 0, s.clock()).
		With("post_id", string(post.PostID)).
		With("post_url", string(post.PostURL)))

	return campaign, nil
}

// ReportMetrics overwrites the campaign's current metrics with an oracle
// report and releases whatever the reached milestones entitle the influencer
// to beyond what was already paid. Reaching 100% completes the campaign.
func (s *Service) ReportMetrics(ctx context.Context, caller models.Identity, key models.CampaignKey, report models.Metrics) (campaign *models.Campaign, payout progress.Payout, err error) {
	defer observe("report_metrics", time.Now(), &err)

	if caller.IsUnset() {
		return nil, progress.Payout{}, models.ErrMissingCaller
	}
	vault, err := escrow.VaultFor(key)
	if err != nil {
		return nil, progress.Payout{}, err
	}

	campaign, err = s.repository.UpdateCampaign(ctx, key, func(ctx context.Context, c *models.Campaign) error {
		if err := s.oracle.Authorize(ctx, caller); err != nil {
			return err
		}
		if c.Status != models.StatusActive {
			return models.ErrCampaignNotActive
		}

		c.Current = report

		plan, err := progress.Plan(c)
		if err != nil {
			return err
		}

		paid := c.AmountPaid
		if plan.Transfer > 0 {
			var ok bool
			if paid, ok = checkedAdd(c.AmountPaid, plan.Transfer); !ok {
				return models.ErrAmountOverflow
			}
			if paid > c.AmountTotal {
				return models.ErrPaidExceedsTotal
			}
		}
		if plan.Completed {
			if err := transition(c, models.StatusCompleted); err != nil {
				return err
			}
		}

		if plan.Transfer > 0 {
			if err := s.custodian.Release(ctx, vault, c.Influencer, plan.Transfer); err != nil {
				return &models.TransferError{Op: "payout", Err: err}
			}
		}

		c.AmountPaid = paid
		if plan.Completed {
			c.Status = models.StatusCompleted
		}
		payout = plan
		return c.CheckInvariants()
	})
	if err != nil {
		return nil, progress.Payout{}, err
	}

	slog.Info("📊 Metrics reported",
		"campaign", key.String(),
		"progress", payout.Progress,
		"milestones", payout.Milestones,
		"transferred", payout.Transfer,
		"amount_paid", campaign.AmountPaid,
	)
	s.writeThrough(ctx, campaign)

	now := s.clock()
	s.emit(ctx, models.NewCampaignEvent(models.EventMetricsReported, key, caller, 0, now).
		With("likes", report.Likes).
		With("comments", report.Comments).
		With("views", report.Views).
		With("shares", report.Shares).
		With("progress", payout.Progress))
	if payout.Transfer > 0 {
		s.emit(ctx, models.NewCampaignEvent(models.EventPayoutReleased, key, caller, payout.Transfer, now).
			With("milestones", payout.Milestones).
			With("amount_paid", campaign.AmountPaid))
	}
	if payout.Completed {
		slog.Info("🏁 Campaign completed", "campaign", key.String())
		s.emit(ctx, models.NewCampaignEvent(models.EventCampaignCompleted, key, caller, campaign.AmountPaid, now))
	}

	return campaign, payout, nil
}

// Reclaim returns the unpaid escrow of an active campaign to its brand once
// the deadline has passed. The campaign always ends Expired.
func (s *Service) Reclaim(ctx context.Context, caller models.Identity, key models.CampaignKey) (campaign *models.Campaign, reclaimed uint64, err error) {
	defer observe("reclaim", time.Now(), &err)

	if caller.IsUnset() {
		return nil, 0, models.ErrMissingCaller
	}
	vault, err := escrow.VaultFor(key)
	if err != nil {
		return nil, 0, err
	}

	campaign, err = s.repository.UpdateCampaign(ctx, key, func(ctx context.Context, c *models.Campaign) error {
		if c.Brand.IsUnset() || c.Brand != caller {
			return models.ErrUnauthorizedBrand
		}
		if c.Status != models.StatusActive {
			return models.ErrCampaignNotActive
		}
		if s.clock().Unix() < c.DeadlineTS {
			return models.ErrCampaignNotExpired
		}
		if err := transition(c, models.StatusExpired); err != nil {
			return err
		}

		remaining := c.Remaining()
		if remaining > 0 {
			if err := s.custodian.Release(ctx, vault, c.Brand, remaining); err != nil {
				return &models.TransferError{Op: "reclaim", Err: err}
			}
		}

		reclaimed = remaining
		c.Status = models.StatusExpired
		return c.CheckInvariants()
	})
	if err != nil {
		return nil, 0, err
	}

	slog.Info("⌛ Campaign expired, stake reclaimed",
		"campaign", key.String(),
		"brand", caller,
		"amount", reclaimed,
	)
	s.writeThrough(ctx, campaign)

	now := s.clock()
	if reclaimed > 0 {
		s.emit(ctx, models.NewCampaignEvent(models.EventStakeReclaimed, key, caller, reclaimed, now))
	}
	s.emit(ctx, models.NewCampaignEvent(models.EventCampaignExpired, key, caller, 0, now).
		With("amount_paid", campaign.AmountPaid))

	return campaign, reclaimed, nil
}

// Cancel withdraws a campaign that was never funded. Only the influencer may
// cancel and no value moves.
func (s *Service) Cancel(ctx context.Context, caller models.Identity, key models.CampaignKey) (campaign *models.Campaign, err error) {
	defer observe("cancel", time.Now(), &err)

	if caller.IsUnset() {
		return nil, models.ErrMissingCaller
	}

	campaign, err = s.repository.UpdateCampaign(ctx, key, func(_ context.Context, c *models.Campaign) error {
		if c.Influencer != caller {
			return models.ErrUnauthorizedInfluencer
		}
		if c.Status != models.StatusPending {
			return models.ErrCannotCancelCampaign
		}
		if err := transition(c, models.StatusCancelled); err != nil {
			return err
		}
		c.Status = models.StatusCancelled
		return c.CheckInvariants()
	})
	if err != nil {
		return nil, err
	}

	slog.Info("🚫 Campaign cancelled", "campaign", key.String())
	s.writeThrough(ctx, campaign)
	s.emit(ctx, models.NewCampaignEvent(models.EventCampaignCancelled, key, caller, 0, s.clock()))

	return campaign, nil
}

// Get returns a campaign, through the read cache when one is configured
func (s *Service) Get(ctx context.Context, key models.CampaignKey) (*models.Campaign, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Campaign cache read failed", "campaign", key.String(), "error", err)
		}
	}

	campaign, err := s.repository.GetCampaign(ctx, key)
	if err != nil {
		return nil, err
	}

	s.writeThrough(ctx, campaign)
	return campaign, nil
}

// List returns one page of campaigns and the total number of matches
func (s *Service) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int, error) {
	campaigns, err := s.repository.ListCampaigns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repository.CountCampaigns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// Events returns the audit trail of a campaign
func (s *Service) Events(ctx context.Context, key models.CampaignKey, limit, offset int) ([]models.CampaignEvent, error) {
	if _, err := s.repository.GetCampaign(ctx, key); err != nil {
		return nil, err
	}
	return s.repository.ListCampaignEvents(ctx, key, limit, offset)
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.clock()
}

// writeThrough caches a committed record. The cache keeps the higher
// version, so a read that loaded an older copy cannot overwrite this one.
func (s *Service) writeThrough(ctx context.Context, campaign *models.Campaign) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, campaign); err != nil {
		slog.Warn("Campaign cache write failed", "campaign", campaign.Key().String(), "error", err)
	}
}

func (s *Service) emit(ctx context.Context, event *models.CampaignEvent) {
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, event)
	}
}

func transition(c *models.Campaign, next models.CampaignStatus) error {
	if !c.Status.CanTransitionTo(next) {
		return models.ErrIllegalTransition
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

func observe(operation string, start time.Time, err *error) {
	metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if *err != nil {
		kind := string(models.KindOf(*err))
		if kind == "" {
			kind = "internal"
		}
		metrics.OperationErrors.WithLabelValues(operation, kind).Inc()
		slog.Debug("Operation rejected", "operation", operation, "error", *err)
	}
}
