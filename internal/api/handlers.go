package api

import (
	"net/http"
	"time"

	"influnest/internal/auth"
	"influnest/internal/lifecycle"
	"influnest/internal/models"
	"influnest/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":     "InfluNest",
		"version":     "1.0.0",
		"description": "Milestone based escrow for influencer campaigns",
		"endpoints": map[string]string{
			"GET /":                                            "This page - Service information",
			"GET /health":                                      "Health check endpoint",
			"GET /metrics":                                     "Prometheus metrics for monitoring",
			"GET /oracle":                                      "Current oracle registry record",
			"POST /oracle/initialize":                          "Initialize the oracle registry (signed)",
			"POST /oracle/rotate":                              "Replace the oracle (signed, administrator only)",
			"GET /campaigns":                                   "List campaigns (supports ?status=, ?influencer=, ?brand=, ?limit=, ?offset=)",
			"POST /campaigns":                                  "Create a campaign (signed, influencer)",
			"GET /campaigns/{influencer}/{createdAt}":          "Get campaign details with progress",
			"GET /campaigns/{influencer}/{createdAt}/events":   "Get event timeline for a campaign",
			"POST /campaigns/{influencer}/{createdAt}/fund":    "Fund a pending campaign (signed, brand)",
			"POST /campaigns/{influencer}/{createdAt}/posts":   "Attach a post (signed, influencer)",
			"POST /campaigns/{influencer}/{createdAt}/metrics": "Report metrics (signed, oracle)",
			"POST /campaigns/{influencer}/{createdAt}/reclaim": "Reclaim remaining escrow after the deadline (signed, brand)",
			"POST /campaigns/{influencer}/{createdAt}/cancel":  "Cancel a pending campaign (signed, influencer)",
			"POST /metrics/batch":                              "Report metrics for many campaigns (signed, oracle)",
		},
	}

	s.sendJSON(w, info, http.StatusOK)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repository.Ping(r.Context()); err != nil {
		s.sendError(w, "Storage unhealthy", http.StatusServiceUnavailable)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "influnest",
	}

	s.sendJSON(w, health, http.StatusOK)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// ORACLE ENDPOINTS
// =============================================================================

// GET /oracle
func (s *Server) handleGetOracle(w http.ResponseWriter, r *http.Request) {
	config, err := s.oracle.Current(r.Context())
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendJSON(w, config, http.StatusOK)
}

// POST /oracle/initialize - the caller becomes the administrator
func (s *Server) handleInitializeOracle(w http.ResponseWriter, r *http.Request) {
	oracle, ok := s.decodeOracle(w, r)
	if !ok {
		return
	}

	config, err := s.oracle.Initialize(r.Context(), auth.IdentityFrom(r.Context()), oracle)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendJSON(w, config, http.StatusCreated)
}

// POST /oracle/rotate
func (s *Server) handleRotateOracle(w http.ResponseWriter, r *http.Request) {
	oracle, ok := s.decodeOracle(w, r)
	if !ok {
		return
	}

	config, err := s.oracle.Rotate(r.Context(), auth.IdentityFrom(r.Context()), oracle)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendJSON(w, config, http.StatusOK)
}

func (s *Server) decodeOracle(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	var req models.OracleRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	oracle, err := models.ParseIdentity(req.Oracle)
	if err != nil {
		s.sendDomainError(w, models.ErrInvalidIdentity)
		return "", false
	}
	return oracle, true
}

// =============================================================================
// CAMPAIGN ENDPOINTS
// =============================================================================

// handleListCampaigns lists campaigns with optional filtering
// GET /campaigns?status=active&influencer=GXXX...&brand=GXXX...&limit=50&offset=0
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.CampaignFilter{}

	if v := query.Get("status"); v != "" {
		status, err := models.ParseCampaignStatus(v)
		if err != nil {
			s.sendDomainError(w, err)
			return
		}
		filter.Status = &status
	}
	for param, dst := range map[string]**models.Identity{
		"influencer": &filter.Influencer,
		"brand":      &filter.Brand,
	} {
		if v := query.Get(param); v != "" {
			id, err := models.ParseIdentity(v)
			if err != nil {
				s.sendDomainError(w, models.ErrInvalidIdentity)
				return
			}
			*dst = &id
		}
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.Limit = limit
	filter.Offset = offset

	campaigns, total, err := s.lifecycle.List(r.Context(), filter)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	now := s.lifecycle.Now().Unix()
	responses := make([]models.CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		responses = append(responses, BuildCampaignResponse(c, now))
	}

	s.sendJSON(w, models.CampaignListResponse{
		Campaigns: responses,
		Total:     total,
		Page:      offset/limit + 1,
		PageSize:  limit,
	}, http.StatusOK)
}

// POST /campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCampaignRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	campaign, err := s.lifecycle.Create(r.Context(), auth.IdentityFrom(r.Context()), lifecycle.CreateParams{
		Name:              req.Name,
		Description:       req.Description,
		InstagramUsername: req.InstagramUsername,
		Amount:            req.Amount,
		Target: models.Metrics{
			Likes:    req.TargetLikes,
			Comments: req.TargetComments,
			Views:    req.TargetViews,
			Shares:   req.TargetShares,
		},
		DeadlineTS: req.DeadlineTS,
		CreatedAt:  req.CreatedAt,
	})
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, BuildCampaignResponse(campaign, s.lifecycle.Now().Unix()), http.StatusCreated)
}

// GET /campaigns/{influencer}/{createdAt}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	key, err := campaignKeyFromPath(r)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	campaign, err := s.lifecycle.Get(r.Context(), key)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, BuildCampaignResponse(campaign, s.lifecycle.Now().Unix()), http.StatusOK)
}

// GET /campaigns/{influencer}/{createdAt}/events?limit=&offset=
func (s *Server) handleGetCampaignEvents(w http.ResponseWriter, r *http.Request) {
	key, err := campaignKeyFromPath(r)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.lifecycle.Events(r.Context(), key, limit, offset)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, models.EventsResponse{
		Campaign: key.String(),
		Events:   events,
		Total:    len(events),
	}, http.StatusOK)
}

// POST /campaigns/{influencer}/{createdAt}/fund
func (s *Server) handleFundCampaign(w http.ResponseWriter, r *http.Request) {
	s.campaignAction(w, r, func(key models.CampaignKey, caller models.Identity) (*models.Campaign, error) {
		return s.lifecycle.Fund(r.Context(), caller, key)
	})
}

// POST /campaigns/{influencer}/{createdAt}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.campaignAction(w, r, func(key models.CampaignKey, caller models.Identity) (*models.Campaign, error) {
		return s.lifecycle.Cancel(r.Context(), caller, key)
	})
}

// POST /campaigns/{influencer}/{createdAt}/posts
func (s *Server) handleAddPost(w http.ResponseWriter, r *http.Request) {
	var req models.AddPostRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.campaignAction(w, r, func(key models.CampaignKey, caller models.Identity) (*models.Campaign, error) {
		return s.lifecycle.AddPost(r.Context(), caller, key, req.PostID, req.PostURL)
	})
}

// campaignAction runs a single-campaign mutation and writes the updated record
func (s *Server) campaignAction(w http.ResponseWriter, r *http.Request, op func(models.CampaignKey, models.Identity) (*models.Campaign, error)) {
	key, err := campaignKeyFromPath(r)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	campaign, err := op(key, auth.IdentityFrom(r.Context()))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, BuildCampaignResponse(campaign, s.lifecycle.Now().Unix()), http.StatusOK)
}

// POST /campaigns/{influencer}/{createdAt}/metrics
func (s *Server) handleReportMetrics(w http.ResponseWriter, r *http.Request) {
	key, err := campaignKeyFromPath(r)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	var req models.MetricsReportRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	campaign, payout, err := s.lifecycle.ReportMetrics(r.Context(), auth.IdentityFrom(r.Context()), key, models.Metrics{
		Likes:    req.Likes,
		Comments: req.Comments,
		Views:    req.Views,
		Shares:   req.Shares,
	})
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, models.MetricsReportResponse{
		Campaign: BuildCampaignResponse(campaign, s.lifecycle.Now().Unix()),
		Payout:   BuildPayoutResponse(payout),
	}, http.StatusOK)
}

// POST /campaigns/{influencer}/{createdAt}/reclaim
func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	key, err := campaignKeyFromPath(r)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	campaign, reclaimed, err := s.lifecycle.Reclaim(r.Context(), auth.IdentityFrom(r.Context()), key)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendJSON(w, models.ReclaimResponse{
		Campaign:  BuildCampaignResponse(campaign, s.lifecycle.Now().Unix()),
		Reclaimed: reclaimed,
	}, http.StatusOK)
}

// handleBatchReport applies many metric reports concurrently
// POST /metrics/batch - results come back in submission order
func (s *Server) handleBatchReport(w http.ResponseWriter, r *http.Request) {
	var req models.BatchReportRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Reports) == 0 {
		s.sendError(w, "batch contains no reports", http.StatusBadRequest)
		return
	}
	if len(req.Reports) > MaxBatchReports {
		s.sendError(w, "batch exceeds maximum size", http.StatusRequestEntityTooLarge)
		return
	}

	results := make([]models.BatchReportResult, len(req.Reports))
	reports := make([]pipeline.Report, 0, len(req.Reports))
	positions := make([]int, 0, len(req.Reports))

	for i, item := range req.Reports {
		results[i].Index = i
		id, err := models.ParseIdentity(item.Influencer)
		if err != nil {
			results[i].Error = models.ErrInvalidCampaignKey.Error()
			results[i].Code = models.ErrInvalidCampaignKey.Code
			continue
		}
		key := models.CampaignKey{Influencer: id, CreatedAt: item.CreatedAt}
		results[i].Campaign = key.String()

		reports = append(reports, pipeline.Report{
			Campaign: key,
			Metrics: models.Metrics{
				Likes:    item.Likes,
				Comments: item.Comments,
				Views:    item.Views,
				Shares:   item.Shares,
			},
		})
		positions = append(positions, i)
	}

	if len(reports) > 0 {
		processed, err := s.batch.Submit(r.Context(), auth.IdentityFrom(r.Context()), reports)
		if err != nil {
			s.sendDomainError(w, err)
			return
		}

		for _, res := range processed {
			out := &results[positions[res.Index]]
			if res.Err != nil {
				_, code, message := publicError(res.Err)
				out.Error = message
				out.Code = code
				continue
			}
			payout := BuildPayoutResponse(res.Payout)
			out.Success = true
			out.Payout = &payout
		}
	}

	resp := models.BatchReportResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	s.sendJSON(w, resp, http.StatusOK)
}
