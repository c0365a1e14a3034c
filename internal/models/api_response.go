package models

// CreateCampaignRequest is the body of POST /campaigns
type CreateCampaignRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Amount            uint64 `json:"amount"`
	TargetLikes       uint64 `json:"target_likes"`
	TargetComments    uint64 `json:"target_comments"`
	TargetViews       uint64 `json:"target_views"`
	TargetShares      uint64 `json:"target_shares"`
	DeadlineTS        int64  `json:"deadline_ts"`
	InstagramUsername string `json:"instagram_username"`
	CreatedAt         int64  `json:"created_at"`
}

// OracleRequest is the body of the oracle initialize and rotate endpoints
type OracleRequest struct {
	Oracle string `json:"oracle"`
}

// AddPostRequest is the body of POST /campaigns/{influencer}/{createdAt}/posts
type AddPostRequest struct {
	PostID  string `json:"post_id"`
	PostURL string `json:"post_url"`
}

// MetricsReportRequest carries absolute metric values for one campaign
type MetricsReportRequest struct {
	Influencer string `json:"influencer,omitempty"` // batch only
	CreatedAt  int64  `json:"created_at,omitempty"` // batch only
	Likes      uint64 `json:"likes"`
	Comments   uint64 `json:"comments"`
	Views      uint64 `json:"views"`
	Shares     uint64 `json:"shares"`
}

// BatchReportRequest is the body of POST /metrics/batch
type BatchReportRequest struct {
	Reports []MetricsReportRequest `json:"reports"`
}

// CampaignResponse is a campaign with derived progress for API responses
type CampaignResponse struct {
	*Campaign

	Progress       uint64   `json:"progress"`
	Milestones     uint64   `json:"milestones"`
	Remaining      uint64   `json:"remaining"`
	Vault          Identity `json:"vault"`
	DeadlinePassed bool     `json:"deadline_passed"`
}

// PayoutResponse describes what a metrics report paid out
type PayoutResponse struct {
	Progress    uint64 `json:"progress"`
	Milestones  uint64 `json:"milestones"`
	Entitled    uint64 `json:"entitled"`
	Transferred uint64 `json:"transferred"`
	Completed   bool   `json:"completed"`
}

// MetricsReportResponse is returned by the metrics endpoints
type MetricsReportResponse struct {
	Campaign CampaignResponse `json:"campaign"`
	Payout   PayoutResponse   `json:"payout"`
}

// ReclaimResponse is returned when a brand reclaims an expired escrow
type ReclaimResponse struct {
	Campaign  CampaignResponse `json:"campaign"`
	Reclaimed uint64           `json:"reclaimed"`
}

// BatchReportResult is the outcome of one report inside a batch
type BatchReportResult struct {
	Index    int             `json:"index"`
	Campaign string          `json:"campaign"`
	Success  bool            `json:"success"`
	Payout   *PayoutResponse `json:"payout,omitempty"`
	Error    string          `json:"error,omitempty"`
	Code     string          `json:"code,omitempty"`
}

// BatchReportResponse lists batch results in submission order
type BatchReportResponse struct {
	Results   []BatchReportResult `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// CampaignListResponse represents a paginated list of campaigns
type CampaignListResponse struct {
	Campaigns []CampaignResponse `json:"campaigns"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

// EventsResponse represents the event timeline of a campaign
type EventsResponse struct {
	Campaign string          `json:"campaign"`
	Events   []CampaignEvent `json:"events"`
	Total    int             `json:"total"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
}
