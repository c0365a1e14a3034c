package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"influnest/internal/auth"
	"influnest/internal/escrow"
	"influnest/internal/models"
	"influnest/internal/progress"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// sendJSON writes a JSON response with the given status code
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONError(w, message, statusCode, "")
}

// sendDomainError maps an operation error to its HTTP status and writes it
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	status, code, message := publicError(err)
	writeJSONError(w, message, status, code)
}

// publicError resolves the status, code and client-facing message of err.
// Internal errors are logged and never echoed to clients.
func publicError(err error) (int, string, string) {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
		return status, code, "Internal server error"
	}
	return status, code, err.Error()
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int, errorCode string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      statusCode,
		ErrorCode: errorCode,
	})
}

// StatusFor returns the HTTP status and stable error code for err
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrInvalidAccount),
		errors.Is(err, auth.ErrInvalidTimestamp),
		errors.Is(err, auth.ErrStaleTimestamp),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrReplayedRequest):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, auth.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"
	}

	code := models.CodeOf(err)
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest, code
	case models.KindAuthorization:
		return http.StatusForbidden, code
	case models.KindNotFound:
		return http.StatusNotFound, code
	case models.KindState, models.KindConflict:
		return http.StatusConflict, code
	case models.KindCapacity:
		return http.StatusUnprocessableEntity, code
	case models.KindTransfer:
		return http.StatusPaymentRequired, code
	case models.KindArithmetic:
		return http.StatusInternalServerError, code
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// BuildCampaignResponse derives progress, vault and deadline state for a campaign
func BuildCampaignResponse(c *models.Campaign, now int64) models.CampaignResponse {
	resp := models.CampaignResponse{
		Campaign:       c,
		Remaining:      c.Remaining(),
		DeadlinePassed: now >= c.DeadlineTS,
	}

	if score, err := progress.Calculate(c.Current, c.Target); err == nil {
		resp.Progress = score
		resp.Milestones = progress.Milestones(score)
	}

	// Expired campaigns have returned their remainder to the brand
	if c.Status == models.StatusExpired {
		resp.Remaining = 0
	}

	if vault, err := escrow.VaultFor(c.Key()); err == nil {
		resp.Vault = vault.Address
	}

	return resp
}

// BuildPayoutResponse converts a payout decision to its API shape
func BuildPayoutResponse(p progress.Payout) models.PayoutResponse {
	return models.PayoutResponse{
		Progress:    p.Progress,
		Milestones:  p.Milestones,
		Entitled:    p.Entitled,
		Transferred: p.Transfer,
		Completed:   p.Completed,
	}
}

// campaignKeyFromPath reads the {influencer}/{createdAt} route parameters
func campaignKeyFromPath(r *http.Request) (models.CampaignKey, error) {
	return models.ParseCampaignKey(chi.URLParam(r, "influencer"), chi.URLParam(r, "createdAt"))
}

// decodeBody decodes a JSON request body, rejecting unknown fields
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, auth.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parsePagination reads limit and offset query parameters
func parsePagination(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	limit, offset := defaultPageSize, 0

	if v := query.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			return 0, 0, fmt.Errorf("invalid limit: %s", v)
		}
		limit = l
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if v := query.Get("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %s", v)
		}
		offset = o
	}

	return limit, offset, nil
}
