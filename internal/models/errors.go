package models

import "errors"

// ErrorKind classifies a domain error so transports can map it without
// inspecting individual codes.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindState         ErrorKind = "state"
	KindAuthorization ErrorKind = "authorization"
	KindCapacity      ErrorKind = "capacity"
	KindArithmetic    ErrorKind = "arithmetic"
	KindTransfer      ErrorKind = "transfer"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
)

// Error is a domain error with a stable machine-readable code
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation errors
var (
	ErrNameTooLong        = newError(KindValidation, "NAME_TOO_LONG", "campaign name is too long (max 100 characters)")
	ErrDescriptionTooLong = newError(KindValidation, "DESCRIPTION_TOO_LONG", "campaign description is too long (max 500 characters)")
	ErrUsernameTooLong    = newError(KindValidation, "USERNAME_TOO_LONG", "instagram username is too long (max 50 characters)")
	ErrInvalidAmount      = newError(KindValidation, "INVALID_AMOUNT", "invalid campaign amount")
	ErrInvalidDeadline    = newError(KindValidation, "INVALID_DEADLINE", "invalid deadline (must be in the future)")
	ErrNoTargetMetrics    = newError(KindValidation, "NO_TARGET_METRICS", "no target metrics defined")
	ErrPostURLTooLong     = newError(KindValidation, "POST_URL_TOO_LONG", "post url is too long (max 200 characters)")
	ErrPostIDTooLong      = newError(KindValidation, "POST_ID_TOO_LONG", "post id is too long (max 100 characters)")
	ErrInvalidIdentity    = newError(KindValidation, "INVALID_IDENTITY", "identity is not a valid account address")
	ErrInvalidCampaignKey = newError(KindValidation, "INVALID_CAMPAIGN_KEY", "campaign key is malformed")
)

// State errors
var (
	ErrCampaignNotPending       = newError(KindState, "CAMPAIGN_NOT_PENDING", "campaign is not in pending status")
	ErrCampaignExpired          = newError(KindState, "CAMPAIGN_EXPIRED", "campaign has expired")
	ErrCampaignNotActive        = newError(KindState, "CAMPAIGN_NOT_ACTIVE", "campaign is not active")
	ErrCampaignNotExpired       = newError(KindState, "CAMPAIGN_NOT_EXPIRED", "campaign has not expired yet")
	ErrCannotCancelCampaign     = newError(KindState, "CANNOT_CANCEL_CAMPAIGN", "cannot cancel campaign (only pending campaigns can be cancelled)")
	ErrOracleNotInitialized     = newError(KindState, "ORACLE_NOT_INITIALIZED", "oracle registry is not initialized")
	ErrOracleAlreadyInitialized = newError(KindState, "ORACLE_ALREADY_INITIALIZED", "oracle registry is already initialized")
)

// Authorization errors
var (
	ErrUnauthorizedOracle     = newError(KindAuthorization, "UNAUTHORIZED_ORACLE", "unauthorized oracle")
	ErrUnauthorizedAdmin      = newError(KindAuthorization, "UNAUTHORIZED_ADMINISTRATOR", "caller is not the oracle administrator")
	ErrUnauthorizedInfluencer = newError(KindAuthorization, "UNAUTHORIZED_INFLUENCER", "caller is not the campaign influencer")
	ErrUnauthorizedBrand      = newError(KindAuthorization, "UNAUTHORIZED_BRAND", "caller is not the campaign brand")
	ErrMissingCaller          = newError(KindAuthorization, "MISSING_CALLER", "operation requires an authenticated caller")
)

// Capacity, arithmetic, storage errors
var (
	ErrTooManyPosts      = newError(KindCapacity, "TOO_MANY_POSTS", "too many posts (max 50)")
	ErrAmountOverflow    = newError(KindArithmetic, "AMOUNT_OVERFLOW", "amount paid overflow")
	ErrPaidExceedsTotal  = newError(KindArithmetic, "PAID_EXCEEDS_TOTAL", "amount paid exceeds escrowed total")
	ErrCampaignNotFound  = newError(KindNotFound, "CAMPAIGN_NOT_FOUND", "campaign not found")
	ErrCampaignExists    = newError(KindConflict, "CAMPAIGN_ALREADY_EXISTS", "campaign already exists")
	ErrIllegalTransition = newError(KindState, "ILLEGAL_STATUS_TRANSITION", "illegal campaign status transition")
	ErrUnknownStatus     = newError(KindValidation, "UNKNOWN_STATUS", "unknown campaign status")
	ErrTransferDeclined  = newError(KindTransfer, "TRANSFER_DECLINED", "value transfer declined")
)

// TransferError wraps a failure reported by the value transfer port. The
// underlying cause is kept so callers can match it with errors.Is.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return "transfer failed during " + e.Op + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransferDeclined) match any transfer failure
func (e *TransferError) Is(target error) bool {
	return target == ErrTransferDeclined
}

// KindOf returns the kind of a domain error, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return KindTransfer
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}

// CodeOf returns the stable code of a domain error, or "" for foreign errors
func CodeOf(err error) string {
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return ErrTransferDeclined.Code
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
