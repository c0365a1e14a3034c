// Package auth proves that the caller of an HTTP request controls a Stellar
// account. Requests are signed with the account's ed25519 key.
package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"influnest/internal/models"

	"github.com/stellar/go/keypair"
)

const (
	HeaderAccount   = "X-Influnest-Account"
	HeaderTimestamp = "X-Influnest-Timestamp"
	HeaderSignature = "X-Influnest-Signature"

	// MaxBodyBytes bounds the request body read for signature verification
	MaxBodyBytes = 1 << 20
)

var (
	ErrMissingCredentials = errors.New("missing authentication headers")
	ErrInvalidAccount     = errors.New("authentication account is not a valid address")
	ErrInvalidTimestamp   = errors.New("authentication timestamp is malformed")
	ErrStaleTimestamp     = errors.New("authentication timestamp outside allowed clock skew")
	ErrInvalidSignature   = errors.New("request signature does not verify")
	ErrBodyTooLarge       = errors.New("request body too large")
	ErrReplayedRequest    = errors.New("request signature was already used")
)

// SignatureAuthenticator verifies signed requests
type SignatureAuthenticator struct {
	maxSkew time.Duration
	now     func() time.Time
	guard   ReplayGuard
}

// NewSignatureAuthenticator creates an authenticator accepting timestamps
// within maxSkew of now. now defaults to time.Now.
func NewSignatureAuthenticator(maxSkew time.Duration, now func() time.Time) *SignatureAuthenticator {
	if now == nil {
		now = time.Now
	}
	return &SignatureAuthenticator{maxSkew: maxSkew, now: now}
}

// WithReplayGuard makes every signature single-use. Without a guard a signed
// request can be resent until its timestamp leaves the skew window.
func (a *SignatureAuthenticator) WithReplayGuard(guard ReplayGuard) *SignatureAuthenticator {
	a.guard = guard
	return a
}

// Authenticate verifies the request headers and returns the proven identity.
// The body is read and replaced so handlers can decode it again.
func (a *SignatureAuthenticator) Authenticate(r *http.Request) (models.Identity, error) {
	account := r.Header.Get(HeaderAccount)
	tsHeader := r.Header.Get(HeaderTimestamp)
	sigHeader := r.Header.Get(HeaderSignature)
	if account == "" || tsHeader == "" || sigHeader == "" {
		return models.UnsetIdentity, ErrMissingCredentials
	}

	identity, err := models.ParseIdentity(account)
	if err != nil {
		return models.UnsetIdentity, ErrInvalidAccount
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return models.UnsetIdentity, ErrInvalidTimestamp
	}
	now := a.now()
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.maxSkew {
		return models.UnsetIdentity, ErrStaleTimestamp
	}

	signature, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return models.UnsetIdentity, ErrInvalidSignature
	}

	body, err := readBody(r)
	if err != nil {
		return models.UnsetIdentity, err
	}

	kp, err := keypair.ParseAddress(identity.String())
	if err != nil {
		return models.UnsetIdentity, ErrInvalidAccount
	}
	if err := kp.Verify(SigningPayload(r.Method, r.URL.Path, ts, body), signature); err != nil {
		return models.UnsetIdentity, ErrInvalidSignature
	}

	if a.guard != nil {
		// Kept until the timestamp can no longer pass the skew check
		ttl := time.Unix(ts, 0).Add(a.maxSkew).Sub(now) + time.Second
		fresh, err := a.guard.Remember(r.Context(), identity.String()+":"+hex.EncodeToString(signature), ttl)
		if err != nil {
			return models.UnsetIdentity, fmt.Errorf("failed to check request replay: %w", err)
		}
		if !fresh {
			return models.UnsetIdentity, ErrReplayedRequest
		}
	}

	return identity, nil
}

// SigningPayload is the message a caller signs:
// METHOD \n PATH \n TIMESTAMP \n hex(sha256(body))
func SigningPayload(method, path string, timestamp int64, body []byte) []byte {
	digest := sha256.Sum256(body)
	return []byte(fmt.Sprintf("%s\n%s\n%d\n%s", method, path, timestamp, hex.EncodeToString(digest[:])))
}

// SignRequest sets the authentication headers on req. body must be the exact
// bytes sent as the request body.
func SignRequest(kp *keypair.Full, req *http.Request, body []byte, now time.Time) error {
	ts := now.Unix()
	signature, err := kp.Sign(SigningPayload(req.Method, req.URL.Path, ts, body))
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set(HeaderAccount, kp.Address())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, base64.StdEncoding.EncodeToString(signature))
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

type identityKey struct{}

// WithIdentity stores the authenticated caller in ctx
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated caller, or UnsetIdentity
func IdentityFrom(ctx context.Context) models.Identity {
	id, _ := ctx.Value(identityKey{}).(models.Identity)
	return id
}
