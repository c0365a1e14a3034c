package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"influnest/internal/models"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, kp *keypair.Full, method, path string, body []byte, at time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, SignRequest(kp, req, body, at))
	return req
}

func TestAuthenticate_ValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := NewSignatureAuthenticator(time.Minute, func() time.Time { return now })
	kp := keypair.MustRandom()
	body := []byte(`{"name":"launch"}`)

	req := signedRequest(t, kp, http.MethodPost, "/campaigns", body, now.Add(-30*time.Second))

	id, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, models.Identity(kp.Address()), id)

	// Body is still readable by the handler
	again, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, again)
}

func TestAuthenticate_Rejections(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := NewSignatureAuthenticator(time.Minute, func() time.Time { return now })
	kp := keypair.MustRandom()
	body := []byte(`{"likes":10}`)

	tests := []struct {
		name    string
		build   func() *http.Request
		wantErr error
	}{
		{
			name: "no headers",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/campaigns", nil)
			},
			wantErr: ErrMissingCredentials,
		},
		{
			name: "stale timestamp",
			build: func() *http.Request {
				return signedRequest(t, kp, http.MethodPost, "/campaigns", body, now.Add(-2*time.Minute))
			},
			wantErr: ErrStaleTimestamp,
		},
		{
			name: "tampered body",
			build: func() *http.Request {
				req := signedRequest(t, kp, http.MethodPost, "/campaigns", body, now)
				req.Body = io.NopCloser(bytes.NewReader([]byte(`{"likes":100}`)))
				return req
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "different path",
			build: func() *http.Request {
				req := signedRequest(t, kp, http.MethodPost, "/campaigns", body, now)
				req.URL.Path = "/oracle/rotate"
				return req
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "claimed account differs from signer",
			build: func() *http.Request {
				req := signedRequest(t, kp, http.MethodPost, "/campaigns", body, now)
				req.Header.Set(HeaderAccount, keypair.MustRandom().Address())
				return req
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "malformed account",
			build: func() *http.Request {
				req := signedRequest(t, kp, http.MethodPost, "/campaigns", body, now)
				req.Header.Set(HeaderAccount, "GNOTANADDRESS")
				return req
			},
			wantErr: ErrInvalidAccount,
		},
		{
			name: "malformed timestamp",
			build: func() *http.Request {
				req := signedRequest(t, kp, http.MethodPost, "/campaigns", body, now)
				req.Header.Set(HeaderTimestamp, "yesterday")
				return req
			},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(tt.build())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	assert.True(t, IdentityFrom(context.Background()).IsUnset())

	id := models.Identity(keypair.MustRandom().Address())
	assert.Equal(t, id, IdentityFrom(WithIdentity(context.Background(), id)))
}

func TestAuthenticate_BodyTooLarge(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := NewSignatureAuthenticator(time.Minute, func() time.Time { return now })

	body := bytes.Repeat([]byte("a"), MaxBodyBytes+10)
	_, err := a.Authenticate(signedRequest(t, keypair.MustRandom(), http.MethodPost, "/campaigns", body, now))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestAuthenticate_ReplayedSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	guard := NewMemoryReplayGuard(clock)
	a := NewSignatureAuthenticator(time.Minute, clock).WithReplayGuard(guard)
	kp := keypair.MustRandom()
	body := []byte(`{"post_id":"p1","post_url":"https://instagram.com/p/p1"}`)
	path := "/campaigns/" + kp.Address() + "/1700000000/posts"

	first := signedRequest(t, kp, http.MethodPost, path, body, now)
	replay := first.Clone(context.Background())
	replay.Body = io.NopCloser(bytes.NewReader(body))

	_, err := a.Authenticate(first)
	require.NoError(t, err)

	_, err = a.Authenticate(replay)
	assert.ErrorIs(t, err, ErrReplayedRequest)

	// The same call signed at a later second is a new request
	now = now.Add(time.Second)
	_, err = a.Authenticate(signedRequest(t, kp, http.MethodPost, path, body, now))
	assert.NoError(t, err)
}

func TestMemoryReplayGuard_Expiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	guard := NewMemoryReplayGuard(func() time.Time { return now })
	ctx := context.Background()

	fresh, err := guard.Remember(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = guard.Remember(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	now = now.Add(time.Minute)
	fresh, err = guard.Remember(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	// Expired entries are dropped as the guard is used
	now = now.Add(2 * time.Minute)
	for i := 0; i < 256; i++ {
		_, err := guard.Remember(ctx, "other", time.Nanosecond)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, guard.Len(), 2)
}

type failingGuard struct{}

func (failingGuard) Remember(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func TestAuthenticate_ReplayGuardUnavailable(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := NewSignatureAuthenticator(time.Minute, func() time.Time { return now }).WithReplayGuard(failingGuard{})

	_, err := a.Authenticate(signedRequest(t, keypair.MustRandom(), http.MethodPost, "/campaigns", nil, now))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReplayedRequest)
	assert.Contains(t, err.Error(), "connection refused")
}
