package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"influnest/internal/auth"
	"influnest/internal/escrow"
	"influnest/internal/ledger"
	"influnest/internal/lifecycle"
	"influnest/internal/models"
	"influnest/internal/oracle"
	"influnest/internal/pipeline"
	"influnest/internal/storage"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startUnix = 1700000000

type testEnv struct {
	t       *testing.T
	now     time.Time
	handler http.Handler
	ledger  *ledger.MemoryLedger

	admin      *keypair.Full
	oracle     *keypair.Full
	influencer *keypair.Full
	brand      *keypair.Full
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepository(t, storage.NewMemoryRepository())
}

func newTestEnvWithRepository(t *testing.T, repo storage.Repository) *testEnv {
	t.Helper()

	env := &testEnv{
		t:          t,
		now:        time.Unix(startUnix, 0),
		ledger:     ledger.NewMemoryLedger(),
		admin:      keypair.MustRandom(),
		oracle:     keypair.MustRandom(),
		influencer: keypair.MustRandom(),
		brand:      keypair.MustRandom(),
	}
	clock := func() time.Time { return env.now }

	registry := oracle.NewRegistry(repo, nil, clock)
	svc := lifecycle.NewService(lifecycle.Dependencies{
		Repository: repo,
		Oracle:     registry,
		Custodian:  escrow.NewCustodian(env.ledger),
		Clock:      clock,
	})

	server := NewServer("0", Dependencies{
		Repository:    repo,
		Lifecycle:     svc,
		Oracle:        registry,
		Batch:         pipeline.NewBatchReporter(pipeline.Config{WorkerCount: 4, BufferSize: 8}, svc),
		Authenticator: auth.NewSignatureAuthenticator(5*time.Minute, clock).WithReplayGuard(auth.NewMemoryReplayGuard(clock)),
	})
	env.handler = server.Handler()

	require.NoError(t, env.ledger.Credit(models.Identity(env.brand.Address()), 1_000_000))
	return env
}

// do sends a request, signed by kp unless kp is nil, and decodes the JSON
// response into out when out is not nil
func (e *testEnv) do(kp *keypair.Full, method, path string, body interface{}, out interface{}) int {
	e.t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(e.t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if kp != nil {
		require.NoError(e.t, auth.SignRequest(kp, req, raw, e.now))
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (e *testEnv) initOracle() {
	e.t.Helper()
	code := e.do(e.admin, http.MethodPost, "/oracle/initialize", models.OracleRequest{Oracle: e.oracle.Address()}, nil)
	require.Equal(e.t, http.StatusCreated, code)
}

func (e *testEnv) createCampaign(amount uint64) string {
	e.t.Helper()

	var resp models.CampaignResponse
	code := e.do(e.influencer, http.MethodPost, "/campaigns", models.CreateCampaignRequest{
		Name:              "Launch",
		Description:       "Two reels",
		Amount:            amount,
		TargetLikes:       100,
		DeadlineTS:        startUnix + 86400,
		InstagramUsername: "creator",
	}, &resp)
	require.Equal(e.t, http.StatusCreated, code)
	return fmt.Sprintf("/campaigns/%s/%d", resp.Influencer, resp.CreatedAt)
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t)

	var info map[string]interface{}
	assert.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/", nil, &info))
	assert.Equal(t, "InfluNest", info["service"])

	var health map[string]interface{}
	assert.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/health", nil, &health))
	assert.Equal(t, "healthy", health["status"])

	var errResp models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, env.do(nil, http.MethodGet, "/nope", nil, &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Code)
}

func TestMutationsRequireSignature(t *testing.T) {
	env := newTestEnv(t)

	var errResp models.ErrorResponse
	code := env.do(nil, http.MethodPost, "/campaigns", models.CreateCampaignRequest{Amount: 1}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHENTICATED", errResp.ErrorCode)

	// A signature over a different body is rejected
	raw, _ := json.Marshal(models.OracleRequest{Oracle: env.oracle.Address()})
	req := httptest.NewRequest(http.MethodPost, "/oracle/initialize", bytes.NewReader(raw))
	require.NoError(t, auth.SignRequest(env.admin, req, []byte("{}"), env.now))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOracleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var errResp models.ErrorResponse
	assert.Equal(t, http.StatusConflict, env.do(nil, http.MethodGet, "/oracle", nil, &errResp))
	assert.Equal(t, models.ErrOracleNotInitialized.Code, errResp.ErrorCode)

	env.initOracle()
	env.now = env.now.Add(time.Second)
	assert.Equal(t, http.StatusConflict,
		env.do(env.admin, http.MethodPost, "/oracle/initialize", models.OracleRequest{Oracle: env.oracle.Address()}, nil))

	replacement := keypair.MustRandom()
	assert.Equal(t, http.StatusForbidden,
		env.do(env.influencer, http.MethodPost, "/oracle/rotate", models.OracleRequest{Oracle: replacement.Address()}, nil))

	var cfg models.OracleConfig
	assert.Equal(t, http.StatusOK,
		env.do(env.admin, http.MethodPost, "/oracle/rotate", models.OracleRequest{Oracle: replacement.Address()}, &cfg))
	assert.Equal(t, models.Identity(replacement.Address()), cfg.Oracle)

	assert.Equal(t, http.StatusBadRequest,
		env.do(env.admin, http.MethodPost, "/oracle/rotate", models.OracleRequest{Oracle: "not-an-address"}, nil))
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle()
	path := env.createCampaign(1000)

	var resp models.CampaignResponse
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, path+"/fund", nil, &resp))
	assert.Equal(t, models.StatusActive, resp.Status)
	assert.Equal(t, models.Identity(env.brand.Address()), resp.Brand)
	assert.NotEmpty(t, resp.Vault)

	require.Equal(t, http.StatusOK, env.do(env.influencer, http.MethodPost, path+"/posts",
		models.AddPostRequest{PostID: "p1", PostURL: "https://instagram.com/p/p1"}, &resp))
	assert.Len(t, resp.Posts, 1)

	var report models.MetricsReportResponse
	require.Equal(t, http.StatusOK, env.do(env.oracle, http.MethodPost, path+"/metrics",
		models.MetricsReportRequest{Likes: 55}, &report))
	assert.Equal(t, uint64(55), report.Payout.Progress)
	assert.Equal(t, uint64(500), report.Payout.Transferred)
	assert.Equal(t, uint64(500), report.Campaign.AmountPaid)
	assert.Equal(t, uint64(500), report.Campaign.Remaining)

	// Only the registered oracle may report
	var errResp models.ErrorResponse
	assert.Equal(t, http.StatusForbidden, env.do(env.brand, http.MethodPost, path+"/metrics",
		models.MetricsReportRequest{Likes: 100}, &errResp))
	assert.Equal(t, models.ErrUnauthorizedOracle.Code, errResp.ErrorCode)

	require.Equal(t, http.StatusOK, env.do(env.oracle, http.MethodPost, path+"/metrics",
		models.MetricsReportRequest{Likes: 100}, &report))
	assert.True(t, report.Payout.Completed)
	assert.Equal(t, models.StatusCompleted, report.Campaign.Status)

	balance, err := env.ledger.Balance(context.Background(), models.Identity(env.influencer.Address()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), balance)

	var events models.EventsResponse
	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, path+"/events", nil, &events))
	assert.Equal(t, 0, events.Total, "no dispatcher is wired in this environment")
}

func TestReclaimOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle()
	path := env.createCampaign(1000)
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, path+"/fund", nil, nil))

	var errResp models.ErrorResponse
	assert.Equal(t, http.StatusConflict, env.do(env.brand, http.MethodPost, path+"/reclaim", nil, &errResp))
	assert.Equal(t, models.ErrCampaignNotExpired.Code, errResp.ErrorCode)

	env.now = env.now.Add(48 * time.Hour)

	var resp models.ReclaimResponse
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, path+"/reclaim", nil, &resp))
	assert.Equal(t, uint64(1000), resp.Reclaimed)
	assert.Equal(t, models.StatusExpired, resp.Campaign.Status)
	assert.Zero(t, resp.Campaign.Remaining)
	assert.True(t, resp.Campaign.DeadlinePassed)
}

func TestCancelAndErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	path := env.createCampaign(1000)

	assert.Equal(t, http.StatusForbidden, env.do(env.brand, http.MethodPost, path+"/cancel", nil, nil))

	var resp models.CampaignResponse
	require.Equal(t, http.StatusOK, env.do(env.influencer, http.MethodPost, path+"/cancel", nil, &resp))
	assert.Equal(t, models.StatusCancelled, resp.Status)

	assert.Equal(t, http.StatusConflict, env.do(env.brand, http.MethodPost, path+"/fund", nil, nil))

	var errResp models.ErrorResponse
	code := env.do(nil, http.MethodGet, "/campaigns/"+env.influencer.Address()+"/42", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, models.ErrCampaignNotFound.Code, errResp.ErrorCode)

	code = env.do(nil, http.MethodGet, "/campaigns/bogus/42", nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.ErrInvalidCampaignKey.Code, errResp.ErrorCode)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	var errResp models.ErrorResponse
	code := env.do(env.influencer, http.MethodPost, "/campaigns", models.CreateCampaignRequest{
		Name:       "Launch",
		Amount:     1000,
		DeadlineTS: startUnix + 10,
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.ErrNoTargetMetrics.Code, errResp.ErrorCode)

	code = env.do(env.influencer, http.MethodPost, "/campaigns", map[string]interface{}{"unexpected": true}, &errResp)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListCampaigns(t *testing.T) {
	env := newTestEnv(t)
	first := env.createCampaign(1000)
	env.now = env.now.Add(time.Second)
	env.createCampaign(2000)
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, first+"/fund", nil, nil))

	var list models.CampaignListResponse
	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/campaigns", nil, &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, defaultPageSize, list.PageSize)

	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/campaigns?status=active", nil, &list))
	require.Len(t, list.Campaigns, 1)
	assert.Equal(t, uint64(1000), list.Campaigns[0].AmountTotal)

	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/campaigns?brand="+env.brand.Address(), nil, &list))
	assert.Equal(t, 1, list.Total)

	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/campaigns?limit=1&offset=1", nil, &list))
	assert.Len(t, list.Campaigns, 1)

	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/campaigns?limit=500", nil, &list))
	assert.Equal(t, maxPageSize, list.PageSize)

	assert.Equal(t, http.StatusBadRequest, env.do(nil, http.MethodGet, "/campaigns?status=bogus", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(nil, http.MethodGet, "/campaigns?limit=-1", nil, nil))
}

func TestBatchReport(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle()

	first := env.createCampaign(1000)
	env.now = env.now.Add(time.Second)
	env.createCampaign(2000)
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, first+"/fund", nil, nil))

	influencer := env.influencer.Address()
	req := models.BatchReportRequest{Reports: []models.MetricsReportRequest{
		{Influencer: influencer, CreatedAt: startUnix, Likes: 30},
		{Influencer: "bogus", CreatedAt: startUnix, Likes: 30},
		{Influencer: influencer, CreatedAt: startUnix + 1, Likes: 30},
		{Influencer: influencer, CreatedAt: startUnix, Likes: 100},
	}}

	var resp models.BatchReportResponse
	require.Equal(t, http.StatusOK, env.do(env.oracle, http.MethodPost, "/metrics/batch", req, &resp))
	require.Len(t, resp.Results, 4)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)

	for i, res := range resp.Results {
		assert.Equal(t, i, res.Index)
	}
	assert.True(t, resp.Results[0].Success)
	assert.Equal(t, uint64(300), resp.Results[0].Payout.Transferred)
	assert.Equal(t, models.ErrInvalidCampaignKey.Code, resp.Results[1].Code)
	assert.Equal(t, models.ErrCampaignNotActive.Code, resp.Results[2].Code)
	assert.True(t, resp.Results[3].Success)
	assert.Equal(t, uint64(700), resp.Results[3].Payout.Transferred)
	assert.True(t, resp.Results[3].Payout.Completed)

	// Authorization is decided per report
	var rejected models.BatchReportResponse
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, "/metrics/batch", req, &rejected))
	assert.Zero(t, rejected.Succeeded)
	assert.Equal(t, models.ErrUnauthorizedOracle.Code, rejected.Results[0].Code)

	assert.Equal(t, http.StatusBadRequest, env.do(env.oracle, http.MethodPost, "/metrics/batch", models.BatchReportRequest{}, nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{auth.ErrStaleTimestamp, http.StatusUnauthorized},
		{models.ErrNameTooLong, http.StatusBadRequest},
		{models.ErrUnauthorizedBrand, http.StatusForbidden},
		{models.ErrCampaignNotFound, http.StatusNotFound},
		{models.ErrCampaignExists, http.StatusConflict},
		{models.ErrCampaignNotActive, http.StatusConflict},
		{models.ErrTooManyPosts, http.StatusUnprocessableEntity},
		{&models.TransferError{Op: "fund", Err: errors.New("declined")}, http.StatusPaymentRequired},
		{models.ErrAmountOverflow, http.StatusInternalServerError},
		{auth.ErrReplayedRequest, http.StatusUnauthorized},
		{auth.ErrBodyTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := StatusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

// brokenRepository fails campaign updates with a raw storage error once broken is set
type brokenRepository struct {
	*storage.MemoryRepository
	broken bool
}

func (r *brokenRepository) UpdateCampaign(ctx context.Context, key models.CampaignKey, mutate storage.CampaignMutation) (*models.Campaign, error) {
	if r.broken {
		return nil, errors.New("failed to commit transaction: conn closed 10.0.3.7:5432")
	}
	return r.MemoryRepository.UpdateCampaign(ctx, key, mutate)
}

func TestInternalErrorsAreNotEchoed(t *testing.T) {
	repo := &brokenRepository{MemoryRepository: storage.NewMemoryRepository()}
	env := newTestEnvWithRepository(t, repo)
	env.initOracle()
	path := env.createCampaign(1000)
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, path+"/fund", nil, nil))

	repo.broken = true

	var errResp models.ErrorResponse
	assert.Equal(t, http.StatusInternalServerError, env.do(env.oracle, http.MethodPost, path+"/metrics",
		models.MetricsReportRequest{Likes: 10}, &errResp))
	assert.Equal(t, "Internal server error", errResp.Message)

	var resp models.BatchReportResponse
	require.Equal(t, http.StatusOK, env.do(env.oracle, http.MethodPost, "/metrics/batch", models.BatchReportRequest{
		Reports: []models.MetricsReportRequest{{Influencer: env.influencer.Address(), CreatedAt: startUnix, Likes: 10}},
	}, &resp))
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Results[0].Success)
	assert.Equal(t, "Internal server error", resp.Results[0].Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Results[0].Code)
	assert.NotContains(t, resp.Results[0].Error, "10.0.3.7")
}

func TestOversizedSignedBody(t *testing.T) {
	env := newTestEnv(t)

	raw := bytes.Repeat([]byte(" "), auth.MaxBodyBytes+10)
	req := httptest.NewRequest(http.MethodPost, "/campaigns", bytes.NewReader(raw))
	require.NoError(t, auth.SignRequest(env.influencer, req, raw, env.now))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "BODY_TOO_LARGE", errResp.ErrorCode)
}

func TestReplayedRequestIsRejected(t *testing.T) {
	env := newTestEnv(t)
	path := env.createCampaign(1000)
	require.Equal(t, http.StatusOK, env.do(env.brand, http.MethodPost, path+"/fund", nil, nil))

	raw, err := json.Marshal(models.AddPostRequest{PostID: "p1", PostURL: "https://instagram.com/p/p1"})
	require.NoError(t, err)
	send := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	first := httptest.NewRequest(http.MethodPost, path+"/posts", bytes.NewReader(raw))
	require.NoError(t, auth.SignRequest(env.influencer, first, raw, env.now))
	replay := httptest.NewRequest(http.MethodPost, path+"/posts", bytes.NewReader(raw))
	replay.Header = first.Header.Clone()

	require.Equal(t, http.StatusOK, send(first).Code)

	rec := send(replay)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.ErrReplayedRequest.Error())

	var resp models.CampaignResponse
	require.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, path, nil, &resp))
	assert.Len(t, resp.Posts, 1)
}
