package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adamidy7424/GeneNFT-Z/internal/analysis"
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/events"
	"github.com/adamidy7424/GeneNFT-Z/internal/fhe/fhetest"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
	"github.com/adamidy7424/GeneNFT-Z/internal/ledger/ledgertest"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/observability"
	"github.com/adamidy7424/GeneNFT-Z/internal/records"
	"github.com/adamidy7424/GeneNFT-Z/internal/session"
	"github.com/adamidy7424/GeneNFT-Z/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

const testAccount = "0xA11CE00000000000000000000000000000000001"

type testEnv struct {
	ledger    *ledgertest.Ledger
	fhe       *fhetest.Service
	wallet    *session.StaticWallet
	estimates *records.EstimateCache
	status    *statusRecorder
	handler   http.Handler
}

type statusRecorder struct {
	mu     sync.Mutex
	events []events.StatusEvent
}

func (r *statusRecorder) PublishStatus(e events.StatusEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *statusRecorder) all() []events.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.StatusEvent(nil), r.events...)
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		ledger:    ledgertest.New(),
		fhe:       fhetest.New(),
		wallet:    session.NewStaticWallet(testAccount),
		estimates: records.NewEstimateCache(time.Minute),
		status:    &statusRecorder{},
	}
	discard := logger.NewDiscardLogger()
	normalizer := records.NewNormalizer(e.ledger, records.WithStatus(e.status))
	opts := []workflow.Option{
		workflow.WithRetryPolicy(workflow.NoRetry()),
		workflow.WithFinalityTimeout(time.Second),
		workflow.WithLogger(discard),
	}
	controller := NewController(
		normalizer,
		e.estimates,
		workflow.NewCreator(e.fhe, e.ledger, normalizer, opts...),
		workflow.NewVerifier(e.ledger, e.fhe, normalizer, e.estimates, opts...),
		session.NewCoordinator(e.wallet, e.fhe, e.ledger.Address(), nil, discard),
		discard,
	)
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	srv := New(nil, controller, WithMetrics(metrics), WithLogger(discard))
	e.handler = srv.Handler()
	return e
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) create(t *testing.T, name, gene string, research int) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": name, "gene_value": gene, "research_score": research})
	require.NoError(t, err)
	rec := e.do(t, http.MethodPost, "/api/v1/records", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	key, _ := resp["key"].(string)
	require.NotEmpty(t, key)
	return key
}

func TestHealthCheck(t *testing.T) {
	e := setupTestEnvironment(t)

	rec := e.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", resp["status"], "session is not initialized yet")

	e.create(t, "Sample", "80", 5)

	resp = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/v1/health", ""))
	assert.Equal(t, "healthy", resp["status"])
	assert.InDelta(t, 1, resp["records"], 0)
}

func TestCreateListAndGet(t *testing.T) {
	e := setupTestEnvironment(t)
	key := e.create(t, "Alpha Sample", "1,234", 7)
	e.create(t, "Beta", "5", 2)

	rec := e.do(t, http.MethodGet, "/api/v1/records?search=alpha", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]RecordResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, key, list[0].Key)
	assert.Equal(t, int64(7), list[0].PublicScore)
	assert.Equal(t, genetic.Unknown, list[0].Value.Provenance)
	assert.Nil(t, list[0].Value.Value)

	rec = e.do(t, http.MethodGet, "/api/v1/records?verified=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]RecordResponse](t, rec))

	rec = e.do(t, http.MethodGet, "/api/v1/records/"+key, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[RecordResponse](t, rec)
	assert.Equal(t, "Alpha Sample", got.Name)
	assert.Equal(t, testAccount, got.Creator)
}

func TestListRecordsLoadsOnFirstRequest(t *testing.T) {
	e := setupTestEnvironment(t)
	e.ledger.Seed(ledgertest.Entry{Key: "genenft-1", Name: "Seeded", PublicValue1: 3, Timestamp: time.Now().Unix()})

	rec := e.do(t, http.MethodGet, "/api/v1/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]RecordResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Seeded", list[0].Name)
}

func TestListRecordsRejectsBadVerifiedFlag(t *testing.T) {
	e := setupTestEnvironment(t)

	rec := e.do(t, http.MethodGet, "/api/v1/records?verified=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMissingRecordIsNotFound(t *testing.T) {
	e := setupTestEnvironment(t)

	rec := e.do(t, http.MethodGet, "/api/v1/records/genenft-404", "")
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Len(t, resp.CorrelationID, 8)
}

func TestCreateValidationError(t *testing.T) {
	e := setupTestEnvironment(t)

	rec := e.do(t, http.MethodPost, "/api/v1/records", `{"name":"x","gene_value":"abc","research_score":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to create record", resp.Message)
	assert.Contains(t, resp.Error, "gene value is required")
	assert.Empty(t, e.ledger.Keys())
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	e := setupTestEnvironment(t)

	rec := e.do(t, http.MethodPost, "/api/v1/records", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWithoutWalletIsNotReady(t *testing.T) {
	e := setupTestEnvironment(t)
	e.wallet.SetConnected(false)

	rec := e.do(t, http.MethodPost, "/api/v1/records", `{"name":"x","gene_value":"5","research_score":5}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, e.fhe.Calls(fhetest.OpEncrypt))
}

func TestCreateUserRejected(t *testing.T) {
	e := setupTestEnvironment(t)
	e.ledger.FailNext(ledgertest.OpCreate, errors.NewStd("user rejected transaction"))

	rec := e.do(t, http.MethodPost, "/api/v1/records", `{"name":"x","gene_value":"5","research_score":5}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestVerifyFlow(t *testing.T) {
	e := setupTestEnvironment(t)
	key := e.create(t, "Sample", "80", 5)

	rec := e.do(t, http.MethodPost, "/api/v1/records/"+key+"/verify", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, string(workflow.OutcomeVerified), resp["outcome"])
	value, ok := resp["value"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "on-chain-verified", value["provenance"])
	assert.InDelta(t, 80, value["value"], 0)

	rec = e.do(t, http.MethodPost, "/api/v1/records/"+key+"/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string]any](t, rec)
	assert.Equal(t, string(workflow.OutcomeAlreadyVerified), resp["outcome"])

	rec = e.do(t, http.MethodGet, "/api/v1/records?verified=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]RecordResponse](t, rec)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsVerified)
	require.NotNil(t, list[0].Value.Value)
	assert.Equal(t, int64(80), *list[0].Value.Value)
}

func TestVerifyFinalityUnknownIsAccepted(t *testing.T) {
	e := setupTestEnvironment(t)
	key := e.create(t, "Sample", "61", 4)
	e.ledger.FailNext(ledgertest.OpFinality, errors.NewStd("receipt not available"))

	rec := e.do(t, http.MethodPost, "/api/v1/records/"+key+"/verify", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, string(workflow.OutcomeLocalOnly), resp["outcome"])
	assert.NotEmpty(t, resp["warning"])
	value, ok := resp["value"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "locally-decrypted", value["provenance"])

	rec = e.do(t, http.MethodGet, "/api/v1/records/"+key, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[RecordResponse](t, rec)
	assert.Equal(t, genetic.LocalEstimate, got.Value.Provenance)

	rec = e.do(t, http.MethodDelete, "/api/v1/records/"+key+"/estimate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, genetic.UnknownValue(), e.estimates.Get(key))
}

func TestAnalyzeRecord(t *testing.T) {
	e := setupTestEnvironment(t)
	key := e.create(t, "Sample", "80", 5)

	rec := e.do(t, http.MethodGet, "/api/v1/records/"+key+"/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AnalysisResponse](t, rec)
	assert.Equal(t, key, resp.Key)
	assert.Equal(t, genetic.Unknown, resp.Analysis.Source, "unverified records score from the public value")
}

func TestDashboardAndRefresh(t *testing.T) {
	e := setupTestEnvironment(t)
	e.create(t, "A", "10", 4)
	e.create(t, "B", "20", 8)

	rec := e.do(t, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[analysis.Summary](t, rec)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Verified)
	assert.InDelta(t, 6.0, summary.AverageResearch, 1e-9)
	assert.Equal(t, 2, summary.RecentThisWeek)

	e.ledger.Seed(ledgertest.Entry{Key: "genenft-9", Name: "C", PublicValue1: 1, Timestamp: time.Now().Unix()})
	rec = e.do(t, http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.InDelta(t, 3, resp["records"], 0)
}

func TestRefreshLedgerFailure(t *testing.T) {
	e := setupTestEnvironment(t)
	e.ledger.FailNext(ledgertest.OpList, errors.NewStd("connection refused"))

	rec := e.do(t, http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())

	published := e.status.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.OperationRefresh, published[0].Operation)
	assert.Equal(t, events.StatusError, published[0].Status)
	assert.Equal(t, "Failed to load data", published[0].Message)
}

func TestMetricsEndpoint(t *testing.T) {
	e := setupTestEnvironment(t)

	rec := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusCode(t *testing.T) {
	build := func(c errors.ErrorCategory) error {
		return errors.New(errors.NewStd("boom")).Category(c).Build()
	}
	tests := []struct {
		err  error
		want int
	}{
		{errors.ValidationError("bad"), http.StatusBadRequest},
		{errors.NotReadyError("later"), http.StatusServiceUnavailable},
		{build(errors.CategoryUserRejected), http.StatusForbidden},
		{build(errors.CategoryConflict), http.StatusConflict},
		{build(errors.CategoryService), http.StatusBadGateway},
		{build(errors.CategoryLedger), http.StatusBadGateway},
		{build(errors.CategoryFinality), http.StatusAccepted},
		{build(errors.CategoryNotFound), http.StatusNotFound},
		{errors.NewStd("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(errors.CategoryOf(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}
