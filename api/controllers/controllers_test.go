package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/repricer-backend/api/middleware"
	"github.com/angelmondragon/repricer-backend/internal/buybox"
	"github.com/angelmondragon/repricer-backend/internal/repricing"
	"github.com/angelmondragon/repricer-backend/internal/rules"
	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db/models"
	"github.com/angelmondragon/repricer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/repricer-backend/pkg/errors"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/pagination"
)

var testOrg = uuid.MustParse("6f1c2a8e-4b7d-4a51-9d0e-2f3b8c9a1d42")

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newRequest(method, target, body string, params map[string]string, withOrg bool) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	if withOrg {
		ctx = middleware.WithOrganizationID(ctx, testOrg)
	}
	return req.WithContext(ctx)
}

func pairParams() map[string]string {
	return map[string]string{"productId": "sku-1", "marketplaceId": "amazon-us"}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

type stubRepricing struct {
	adjustments []models.PriceAdjustment
	next        string
	err         error
	params      pagination.Params
	calledWith  string
}

func (s *stubRepricing) ApplyRules(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) ([]models.PriceAdjustment, error) {
	s.calledWith = organizationID.String() + "/" + productID + "/" + marketplaceID
	return s.adjustments, s.err
}

func (s *stubRepricing) ListAdjustments(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, params pagination.Params) ([]models.PriceAdjustment, string, error) {
	s.params = params
	return s.adjustments, s.next, s.err
}

type stubBatch struct {
	result repricing.BatchResult
	err    error
}

func (s *stubBatch) RunForOrganization(ctx context.Context, organizationID uuid.UUID) (repricing.BatchResult, error) {
	s.result.OrganizationID = organizationID
	return s.result, s.err
}

func TestRepricingApply(t *testing.T) {
	runID := uuid.New()
	svc := &stubRepricing{adjustments: []models.PriceAdjustment{
		{ID: uuid.New(), RunID: runID, RuleID: uuid.New(), Status: enums.AdjustmentSkipped, OldPrice: decimal.RequireFromString("55"), NewPrice: decimal.RequireFromString("55")},
		{ID: uuid.New(), RunID: runID, RuleID: uuid.New(), Status: enums.AdjustmentExecuted, Applied: true, OldPrice: decimal.RequireFromString("55"), NewPrice: decimal.RequireFromString("45")},
	}}

	t.Run("missing organization", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RepricingApply(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/apply", "", pairParams(), false))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns winner", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RepricingApply(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/apply", "", pairParams(), true))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testOrg.String()+"/sku-1/amazon-us", svc.calledWith)

		var body repricing.RunDTO
		decodeData(t, rec, &body)
		assert.Equal(t, runID.String(), body.RunID)
		require.Len(t, body.Adjustments, 2)
		require.NotNil(t, body.Winner)
		assert.True(t, body.Winner.NewPrice.Equal(decimal.RequireFromString("45")))
	})

	t.Run("not found", func(t *testing.T) {
		missing := &stubRepricing{err: pkgerrors.New(pkgerrors.CodeNotFound, "buybox status not found")}
		rec := httptest.NewRecorder()
		RepricingApply(missing, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/apply", "", pairParams(), true))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRepricingRun(t *testing.T) {
	rec := httptest.NewRecorder()
	RepricingRun(&stubBatch{result: repricing.BatchResult{ProcessedCount: 3, FailedCount: 1}}, testLogger()).
		ServeHTTP(rec, newRequest(http.MethodPost, "/run", "", nil, true))
	require.Equal(t, http.StatusOK, rec.Code)
	var body repricing.BatchResultDTO
	decodeData(t, rec, &body)
	assert.Equal(t, 3, body.ProcessedCount)
	assert.Equal(t, testOrg.String(), body.OrganizationID)

	rec = httptest.NewRecorder()
	RepricingRun(&stubBatch{result: repricing.BatchResult{Skipped: true}}, testLogger()).
		ServeHTTP(rec, newRequest(http.MethodPost, "/run", "", nil, true))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	RepricingRun(&stubBatch{err: errors.New("list monitored statuses: db down")}, testLogger()).
		ServeHTTP(rec, newRequest(http.MethodPost, "/run", "", nil, true))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRepricingAdjustments(t *testing.T) {
	svc := &stubRepricing{adjustments: []models.PriceAdjustment{{ID: uuid.New(), RunID: uuid.New()}}, next: "abc"}

	rec := httptest.NewRecorder()
	RepricingAdjustments(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/adjustments?limit=10&cursor=xyz", "", pairParams(), true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "xyz"}, svc.params)
	var page repricing.AdjustmentPageDTO
	decodeData(t, rec, &page)
	assert.Len(t, page.Adjustments, 1)
	assert.Equal(t, "abc", page.NextCursor)

	rec = httptest.NewRecorder()
	RepricingAdjustments(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/adjustments?limit=500", "", pairParams(), true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubBuyBox struct {
	input   buybox.UpdateStatusInput
	status  *models.BuyBoxStatus
	history []models.BuyBoxHistory
	since   *time.Time
	err     error
}

func (s *stubBuyBox) UpdateBuyBoxStatus(ctx context.Context, organizationID uuid.UUID, input buybox.UpdateStatusInput) (*models.BuyBoxStatus, error) {
	s.input = input
	return s.status, s.err
}

func (s *stubBuyBox) GetStatus(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string) (*models.BuyBoxStatus, error) {
	return s.status, s.err
}

func (s *stubBuyBox) ListHistory(ctx context.Context, organizationID uuid.UUID, productID, marketplaceID string, since *time.Time) ([]models.BuyBoxHistory, error) {
	s.since = since
	return s.history, s.err
}

func TestBuyBoxUpdate(t *testing.T) {
	svc := &stubBuyBox{status: &models.BuyBoxStatus{ID: uuid.New(), ProductID: "sku-1", MarketplaceID: "amazon-us", Status: enums.BuyBoxStateLost}}
	body := `{
		"listing": {"price": "55.00", "shipping": "0", "isInBuyBox": false},
		"competitors": [{"competitorId": "c2", "competitorName": " Rival ", "price": "45", "shipping": "2.5", "isBuyBoxWinner": true}],
		"currency": "usd",
		"monitoringInterval": 30
	}`

	rec := httptest.NewRecorder()
	BuyBoxUpdate(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPut, "/buybox", body, pairParams(), true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "sku-1", svc.input.ProductID)
	assert.Equal(t, enums.CurrencyUSD, svc.input.Currency)
	require.NotNil(t, svc.input.MonitoringInterval)
	assert.Equal(t, 30, *svc.input.MonitoringInterval)
	require.Len(t, svc.input.Competitors, 1)
	assert.Equal(t, "Rival", svc.input.Competitors[0].CompetitorName)
	assert.True(t, svc.input.Competitors[0].TotalPrice.Equal(decimal.RequireFromString("47.5")))
	assert.False(t, svc.input.Competitors[0].LastUpdated.IsZero())

	rec = httptest.NewRecorder()
	BuyBoxUpdate(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPut, "/buybox", `{"listing":{},"unknown":1}`, pairParams(), true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyBoxHistoryParsesSince(t *testing.T) {
	svc := &stubBuyBox{history: []models.BuyBoxHistory{{ID: uuid.New(), Status: enums.BuyBoxStateWon}}}

	rec := httptest.NewRecorder()
	BuyBoxHistory(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/history?since=2026-03-01T00:00:00Z", "", pairParams(), true))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.since)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *svc.since)

	rec = httptest.NewRecorder()
	BuyBoxHistory(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/history?since=yesterday", "", pairParams(), true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubRules struct {
	created rules.CreateRuleInput
	updated rules.UpdateRuleInput
	deleted uuid.UUID
	rule    *models.RepricingRule
	err     error
}

func (s *stubRules) CreateRule(ctx context.Context, organizationID uuid.UUID, input rules.CreateRuleInput) (*models.RepricingRule, error) {
	s.created = input
	return s.rule, s.err
}

func (s *stubRules) GetRule(ctx context.Context, organizationID, ruleID uuid.UUID) (*models.RepricingRule, error) {
	return s.rule, s.err
}

func (s *stubRules) ListRules(ctx context.Context, organizationID uuid.UUID, activeOnly bool) ([]models.RepricingRule, error) {
	if s.rule == nil {
		return nil, s.err
	}
	return []models.RepricingRule{*s.rule}, s.err
}

func (s *stubRules) UpdateRule(ctx context.Context, organizationID, ruleID uuid.UUID, input rules.UpdateRuleInput) (*models.RepricingRule, error) {
	s.updated = input
	return s.rule, s.err
}

func (s *stubRules) DeleteRule(ctx context.Context, organizationID, ruleID uuid.UUID) error {
	s.deleted = ruleID
	return s.err
}

func TestRuleCreate(t *testing.T) {
	svc := &stubRules{rule: &models.RepricingRule{ID: uuid.New(), Name: "beat lowest", Operation: enums.OperationBeatBy}}

	body := `{"name":"beat lowest","applyToAllProducts":true,"applyToAllMarketplaces":true,"operation":"beat_by","targetCompetitor":"lowest","value":"0.50","minPrice":"20"}`
	rec := httptest.NewRecorder()
	RuleCreate(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/rules", body, nil, true))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, enums.OperationBeatBy, svc.created.Operation)
	assert.Equal(t, enums.TargetLowest, svc.created.TargetCompetitor)
	assert.True(t, svc.created.Value.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, svc.created.MinPrice.Valid)
	assert.False(t, svc.created.MaxPrice.Valid)

	rec = httptest.NewRecorder()
	RuleCreate(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/rules", `{"name":"x","operation":"undercut"}`, nil, true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestRuleUpdateDistinguishesNullFromAbsent(t *testing.T) {
	ruleID := uuid.New()
	svc := &stubRules{rule: &models.RepricingRule{ID: ruleID, Name: "floor"}}

	rec := httptest.NewRecorder()
	RuleUpdate(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPatch, "/rules/"+ruleID.String(), `{"minPrice":null,"priority":5}`, map[string]string{"ruleId": ruleID.String()}, true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, svc.updated.MinPrice)
	assert.False(t, svc.updated.MinPrice.Valid)
	assert.Nil(t, svc.updated.MaxPrice)
	require.NotNil(t, svc.updated.Priority)
	assert.Equal(t, 5, *svc.updated.Priority)
	assert.Nil(t, svc.updated.Operation)
}

func TestRuleDelete(t *testing.T) {
	ruleID := uuid.New()
	svc := &stubRules{}

	rec := httptest.NewRecorder()
	RuleDelete(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodDelete, "/rules/x", "", map[string]string{"ruleId": "not-a-uuid"}, true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	RuleDelete(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodDelete, "/rules/"+ruleID.String(), "", map[string]string{"ruleId": ruleID.String()}, true))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, ruleID, svc.deleted)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), map[string]Pinger{"database": stubPinger{}, "redis": stubPinger{}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get(envHeader))

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), map[string]Pinger{"database": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
}
