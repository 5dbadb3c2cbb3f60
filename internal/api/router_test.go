package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockvaluation/backend/internal/api/handlers"
	"github.com/wonny/stockvaluation/backend/internal/cache"
	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/internal/saga"
	"github.com/wonny/stockvaluation/backend/pkg/database"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

type fakeGenerator struct {
	resp    *saga.Response
	panics  bool
	tickers []string
}

func (g *fakeGenerator) Generate(ctx context.Context, ticker string) *saga.Response {
	if g.panics {
		panic("saga exploded")
	}
	g.tickers = append(g.tickers, ticker)
	return g.resp
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) (*database.HealthStatus, error) {
	return &database.HealthStatus{Healthy: f.err == nil}, f.err
}

func newTestRouter(gen *fakeGenerator, db handlers.HealthChecker) (http.Handler, cache.Cache) {
	c := cache.NewUnbounded(1, logger.Nop())
	valuation := handlers.NewValuationHandler(gen, saga.JSONFormatter{}, logger.Nop())
	ops := handlers.NewOpsHandler(db, c, nil, logger.Nop())
	return NewRouter(valuation, ops, logger.Nop()), c
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouter_ValuationReport(t *testing.T) {
	report := contracts.NewReport("AAPL", nil, &contracts.PriceTargetConsensus{Ticker: "AAPL", High: 2, Low: 1, Consensus: 1.5, Median: 1.5}, nil)
	gen := &fakeGenerator{resp: &saga.Response{StatusCode: http.StatusOK, Report: report, ErrorMessage: "limit"}}
	router, _ := newTestRouter(gen, nil)

	rec := serve(router, http.MethodGet, "/valuation-report?ticker=aapl")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"ticker":"AAPL","priceTargetConsensus":{"targetHigh":2,"targetLow":1,"targetConsensus":1.5,"targetMedian":1.5},"error":"limit"}`,
		rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, []string{"aapl"}, gen.tickers)
}

func TestRouter_StatusCodePassedThrough(t *testing.T) {
	tests := []struct {
		name string
		resp *saga.Response
		want string
	}{
		{
			name: "forbidden",
			resp: &saga.Response{StatusCode: http.StatusForbidden, ErrorMessage: "not a ticker"},
			want: `{"error":"not a ticker"}`,
		},
		{
			name: "rate limited",
			resp: &saga.Response{StatusCode: http.StatusTooManyRequests, ErrorMessage: "Daily rate limit reached for the supplied api key!"},
			want: `{"error":"Daily rate limit reached for the supplied api key!"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(&fakeGenerator{resp: tt.resp}, nil)

			rec := serve(router, http.MethodGet, "/valuation-report?ticker=X")

			assert.Equal(t, tt.resp.StatusCode, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRouter_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{name: "missing ticker", method: http.MethodGet, target: "/valuation-report", want: http.StatusBadRequest},
		{name: "blank ticker", method: http.MethodGet, target: "/valuation-report?ticker=%20", want: http.StatusBadRequest},
		{name: "unknown path", method: http.MethodGet, target: "/report?ticker=AAPL", want: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, target: "/valuation-report?ticker=AAPL", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			router, _ := newTestRouter(gen, nil)

			rec := serve(router, tt.method, tt.target)

			assert.Equal(t, tt.want, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, handlers.InvalidRequestMessage, body["error"])
			assert.Empty(t, gen.tickers, "the saga is not started")
		})
	}
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	router, _ := newTestRouter(&fakeGenerator{resp: &saga.Response{StatusCode: http.StatusOK}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/valuation-report?ticker=AAPL", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRouter_PanicRecovered(t *testing.T) {
	router, _ := newTestRouter(&fakeGenerator{panics: true}, nil)

	rec := serve(router, http.MethodGet, "/valuation-report?ticker=AAPL")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		db         handlers.HealthChecker
		wantCode   int
		wantStatus string
	}{
		{name: "no database", db: nil, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "healthy database", db: fakeHealth{}, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "database down", db: fakeHealth{err: errors.New("connection refused")}, wantCode: http.StatusServiceUnavailable, wantStatus: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(&fakeGenerator{}, tt.db)

			rec := serve(router, http.MethodGet, "/health")

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestRouter_CacheStats(t *testing.T) {
	router, c := newTestRouter(&fakeGenerator{}, nil)
	c.PutDCF("AAPL", &contracts.DiscountedCashFlow{Ticker: "AAPL", Date: "2024-01-01", FairValue: 1, MarketPrice: 1})
	c.Get("AAPL")
	c.Get("MSFT")

	rec := serve(router, http.MethodGet, "/cache/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Cache cache.Stats `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unbounded", body.Cache.Policy)
	assert.Equal(t, 1, body.Cache.Entries)
	assert.Equal(t, int64(1), body.Cache.Hits)
	assert.Equal(t, int64(1), body.Cache.Misses)
}
