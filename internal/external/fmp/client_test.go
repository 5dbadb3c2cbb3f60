package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/httputil"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	hc := httputil.New(logger.Nop(), 2*time.Second).WithRetry(1, time.Millisecond)
	return NewClient(hc, apiKey, srv.URL, logger.Nop()), &calls
}

func TestClient_FetchDCF(t *testing.T) {
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/discounted-cash-flow/AAPL", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","date":"2024-09-26","dcf":150.5,"Stock Price":227.52}]`))
	})

	got, err := c.FetchDCF(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, &contracts.DiscountedCashFlow{Ticker: "AAPL", Date: "2024-09-26", FairValue: 150.5, MarketPrice: 227.52}, got)
}

func TestClient_FetchConsensusAndSummary(t *testing.T) {
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MSFT", r.URL.Query().Get("symbol"))
		switch r.URL.Path {
		case "/api/v4/price-target-consensus":
			_, _ = w.Write([]byte(`[{"symbol":"MSFT","targetHigh":600,"targetLow":450,"targetConsensus":502.5,"targetMedian":500}]`))
		case "/api/v4/price-target-summary":
			_, _ = w.Write([]byte(`[{"symbol":"MSFT","lastMonth":7,"lastMonthAvgPriceTarget":510.2,"lastQuarter":19,"lastQuarterAvgPriceTarget":498.1,"lastYear":40}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	consensus, err := c.FetchConsensus(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, &contracts.PriceTargetConsensus{Ticker: "MSFT", High: 600, Low: 450, Consensus: 502.5, Median: 500}, consensus)

	summary, err := c.FetchSummary(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, &contracts.PriceTargetSummary{
		Ticker: "MSFT", LastMonthCount: 7, LastMonthAvg: 510.2, LastQuarterCount: 19, LastQuarterAvg: 498.1,
	}, summary)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  error
		wantMsg   string
		wantCalls int32
	}{
		{name: "empty array is absent", status: 200, body: `[]`, wantCalls: 1},
		{name: "invalid key", status: 401, body: "Invalid API KEY.", wantKind: contracts.ErrAPICredential, wantMsg: "Invalid API KEY.", wantCalls: 1},
		{name: "plan too small", status: 403, body: "Exclusive endpoint", wantKind: contracts.ErrAPIInsufficientPrivilege, wantMsg: "Exclusive endpoint", wantCalls: 1},
		{name: "rate limited", status: 429, body: "Limit Reach", wantKind: contracts.ErrAPIRateLimited, wantMsg: "Daily rate limit reached for the supplied api key!", wantCalls: 1},
		{name: "retryable status retried once then absent", status: 503, body: "down", wantCalls: 2},
		{name: "other status is absent", status: 404, body: "nope", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.FetchDCF(context.Background(), "AAPL")

			assert.Nil(t, got)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantMsg, contracts.ErrorMessage(err))
		})
	}
}

func TestClient_InsufficientPrivilegeIsCredentialError(t *testing.T) {
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.FetchSummary(context.Background(), "AAPL")
	assert.ErrorIs(t, err, contracts.ErrAPICredential)
}

func TestClient_MissingAPIKeyMakesNoCall(t *testing.T) {
	c, calls := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.FetchConsensus(context.Background(), "AAPL")

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrAPICredential)
	assert.Contains(t, contracts.ErrorMessage(err), "No api key was set")
	assert.Zero(t, calls.Load())
}

func TestClient_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	})

	got, err := c.FetchDCF(context.Background(), "AAPL")

	assert.Nil(t, got)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, contracts.ErrAPICredential)
}

func TestClient_DeadlineIsReturned(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.FetchDCF(ctx, "AAPL")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient(httputil.New(logger.Nop(), time.Second), "k", "", logger.Nop())
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	c = NewClient(httputil.New(logger.Nop(), time.Second), "k", "http://localhost:9999/", logger.Nop())
	assert.Equal(t, "http://localhost:9999", c.baseURL)
}
