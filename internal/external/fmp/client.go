package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/httputil"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

const (
	DefaultBaseURL = "https://financialmodelingprep.com"

	noAPIKeyMessage = "No api key was set for the Financial Modeling Prep api!\n" +
		"Please set it via the FMP_API_KEY environment variable or if you don't yet have one, " +
		"get one first at https://site.financialmodelingprep.com/developer/docs"
	rateLimitMessage = "Daily rate limit reached for the supplied api key!"

	maxBodyBytes = 1 << 20
)

// Client handles communication with the Financial Modeling Prep API
// ⭐ SSOT: FMP API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new FMP client. An empty baseURL selects the public endpoint.
func NewClient(httpClient *httputil.Client, apiKey, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithModule("fmp"),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// dcfRecord is the wire shape of the discounted cash flow endpoint
type dcfRecord struct {
	Symbol     string  `json:"symbol"`
	Date       string  `json:"date"`
	DCF        float64 `json:"dcf"`
	StockPrice float64 `json:"Stock Price"`
}

// FetchDCF calls /api/v3/discounted-cash-flow/{ticker}
func (c *Client) FetchDCF(ctx context.Context, ticker string) (*contracts.DiscountedCashFlow, error) {
	path := "/api/v3/discounted-cash-flow/" + url.PathEscape(ticker)

	rec, err := fetch[dcfRecord](ctx, c, "discounted cash flow", path, nil)
	if err != nil || rec == nil {
		return nil, err
	}
	return &contracts.DiscountedCashFlow{
		Ticker:      ticker,
		Date:        rec.Date,
		FairValue:   rec.DCF,
		MarketPrice: rec.StockPrice,
	}, nil
}

// FetchConsensus calls /api/v4/price-target-consensus?symbol={ticker}
func (c *Client) FetchConsensus(ctx context.Context, ticker string) (*contracts.PriceTargetConsensus, error) {
	rec, err := fetch[contracts.PriceTargetConsensus](ctx, c, "price target consensus",
		"/api/v4/price-target-consensus", url.Values{"symbol": {ticker}})
	if err != nil || rec == nil {
		return nil, err
	}
	rec.Ticker = ticker
	return rec, nil
}

// FetchSummary calls /api/v4/price-target-summary?symbol={ticker}
func (c *Client) FetchSummary(ctx context.Context, ticker string) (*contracts.PriceTargetSummary, error) {
	rec, err := fetch[contracts.PriceTargetSummary](ctx, c, "price target summary",
		"/api/v4/price-target-summary", url.Values{"symbol": {ticker}})
	if err != nil || rec == nil {
		return nil, err
	}
	rec.Ticker = ticker
	return rec, nil
}

// fetch issues one GET and decodes the first element of the JSON array.
// (nil, nil) means the API has no data or answered with an unclassified status.
func fetch[T any](ctx context.Context, c *Client, name, path string, params url.Values) (*T, error) {
	if c.apiKey == "" {
		return nil, contracts.NewAPIError(contracts.ErrAPICredential, http.StatusUnauthorized, noAPIKeyMessage)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	log := c.logger.WithField("endpoint", name)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		switch {
		case httputil.IsQuotaExhausted(err):
			return nil, contracts.NewAPIError(contracts.ErrAPIRateLimited, http.StatusTooManyRequests, rateLimitMessage)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return nil, err
		}
		log.WithError(err).Error("no response from FMP api")
		return nil, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", name, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeFirst[T](body, name)
	case http.StatusUnauthorized:
		return nil, contracts.NewAPIError(contracts.ErrAPICredential, resp.StatusCode, string(body))
	case http.StatusForbidden:
		return nil, contracts.NewAPIError(contracts.ErrAPIInsufficientPrivilege, resp.StatusCode, string(body))
	case http.StatusTooManyRequests:
		return nil, contracts.NewAPIError(contracts.ErrAPIRateLimited, resp.StatusCode, rateLimitMessage)
	}

	log.WithFields(map[string]interface{}{
		"status_code": resp.StatusCode,
		"body":        truncate(string(body), 256),
	}).Error("FMP api returned an error response")
	return nil, nil
}

func decodeFirst[T any](body []byte, name string) (*T, error) {
	var records []T
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
