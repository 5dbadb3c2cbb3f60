package saga

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/config"
)

// Formatter renders a report and an optional error message as a response body
type Formatter interface {
	Format(report *contracts.Report, errorMessage string) string
	ContentType() string
}

// NewFormatter returns the formatter named by RESPONSE_FORMAT
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case config.FormatJSON, "":
		return JSONFormatter{}, nil
	case config.FormatExplain:
		return ExplainerFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown response format %q", name)
	}
}

// JSONFormatter is the production body format
type JSONFormatter struct{}

type jsonBody struct {
	Ticker               string                          `json:"ticker,omitempty"`
	DiscountedCashFlow   *contracts.DiscountedCashFlow   `json:"discountedCashFlow,omitempty"`
	PriceTargetConsensus *contracts.PriceTargetConsensus `json:"priceTargetConsensus,omitempty"`
	PriceTargetSummary   *contracts.PriceTargetSummary   `json:"priceTargetSummary,omitempty"`
	Error                string                          `json:"error,omitempty"`
}

func (JSONFormatter) Format(report *contracts.Report, errorMessage string) string {
	body := jsonBody{Error: errorMessage}
	if report != nil {
		body.Ticker = report.Ticker
		body.DiscountedCashFlow = report.DCF
		body.PriceTargetConsensus = report.Consensus
		body.PriceTargetSummary = report.Summary
	}

	out, err := json.Marshal(body)
	if err != nil {
		// only reachable with NaN/Inf values
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(out)
}

func (JSONFormatter) ContentType() string {
	return "application/json"
}
