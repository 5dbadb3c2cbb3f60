package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/stockvaluation/backend/internal/saga"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// InvalidRequestMessage is returned for anything but GET /valuation-report?ticker=TICKER
const InvalidRequestMessage = "Invalid request, only /valuation-report?ticker=TICKER format GET requests are supported!"

// ReportGenerator runs the valuation saga for one ticker
type ReportGenerator interface {
	Generate(ctx context.Context, ticker string) *saga.Response
}

// ValuationHandler serves valuation reports
// ⭐ SSOT: 밸류에이션 API 핸들러는 이 구조체에서만
type ValuationHandler struct {
	generator ReportGenerator
	formatter saga.Formatter
	logger    *logger.Logger
}

// NewValuationHandler creates a new valuation handler
func NewValuationHandler(generator ReportGenerator, formatter saga.Formatter, log *logger.Logger) *ValuationHandler {
	return &ValuationHandler{
		generator: generator,
		formatter: formatter,
		logger:    log.WithModule("api"),
	}
}

// GetValuationReport answers with the saga's status code and the formatted body
// GET /valuation-report?ticker=TICKER
func (h *ValuationHandler) GetValuationReport(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(r.URL.Query().Get("ticker"))
	if ticker == "" {
		respondError(w, http.StatusBadRequest, InvalidRequestMessage)
		return
	}

	resp := h.generator.Generate(r.Context(), ticker)
	body := resp.Body(h.formatter)

	h.logger.WithTicker(ticker).WithFields(map[string]interface{}{
		"status_code": resp.StatusCode,
		"bytes":       len(body),
	}).Debug("Sending valuation report")

	w.Header().Set("Content-Type", h.formatter.ContentType())
	w.WriteHeader(resp.StatusCode)
	io.WriteString(w, body)
}

// NotFound answers every unknown route
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, InvalidRequestMessage)
}
