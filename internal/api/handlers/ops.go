package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/stockvaluation/backend/internal/async"
	"github.com/wonny/stockvaluation/backend/internal/cache"
	"github.com/wonny/stockvaluation/backend/pkg/database"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

const serviceName = "stock-valuation-api"

// HealthChecker reports database health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// OpsHandler serves health and cache statistics
type OpsHandler struct {
	db      HealthChecker
	cache   cache.Cache
	persist *async.Pool
	logger  *logger.Logger
}

// NewOpsHandler creates a new ops handler. db and persist may be nil.
func NewOpsHandler(db HealthChecker, c cache.Cache, persist *async.Pool, log *logger.Logger) *OpsHandler {
	return &OpsHandler{
		db:      db,
		cache:   c,
		persist: persist,
		logger:  log.WithModule("api"),
	}
}

// Health returns server and database health
// GET /health
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": serviceName,
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, err := h.db.HealthCheck(ctx)
		body["database"] = status
		if err != nil {
			h.logger.WithError(err).Warn("Database health check failed")
			body["status"] = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	respondJSON(w, http.StatusOK, body)
}

// CacheStats returns cache counters and the persistence queue state
// GET /cache/stats
func (h *OpsHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"cache": h.cache.Stats(),
	}
	if h.persist != nil {
		body["persist"] = h.persist.Stats()
	}
	respondJSON(w, http.StatusOK, body)
}
