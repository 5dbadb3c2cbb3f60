package saga

import (
	"fmt"
	"time"

	"github.com/wonny/stockvaluation/backend/pkg/config"
)

// TimeoutPolicy holds the per-tier deadlines of the saga.
// It is a fixed configuration, not a failure-rate circuit breaker; an
// adaptive breaker would replace it behind the same three accessors.
type TimeoutPolicy struct {
	apiCall time.Duration
	dbQuery time.Duration
	overall time.Duration
}

// NewTimeoutPolicy validates and builds a policy; every duration must be positive
func NewTimeoutPolicy(apiCall, dbQuery, overall time.Duration) (TimeoutPolicy, error) {
	if apiCall <= 0 || dbQuery <= 0 || overall <= 0 {
		return TimeoutPolicy{}, fmt.Errorf("timeouts must be positive (api=%s db=%s overall=%s)", apiCall, dbQuery, overall)
	}
	return TimeoutPolicy{apiCall: apiCall, dbQuery: dbQuery, overall: overall}, nil
}

// PolicyFromConfig reads the SAGA_* timeouts
func PolicyFromConfig(cfg *config.Config) (TimeoutPolicy, error) {
	return NewTimeoutPolicy(cfg.Saga.APICallTimeout, cfg.Saga.DBQueryTimeout, cfg.Saga.OverallTimeout)
}

func (p TimeoutPolicy) APICallTimeout() time.Duration { return p.apiCall }
func (p TimeoutPolicy) DBQueryTimeout() time.Duration { return p.dbQuery }
func (p TimeoutPolicy) OverallTimeout() time.Duration { return p.overall }
