package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockvaluation/backend/pkg/database"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// HealthChecker reports database health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// DBHealthJob pings the database and logs pool statistics
// ⭐ SSOT: DB 상태 점검 스케줄은 이 Job에서만
type DBHealthJob struct {
	db     HealthChecker
	logger *logger.Logger
}

// NewDBHealthJob creates a new database health job
func NewDBHealthJob(db HealthChecker, log *logger.Logger) *DBHealthJob {
	return &DBHealthJob{
		db:     db,
		logger: log.WithModule("db-health"),
	}
}

func (j *DBHealthJob) Name() string {
	return "db_health"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *DBHealthJob) Schedule() string {
	return "0 */5 * * * *"
}

func (j *DBHealthJob) Run(ctx context.Context) error {
	status, err := j.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"response_time":  status.ResponseTime.String(),
		"total_conns":    status.Stats.TotalConns,
		"idle_conns":     status.Stats.IdleConns,
		"acquired_conns": status.Stats.AcquiredConns,
		"max_conns":      status.Stats.MaxConns,
		"acquire_count":  status.Stats.AcquireCount,
	}).Info("Database healthy")
	return nil
}
