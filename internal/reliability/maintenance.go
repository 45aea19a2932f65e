package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/database"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// MaintenanceJob performs nightly database upkeep: integrity check, WAL
// checkpoint, and growth logging. Scheduled via cron from the process
// wiring.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob builds a maintenance job for one database.
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: logger.Component(log, "maintenance"),
	}
}

// Run executes one maintenance pass.
func (j *MaintenanceJob) Run() error {
	j.log.Info().
		Str("database", j.db.Name()).
		Str("profile", string(j.db.Profile())).
		Msg("Starting maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	// WAL bloat is the usual failure mode of an always-on writer.
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if stats, err := j.db.GetStats(); err == nil {
		j.log.Info().
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_size_bytes", stats.WALSizeBytes).
			Int64("page_count", stats.PageCount).
			Int64("freelist", stats.FreelistCount).
			Msg("Database statistics")
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed")

	return nil
}
