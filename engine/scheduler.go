package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drummonds/purpleify/database"
	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

var errNoDatabase = errors.New("job database not configured")

// InitializeSchedules starts all the cron jobs (currently just the job purge).
// The caller stops the returned cron on shutdown.
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.CleanupIntervalMinutes
	if interval <= 0 {
		interval = 60
	}

	c := cron.New()
	var purgeJob cron.Job
	purgeJob = cron.FuncJob(func() {
		if _, err := serverHandler.purgeOldJobs(); err != nil {
			Logger.Error("Scheduled job purge failed", "error", err)
		}
	})
	purgeJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(purgeJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), purgeJob); err != nil {
		Logger.Error("Unable to schedule job purge", "error", err)
	}
	Logger.Info("Adding job purge scheduler", "interval_minutes", interval,
		"retention_hours", serverHandler.ServerConfig.JobRetentionHours)
	c.Start()
	return c
}

// purgeOldJobs deletes finished jobs older than the retention period. The purge
// is itself tracked as a cleanup job.
func (serverHandler *ServerHandler) purgeOldJobs() (int, error) {
	if serverHandler.DB == nil {
		return 0, errNoDatabase
	}

	retention := time.Duration(serverHandler.ServerConfig.JobRetentionHours) * time.Hour
	job := serverHandler.startJob(database.JobTypeCleanup, "", fmt.Sprintf("Purging jobs finished more than %s ago", retention))

	deleted, err := serverHandler.DB.DeleteOldJobs(retention)
	if err != nil {
		Logger.Error("Failed to purge old jobs", "error", err)
		job.fail(err)
		return 0, err
	}

	if job.valid {
		if err := serverHandler.DB.CompleteJob(job.id, fmt.Sprintf(`{"deleted":%d}`, deleted)); err != nil {
			Logger.Error("Failed to complete job", "jobID", job.id, "error", err)
		}
	}
	Logger.Info("Purged old jobs", "deleted", deleted, "retention", retention)
	return deleted, nil
}
