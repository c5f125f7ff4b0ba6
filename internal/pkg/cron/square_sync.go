package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
)

// TenantSource lists the companies due for scheduled sync.
type TenantSource interface {
	ListSyncEnabledCompanyIDs(ctx context.Context) ([]string, error)
}

type Syncer interface {
	SyncCompany(ctx context.Context, companyID string, window *squaresync.DateRange) (squaresync.SyncResult, error)
}

type SquareSyncJobs struct {
	tenants TenantSource
	syncer  Syncer
}

func NewSquareSyncJobs(tenants TenantSource, syncer Syncer) *SquareSyncJobs {
	return &SquareSyncJobs{
		tenants: tenants,
		syncer:  syncer,
	}
}

func (j *SquareSyncJobs) RegisterJobs(scheduler *Scheduler, interval, startDelay time.Duration) {
	scheduler.AddDelayedJob("square_sync_all_companies", interval, startDelay, j.SyncAllCompanies)
}

// SyncAllCompanies syncs every enabled company in turn. A failing company
// is logged and does not stop the others.
func (j *SquareSyncJobs) SyncAllCompanies(ctx context.Context) error {
	companyIDs, err := j.tenants.ListSyncEnabledCompanyIDs(ctx)
	if err != nil {
		return err
	}

	slog.Info("Cron: Starting Square sync", "companies", len(companyIDs))

	var total squaresync.SyncResult
	failed := 0
	for _, companyID := range companyIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := j.syncer.SyncCompany(ctx, companyID, nil)
		if err != nil {
			failed++
			level := slog.LevelError
			if errors.Is(err, connection.ErrRefreshFailed) {
				level = slog.LevelWarn
			}
			slog.Log(ctx, level, "Cron: Square sync failed", "company_id", companyID, "error", err)
			continue
		}

		total.Synced += result.Synced
		total.Skipped += result.Skipped
		total.Errors += result.Errors
	}

	slog.Info("Cron: Square sync completed",
		"companies", len(companyIDs),
		"failed_companies", failed,
		"synced", total.Synced,
		"skipped", total.Skipped,
		"errors", total.Errors,
	)
	return nil
}
