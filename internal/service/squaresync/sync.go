package squaresync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/timeclock"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
)

const dateLayout = "2006-01-02"

var errTeamMemberNotMapped = errors.New("team member has no confirmed mapping")

// SyncCompany implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) SyncCompany(ctx context.Context, companyID string, window *squaresync.DateRange) (squaresync.SyncResult, error) {
	var result squaresync.SyncResult

	client, conn, err := s.GetAuthenticatedClient(ctx, companyID)
	if err != nil {
		return result, err
	}
	if !conn.HasLocation() {
		s.recordSyncError(ctx, companyID, connection.SyncErrorLocationNotConfigured)
		return result, connection.ErrLocationNotConfigured
	}

	startDate, endDate := s.resolveWindow(conn, window)

	timecards, err := client.ListTimecards(ctx, square.TimecardFilter{
		LocationIDs: []string{*conn.LocationID},
		StartDate:   startDate,
		EndDate:     endDate,
		Timezone:    s.workday.String(),
	})
	if err != nil {
		var apiErr *square.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			s.recordSyncError(ctx, companyID, connection.SyncErrorReconnectRequired)
		}
		return result, fmt.Errorf("fetch square timecards: %w", err)
	}

	lookup, err := s.confirmedLookup(ctx, companyID)
	if err != nil {
		return result, err
	}

	for _, tc := range timecards {
		m, ok := lookup[tc.TeamMemberID]
		if !ok {
			result.Skipped++
			continue
		}

		if err := s.applyTimecard(ctx, companyID, tc, m); err != nil {
			result.Errors++
			slog.Error("Failed to apply Square timecard",
				"company_id", companyID,
				"external_id", tc.ID,
				"error", err,
			)
			continue
		}
		result.Synced++
	}

	// Advance the watermark even when records failed.
	if err := s.connections.UpdateLastSync(ctx, companyID, s.now()); err != nil {
		return result, fmt.Errorf("update last sync: %w", err)
	}

	slog.Info("Square sync completed",
		"company_id", companyID,
		"start_date", startDate,
		"end_date", endDate,
		"fetched", len(timecards),
		"synced", result.Synced,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)
	return result, nil
}

// resolveWindow uses the explicit window when given. Otherwise it starts at
// the last sync, or BootstrapDays ago, and ends tomorrow so in-progress
// timecards are included.
func (s *SquareSyncServiceImpl) resolveWindow(conn connection.SquareConnection, window *squaresync.DateRange) (string, string) {
	if window != nil {
		return window.StartDate, window.EndDate
	}

	now := s.now().In(s.workday)
	start := now.AddDate(0, 0, -s.cfg.BootstrapDays)
	if conn.LastSyncAt != nil {
		start = conn.LastSyncAt.In(s.workday)
	}
	end := now.AddDate(0, 0, 1)

	return start.Format(dateLayout), end.Format(dateLayout)
}

func (s *SquareSyncServiceImpl) confirmedLookup(ctx context.Context, companyID string) (map[string]mapping.EmployeeMapping, error) {
	confirmed, err := s.mappings.ListConfirmed(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load confirmed mappings: %w", err)
	}

	lookup := make(map[string]mapping.EmployeeMapping, len(confirmed))
	for _, m := range confirmed {
		lookup[m.SquareTeamMemberID] = m
	}
	return lookup, nil
}

// ApplyTimecard upserts one timecard and its breaks. A nil lookup is loaded
// from the confirmed mappings of companyID.
func (s *SquareSyncServiceImpl) ApplyTimecard(ctx context.Context, companyID string, tc square.Timecard, lookup map[string]mapping.EmployeeMapping) error {
	if lookup == nil {
		var err error
		lookup, err = s.confirmedLookup(ctx, companyID)
		if err != nil {
			return err
		}
	}

	m, ok := lookup[tc.TeamMemberID]
	if !ok {
		return errTeamMemberNotMapped
	}
	return s.applyTimecard(ctx, companyID, tc, m)
}

func (s *SquareSyncServiceImpl) applyTimecard(ctx context.Context, companyID string, tc square.Timecard, m mapping.EmployeeMapping) error {
	externalID := tc.ID
	entry := timeclock.Entry{
		CompanyID:     companyID,
		EmployeeID:    m.EmployeeID,
		TipEmployeeID: m.TipEmployeeID,
		EmployeeName:  m.SquareTeamMemberName,
		ClockIn:       tc.StartAt,
		ClockOut:      tc.EndAt,
		Source:        timeclock.SourceSquare,
		ExternalID:    &externalID,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entryID, err := s.timeClock.UpsertExternalEntry(ctx, entry)
		if err != nil {
			return err
		}

		for _, b := range tc.Breaks {
			breakID := b.ID
			_, err := s.timeClock.UpsertExternalBreak(ctx, timeclock.Break{
				CompanyID:  companyID,
				EntryID:    entryID,
				StartAt:    b.StartAt,
				EndAt:      b.EndAt,
				IsPaid:     b.IsPaid,
				Label:      b.Name,
				ExternalID: &breakID,
			})
			if err != nil {
				return &squaresync.RecordApplyFailed{ExternalID: b.ID, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		var applyErr *squaresync.RecordApplyFailed
		if errors.As(err, &applyErr) {
			return err
		}
		return &squaresync.RecordApplyFailed{ExternalID: tc.ID, Err: err}
	}
	return nil
}
