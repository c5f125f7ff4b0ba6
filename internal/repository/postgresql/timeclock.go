package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/timeclock"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type timeClockRepository struct {
	db *database.DB
}

func NewTimeClockRepository(db *database.DB) timeclock.TimeClockRepository {
	return &timeClockRepository{db: db}
}

// UpsertExternalEntry implements timeclock.TimeClockRepository.
func (r *timeClockRepository) UpsertExternalEntry(ctx context.Context, entry timeclock.Entry) (string, error) {
	if entry.ExternalID == nil || *entry.ExternalID == "" {
		return "", timeclock.ErrMissingExternalID
	}

	q := GetQuerier(ctx, r.db)

	source := entry.Source
	if source == "" {
		source = timeclock.SourceSquare
	}

	query := `
		INSERT INTO time_clock_entries (
			company_id, employee_id, tip_employee_id, employee_name,
			clock_in, clock_out, source, external_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company_id, external_id) WHERE external_id IS NOT NULL
		DO UPDATE SET
			employee_id = EXCLUDED.employee_id,
			tip_employee_id = EXCLUDED.tip_employee_id,
			employee_name = EXCLUDED.employee_name,
			clock_in = EXCLUDED.clock_in,
			clock_out = EXCLUDED.clock_out,
			updated_at = NOW()
		RETURNING id
	`

	var id string
	err := q.QueryRow(ctx, query,
		entry.CompanyID, entry.EmployeeID, entry.TipEmployeeID, entry.EmployeeName,
		entry.ClockIn, entry.ClockOut, string(source), *entry.ExternalID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert time clock entry %s: %w", *entry.ExternalID, err)
	}
	return id, nil
}

// UpsertExternalBreak implements timeclock.TimeClockRepository.
func (r *timeClockRepository) UpsertExternalBreak(ctx context.Context, b timeclock.Break) (string, error) {
	if b.ExternalID == nil || *b.ExternalID == "" {
		return "", timeclock.ErrMissingExternalID
	}

	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO time_clock_breaks (
			company_id, entry_id, start_at, end_at, is_paid, label, external_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, external_id) WHERE external_id IS NOT NULL
		DO UPDATE SET
			entry_id = EXCLUDED.entry_id,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			is_paid = EXCLUDED.is_paid,
			label = EXCLUDED.label,
			updated_at = NOW()
		RETURNING id
	`

	var id string
	err := q.QueryRow(ctx, query,
		b.CompanyID, b.EntryID, b.StartAt, b.EndAt, b.IsPaid, b.Label, *b.ExternalID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert time clock break %s: %w", *b.ExternalID, err)
	}
	return id, nil
}

// GetByExternalID implements timeclock.TimeClockRepository.
func (r *timeClockRepository) GetByExternalID(ctx context.Context, companyID string, externalID string) (timeclock.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, employee_id, tip_employee_id, employee_name,
			   clock_in, clock_out, source, external_id, created_at, updated_at
		FROM time_clock_entries
		WHERE company_id = $1 AND external_id = $2
	`

	var (
		e      timeclock.Entry
		source string
	)
	err := q.QueryRow(ctx, query, companyID, externalID).Scan(
		&e.ID, &e.CompanyID, &e.EmployeeID, &e.TipEmployeeID, &e.EmployeeName,
		&e.ClockIn, &e.ClockOut, &source, &e.ExternalID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timeclock.Entry{}, timeclock.ErrEntryNotFound
		}
		return timeclock.Entry{}, fmt.Errorf("failed to get time clock entry: %w", err)
	}
	e.Source = timeclock.Source(source)
	return e, nil
}

// ListBreaks implements timeclock.TimeClockRepository.
func (r *timeClockRepository) ListBreaks(ctx context.Context, companyID string, entryID string) ([]timeclock.Break, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, entry_id, start_at, end_at, is_paid, label, external_id
		FROM time_clock_breaks
		WHERE company_id = $1 AND entry_id = $2
		ORDER BY start_at
	`

	rows, err := q.Query(ctx, query, companyID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time clock breaks: %w", err)
	}
	defer rows.Close()

	var breaks []timeclock.Break
	for rows.Next() {
		var b timeclock.Break
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.EntryID, &b.StartAt, &b.EndAt, &b.IsPaid, &b.Label, &b.ExternalID); err != nil {
			return nil, fmt.Errorf("failed to scan time clock break: %w", err)
		}
		breaks = append(breaks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time clock breaks: %w", err)
	}
	return breaks, nil
}
