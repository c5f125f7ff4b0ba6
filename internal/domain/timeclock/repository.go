package timeclock

import "context"

// TimeClockRepository writes synced time clock rows.
type TimeClockRepository interface {
	// UpsertExternalEntry inserts or overwrites the entry keyed by
	// (company_id, external_id) in one statement and returns the row id.
	// Source and external id are never changed on conflict.
	UpsertExternalEntry(ctx context.Context, entry Entry) (string, error)

	// UpsertExternalBreak applies the same rule to breaks.
	UpsertExternalBreak(ctx context.Context, b Break) (string, error)

	GetByExternalID(ctx context.Context, companyID string, externalID string) (Entry, error)
	ListBreaks(ctx context.Context, companyID string, entryID string) ([]Break, error)
}
