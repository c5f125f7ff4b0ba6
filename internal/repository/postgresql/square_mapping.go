package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type mappingRepository struct {
	db *database.DB
}

func NewMappingRepository(db *database.DB) mapping.MappingRepository {
	return &mappingRepository{db: db}
}

const mappingColumns = `
	id, company_id, square_team_member_id, square_team_member_name,
	employee_id, tip_employee_id, status, confirmed_by, confirmed_at, created_at, updated_at
`

// ListByCompanyID implements mapping.MappingRepository.
func (r *mappingRepository) ListByCompanyID(ctx context.Context, companyID string) ([]mapping.EmployeeMapping, error) {
	return r.list(ctx, `
		SELECT `+mappingColumns+`
		FROM square_employee_mappings
		WHERE company_id = $1
		ORDER BY square_team_member_name, square_team_member_id
	`, companyID)
}

// ListConfirmed implements mapping.MappingRepository.
func (r *mappingRepository) ListConfirmed(ctx context.Context, companyID string) ([]mapping.EmployeeMapping, error) {
	return r.list(ctx, `
		SELECT `+mappingColumns+`
		FROM square_employee_mappings
		WHERE company_id = $1 AND status = 'confirmed'
	`, companyID)
}

// CreateIfAbsent implements mapping.MappingRepository.
func (r *mappingRepository) CreateIfAbsent(ctx context.Context, m mapping.EmployeeMapping) (mapping.EmployeeMapping, bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO square_employee_mappings (
			company_id, square_team_member_id, square_team_member_name,
			employee_id, tip_employee_id, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, square_team_member_id) DO NOTHING
		RETURNING ` + mappingColumns

	status := m.Status
	if status == "" {
		status = mapping.StatusSuggested
	}

	created, err := scanMapping(q.QueryRow(ctx, query,
		m.CompanyID, m.SquareTeamMemberID, m.SquareTeamMemberName,
		m.EmployeeID, m.TipEmployeeID, string(status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mapping.EmployeeMapping{}, false, nil
		}
		return mapping.EmployeeMapping{}, false, fmt.Errorf("failed to create employee mapping: %w", err)
	}
	return created, true, nil
}

// GetByID implements mapping.MappingRepository.
func (r *mappingRepository) GetByID(ctx context.Context, id string, companyID string) (mapping.EmployeeMapping, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + mappingColumns + ` FROM square_employee_mappings WHERE id = $1 AND company_id = $2`

	m, err := scanMapping(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mapping.EmployeeMapping{}, mapping.ErrMappingNotFound
		}
		return mapping.EmployeeMapping{}, fmt.Errorf("failed to get employee mapping: %w", err)
	}
	return m, nil
}

// Confirm implements mapping.MappingRepository.
func (r *mappingRepository) Confirm(ctx context.Context, id string, companyID string, employeeID, tipEmployeeID *string, confirmedBy string, at time.Time) (mapping.EmployeeMapping, error) {
	if (employeeID == nil) == (tipEmployeeID == nil) {
		return mapping.EmployeeMapping{}, mapping.ErrInvalidMappingLink
	}

	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE square_employee_mappings
		SET employee_id = $3,
			tip_employee_id = $4,
			status = 'confirmed',
			confirmed_by = $5,
			confirmed_at = $6,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING ` + mappingColumns

	m, err := scanMapping(q.QueryRow(ctx, query, id, companyID, employeeID, tipEmployeeID, confirmedBy, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mapping.EmployeeMapping{}, mapping.ErrMappingNotFound
		}
		return mapping.EmployeeMapping{}, fmt.Errorf("failed to confirm employee mapping: %w", err)
	}
	return m, nil
}

// Ignore implements mapping.MappingRepository.
func (r *mappingRepository) Ignore(ctx context.Context, id string, companyID string) (mapping.EmployeeMapping, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE square_employee_mappings
		SET status = 'ignored',
			confirmed_by = NULL,
			confirmed_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING ` + mappingColumns

	m, err := scanMapping(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mapping.EmployeeMapping{}, mapping.ErrMappingNotFound
		}
		return mapping.EmployeeMapping{}, fmt.Errorf("failed to ignore employee mapping: %w", err)
	}
	return m, nil
}

// Delete implements mapping.MappingRepository.
func (r *mappingRepository) Delete(ctx context.Context, id string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM square_employee_mappings WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete employee mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrMappingNotFound
	}
	return nil
}

// DeleteByCompanyID implements mapping.MappingRepository.
func (r *mappingRepository) DeleteByCompanyID(ctx context.Context, companyID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM square_employee_mappings WHERE company_id = $1`, companyID); err != nil {
		return fmt.Errorf("failed to delete employee mappings: %w", err)
	}
	return nil
}

// CountByStatus implements mapping.MappingRepository.
func (r *mappingRepository) CountByStatus(ctx context.Context, companyID string) (mapping.Counts, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'suggested'),
			COUNT(*) FILTER (WHERE status = 'ignored')
		FROM square_employee_mappings
		WHERE company_id = $1
	`

	var c mapping.Counts
	if err := q.QueryRow(ctx, query, companyID).Scan(&c.Confirmed, &c.Suggested, &c.Ignored); err != nil {
		return mapping.Counts{}, fmt.Errorf("failed to count employee mappings: %w", err)
	}
	return c, nil
}

func (r *mappingRepository) list(ctx context.Context, query string, companyID string) ([]mapping.EmployeeMapping, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employee mappings: %w", err)
	}
	defer rows.Close()

	var mappings []mapping.EmployeeMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employee mappings: %w", err)
	}
	return mappings, nil
}

func scanMapping(row pgx.Row) (mapping.EmployeeMapping, error) {
	var (
		m      mapping.EmployeeMapping
		status string
	)
	err := row.Scan(
		&m.ID, &m.CompanyID, &m.SquareTeamMemberID, &m.SquareTeamMemberName,
		&m.EmployeeID, &m.TipEmployeeID, &status, &m.ConfirmedBy, &m.ConfirmedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	m.Status = mapping.Status(status)
	return m, err
}
