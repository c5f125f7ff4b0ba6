package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/crypto"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const merchantUniqueIndex = "uq_square_connections_merchant"

// squareConnectionRepository stores tokens encrypted at rest.
type squareConnectionRepository struct {
	db        *database.DB
	encryptor *crypto.TokenEncryptor
}

func NewSquareConnectionRepository(db *database.DB, encryptor *crypto.TokenEncryptor) connection.ConnectionRepository {
	return &squareConnectionRepository{db: db, encryptor: encryptor}
}

const connectionColumns = `
	company_id, merchant_id, access_token, refresh_token, token_expires_at,
	location_id, sync_enabled, last_sync_at, last_sync_error, created_at, updated_at
`

// GetByCompanyID implements connection.ConnectionRepository.
func (r *squareConnectionRepository) GetByCompanyID(ctx context.Context, companyID string) (connection.SquareConnection, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + connectionColumns + ` FROM square_connections WHERE company_id = $1`

	conn, err := r.scan(q.QueryRow(ctx, query, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return connection.SquareConnection{}, connection.ErrConnectionNotFound
		}
		return connection.SquareConnection{}, fmt.Errorf("failed to get square connection: %w", err)
	}
	return conn, nil
}

// GetByMerchantID implements connection.ConnectionRepository.
func (r *squareConnectionRepository) GetByMerchantID(ctx context.Context, merchantID string) (connection.SquareConnection, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + connectionColumns + `
		FROM square_connections
		WHERE merchant_id = $1 AND sync_enabled = TRUE
	`

	conn, err := r.scan(q.QueryRow(ctx, query, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return connection.SquareConnection{}, connection.ErrConnectionNotFound
		}
		return connection.SquareConnection{}, fmt.Errorf("failed to get square connection by merchant: %w", err)
	}
	return conn, nil
}

// SaveOAuth implements connection.ConnectionRepository.
func (r *squareConnectionRepository) SaveOAuth(ctx context.Context, companyID string, merchantID string, tokens connection.Tokens) (bool, error) {
	q := GetQuerier(ctx, r.db)

	accessToken, refreshToken, err := r.encryptPair(tokens)
	if err != nil {
		return false, err
	}

	// prev reads the row as it was before this statement.
	query := `
		WITH prev AS (
			SELECT merchant_id FROM square_connections WHERE company_id = $1 FOR UPDATE
		)
		INSERT INTO square_connections (
			company_id, merchant_id, access_token, refresh_token, token_expires_at, sync_enabled
		) VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (company_id) DO UPDATE SET
			merchant_id = EXCLUDED.merchant_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			location_id = CASE WHEN square_connections.merchant_id IS DISTINCT FROM EXCLUDED.merchant_id
				THEN NULL ELSE square_connections.location_id END,
			sync_enabled = CASE WHEN square_connections.merchant_id IS DISTINCT FROM EXCLUDED.merchant_id
				THEN FALSE ELSE square_connections.sync_enabled END,
			last_sync_at = CASE WHEN square_connections.merchant_id IS DISTINCT FROM EXCLUDED.merchant_id
				THEN NULL ELSE square_connections.last_sync_at END,
			last_sync_error = NULL,
			updated_at = NOW()
		RETURNING COALESCE((SELECT merchant_id FROM prev), '')
	`

	var previous string
	err = q.QueryRow(ctx, query, companyID, merchantID, accessToken, refreshToken, tokens.ExpiresAt).Scan(&previous)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == merchantUniqueIndex {
			return false, connection.ErrMerchantAlreadyLinked
		}
		return false, fmt.Errorf("failed to save square connection: %w", err)
	}
	return previous != "" && previous != merchantID, nil
}

// UpdateTokens implements connection.ConnectionRepository.
func (r *squareConnectionRepository) UpdateTokens(ctx context.Context, companyID string, tokens connection.Tokens) error {
	q := GetQuerier(ctx, r.db)

	accessToken, err := r.encryptor.Encrypt(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	var refreshToken *string
	if tokens.RefreshToken != "" {
		enc, err := r.encryptor.Encrypt(tokens.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		refreshToken = &enc
	}

	query := `
		UPDATE square_connections
		SET access_token = $2,
			refresh_token = COALESCE($3, refresh_token),
			token_expires_at = $4,
			last_sync_error = NULL,
			updated_at = NOW()
		WHERE company_id = $1 AND refresh_token IS NOT NULL
	`

	tag, err := q.Exec(ctx, query, companyID, accessToken, refreshToken, tokens.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update square tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return connection.ErrConnectionNotConfigured
	}
	return nil
}

// UpdateLocation implements connection.ConnectionRepository.
func (r *squareConnectionRepository) UpdateLocation(ctx context.Context, companyID string, locationID string) error {
	return r.execForCompany(ctx, `
		UPDATE square_connections
		SET location_id = $2, updated_at = NOW()
		WHERE company_id = $1
	`, companyID, locationID)
}

// SetSyncEnabled implements connection.ConnectionRepository.
func (r *squareConnectionRepository) SetSyncEnabled(ctx context.Context, companyID string, enabled bool) error {
	return r.execForCompany(ctx, `
		UPDATE square_connections
		SET sync_enabled = $2, updated_at = NOW()
		WHERE company_id = $1
	`, companyID, enabled)
}

// UpdateLastSync implements connection.ConnectionRepository.
func (r *squareConnectionRepository) UpdateLastSync(ctx context.Context, companyID string, at time.Time) error {
	return r.execForCompany(ctx, `
		UPDATE square_connections
		SET last_sync_at = $2, last_sync_error = NULL, updated_at = NOW()
		WHERE company_id = $1
	`, companyID, at)
}

// SetSyncError implements connection.ConnectionRepository.
func (r *squareConnectionRepository) SetSyncError(ctx context.Context, companyID string, code string) error {
	return r.execForCompany(ctx, `
		UPDATE square_connections
		SET last_sync_error = $2, updated_at = NOW()
		WHERE company_id = $1
	`, companyID, code)
}

// ListSyncEnabledCompanyIDs implements connection.ConnectionRepository.
func (r *squareConnectionRepository) ListSyncEnabledCompanyIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT company_id
		FROM square_connections
		WHERE sync_enabled = TRUE
		  AND access_token IS NOT NULL
		  AND refresh_token IS NOT NULL
		  AND location_id IS NOT NULL
		ORDER BY company_id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync-enabled connections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate square connections: %w", err)
	}
	return ids, nil
}

// Clear implements connection.ConnectionRepository.
func (r *squareConnectionRepository) Clear(ctx context.Context, companyID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE square_connections
		SET merchant_id = NULL,
			access_token = NULL,
			refresh_token = NULL,
			token_expires_at = NULL,
			location_id = NULL,
			sync_enabled = FALSE,
			last_sync_at = NULL,
			last_sync_error = NULL,
			updated_at = NOW()
		WHERE company_id = $1
	`

	if _, err := q.Exec(ctx, query, companyID); err != nil {
		return fmt.Errorf("failed to clear square connection: %w", err)
	}
	return nil
}

func (r *squareConnectionRepository) execForCompany(ctx context.Context, query string, companyID string, arg interface{}) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, query, companyID, arg)
	if err != nil {
		return fmt.Errorf("failed to update square connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}

func (r *squareConnectionRepository) encryptPair(tokens connection.Tokens) (string, string, error) {
	accessToken, err := r.encryptor.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshToken, err := r.encryptor.Encrypt(tokens.RefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func (r *squareConnectionRepository) scan(row pgx.Row) (connection.SquareConnection, error) {
	var conn connection.SquareConnection
	err := row.Scan(
		&conn.CompanyID, &conn.MerchantID, &conn.AccessToken, &conn.RefreshToken, &conn.TokenExpiresAt,
		&conn.LocationID, &conn.SyncEnabled, &conn.LastSyncAt, &conn.LastSyncError, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return connection.SquareConnection{}, err
	}

	if conn.AccessToken, err = r.decrypt(conn.AccessToken); err != nil {
		return connection.SquareConnection{}, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if conn.RefreshToken, err = r.decrypt(conn.RefreshToken); err != nil {
		return connection.SquareConnection{}, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return conn, nil
}

func (r *squareConnectionRepository) decrypt(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	plain, err := r.encryptor.Decrypt(*value)
	if err != nil {
		return nil, err
	}
	return &plain, nil
}
