package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	"github.com/allisson/keyguard/internal/database"
)

// pgUniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key.
const pgUniqueViolation = "23505"

// PostgreSQLWrappedKeyRepository stores records in the wrapped_keys table using native
// UUID and BYTEA columns. The key alias is the primary key, so there is at most one record
// per KEK.
type PostgreSQLWrappedKeyRepository struct {
	db        *sql.DB
	txManager database.TxManager
}

// Has reports whether a row exists for alias.
func (p *PostgreSQLWrappedKeyRepository) Has(ctx context.Context, alias string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT EXISTS(SELECT 1 FROM wrapped_keys WHERE key_alias = $1)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, alias).Scan(&exists); err != nil {
		return false, storeUnavailable(err, "failed to check wrapped key")
	}
	return exists, nil
}

// Load retrieves the record for alias.
func (p *PostgreSQLWrappedKeyRepository) Load(
	ctx context.Context,
	alias string,
) (*cryptoDomain.WrappedKeyRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, key_alias, algorithm, encrypted_key, nonce, key_version, created_at
			  FROM wrapped_keys WHERE key_alias = $1`

	var record cryptoDomain.WrappedKeyRecord
	err := querier.QueryRowContext(ctx, query, alias).Scan(
		&record.ID,
		&record.KeyAlias,
		&record.Algorithm,
		&record.EncryptedKey,
		&record.Nonce,
		&record.KeyVersion,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrWrappedKeyNotFound
		}
		return nil, storeUnavailable(err, "failed to load wrapped key")
	}

	return checkLoadedRecord(&record, alias)
}

// Create inserts the record, relying on the key_alias primary key to reject a second
// record for the same alias.
func (p *PostgreSQLWrappedKeyRepository) Create(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if err := p.insert(ctx, record); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return cryptoDomain.ErrWrappedKeyExists
		}
		return storeUnavailable(err, "failed to create wrapped key")
	}
	return nil
}

// Save replaces the record for its alias inside a transaction.
func (p *PostgreSQLWrappedKeyRepository) Save(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, p.db)

		if _, err := querier.ExecContext(ctx, `DELETE FROM wrapped_keys WHERE key_alias = $1`, record.KeyAlias); err != nil {
			return storeUnavailable(err, "failed to replace wrapped key")
		}
		if err := p.insert(ctx, record); err != nil {
			return storeUnavailable(err, "failed to save wrapped key")
		}
		return nil
	})
}

func (p *PostgreSQLWrappedKeyRepository) insert(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO wrapped_keys (id, key_alias, algorithm, encrypted_key, nonce, key_version, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.KeyAlias,
		record.Algorithm,
		record.EncryptedKey,
		record.Nonce,
		record.KeyVersion,
		record.CreatedAt,
	)
	return err
}

// Delete removes the record for alias, if any.
func (p *PostgreSQLWrappedKeyRepository) Delete(ctx context.Context, alias string) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM wrapped_keys WHERE key_alias = $1`, alias); err != nil {
		return storeUnavailable(err, "failed to delete wrapped key")
	}
	return nil
}

// NewPostgreSQLWrappedKeyRepository creates a new PostgreSQL wrapped-key repository.
func NewPostgreSQLWrappedKeyRepository(db *sql.DB, txManager database.TxManager) *PostgreSQLWrappedKeyRepository {
	return &PostgreSQLWrappedKeyRepository{db: db, txManager: txManager}
}
