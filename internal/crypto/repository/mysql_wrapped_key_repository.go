package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	"github.com/allisson/keyguard/internal/database"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MySQLWrappedKeyRepository stores records in the wrapped_keys table, with the UUID in a
// BINARY(16) column and key material in BLOB columns.
type MySQLWrappedKeyRepository struct {
	db        *sql.DB
	txManager database.TxManager
}

// Has reports whether a row exists for alias.
func (m *MySQLWrappedKeyRepository) Has(ctx context.Context, alias string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT EXISTS(SELECT 1 FROM wrapped_keys WHERE key_alias = ?)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, alias).Scan(&exists); err != nil {
		return false, storeUnavailable(err, "failed to check wrapped key")
	}
	return exists, nil
}

// Load retrieves the record for alias.
func (m *MySQLWrappedKeyRepository) Load(ctx context.Context, alias string) (*cryptoDomain.WrappedKeyRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, key_alias, algorithm, encrypted_key, nonce, key_version, created_at
			  FROM wrapped_keys WHERE key_alias = ?`

	var record cryptoDomain.WrappedKeyRecord
	var id []byte
	err := querier.QueryRowContext(ctx, query, alias).Scan(
		&id,
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

	if err := record.ID.UnmarshalBinary(id); err != nil {
		return nil, fmt.Errorf("%w: id: %v", cryptoDomain.ErrWrappedKeyCorrupt, err)
	}

	return checkLoadedRecord(&record, alias)
}

// Create inserts the record, relying on the key_alias primary key to reject a second
// record for the same alias.
func (m *MySQLWrappedKeyRepository) Create(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if err := m.insert(ctx, record); err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return cryptoDomain.ErrWrappedKeyExists
		}
		if errors.Is(err, cryptoDomain.ErrStorage) {
			return err
		}
		return storeUnavailable(err, "failed to create wrapped key")
	}
	return nil
}

// Save replaces the record for its alias inside a transaction.
func (m *MySQLWrappedKeyRepository) Save(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	return m.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, m.db)

		if _, err := querier.ExecContext(ctx, `DELETE FROM wrapped_keys WHERE key_alias = ?`, record.KeyAlias); err != nil {
			return storeUnavailable(err, "failed to replace wrapped key")
		}
		if err := m.insert(ctx, record); err != nil {
			if errors.Is(err, cryptoDomain.ErrStorage) {
				return err
			}
			return storeUnavailable(err, "failed to save wrapped key")
		}
		return nil
	})
}

func (m *MySQLWrappedKeyRepository) insert(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	id, err := record.ID.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: id: %v", cryptoDomain.ErrInvalidWrappedKey, err)
	}

	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO wrapped_keys (id, key_alias, algorithm, encrypted_key, nonce, key_version, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLWrappedKeyRepository) Delete(ctx context.Context, alias string) error {
	querier := database.GetTx(ctx, m.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM wrapped_keys WHERE key_alias = ?`, alias); err != nil {
		return storeUnavailable(err, "failed to delete wrapped key")
	}
	return nil
}

// NewMySQLWrappedKeyRepository creates a new MySQL wrapped-key repository.
func NewMySQLWrappedKeyRepository(db *sql.DB, txManager database.TxManager) *MySQLWrappedKeyRepository {
	return &MySQLWrappedKeyRepository{db: db, txManager: txManager}
}
