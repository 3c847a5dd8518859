package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (s *PostgresAccountStore) Insert(ctx context.Context, account Account) error {
	roles, err := json.Marshal(account.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, account.ID, account.Username, account.PasswordHash, roles, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (s *PostgresAccountStore) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.findOne(ctx, `
		SELECT id, username, password_hash, roles, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id)
}

func (s *PostgresAccountStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	return s.findOne(ctx, `
		SELECT id, username, password_hash, roles, created_at, updated_at
		FROM accounts
		WHERE username = $1
	`, username)
}

func (s *PostgresAccountStore) findOne(ctx context.Context, query string, arg any) (Account, error) {
	var account Account
	var roles []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Username, &account.PasswordHash, &roles,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("query account: %w", err)
	}

	if err := json.Unmarshal(roles, &account.Roles); err != nil {
		return Account{}, fmt.Errorf("decode roles: %w", err)
	}

	return account, nil
}

func (s *PostgresAccountStore) Update(ctx context.Context, account Account) error {
	roles, err := json.Marshal(account.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET username = $2, password_hash = $3, roles = $4, updated_at = $5
		WHERE id = $1
	`, account.ID, account.Username, account.PasswordHash, roles, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresAccountStore) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete account rows affected: %w", err)
	}

	return affected, nil
}

type PostgresRefreshTokenStore struct {
	db *sql.DB
}

func NewPostgresRefreshTokenStore(db *sql.DB) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

func (s *PostgresRefreshTokenStore) Insert(ctx context.Context, token RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, account_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID, token.AccountID, token.Token, token.ExpiresAt.UTC(), token.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

func (s *PostgresRefreshTokenStore) FindByToken(ctx context.Context, token string) (RefreshToken, error) {
	var record RefreshToken
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, token, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`, token).Scan(&record.ID, &record.AccountID, &record.Token, &record.ExpiresAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshToken{}, ErrNotFound
		}
		return RefreshToken{}, fmt.Errorf("query refresh token: %w", err)
	}

	return record, nil
}

func (s *PostgresRefreshTokenStore) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return 0, fmt.Errorf("delete refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete refresh token rows affected: %w", err)
	}

	return affected, nil
}

func (s *PostgresRefreshTokenStore) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens by account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens rows affected: %w", err)
	}

	return affected, nil
}

func (s *PostgresRefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}

	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM refresh_tokens
			WHERE expires_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM refresh_tokens t
		USING stale
		WHERE t.id = stale.id
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired refresh tokens rows affected: %w", err)
	}

	return affected, nil
}
