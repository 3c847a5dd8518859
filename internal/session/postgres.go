package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, sess Session) error {
	times, err := json.Marshal(sess.Times)
	if err != nil {
		return fmt.Errorf("encode times: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, name, times, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.AccountID, sess.Name, times, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (s *PostgresStore) FindAllByAccountID(ctx context.Context, accountID uuid.UUID) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, name, times, created_at, updated_at
		FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (s *PostgresStore) FindByIDAndAccountID(ctx context.Context, accountID, id uuid.UUID) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, times, created_at, updated_at
		FROM sessions
		WHERE id = $1 AND account_id = $2
	`, id, accountID)

	sess, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}

	return sess, nil
}

func (s *PostgresStore) AppendTime(ctx context.Context, accountID, id uuid.UUID, t Time) (int64, error) {
	encoded, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("encode time: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET times = times || $3::jsonb, updated_at = $4
		WHERE id = $1 AND account_id = $2
	`, id, accountID, encoded, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("append session time: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("append session time rows affected: %w", err)
	}

	return affected, nil
}

func (s *PostgresStore) DeleteByIDAndAccountID(ctx context.Context, accountID, id uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = $1 AND account_id = $2
	`, id, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete session rows affected: %w", err)
	}

	return affected, nil
}

func scanSession(scan func(dest ...any) error) (Session, error) {
	var sess Session
	var times []byte
	if err := scan(&sess.ID, &sess.AccountID, &sess.Name, &times, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, sql.ErrNoRows
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal(times, &sess.Times); err != nil {
		return Session{}, fmt.Errorf("decode times: %w", err)
	}

	return sess, nil
}
