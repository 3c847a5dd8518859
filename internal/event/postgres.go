package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, e Event) error {
	moderators, err := json.Marshal(e.Moderators)
	if err != nil {
		return fmt.Errorf("encode moderators: %w", err)
	}
	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("encode participants: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, creator_id, title, description, date, is_private, moderators, participants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.CreatorID, e.Title, e.Description, e.Date.UTC(), e.IsPrivate, moderators, participants, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, creator_id, title, description, date, is_private, moderators, participants, created_at
		FROM events
		WHERE id = $1
	`, id)

	e, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}

	return e, nil
}

func (s *PostgresStore) FindPublic(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, creator_id, title, description, date, is_private, moderators, participants, created_at
		FROM events
		WHERE is_private = FALSE
		ORDER BY date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query public events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete event rows affected: %w", err)
	}

	return affected, nil
}

func scanEvent(scan func(dest ...any) error) (Event, error) {
	var e Event
	var moderators, participants []byte
	err := scan(&e.ID, &e.CreatorID, &e.Title, &e.Description, &e.Date, &e.IsPrivate, &moderators, &participants, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, sql.ErrNoRows
		}
		return Event{}, fmt.Errorf("scan event: %w", err)
	}

	if err := json.Unmarshal(moderators, &e.Moderators); err != nil {
		return Event{}, fmt.Errorf("decode moderators: %w", err)
	}
	if err := json.Unmarshal(participants, &e.Participants); err != nil {
		return Event{}, fmt.Errorf("decode participants: %w", err)
	}

	return e, nil
}
