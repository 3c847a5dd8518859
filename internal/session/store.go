package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Store operations are always scoped to an owning account id so one account
// can never read or mutate another's sessions.
type Store interface {
	Insert(ctx context.Context, s Session) error
	FindAllByAccountID(ctx context.Context, accountID uuid.UUID) ([]Session, error)
	FindByIDAndAccountID(ctx context.Context, accountID, id uuid.UUID) (Session, error)
	AppendTime(ctx context.Context, accountID, id uuid.UUID, t Time) (int64, error)
	DeleteByIDAndAccountID(ctx context.Context, accountID, id uuid.UUID) (int64, error)
}
