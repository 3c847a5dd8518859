package event

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("event not found")

type Store interface {
	Insert(ctx context.Context, e Event) error
	FindByID(ctx context.Context, id uuid.UUID) (Event, error)
	FindPublic(ctx context.Context) ([]Event, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (int64, error)
}
