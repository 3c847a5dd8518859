package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// AccountStore holds account records. The guard only reads it; writes go
// through the Service and the account handlers.
type AccountStore interface {
	Insert(ctx context.Context, account Account) error
	FindByID(ctx context.Context, id uuid.UUID) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	Update(ctx context.Context, account Account) error
	DeleteByID(ctx context.Context, id uuid.UUID) (int64, error)
}

// RefreshTokenStore is the revocation list for issued refresh tokens. The
// Service owns its write path exclusively.
type RefreshTokenStore interface {
	Insert(ctx context.Context, token RefreshToken) error
	FindByToken(ctx context.Context, token string) (RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}
