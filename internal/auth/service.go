package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Service orchestrates the session lifecycle: registration, login, refresh,
// logout and bulk revocation. It is the only writer of the refresh token
// store.
type Service struct {
	accounts   AccountStore
	refresh    RefreshTokenStore
	access     *Codec
	refreshCod *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(accounts AccountStore, refresh RefreshTokenStore, accessCodec, refreshCodec *Codec) *Service {
	return &Service{
		accounts:   accounts,
		refresh:    refresh,
		access:     accessCodec,
		refreshCod: refreshCodec,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
}

func (s *Service) WithTTL(accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
	return s
}

// Register creates an account after checking the username is free. The
// check-then-insert sequence is not atomic; the unique index on username
// turns a lost race into an insert error instead of a silent duplicate.
func (s *Service) Register(ctx context.Context, username, password string, roles []Role) (Account, error) {
	username = strings.TrimSpace(username)

	_, err := s.accounts.FindByUsername(ctx, username)
	if err == nil {
		return Account{}, ErrUsernameTaken
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	now := time.Now().UTC()
	account := Account{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Insert(ctx, account); err != nil {
		return Account{}, err
	}

	// Re-fetch so the caller gets the canonical persisted form.
	stored, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return Account{}, fmt.Errorf("read back new account: %w", err)
	}

	return stored, nil
}

// Login verifies credentials and issues a token pair. Unknown username and
// wrong password collapse into the same error so callers cannot enumerate
// accounts. The refresh token is persisted before it is returned; if
// persistence fails no token reaches the caller.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	account, err := s.accounts.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if !VerifyPassword(account.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()

	accessToken, err := s.access.Issue(account.ID, now.Add(s.accessTTL))
	if err != nil {
		return TokenPair{}, err
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refreshToken, err := s.refreshCod.Issue(account.ID, refreshExpiry)
	if err != nil {
		return TokenPair{}, err
	}

	recordID, err := uuid.NewV7()
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token id: %w", err)
	}

	record := RefreshToken{
		ID:        recordID,
		AccountID: account.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExpiry,
		CreatedAt: now,
	}
	if err := s.refresh.Insert(ctx, record); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a persisted, unexpired refresh token for a new access
// token. The refresh token itself is not rotated; it stays valid until
// logout, revocation or expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	record, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrTokenInvalid
		}
		return "", err
	}

	claims, err := s.refreshCod.Decode(refreshToken)
	if err != nil {
		return "", err
	}

	// The signature already carries the authoritative expiry; the stored
	// field is checked as well in case the two ever disagree.
	if time.Now().UTC().After(record.ExpiresAt) {
		return "", ErrTokenExpired
	}

	subject, err := claims.AccountID()
	if err != nil {
		return "", err
	}

	return s.access.Issue(subject, time.Now().UTC().Add(s.accessTTL))
}

// Logout deletes the matching refresh token. Deleting nothing means the
// caller never held a live session here, which is treated as unauthorized.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	deleted, err := s.refresh.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrUnauthorized
	}
	return nil
}

// RevokeAll deletes every refresh token owned by the account after
// re-verifying the password, so a stolen access token alone cannot revoke
// competing sessions.
func (s *Service) RevokeAll(ctx context.Context, account Account, password string) (int64, error) {
	if !VerifyPassword(account.PasswordHash, password) {
		return 0, ErrInvalidCredentials
	}

	return s.refresh.DeleteByAccountID(ctx, account.ID)
}

// EnsureAdmin creates a privileged account on first run when both values are
// set. An existing account with the same username is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}
	if !ValidPassword(password) {
		return fmt.Errorf("ADMIN_PASSWORD does not meet the password policy")
	}

	_, err := s.accounts.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	_, err = s.Register(ctx, username, password, []Role{UserRole(), AdminRole()})
	return err
}
