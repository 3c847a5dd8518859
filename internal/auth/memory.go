package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory store implementations. Used by tests and by anything that wants
// the service without a database behind it.

type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[uuid.UUID]Account)}
}

func (s *MemoryAccountStore) Insert(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
	return nil
}

func (s *MemoryAccountStore) FindByID(_ context.Context, id uuid.UUID) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (s *MemoryAccountStore) FindByUsername(_ context.Context, username string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return Account{}, ErrNotFound
}

func (s *MemoryAccountStore) Update(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return ErrNotFound
	}
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = account
	return nil
}

func (s *MemoryAccountStore) DeleteByID(_ context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return 0, nil
	}
	delete(s.accounts, id)
	return 1, nil
}

type MemoryRefreshTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]RefreshToken
}

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{tokens: make(map[string]RefreshToken)}
}

func (s *MemoryRefreshTokenStore) Insert(_ context.Context, token RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Token] = token
	return nil
}

func (s *MemoryRefreshTokenStore) FindByToken(_ context.Context, token string) (RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tokens[token]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryRefreshTokenStore) DeleteByToken(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token]; !ok {
		return 0, nil
	}
	delete(s.tokens, token)
	return 1, nil
}

func (s *MemoryRefreshTokenStore) DeleteByAccountID(_ context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, record := range s.tokens {
		if record.AccountID == accountID {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryRefreshTokenStore) DeleteExpired(_ context.Context, before time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, record := range s.tokens {
		if limit > 0 && deleted >= int64(limit) {
			break
		}
		if record.ExpiresAt.Before(before) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
