package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]Session)}
}

func (s *MemoryStore) Insert(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) FindAllByAccountID(_ context.Context, accountID uuid.UUID) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0)
	for _, sess := range s.sessions {
		if sess.AccountID == accountID {
			result = append(result, sess)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (s *MemoryStore) FindByIDAndAccountID(_ context.Context, accountID, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || sess.AccountID != accountID {
		return Session{}, ErrNotFound
	}

	return sess, nil
}

func (s *MemoryStore) AppendTime(_ context.Context, accountID, id uuid.UUID, t Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.AccountID != accountID {
		return 0, nil
	}

	sess.Times = append(sess.Times, t)
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess

	return 1, nil
}

func (s *MemoryStore) DeleteByIDAndAccountID(_ context.Context, accountID, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.AccountID != accountID {
		return 0, nil
	}

	delete(s.sessions, id)
	return 1, nil
}
