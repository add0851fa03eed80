// Package memory provides in-process implementations of the stores, used by
// tests and by single-node deployments without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/model"
)

var _ model.Transactor = (*Store)(nil)

// Store holds users and refresh tokens. Every operation is serialized; a
// transaction holds the lock for its whole duration and is rolled back by
// restoring a snapshot.
type Store struct {
	mu     sync.Mutex
	users  map[uuid.UUID]model.User
	tokens map[uuid.UUID]model.RefreshToken
	now    func() time.Time
}

type txKey struct{ s *Store }

// NewStore creates an empty store.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		users:  make(map[uuid.UUID]model.User),
		tokens: make(map[uuid.UUID]model.RefreshToken),
		now:    now,
	}
}

// WithinTx runs fn with exclusive access to the store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, tokens := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{s}, true)); err != nil {
		s.users, s.tokens = users, tokens
		return err
	}
	return nil
}

// lock acquires the store unless ctx already carries this store's transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

func (s *Store) snapshot() (map[uuid.UUID]model.User, map[uuid.UUID]model.RefreshToken) {
	users := make(map[uuid.UUID]model.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	tokens := make(map[uuid.UUID]model.RefreshToken, len(s.tokens))
	for k, v := range s.tokens {
		tokens[k] = v
	}
	return users, tokens
}
