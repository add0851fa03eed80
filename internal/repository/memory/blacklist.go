package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/auth-server/internal/model"
)

var _ model.Blacklist = (*Blacklist)(nil)

// Blacklist is an in-process revocation registry. Entries are dropped lazily
// once their token has expired.
type Blacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewBlacklist(now func() time.Time) *Blacklist {
	if now == nil {
		now = time.Now
	}
	return &Blacklist{entries: make(map[string]time.Time), now: now}
}

func (b *Blacklist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if !expiresAt.After(b.now()) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tokenID] = expiresAt
	return nil
}

func (b *Blacklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiresAt, ok := b.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(b.now()) {
		delete(b.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (b *Blacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Blacklist) Ping(context.Context) error { return nil }
