package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/auth-server/internal/model"
)

// DefaultKeyPrefix namespaces blacklist keys.
const DefaultKeyPrefix = "token_blacklist:"

var _ model.Blacklist = (*Blacklist)(nil)

// Blacklist stores revoked access token ids as expiring keys.
type Blacklist struct {
	client goredis.Cmdable
	prefix string
	now    func() time.Time
}

// Option configures Blacklist.
type Option func(*Blacklist)

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(b *Blacklist) { b.prefix = prefix }
}

// WithClock sets the clock used to compute TTLs.
func WithClock(now func() time.Time) Option {
	return func(b *Blacklist) { b.now = now }
}

// NewBlacklist creates a Blacklist over client.
func NewBlacklist(client goredis.Cmdable, opts ...Option) *Blacklist {
	b := &Blacklist{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Revoke writes tokenID with a TTL of the token's remaining lifetime, so the
// entry never outlives the token. Already expired tokens are not written.
func (b *Blacklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now()).Truncate(time.Millisecond)
	if ttl <= 0 {
		return nil
	}

	if err := b.client.Set(ctx, b.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to blacklist token: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokenID is blacklisted.
func (b *Blacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: failed to check blacklist: %v", model.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Ping checks that Redis is reachable.
func (b *Blacklist) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (b *Blacklist) key(tokenID string) string {
	return b.prefix + tokenID
}
