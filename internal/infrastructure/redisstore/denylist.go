package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
)

const defaultPrefix = "denylist:rt:"

// Denylist stores revoked refresh tokens as Redis keys that expire together
// with the token. Keys carry the token digest, never the token itself.
type Denylist struct {
	rdb    redis.Cmdable
	prefix string
}

func NewDenylist(rdb redis.Cmdable) *Denylist {
	return &Denylist{rdb: rdb, prefix: defaultPrefix}
}

func (d *Denylist) key(token string) string {
	return d.prefix + helpers.HashToken(token)
}

func (d *Denylist) Set(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, d.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("denylist set: %w", err)
	}
	return nil
}

func (d *Denylist) Has(ctx context.Context, token string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("denylist exists: %w", err)
	}
	return n > 0, nil
}

var _ repository.TokenDenylist = (*Denylist)(nil)
