package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores records as JSON strings under "<prefix>:<identity id>" with a
// TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "portal:local"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(identityID string) string {
	return r.prefix + ":" + identityID
}

func (r *Redis) Save(ctx context.Context, identityID string, rec Record) error {
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(identityID), data, r.ttl).Err()
}

func (r *Redis) Load(ctx context.Context, identityID string) (Record, bool, error) {
	data, err := r.client.Get(ctx, r.key(identityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// a record we cannot read is as good as none
		_ = r.client.Del(ctx, r.key(identityID)).Err()
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (r *Redis) Purge(ctx context.Context, identityID string) error {
	return r.client.Del(ctx, r.key(identityID)).Err()
}
