package repository

import (
    "context"

    "github.com/cockroachdb/errors"
    "github.com/redis/go-redis/v9"
)

// KVRepo stores board keys in Redis.  Values are kept as plain strings so
// the revision counter can be driven by INCR and still read back as JSON.
type KVRepo struct {
    rdb *redis.Client
}

// NewKVRepo returns a KVRepo bound to the provided Redis client.
func NewKVRepo(rdb *redis.Client) *KVRepo { return &KVRepo{rdb: rdb} }

func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, error) {
    bs, err := r.rdb.Get(ctx, key).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, nil
    }
    if err != nil {
        return nil, errors.Mark(errors.Wrapf(err, "redis get %s", key), ErrStoreUnavailable)
    }
    return bs, nil
}

func (r *KVRepo) Set(ctx context.Context, key string, value []byte) error {
    if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
        return errors.Mark(errors.Wrapf(err, "redis set %s", key), ErrStoreUnavailable)
    }
    return nil
}

func (r *KVRepo) Incr(ctx context.Context, key string) (int64, error) {
    n, err := r.rdb.Incr(ctx, key).Result()
    if err != nil {
        // a server reply error means the key holds a non-integer, not an outage
        var replyErr redis.Error
        if errors.As(err, &replyErr) {
            return 0, errors.Wrapf(ErrNotNumeric, "redis incr %s: %s", key, replyErr.Error())
        }
        return 0, errors.Mark(errors.Wrapf(err, "redis incr %s", key), ErrStoreUnavailable)
    }
    return n, nil
}
