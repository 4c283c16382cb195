package repository

import "context"

// KV is the contract the board consumes from its shared store.  Values are
// raw JSON.  There is no transaction spanning several calls.
type KV interface {
    // Get returns nil, nil when the key is absent.
    Get(ctx context.Context, key string) ([]byte, error)
    Set(ctx context.Context, key string, value []byte) error
    // Incr atomically increments the integer at key, creating it at 0 first,
    // and returns the new value.
    Incr(ctx context.Context, key string) (int64, error)
}
