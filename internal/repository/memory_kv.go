package repository

import (
    "context"
    "strconv"
    "strings"
    "sync"

    "github.com/cockroachdb/errors"
)

// MemoryKV is an in-process KV used with STORE_DRIVER=memory and in tests.
// SetUnavailable makes every call fail with ErrStoreUnavailable.
type MemoryKV struct {
    mu          sync.Mutex
    data        map[string][]byte
    unavailable bool
}

func NewMemoryKV() *MemoryKV { return &MemoryKV{data: map[string][]byte{}} }

// SetUnavailable toggles failure injection.
func (m *MemoryKV) SetUnavailable(v bool) {
    m.mu.Lock()
    m.unavailable = v
    m.mu.Unlock()
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.unavailable {
        return nil, errors.Wrapf(ErrStoreUnavailable, "get %s", key)
    }
    v, ok := m.data[key]
    if !ok {
        return nil, nil
    }
    return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.unavailable {
        return errors.Wrapf(ErrStoreUnavailable, "set %s", key)
    }
    m.data[key] = append([]byte(nil), value...)
    return nil
}

func (m *MemoryKV) Incr(_ context.Context, key string) (int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.unavailable {
        return 0, errors.Wrapf(ErrStoreUnavailable, "incr %s", key)
    }
    var n int64
    if v, ok := m.data[key]; ok {
        parsed, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
        if err != nil {
            return 0, errors.Wrapf(ErrNotNumeric, "incr %s", key)
        }
        n = parsed
    }
    n++
    m.data[key] = []byte(strconv.FormatInt(n, 10))
    return n, nil
}
