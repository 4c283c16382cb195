// Package repository defines the storage collaborators of the board: the
// key-value store that holds the shared document and revision counter, and
// the optional MySQL archive of reservation events.
package repository

import "github.com/cockroachdb/errors"

// ErrStoreUnavailable marks any failure talking to the key-value store.
// Handlers translate it into 503 and clients fall back to local state.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrNotNumeric is returned by Incr when the key holds a non-integer value.
var ErrNotNumeric = errors.New("value is not an integer")
