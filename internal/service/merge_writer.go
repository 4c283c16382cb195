// Package service implements the write path of the board: every change to
// the shared document is a Patch merged by MergeWriter.
package service

import (
    "context"
    "encoding/json"
    "log/slog"
    "strconv"
    "strings"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/repository"
)

// ErrCorruptState is returned when the stored document cannot be decoded.
var ErrCorruptState = errors.New("stored state is not a valid document")

// Listener is notified after every successful merge.
type Listener interface {
    OnMerged(ctx context.Context, before, after model.Document, rev int64)
}

// MergeRequest mirrors the body of POST /kv/merge.
type MergeRequest struct {
    StateKey string      `json:"stateKey"`
    RevKey   string      `json:"revKey"`
    Patch    model.Patch `json:"patch"`
    Note     string      `json:"note,omitempty"` // appended to the audit log when set
}

// MergeWriter performs get, merge, set, incr against the KV store.  The four
// steps are not atomic across clients: concurrent merges race and the last
// write wins on overlapping fields.
type MergeWriter struct {
    kv        repository.KV
    listeners []Listener
    log       *slog.Logger
    now       func() time.Time
}

// NewMergeWriter returns a MergeWriter over kv.  Listeners run in order
// after each successful merge.
func NewMergeWriter(kv repository.KV, log *slog.Logger, listeners ...Listener) *MergeWriter {
    if log == nil {
        log = slog.Default()
    }
    return &MergeWriter{kv: kv, listeners: listeners, log: log, now: time.Now}
}

// AddListener registers l for subsequent merges.  Not safe to call while
// merges are running.
func (w *MergeWriter) AddListener(l Listener) { w.listeners = append(w.listeners, l) }

// MergeState merges req.Patch into the document under req.StateKey and
// bumps req.RevKey.  It returns the merged document and the new revision.
func (w *MergeWriter) MergeState(ctx context.Context, req MergeRequest) (model.Document, int64, error) {
    before, _, err := w.Load(ctx, req.StateKey)
    if err != nil {
        return model.Document{}, 0, err
    }
    after := before.Apply(req.Patch)
    if note := strings.TrimSpace(req.Note); note != "" {
        after.Logs = model.AppendLog(after.Logs, model.LogEntry{TS: w.now().UTC(), Type: "action", Message: note})
    }
    raw, err := json.Marshal(after)
    if err != nil {
        return model.Document{}, 0, errors.Wrap(err, "encode state")
    }
    if err := w.kv.Set(ctx, req.StateKey, raw); err != nil {
        return model.Document{}, 0, err
    }
    rev, err := w.kv.Incr(ctx, req.RevKey)
    if err != nil {
        // the document is already written; the next successful merge bumps the counter
        w.log.Warn("state written but revision not incremented", "state_key", req.StateKey, "err", err)
        return model.Document{}, 0, err
    }
    for _, l := range w.listeners {
        l.OnMerged(ctx, before, after, rev)
    }
    return after, rev, nil
}

// Load reads and decodes the document.  found is false when the key is
// absent, in which case the zero Document is returned.
func (w *MergeWriter) Load(ctx context.Context, stateKey string) (doc model.Document, found bool, err error) {
    raw, err := w.kv.Get(ctx, stateKey)
    if err != nil {
        return model.Document{}, false, err
    }
    if raw == nil || string(raw) == "null" {
        return model.Document{}, false, nil
    }
    if err := json.Unmarshal(raw, &doc); err != nil {
        return model.Document{}, false, errors.Mark(errors.Wrap(err, "decode state"), ErrCorruptState)
    }
    return doc, true, nil
}

// Revision reads the counter; an absent key reads as 0.
func (w *MergeWriter) Revision(ctx context.Context, revKey string) (int64, error) {
    raw, err := w.kv.Get(ctx, revKey)
    if err != nil {
        return 0, err
    }
    if raw == nil {
        return 0, nil
    }
    n, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(string(raw)), `"`), 10, 64)
    if err != nil {
        return 0, errors.Wrapf(repository.ErrNotNumeric, "revision key %s", revKey)
    }
    return n, nil
}
