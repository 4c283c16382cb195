package client

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/google/uuid"

    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/repository"
    "github.com/iliyamo/coral-club-board/internal/reservation"
    "github.com/iliyamo/coral-club-board/internal/service"
)

// Store is what a Board needs from the remote side.
type Store interface {
    repository.KV
    Merge(ctx context.Context, req service.MergeRequest) (model.Document, int64, error)
}

// OpState tracks one merge: submitted, then either confirmed by the server
// or applied to the local copy only.
type OpState string

const (
    OpSubmitted     OpState = "submitted"
    OpConfirmed     OpState = "confirmed"
    OpFallbackLocal OpState = "fallback-local"
)

// OpResult reports how a merge ended.  Rev is the local revision after the
// merge.  RemoteErr is set on fallback.
type OpResult struct {
    State     OpState
    Rev       int64
    RemoteErr error
}

// Snapshot is a copy of the local document and its revision.
type Snapshot struct {
    Doc model.Document
    Rev int64
}

// Options configure a Board.  Zero values fall back to the defaults used by
// the server.
type Options struct {
    StateKey string
    RevKey   string
    HoldTTL  time.Duration
    Log      *slog.Logger
    Now      func() time.Time
    NewID    func() string
}

// staleRev never matches a stored revision, so the next poll refetches.
const staleRev = -1

// Board is a client-side cache of the shared document.  Local state is
// guarded by mu and network calls never run under it.
type Board struct {
    store    Store
    stateKey string
    revKey   string
    holdTTL  time.Duration
    log      *slog.Logger
    now      func() time.Time
    newID    func() string

    mu        sync.Mutex
    doc       model.Document
    remoteRev int64 // last revision read from the store; compared for inequality only
    localRev  int64 // never decreases
    subs      map[chan Snapshot]struct{}
}

func NewBoard(store Store, opts Options) *Board {
    b := &Board{
        store:    store,
        stateKey: opts.StateKey,
        revKey:   opts.RevKey,
        holdTTL:  opts.HoldTTL,
        log:      opts.Log,
        now:      opts.Now,
        newID:    opts.NewID,
        subs:     make(map[chan Snapshot]struct{}),
    }
    if b.stateKey == "" {
        b.stateKey = "coralclub:state"
    }
    if b.revKey == "" {
        b.revKey = "coralclub:rev"
    }
    if b.holdTTL <= 0 {
        b.holdTTL = reservation.DefaultHoldTTL
    }
    if b.log == nil {
        b.log = slog.Default()
    }
    if b.now == nil {
        b.now = time.Now
    }
    if b.newID == nil {
        b.newID = uuid.NewString
    }
    return b
}

// Load fetches the document.  An absent document is seeded with defaults
// and a generated grid at revision 1.  When the store cannot be reached
// the board starts from the same defaults locally and the error is
// returned; the next successful poll replaces them.
func (b *Board) Load(ctx context.Context) error {
    doc, found, err := b.fetch(ctx)
    if err == nil && !found {
        doc, err = b.seed(ctx)
    }
    if err != nil {
        b.mu.Lock()
        if b.localRev == 0 {
            b.doc = seedDocument(b.now())
            b.localRev = 1
            b.remoteRev = staleRev
        }
        snap := b.snapshotLocked()
        b.mu.Unlock()
        b.publish(snap)
        return err
    }
    rev, err := b.readRev(ctx)
    if err != nil {
        rev = 1
    }

    b.mu.Lock()
    b.doc = doc
    b.remoteRev = rev
    b.bumpLocked(rev)
    snap := b.snapshotLocked()
    b.mu.Unlock()
    b.publish(snap)
    return nil
}

func (b *Board) seed(ctx context.Context) (model.Document, error) {
    doc := seedDocument(b.now())
    raw, err := json.Marshal(doc)
    if err != nil {
        return model.Document{}, errors.Wrap(err, "encode seed")
    }
    if err := b.store.Set(ctx, b.stateKey, raw); err != nil {
        return model.Document{}, err
    }
    if err := b.store.Set(ctx, b.revKey, []byte("1")); err != nil {
        return model.Document{}, err
    }
    b.log.Info("board seeded", "state_key", b.stateKey)
    return doc, nil
}

func seedDocument(now time.Time) model.Document {
    doc := model.DefaultDocument("")
    doc.Tents = reservation.GenerateGrid(doc.Layout.Count)
    doc.Rev = 1
    doc.Logs = model.AppendLog(nil, model.LogEntry{TS: now.UTC(), Type: "system", Message: "Seed inicial"})
    return doc
}

// Snapshot returns a copy of the local state.
func (b *Board) Snapshot() Snapshot {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.snapshotLocked()
}

// Revision returns the local revision.
func (b *Board) Revision() int64 {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.localRev
}

// Subscribe returns a channel that receives a snapshot after every local
// change.  A subscriber that has not drained the previous snapshot misses
// the new one.
func (b *Board) Subscribe() <-chan Snapshot {
    ch := make(chan Snapshot, 1)
    b.mu.Lock()
    b.subs[ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

// Unsubscribe stops deliveries to ch and closes it.
func (b *Board) Unsubscribe(ch <-chan Snapshot) {
    b.mu.Lock()
    defer b.mu.Unlock()
    for c := range b.subs {
        if c == ch {
            delete(b.subs, c)
            close(c)
            return
        }
    }
}

// Poll reads the remote revision and, when it differs from the last one
// seen, replaces the local document wholesale.  Failures are logged and
// swallowed; the next tick retries.  It reports whether local state
// changed.
func (b *Board) Poll(ctx context.Context) bool {
    rev, err := b.readRev(ctx)
    if err != nil {
        b.log.Debug("poll: revision unavailable", "err", err)
        return false
    }
    b.mu.Lock()
    same := rev == b.remoteRev
    b.mu.Unlock()
    if same {
        return false
    }

    doc, found, err := b.fetch(ctx)
    if err != nil || !found {
        b.log.Debug("poll: state unavailable", "rev", rev, "found", found, "err", err)
        return false
    }

    b.mu.Lock()
    b.doc = doc
    b.remoteRev = rev
    b.bumpLocked(rev)
    snap := b.snapshotLocked()
    b.mu.Unlock()
    b.publish(snap)
    return true
}

// MergeState submits patch to the store.  When the store cannot be
// reached the patch is applied to the local copy with a "action (local)"
// log entry and is not retried; the next successful poll replaces the
// local copy with the server's.  The returned error is non-nil when ctx
// ends before the store answers or the server rejects the patch, and in
// both cases nothing was applied.
func (b *Board) MergeState(ctx context.Context, patch model.Patch, note string) (OpResult, error) {
    if err := ctx.Err(); err != nil {
        return OpResult{}, err
    }
    res := OpResult{State: OpSubmitted}
    doc, rev, err := b.store.Merge(ctx, service.MergeRequest{
        StateKey: b.stateKey,
        RevKey:   b.revKey,
        Patch:    patch,
        Note:     note,
    })
    if err != nil {
        if ctxErr := ctx.Err(); ctxErr != nil {
            return OpResult{}, ctxErr
        }
        if errors.Is(err, ErrRejected) {
            return OpResult{}, err
        }
    }

    b.mu.Lock()
    if err == nil {
        b.doc = doc
        b.remoteRev = rev
        b.bumpLocked(rev)
        res.State = OpConfirmed
    } else {
        b.doc = b.doc.Apply(patch)
        msg := strings.TrimSpace(note)
        if msg == "" {
            msg = "Cambio sin conexión"
        }
        b.doc.Logs = model.AppendLog(b.doc.Logs, model.LogEntry{TS: b.now().UTC(), Type: "action (local)", Message: msg})
        b.localRev++
        b.remoteRev = staleRev
        res.State = OpFallbackLocal
        res.RemoteErr = err
    }
    res.Rev = b.localRev
    snap := b.snapshotLocked()
    b.mu.Unlock()

    if res.State == OpFallbackLocal {
        b.log.Info("merge applied locally", "note", note, "rev", res.Rev, "err", err)
    }
    b.publish(snap)
    return res, nil
}

// Reserve places a hold on a tent using the local copy to validate it.
func (b *Board) Reserve(ctx context.Context, in reservation.ReserveInput) (model.Reservation, OpResult, error) {
    doc := b.Snapshot().Doc
    patch, res, err := reservation.Reserve(doc, in, b.now(), b.newID(), b.holdTTL)
    if err != nil {
        return model.Reservation{}, OpResult{}, err
    }
    op, err := b.MergeState(ctx, patch, fmt.Sprintf("Reserva carpa #%d", in.TentID))
    return res, op, err
}

// Release ends a pending hold.  Empty toState and status default to
// available and expired.
func (b *Board) Release(ctx context.Context, tentID int, resID string, toState model.TentState, status model.ReservationStatus) (OpResult, error) {
    return b.apply(ctx, "Liberar reserva "+resID, func(doc model.Document) (model.Patch, error) {
        return reservation.Release(doc, tentID, resID, toState, status)
    })
}

// ConfirmPaid marks the reservation paid and the tent occupied.
func (b *Board) ConfirmPaid(ctx context.Context, tentID int, resID string) (OpResult, error) {
    return b.apply(ctx, "Pago confirmado "+resID, func(doc model.Document) (model.Patch, error) {
        return reservation.ConfirmPaid(doc, tentID, resID)
    })
}

// RegenerateGrid replaces every tent with a fresh grid.
func (b *Board) RegenerateGrid(ctx context.Context, count int) (OpResult, error) {
    return b.apply(ctx, fmt.Sprintf("Regenerar %d carpas", count), func(doc model.Document) (model.Patch, error) {
        return reservation.RegenerateGrid(doc, count, b.now())
    })
}

// MoveTent repositions a tent.
func (b *Board) MoveTent(ctx context.Context, id int, x, y float64) (OpResult, error) {
    return b.apply(ctx, fmt.Sprintf("Mover carpa #%d", id), func(doc model.Document) (model.Patch, error) {
        return reservation.MoveTent(doc, id, x, y)
    })
}

// SetTentState blocks, unblocks or frees a tent by hand.
func (b *Board) SetTentState(ctx context.Context, id int, state model.TentState) (OpResult, error) {
    return b.apply(ctx, fmt.Sprintf("Carpa #%d: %s", id, state), func(doc model.Document) (model.Patch, error) {
        return reservation.SetTentState(doc, id, state, b.now())
    })
}

func (b *Board) UpdateBrand(ctx context.Context, p model.BrandPatch) (OpResult, error) {
    return b.MergeState(ctx, model.Patch{Brand: &p}, "Editar marca")
}

func (b *Board) UpdateBackground(ctx context.Context, p model.BackgroundPatch) (OpResult, error) {
    return b.MergeState(ctx, model.Patch{Background: &p}, "Cambiar fondo")
}

func (b *Board) UpdatePayments(ctx context.Context, p model.PaymentsPatch) (OpResult, error) {
    return b.MergeState(ctx, model.Patch{Payments: &p}, "Editar pagos")
}

// Sweep expires every pending reservation past its deadline in the local
// copy and merges the result as one patch.  It returns the expired ids;
// when there are none nothing is sent.
func (b *Board) Sweep(ctx context.Context, now time.Time) ([]string, OpResult, error) {
    patch, expired, ok := reservation.Expire(b.Snapshot().Doc, now)
    if !ok {
        return nil, OpResult{}, nil
    }
    op, err := b.MergeState(ctx, patch, fmt.Sprintf("Expiración automática (%d)", len(expired)))
    if err != nil {
        return nil, op, err
    }
    b.log.Info("holds expired", "count", len(expired), "state", op.State)
    return expired, op, nil
}

func (b *Board) apply(ctx context.Context, note string, build func(model.Document) (model.Patch, error)) (OpResult, error) {
    patch, err := build(b.Snapshot().Doc)
    if err != nil {
        return OpResult{}, err
    }
    return b.MergeState(ctx, patch, note)
}

func (b *Board) fetch(ctx context.Context) (model.Document, bool, error) {
    raw, err := b.store.Get(ctx, b.stateKey)
    if err != nil {
        return model.Document{}, false, err
    }
    if raw == nil {
        return model.Document{}, false, nil
    }
    var doc model.Document
    if err := json.Unmarshal(raw, &doc); err != nil {
        return model.Document{}, false, errors.Mark(errors.Wrap(err, "decode state"), service.ErrCorruptState)
    }
    return doc, true, nil
}

func (b *Board) readRev(ctx context.Context) (int64, error) {
    raw, err := b.store.Get(ctx, b.revKey)
    if err != nil {
        return 0, err
    }
    if raw == nil {
        return 0, nil
    }
    n, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(string(raw)), `"`), 10, 64)
    if err != nil {
        return 0, errors.Wrapf(repository.ErrNotNumeric, "revision key %s", b.revKey)
    }
    return n, nil
}

// bumpLocked advances the local revision after adopting remote state.  It
// follows the remote counter when that is ahead and otherwise steps by one.
func (b *Board) bumpLocked(remote int64) {
    if remote > b.localRev {
        b.localRev = remote
        return
    }
    b.localRev++
}

func (b *Board) snapshotLocked() Snapshot {
    return Snapshot{Doc: b.doc.Clone(), Rev: b.localRev}
}

func (b *Board) publish(s Snapshot) {
    b.mu.Lock()
    defer b.mu.Unlock()
    for ch := range b.subs {
        select {
        case ch <- Snapshot{Doc: s.Doc.Clone(), Rev: s.Rev}:
        default:
        }
    }
}
