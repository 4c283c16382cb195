package client

import (
    "context"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/coral-club-board/internal/config"
    "github.com/iliyamo/coral-club-board/internal/handler"
    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/repository"
    "github.com/iliyamo/coral-club-board/internal/reservation"
    "github.com/iliyamo/coral-club-board/internal/router"
    "github.com/iliyamo/coral-club-board/internal/service"
)

var t0 = time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct{ at time.Time }

func (c *fakeClock) now() time.Time { return c.at }

func newServer(t *testing.T) (*httptest.Server, *repository.MemoryKV) {
    t.Helper()
    kv := repository.NewMemoryKV()
    w := service.NewMergeWriter(kv, nil)
    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterKV(e, handler.NewKVHandler(kv, w, config.NewTestConfig().Store.StateKey), nil)
    srv := httptest.NewServer(e)
    t.Cleanup(srv.Close)
    return srv, kv
}

func newBoard(t *testing.T, srv *httptest.Server, clock *fakeClock) *Board {
    t.Helper()
    cfg := config.NewTestConfig()
    ids := 0
    return NewBoard(NewHTTPStore(srv.URL, nil), Options{
        StateKey: cfg.Store.StateKey,
        RevKey:   cfg.Store.RevKey,
        Now:      clock.now,
        NewID: func() string {
            ids++
            return "r" + string(rune('0'+ids))
        },
    })
}

func contact() model.Customer { return model.Customer{Name: "Ana", Phone: "+584121234567"} }

func TestHTTPStore(t *testing.T) {
    srv, _ := newServer(t)
    s := NewHTTPStore(srv.URL+"/", nil)
    ctx := context.Background()

    v, err := s.Get(ctx, "nothing")
    require.NoError(t, err)
    assert.Nil(t, v)

    require.NoError(t, s.Set(ctx, "doc", []byte(`{"a":1}`)))
    v, err = s.Get(ctx, "doc")
    require.NoError(t, err)
    assert.JSONEq(t, `{"a":1}`, string(v))

    n, err := s.Incr(ctx, "counter")
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)

    _, err = s.Incr(ctx, "doc")
    assert.True(t, errors.Is(err, ErrRejected))
    assert.False(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestLoadSeedsAbsentState(t *testing.T) {
    srv, kv := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})

    require.NoError(t, b.Load(context.Background()))
    snap := b.Snapshot()
    assert.Equal(t, int64(1), snap.Rev)
    assert.Len(t, snap.Doc.Tents, reservation.DefaultTentCount)

    raw, err := kv.Get(context.Background(), "test:rev")
    require.NoError(t, err)
    assert.Equal(t, "1", string(raw))
}

func TestLoadFallsBackToDefaultsOffline(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    srv.Close()

    err := b.Load(context.Background())
    assert.True(t, errors.Is(err, ErrRemoteUnavailable))
    assert.Equal(t, int64(1), b.Revision())
    assert.Len(t, b.Snapshot().Doc.Tents, reservation.DefaultTentCount)
}

func TestMergeConfirmed(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))

    op, err := b.UpdateBrand(context.Background(), model.BrandPatch{Name: model.Ptr("Coral Beach")})
    require.NoError(t, err)
    assert.Equal(t, OpConfirmed, op.State)
    assert.Equal(t, int64(2), op.Rev)
    assert.NoError(t, op.RemoteErr)
    assert.Equal(t, "Coral Beach", b.Snapshot().Doc.Brand.Name)
}

func TestMergeFallsBackWhenServerIsDown(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))
    before := b.Revision()
    srv.Close()

    op, err := b.UpdatePayments(context.Background(), model.PaymentsPatch{USDToVES: model.Ptr(40.0)})
    require.NoError(t, err)
    assert.Equal(t, OpFallbackLocal, op.State)
    assert.True(t, errors.Is(op.RemoteErr, ErrRemoteUnavailable))
    assert.Equal(t, before+1, op.Rev)

    doc := b.Snapshot().Doc
    assert.Equal(t, 40.0, doc.Payments.USDToVES)
    assert.Equal(t, "USD", doc.Payments.Currency)
    assert.Equal(t, "action (local)", doc.Logs[0].Type)
    assert.Equal(t, "Editar pagos", doc.Logs[0].Message)
}

func TestMergeFallsBackWhenStoreIsUnavailable(t *testing.T) {
    srv, kv := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))
    kv.SetUnavailable(true)

    op, err := b.MoveTent(context.Background(), 1, 0.5, 0.5)
    require.NoError(t, err)
    assert.Equal(t, OpFallbackLocal, op.State)
    assert.Equal(t, 0.5, b.Snapshot().Doc.Tents[0].X)
}

func TestMergeWithCancelledContext(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))
    rev := b.Revision()

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := b.UpdateBrand(ctx, model.BrandPatch{Name: model.Ptr("X")})
    assert.ErrorIs(t, err, context.Canceled)
    assert.Equal(t, rev, b.Revision())
}

// rejectingStore answers every merge the way the server answers a 4xx.
type rejectingStore struct{ Store }

func (rejectingStore) Merge(context.Context, service.MergeRequest) (model.Document, int64, error) {
    return model.Document{}, 0, errors.Mark(errors.New("POST /kv/merge: 429 rate limit exceeded"), ErrRejected)
}

func TestMergeRejectedIsNotAppliedLocally(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))
    rev := b.Revision()
    b.store = rejectingStore{b.store}

    op, err := b.UpdateBrand(context.Background(), model.BrandPatch{Name: model.Ptr("X")})
    assert.True(t, errors.Is(err, ErrRejected))
    assert.Equal(t, OpResult{}, op)
    assert.Equal(t, rev, b.Revision())
    assert.Equal(t, "Coral Club", b.Snapshot().Doc.Brand.Name)
}

// cancellingStore cancels the caller's context while the merge is in
// flight.
type cancellingStore struct {
    Store
    cancel context.CancelFunc
}

func (s cancellingStore) Merge(ctx context.Context, req service.MergeRequest) (model.Document, int64, error) {
    s.cancel()
    return s.Store.Merge(ctx, req)
}

func TestMergeCancelledInFlight(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))
    rev := b.Revision()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    b.store = cancellingStore{Store: b.store, cancel: cancel}

    _, err := b.MoveTent(ctx, 1, 0.5, 0.5)
    assert.ErrorIs(t, err, context.Canceled)
    assert.Equal(t, rev, b.Revision())
    assert.NotEqual(t, 0.5, b.Snapshot().Doc.Tents[0].X)
}

func TestPollPicksUpOtherClients(t *testing.T) {
    srv, _ := newServer(t)
    clock := &fakeClock{at: t0}
    staff := newBoard(t, srv, clock)
    kiosk := newBoard(t, srv, clock)
    ctx := context.Background()
    require.NoError(t, staff.Load(ctx))
    require.NoError(t, kiosk.Load(ctx))

    _, op, err := staff.Reserve(ctx, reservation.ReserveInput{TentID: 4, Customer: contact()})
    require.NoError(t, err)
    require.Equal(t, OpConfirmed, op.State)

    before := kiosk.Revision()
    assert.True(t, kiosk.Poll(ctx))
    assert.Greater(t, kiosk.Revision(), before)
    doc := kiosk.Snapshot().Doc
    assert.Equal(t, model.TentPending, doc.Tents[3].State)
    require.Len(t, doc.Reservations, 1)

    assert.False(t, kiosk.Poll(ctx))
}

func TestPollSwallowsErrors(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))
    rev := b.Revision()
    srv.Close()

    assert.False(t, b.Poll(context.Background()))
    assert.Equal(t, rev, b.Revision())
}

func TestReserveValidatesLocally(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    ctx := context.Background()
    require.NoError(t, b.Load(ctx))
    _, _, err := b.Reserve(ctx, reservation.ReserveInput{TentID: 1, Customer: contact()})
    require.NoError(t, err)
    rev := b.Revision()

    _, _, err = b.Reserve(ctx, reservation.ReserveInput{TentID: 1, Customer: contact()})
    assert.True(t, errors.Is(err, reservation.ErrTentUnavailable))
    assert.Equal(t, rev, b.Revision())
}

func TestConfirmAndRelease(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    ctx := context.Background()
    require.NoError(t, b.Load(ctx))

    paid, _, err := b.Reserve(ctx, reservation.ReserveInput{TentID: 1, Customer: contact()})
    require.NoError(t, err)
    freed, _, err := b.Reserve(ctx, reservation.ReserveInput{TentID: 2, Customer: contact()})
    require.NoError(t, err)

    _, err = b.ConfirmPaid(ctx, 1, paid.ID)
    require.NoError(t, err)
    _, err = b.Release(ctx, 2, freed.ID, "", "")
    require.NoError(t, err)

    doc := b.Snapshot().Doc
    assert.Equal(t, model.TentOccupied, doc.Tents[0].State)
    assert.Equal(t, model.TentAvailable, doc.Tents[1].State)
    assert.Equal(t, model.StatusExpired, doc.Reservations[0].Status)
    assert.Equal(t, model.StatusPaid, doc.Reservations[1].Status)
}

func TestSweepExpiresHolds(t *testing.T) {
    srv, _ := newServer(t)
    clock := &fakeClock{at: t0}
    b := newBoard(t, srv, clock)
    ctx := context.Background()
    require.NoError(t, b.Load(ctx))
    _, _, err := b.Reserve(ctx, reservation.ReserveInput{TentID: 5, Customer: contact()})
    require.NoError(t, err)

    ids, op, err := b.Sweep(ctx, t0.Add(5*time.Minute))
    require.NoError(t, err)
    assert.Empty(t, ids)
    assert.Equal(t, OpResult{}, op)

    ids, op, err = b.Sweep(ctx, t0.Add(16*time.Minute))
    require.NoError(t, err)
    assert.Equal(t, []string{"r1"}, ids)
    assert.Equal(t, OpConfirmed, op.State)

    other := newBoard(t, srv, clock)
    require.NoError(t, other.Load(ctx))
    doc := other.Snapshot().Doc
    assert.Equal(t, model.TentAvailable, doc.Tents[4].State)
    assert.Equal(t, model.StatusExpired, doc.Reservations[0].Status)
}

func TestSweepDuringOutageReachesServerAfterRecovery(t *testing.T) {
    srv, kv := newServer(t)
    clock := &fakeClock{at: t0}
    b := newBoard(t, srv, clock)
    ctx := context.Background()
    require.NoError(t, b.Load(ctx))
    _, _, err := b.Reserve(ctx, reservation.ReserveInput{TentID: 5, Customer: contact()})
    require.NoError(t, err)

    kv.SetUnavailable(true)
    ids, op, err := b.Sweep(ctx, t0.Add(16*time.Minute))
    require.NoError(t, err)
    assert.Equal(t, []string{"r1"}, ids)
    require.Equal(t, OpFallbackLocal, op.State)
    assert.Equal(t, model.StatusExpired, b.Snapshot().Doc.Reservations[0].Status)
    assert.False(t, b.Poll(ctx))

    kv.SetUnavailable(false)
    rev := b.Revision()
    require.True(t, b.Poll(ctx))
    assert.Greater(t, b.Revision(), rev)
    assert.Equal(t, model.StatusPending, b.Snapshot().Doc.Reservations[0].Status)

    ids, op, err = b.Sweep(ctx, t0.Add(17*time.Minute))
    require.NoError(t, err)
    assert.Equal(t, []string{"r1"}, ids)
    assert.Equal(t, OpConfirmed, op.State)
    assert.False(t, b.Poll(ctx))

    other := newBoard(t, srv, clock)
    require.NoError(t, other.Load(ctx))
    doc := other.Snapshot().Doc
    assert.Equal(t, model.TentAvailable, doc.Tents[4].State)
    assert.Equal(t, model.StatusExpired, doc.Reservations[0].Status)
}

func TestLocalChangeIsReplacedOnNextPoll(t *testing.T) {
    srv, _ := newServer(t)
    ctx := context.Background()
    down := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, down.Load(ctx))
    down.store = NewHTTPStore("http://127.0.0.1:1", nil)
    op, err := down.UpdateBrand(ctx, model.BrandPatch{Name: model.Ptr("Offline")})
    require.NoError(t, err)
    require.Equal(t, OpFallbackLocal, op.State)

    down.store = NewHTTPStore(srv.URL, nil)
    require.True(t, down.Poll(ctx))
    assert.Equal(t, "Coral Club", down.Snapshot().Doc.Brand.Name)
    assert.Greater(t, down.Revision(), op.Rev)
}

func TestSubscribe(t *testing.T) {
    srv, _ := newServer(t)
    b := newBoard(t, srv, &fakeClock{at: t0})
    require.NoError(t, b.Load(context.Background()))

    ch := b.Subscribe()
    _, err := b.UpdateBackground(context.Background(), model.BackgroundPatch{PublicPath: model.Ptr("/Playa.png")})
    require.NoError(t, err)

    select {
    case snap := <-ch:
        assert.Equal(t, "/Playa.png", snap.Doc.Background.PublicPath)
        assert.Equal(t, b.Revision(), snap.Rev)
    case <-time.After(time.Second):
        t.Fatal("no snapshot delivered")
    }

    b.Unsubscribe(ch)
    _, open := <-ch
    assert.False(t, open)
}

func TestRunPollsUntilCancelled(t *testing.T) {
    srv, _ := newServer(t)
    clock := &fakeClock{at: t0}
    staff := newBoard(t, srv, clock)
    kiosk := newBoard(t, srv, clock)
    require.NoError(t, staff.Load(context.Background()))
    require.NoError(t, kiosk.Load(context.Background()))
    _, err := staff.UpdateBrand(context.Background(), model.BrandPatch{Name: model.Ptr("Coral Beach")})
    require.NoError(t, err)

    ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
    defer cancel()
    err = kiosk.Run(ctx, 10*time.Millisecond, time.Hour)
    assert.ErrorIs(t, err, context.DeadlineExceeded)
    assert.Equal(t, "Coral Beach", kiosk.Snapshot().Doc.Brand.Name)
}
