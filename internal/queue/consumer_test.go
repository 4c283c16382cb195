package queue

import (
    "context"
    "encoding/json"
    "io/fs"
    "os"
    "path/filepath"
    "testing"

    "github.com/cockroachdb/errors"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/coral-club-board/internal/repository"
)

type memArchive struct{ recs []repository.EventRecord }

func (m *memArchive) Insert(_ context.Context, rec *repository.EventRecord) error {
    rec.ID = uint64(len(m.recs) + 1)
    m.recs = append(m.recs, *rec)
    return nil
}

func TestConsumerHandleWritesLogAndArchive(t *testing.T) {
    dir := t.TempDir()
    arch := &memArchive{}
    c := &Consumer{LogDir: dir, Archive: arch}

    body, err := json.Marshal(ReservationEvent{
        Type: EventPaid, ReservationID: "r-1", TentID: 4, Status: "paid",
        CustomerName: "Ana", Total: 12.5, Revision: 9, At: "2025-08-02T10:00:00Z",
    })
    require.NoError(t, err)
    require.NoError(t, c.Handle(context.Background(), body))

    raw, err := os.ReadFile(filepath.Join(dir, "reservations.log"))
    require.NoError(t, err)
    assert.Contains(t, string(raw), "reservation.paid | reservation_id=r-1 | tent=4")
    assert.Contains(t, string(raw), "total=12.50")

    require.Len(t, arch.recs, 1)
    assert.Equal(t, "r-1", arch.recs[0].ReservationID)
    assert.Equal(t, 2025, arch.recs[0].OccurredAt.Year())
}

func TestConsumerHandleRejectsGarbage(t *testing.T) {
    c := &Consumer{LogDir: t.TempDir()}
    assert.Error(t, c.Handle(context.Background(), []byte("not json")))
    assert.Error(t, c.Handle(context.Background(), []byte(`{"type":""}`)))
}

func TestConsumerHandleWrapsLogErrors(t *testing.T) {
    blocker := filepath.Join(t.TempDir(), "not-a-dir")
    require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
    c := &Consumer{LogDir: blocker}

    err := c.Handle(context.Background(), []byte(`{"type":"reservation.created","reservation_id":"r-1"}`))
    require.Error(t, err)
    assert.Contains(t, err.Error(), "mkdir logs")
    var pathErr *fs.PathError
    assert.True(t, errors.As(err, &pathErr))

    err = c.Handle(context.Background(), []byte("not json"))
    assert.Contains(t, err.Error(), "unmarshal")
}
