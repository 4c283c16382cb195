package reservation

import (
    "testing"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/coral-club-board/internal/model"
)

func heldDoc(t *testing.T) model.Document {
    t.Helper()
    doc := seedDoc()
    p, _, err := Reserve(doc, ReserveInput{TentID: 1, Cart: aguaCart()}, t0, "r-1", 0)
    require.NoError(t, err)
    return doc.Apply(p)
}

func TestExpireAfterDeadline(t *testing.T) {
    doc := heldDoc(t)
    deadline := doc.Reservations[0].ExpiresAt

    p, ids, ok := Expire(doc, deadline.Add(time.Second))
    require.True(t, ok)
    assert.Equal(t, []string{"r-1"}, ids)

    doc = doc.Apply(p)
    assert.Equal(t, model.TentAvailable, doc.Tents[0].State)
    assert.Equal(t, model.StatusExpired, doc.Reservations[0].Status)
    // untouched tent keeps its state
    assert.Equal(t, model.TentOccupied, doc.Tents[1].State)
}

func TestExpireAtDeadlineIsInclusive(t *testing.T) {
    doc := heldDoc(t)
    _, _, ok := Expire(doc, doc.Reservations[0].ExpiresAt)
    assert.True(t, ok)
}

func TestExpireBeforeDeadlineLeavesState(t *testing.T) {
    doc := heldDoc(t)
    p, ids, ok := Expire(doc, doc.Reservations[0].ExpiresAt.Add(-time.Second))
    assert.False(t, ok)
    assert.Empty(t, ids)
    assert.True(t, p.IsEmpty())
}

func TestExpireIsIdempotent(t *testing.T) {
    doc := heldDoc(t)
    later := doc.Reservations[0].ExpiresAt.Add(time.Minute)

    p, _, ok := Expire(doc, later)
    require.True(t, ok)
    doc = doc.Apply(p)

    _, _, ok = Expire(doc, later)
    assert.False(t, ok)
}

func TestExpireBatchesSeveralHolds(t *testing.T) {
    doc := seedDoc()
    doc.Tents = append(doc.Tents, model.Tent{ID: 3, State: model.TentAvailable})
    p, _, err := Reserve(doc, ReserveInput{TentID: 1}, t0, "a", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)
    p, _, err = Reserve(doc, ReserveInput{TentID: 3}, t0.Add(2*time.Minute), "b", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)

    p, ids, ok := Expire(doc, t0.Add(time.Hour))
    require.True(t, ok)
    assert.ElementsMatch(t, []string{"a", "b"}, ids)
    doc = doc.Apply(p)
    assert.Equal(t, model.TentAvailable, doc.Tents[0].State)
    assert.Equal(t, model.TentAvailable, doc.Tents[2].State)
}

func TestGenerateGrid(t *testing.T) {
    tents := GenerateGrid(20)
    require.Len(t, tents, 20)
    ids := map[int]bool{}
    for _, tn := range tents {
        ids[tn.ID] = true
        assert.Equal(t, model.TentAvailable, tn.State)
        assert.True(t, tn.X > 0 && tn.X < 1)
        assert.True(t, tn.Y > 0 && tn.Y < 1)
    }
    assert.Len(t, ids, 20)
    // 5 columns by 4 rows over the padded area
    assert.Equal(t, 0.18, tents[0].X)
    assert.Equal(t, 0.2525, tents[0].Y)

    assert.Len(t, GenerateGrid(0), DefaultTentCount)
}

func TestRegenerateGridRefusesActiveHolds(t *testing.T) {
    doc := heldDoc(t)
    _, err := RegenerateGrid(doc, 10, t0)
    assert.True(t, errors.Is(err, ErrActiveHolds))

    p, err := RegenerateGrid(doc, 10, t0.Add(time.Hour))
    require.NoError(t, err)
    doc = doc.Apply(p)
    assert.Len(t, doc.Tents, 10)
    assert.Equal(t, 10, doc.Layout.Count)
}

func TestMoveTentClamps(t *testing.T) {
    p, err := MoveTent(seedDoc(), 1, 1.5, -0.3)
    require.NoError(t, err)
    doc := seedDoc().Apply(p)
    assert.Equal(t, 0.98, doc.Tents[0].X)
    assert.Equal(t, 0.02, doc.Tents[0].Y)

    _, err = MoveTent(seedDoc(), 42, 0.5, 0.5)
    assert.True(t, errors.Is(err, ErrTentNotFound))
}

func TestSetTentState(t *testing.T) {
    doc := heldDoc(t)

    _, err := SetTentState(doc, 1, model.TentBlocked, t0)
    assert.True(t, errors.Is(err, ErrActiveHolds))
    _, err = SetTentState(doc, 2, model.TentPending, t0)
    assert.True(t, errors.Is(err, ErrInvalidTransition))

    p, err := SetTentState(doc, 2, model.TentAvailable, t0)
    require.NoError(t, err)
    doc = doc.Apply(p)
    assert.Equal(t, model.TentAvailable, doc.Tents[1].State)
}
