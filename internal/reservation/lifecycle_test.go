package reservation

import (
    "testing"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/coral-club-board/internal/model"
)

var t0 = time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)

func seedDoc() model.Document {
    doc := model.DefaultDocument("")
    doc.Tents = []model.Tent{
        {ID: 1, X: 0.2, Y: 0.2, State: model.TentAvailable},
        {ID: 2, X: 0.4, Y: 0.2, State: model.TentOccupied},
    }
    return doc
}

func aguaCart() []model.CartLine {
    return []model.CartLine{{Key: "extra:agua", Name: "Agua", Price: 2.5, Qty: 2}}
}

func TestReserveThenConfirmPaid(t *testing.T) {
    doc := seedDoc()

    patch, res, err := Reserve(doc, ReserveInput{TentID: 1, Cart: aguaCart()}, t0, "r-1", 0)
    require.NoError(t, err)
    require.NotNil(t, patch.Tents)
    require.NotNil(t, patch.Reservations)

    doc = doc.Apply(patch)
    require.Len(t, doc.Reservations, 1)
    got := doc.Reservations[0]
    assert.Equal(t, res, got)
    assert.Equal(t, model.StatusPending, got.Status)
    assert.Len(t, got.Cart, 1)
    assert.Equal(t, t0.Add(15*time.Minute), got.ExpiresAt)
    assert.Equal(t, got.CreatedAt.Add(DefaultHoldTTL), got.ExpiresAt)
    assert.Equal(t, model.TentPending, doc.Tents[0].State)

    patch, err = ConfirmPaid(doc, 1, "r-1")
    require.NoError(t, err)
    doc = doc.Apply(patch)
    assert.Equal(t, model.TentOccupied, doc.Tents[0].State)
    assert.Equal(t, model.StatusPaid, doc.Reservations[0].Status)
}

func TestReservePrependsNewest(t *testing.T) {
    doc := seedDoc()
    doc.Tents = append(doc.Tents, model.Tent{ID: 3, State: model.TentAvailable})

    p, _, err := Reserve(doc, ReserveInput{TentID: 1}, t0, "first", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)
    p, _, err = Reserve(doc, ReserveInput{TentID: 3}, t0.Add(time.Minute), "second", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)

    require.Len(t, doc.Reservations, 2)
    assert.Equal(t, "second", doc.Reservations[0].ID)
    assert.Equal(t, "first", doc.Reservations[1].ID)
}

func TestReserveRejectsUnavailableTent(t *testing.T) {
    doc := seedDoc()

    cases := []struct {
        name string
        id   int
        want error
    }{
        {name: "occupied", id: 2, want: ErrTentUnavailable},
        {name: "unknown", id: 99, want: ErrTentNotFound},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            patch, _, err := Reserve(doc, ReserveInput{TentID: tc.id}, t0, "r", 0)
            require.Error(t, err)
            assert.True(t, errors.Is(err, tc.want))
            assert.True(t, IsValidation(err))
            assert.True(t, patch.IsEmpty())
        })
    }
}

func TestReserveDropsEmptyCartLines(t *testing.T) {
    cart := append(aguaCart(), model.CartLine{Key: "extra:toalla", Name: "Toalla", Price: 2, Qty: 0})
    _, res, err := Reserve(seedDoc(), ReserveInput{TentID: 1, Cart: cart}, t0, "r", 0)
    require.NoError(t, err)
    assert.Len(t, res.Cart, 1)
    assert.Equal(t, 5.0, CartTotal(res.Cart))
}

func TestReleaseDefaults(t *testing.T) {
    doc := seedDoc()
    p, _, err := Reserve(doc, ReserveInput{TentID: 1}, t0, "r-1", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)

    p, err = Release(doc, 1, "r-1", "", "")
    require.NoError(t, err)
    doc = doc.Apply(p)
    assert.Equal(t, model.TentAvailable, doc.Tents[0].State)
    assert.Equal(t, model.StatusExpired, doc.Reservations[0].Status)
}

func TestReleaseCancelAndBlock(t *testing.T) {
    doc := seedDoc()
    p, _, err := Reserve(doc, ReserveInput{TentID: 1}, t0, "r-1", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)

    p, err = Release(doc, 1, "r-1", model.TentBlocked, model.StatusCancelled)
    require.NoError(t, err)
    doc = doc.Apply(p)
    assert.Equal(t, model.TentBlocked, doc.Tents[0].State)
    assert.Equal(t, model.StatusCancelled, doc.Reservations[0].Status)
}

func TestTerminalReservationsCannotTransition(t *testing.T) {
    doc := seedDoc()
    p, _, err := Reserve(doc, ReserveInput{TentID: 1}, t0, "r-1", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)
    p, err = ConfirmPaid(doc, 1, "r-1")
    require.NoError(t, err)
    doc = doc.Apply(p)

    _, err = Release(doc, 1, "r-1", "", "")
    assert.True(t, errors.Is(err, ErrReservationClosed))
    _, err = ConfirmPaid(doc, 1, "r-1")
    assert.True(t, errors.Is(err, ErrReservationClosed))
}

func TestReleaseRejectsBadTargets(t *testing.T) {
    doc := seedDoc()
    p, _, err := Reserve(doc, ReserveInput{TentID: 1}, t0, "r-1", 0)
    require.NoError(t, err)
    doc = doc.Apply(p)

    _, err = Release(doc, 1, "r-1", model.TentPending, "")
    assert.True(t, errors.Is(err, ErrInvalidTransition))
    _, err = Release(doc, 1, "r-1", "", model.StatusPending)
    assert.True(t, errors.Is(err, ErrInvalidTransition))
    _, err = Release(doc, 2, "r-1", "", "")
    assert.True(t, errors.Is(err, ErrTentMismatch))
    _, err = Release(doc, 1, "nope", "", "")
    assert.True(t, errors.Is(err, ErrReservationNotFound))
}

func TestValidateCustomer(t *testing.T) {
    c, err := ValidateCustomer(model.Customer{Name: "  Ana ", Phone: "+58 (412) 123-4567"})
    require.NoError(t, err)
    assert.Equal(t, "Ana", c.Name)
    assert.Equal(t, "+584121234567", c.Phone)

    _, err = ValidateCustomer(model.Customer{Name: "Ana"})
    assert.True(t, errors.Is(err, ErrIncompleteContact))
    _, err = ValidateCustomer(model.Customer{Phone: "123"})
    assert.True(t, errors.Is(err, ErrIncompleteContact))
}
