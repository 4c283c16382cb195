package handler

import (
    "context"
    "fmt"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/reservation"
    "github.com/iliyamo/coral-club-board/internal/service"
)

// BoardHandler serves the public board: the current document and new
// reservations.  Every change goes through the MergeWriter under the
// configured keys.
type BoardHandler struct {
    Writer   *service.MergeWriter
    StateKey string
    RevKey   string
    HoldTTL  time.Duration

    Now   func() time.Time
    NewID func() string
}

func NewBoardHandler(w *service.MergeWriter, stateKey, revKey string, holdTTL time.Duration) *BoardHandler {
    if w == nil {
        panic("nil merge writer passed to NewBoardHandler")
    }
    return &BoardHandler{
        Writer:   w,
        StateKey: stateKey,
        RevKey:   revKey,
        HoldTTL:  holdTTL,
        Now:      time.Now,
        NewID:    uuid.NewString,
    }
}

// GetBoard handles GET /v1/board.
func (h *BoardHandler) GetBoard(c echo.Context) error {
    ctx := c.Request().Context()
    doc, found, err := h.Writer.Load(ctx, h.StateKey)
    if err != nil {
        return fail(c, err)
    }
    if !found {
        return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "board not initialised"})
    }
    rev, err := h.Writer.Revision(ctx, h.RevKey)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"state": doc.Public(), "rev": rev})
}

// CreateReservation handles POST /v1/reservations.  The tent is held for
// HoldTTL while staff confirm the payment.
func (h *BoardHandler) CreateReservation(c echo.Context) error {
    var in reservation.ReserveInput
    if err := c.Bind(&in); err != nil {
        return badRequest(c, "invalid request body")
    }
    if in.TentID <= 0 {
        return badRequest(c, "tentId is required")
    }
    customer, err := reservation.ValidateCustomer(in.Customer)
    if err != nil {
        return fail(c, err)
    }
    in.Customer = customer

    var created model.Reservation
    rev, _, err := h.commit(c.Request().Context(), fmt.Sprintf("Reserva carpa #%d", in.TentID), func(doc model.Document) (model.Patch, error) {
        p, res, err := reservation.Reserve(doc, in, h.Now(), h.NewID(), h.HoldTTL)
        created = res
        return p, err
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"reservation": created, "rev": rev})
}

// commit loads the document, builds a patch from it and merges it.  The
// read and the merge are separate store round trips, so two callers racing
// for the same tent both pass validation and the later write wins.
func (h *BoardHandler) commit(ctx context.Context, note string, build func(model.Document) (model.Patch, error)) (int64, model.Document, error) {
    doc, _, err := h.Writer.Load(ctx, h.StateKey)
    if err != nil {
        return 0, model.Document{}, err
    }
    patch, err := build(doc)
    if err != nil {
        return 0, model.Document{}, err
    }
    after, rev, err := h.Writer.MergeState(ctx, service.MergeRequest{
        StateKey: h.StateKey,
        RevKey:   h.RevKey,
        Patch:    patch,
        Note:     note,
    })
    if err != nil {
        return 0, model.Document{}, err
    }
    return rev, after, nil
}

// respond writes the merged public document and its revision.
func respond(c echo.Context, rev int64, doc model.Document) error {
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "state": doc.Public(), "rev": rev})
}
