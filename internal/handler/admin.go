package handler

import (
    "context"
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/cockroachdb/errors"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/coral-club-board/internal/config"
    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/repository"
    "github.com/iliyamo/coral-club-board/internal/reservation"
    "github.com/iliyamo/coral-club-board/internal/utils"
)

// EventLister reads archived reservation events.
type EventLister interface {
    ListByReservation(ctx context.Context, reservationID string) ([]repository.EventRecord, error)
}

// AdminHandler serves the staff panel.  Staff sign in with the board PIN
// and every other route requires the resulting token.  Events is nil when
// no archive database is configured.
type AdminHandler struct {
    Board  *BoardHandler
    Auth   config.AuthConfig
    Events EventLister
}

func NewAdminHandler(b *BoardHandler, auth config.AuthConfig) *AdminHandler {
    if b == nil {
        panic("nil board handler passed to NewAdminHandler")
    }
    return &AdminHandler{Board: b, Auth: auth}
}

// ----- DTOs -----

type pinReq struct {
    PIN string `json:"pin"`
}

type gridReq struct {
    Count int `json:"count"`
}

type positionReq struct {
    X float64 `json:"x"`
    Y float64 `json:"y"`
}

type tentStateReq struct {
    State model.TentState `json:"state"`
}

type releaseReq struct {
    ToState model.TentState         `json:"toState"`
    Status  model.ReservationStatus `json:"status"`
}

// Login handles POST /v1/admin/login.
func (h *AdminHandler) Login(c echo.Context) error {
    var body pinReq
    if err := c.Bind(&body); err != nil || strings.TrimSpace(body.PIN) == "" {
        return badRequest(c, "pin is required")
    }
    doc, _, err := h.Board.Writer.Load(c.Request().Context(), h.Board.StateKey)
    if err != nil {
        return fail(c, err)
    }
    if !utils.VerifyPIN(doc.Security.PINHash, body.PIN) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "invalid pin"})
    }
    tok, err := utils.NewAccessToken(h.Auth.JWTSecret, "staff", utils.RoleAdmin, h.Auth.AccessTTLMin)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, tok)
}

// UpdateBrand handles PUT /v1/admin/brand.  Only the fields sent change.
func (h *AdminHandler) UpdateBrand(c echo.Context) error {
    var body model.BrandPatch
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.merge(c, "Editar marca", model.Patch{Brand: &body})
}

// UpdateBackground handles PUT /v1/admin/background.
func (h *AdminHandler) UpdateBackground(c echo.Context) error {
    var body model.BackgroundPatch
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.merge(c, "Cambiar fondo", model.Patch{Background: &body})
}

// UpdatePayments handles PUT /v1/admin/payments.
func (h *AdminHandler) UpdatePayments(c echo.Context) error {
    var body model.PaymentsPatch
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if body.USDToVES != nil && *body.USDToVES < 0 {
        return badRequest(c, "usdToVES must not be negative")
    }
    return h.merge(c, "Editar pagos", model.Patch{Payments: &body})
}

// ReplaceCategories handles PUT /v1/admin/categories.  The menu is replaced
// as a whole.
func (h *AdminHandler) ReplaceCategories(c echo.Context) error {
    var body []model.Category
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if body == nil {
        body = []model.Category{}
    }
    return h.merge(c, "Editar menú", model.Patch{Categories: &body})
}

// RegenerateGrid handles POST /v1/admin/grid.
func (h *AdminHandler) RegenerateGrid(c echo.Context) error {
    var body gridReq
    if err := c.Bind(&body); err != nil || body.Count < 0 {
        return badRequest(c, "invalid count")
    }
    return h.commit(c, fmt.Sprintf("Regenerar %d carpas", body.Count), func(doc model.Document) (model.Patch, error) {
        return reservation.RegenerateGrid(doc, body.Count, h.Board.Now())
    })
}

// MoveTent handles PUT /v1/admin/tents/:id/position.
func (h *AdminHandler) MoveTent(c echo.Context) error {
    id, err := tentID(c)
    if err != nil {
        return badRequest(c, "invalid tent id")
    }
    var body positionReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.commit(c, fmt.Sprintf("Mover carpa #%d", id), func(doc model.Document) (model.Patch, error) {
        return reservation.MoveTent(doc, id, body.X, body.Y)
    })
}

// SetTentState handles PUT /v1/admin/tents/:id/state.
func (h *AdminHandler) SetTentState(c echo.Context) error {
    id, err := tentID(c)
    if err != nil {
        return badRequest(c, "invalid tent id")
    }
    var body tentStateReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.commit(c, fmt.Sprintf("Carpa #%d: %s", id, body.State), func(doc model.Document) (model.Patch, error) {
        return reservation.SetTentState(doc, id, body.State, h.Board.Now())
    })
}

// ConfirmReservation handles POST /v1/admin/reservations/:id/confirm.
func (h *AdminHandler) ConfirmReservation(c echo.Context) error {
    resID := c.Param("id")
    return h.commit(c, "Pago confirmado "+resID, func(doc model.Document) (model.Patch, error) {
        return reservation.ConfirmPaid(doc, tentOf(doc, resID), resID)
    })
}

// ReleaseReservation handles POST /v1/admin/reservations/:id/release.  An
// empty body frees the tent and expires the reservation.
func (h *AdminHandler) ReleaseReservation(c echo.Context) error {
    resID := c.Param("id")
    var body releaseReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    return h.commit(c, "Liberar reserva "+resID, func(doc model.Document) (model.Patch, error) {
        return reservation.Release(doc, tentOf(doc, resID), resID, body.ToState, body.Status)
    })
}

// ChangePIN handles PUT /v1/admin/pin.  Only the bcrypt hash is stored.
func (h *AdminHandler) ChangePIN(c echo.Context) error {
    var body pinReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    pin := strings.TrimSpace(body.PIN)
    if len(pin) < 4 {
        return badRequest(c, "pin must have at least 4 characters")
    }
    hash, err := utils.HashPIN(pin, h.Auth.BcryptCost)
    if err != nil {
        return fail(c, err)
    }
    return h.merge(c, "Cambiar PIN", model.Patch{Security: &model.SecurityPatch{PINHash: &hash}})
}

// ReservationEvents handles GET /v1/admin/reservations/:id/events.
func (h *AdminHandler) ReservationEvents(c echo.Context) error {
    if h.Events == nil {
        return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "event archive disabled"})
    }
    events, err := h.Events.ListByReservation(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    if events == nil {
        events = []repository.EventRecord{}
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "events": events})
}

func (h *AdminHandler) merge(c echo.Context, note string, patch model.Patch) error {
    return h.commit(c, note, func(model.Document) (model.Patch, error) { return patch, nil })
}

func (h *AdminHandler) commit(c echo.Context, note string, build func(model.Document) (model.Patch, error)) error {
    rev, doc, err := h.Board.commit(c.Request().Context(), note, build)
    if err != nil {
        return fail(c, err)
    }
    return respond(c, rev, doc)
}

func tentID(c echo.Context) (int, error) {
    id, err := strconv.Atoi(c.Param("id"))
    if err != nil || id <= 0 {
        return 0, errors.Newf("invalid tent id %q", c.Param("id"))
    }
    return id, nil
}

// tentOf returns the tent a reservation points at, or 0 when the
// reservation is unknown so the lifecycle reports it as not found.
func tentOf(doc model.Document, resID string) int {
    if i := doc.FindReservation(resID); i >= 0 {
        return doc.Reservations[i].TentID
    }
    return 0
}
