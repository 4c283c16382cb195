package reservation

import (
    "strings"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/iliyamo/coral-club-board/internal/model"
)

// DefaultHoldTTL is how long a pending reservation keeps its tent.
const DefaultHoldTTL = 15 * time.Minute

// ReserveInput is what a customer submits.
type ReserveInput struct {
    TentID   int              `json:"tentId"`
    Customer model.Customer   `json:"customer"`
    Cart     []model.CartLine `json:"cart"`
}

// Reserve places a hold on in.TentID.  The tent must exist and be available
// in doc; otherwise no patch is produced.  The returned patch replaces both
// tents and reservations so a poller never sees one without the other.
func Reserve(doc model.Document, in ReserveInput, now time.Time, id string, holdTTL time.Duration) (model.Patch, model.Reservation, error) {
    idx := doc.FindTent(in.TentID)
    if idx < 0 {
        return model.Patch{}, model.Reservation{}, errors.Wrapf(ErrTentNotFound, "tent #%d", in.TentID)
    }
    if doc.Tents[idx].State != model.TentAvailable {
        return model.Patch{}, model.Reservation{}, errors.Wrapf(ErrTentUnavailable, "tent #%d is %s", in.TentID, doc.Tents[idx].State)
    }
    if holdTTL <= 0 {
        holdTTL = DefaultHoldTTL
    }
    cart := make([]model.CartLine, 0, len(in.Cart))
    for _, l := range in.Cart {
        if l.Qty <= 0 {
            continue
        }
        if strings.TrimSpace(l.Key) == "" {
            return model.Patch{}, model.Reservation{}, errors.Wrapf(ErrEmptyCart, "line %q", l.Name)
        }
        cart = append(cart, l)
    }
    now = now.UTC()
    res := model.Reservation{
        ID:        id,
        TentID:    in.TentID,
        Status:    model.StatusPending,
        CreatedAt: now,
        ExpiresAt: now.Add(holdTTL),
        Customer:  in.Customer,
        Cart:      cart,
    }

    tents := withTentState(doc.Tents, in.TentID, model.TentPending)
    reservations := make([]model.Reservation, 0, len(doc.Reservations)+1)
    reservations = append(reservations, res)
    reservations = append(reservations, doc.Reservations...)

    return model.Patch{Tents: &tents, Reservations: &reservations}, res, nil
}

// Release ends a pending hold.  toState defaults to available and newStatus
// to expired.  Manual admin release and automatic expiry both land here.
func Release(doc model.Document, tentID int, resID string, toState model.TentState, newStatus model.ReservationStatus) (model.Patch, error) {
    if toState == "" {
        toState = model.TentAvailable
    }
    if newStatus == "" {
        newStatus = model.StatusExpired
    }
    if toState != model.TentAvailable && toState != model.TentBlocked {
        return model.Patch{}, errors.Wrapf(ErrInvalidTransition, "release to tent state %q", toState)
    }
    if newStatus != model.StatusExpired && newStatus != model.StatusCancelled {
        return model.Patch{}, errors.Wrapf(ErrInvalidTransition, "release to status %q", newStatus)
    }
    return transition(doc, tentID, resID, toState, newStatus)
}

// ConfirmPaid turns a pending hold into an occupied tent.
func ConfirmPaid(doc model.Document, tentID int, resID string) (model.Patch, error) {
    return transition(doc, tentID, resID, model.TentOccupied, model.StatusPaid)
}

func transition(doc model.Document, tentID int, resID string, toState model.TentState, newStatus model.ReservationStatus) (model.Patch, error) {
    ri := doc.FindReservation(resID)
    if ri < 0 {
        return model.Patch{}, errors.Wrapf(ErrReservationNotFound, "reservation %s", resID)
    }
    r := doc.Reservations[ri]
    if r.Status.IsTerminal() {
        return model.Patch{}, errors.Wrapf(ErrReservationClosed, "reservation %s is %s", resID, r.Status)
    }
    if r.TentID != tentID {
        return model.Patch{}, errors.Wrapf(ErrTentMismatch, "reservation %s holds tent #%d, not #%d", resID, r.TentID, tentID)
    }
    if doc.FindTent(tentID) < 0 {
        return model.Patch{}, errors.Wrapf(ErrTentNotFound, "tent #%d", tentID)
    }
    tents := withTentState(doc.Tents, tentID, toState)
    reservations := withStatus(doc.Reservations, map[string]bool{resID: true}, newStatus)
    return model.Patch{Tents: &tents, Reservations: &reservations}, nil
}

// ValidateCustomer checks the contact form and normalizes the phone to a
// leading + followed by digits.
func ValidateCustomer(c model.Customer) (model.Customer, error) {
    c.Name = strings.TrimSpace(c.Name)
    c.Email = strings.TrimSpace(c.Email)
    c.Phone = NormalizePhone(c.Phone)
    if c.Name == "" || len(c.Phone) < 2 {
        return c, ErrIncompleteContact
    }
    return c, nil
}

// NormalizePhone keeps digits and a single leading plus sign.
func NormalizePhone(raw string) string {
    var b strings.Builder
    raw = strings.TrimSpace(raw)
    if strings.HasPrefix(raw, "+") {
        b.WriteByte('+')
    }
    for _, r := range raw {
        if r >= '0' && r <= '9' {
            b.WriteRune(r)
        }
    }
    return b.String()
}

// CartTotal sums price*qty over the cart.
func CartTotal(cart []model.CartLine) float64 {
    total := 0.0
    for _, l := range cart {
        total += l.Price * float64(l.Qty)
    }
    return total
}

func withTentState(tents []model.Tent, id int, state model.TentState) []model.Tent {
    out := make([]model.Tent, len(tents))
    for i, t := range tents {
        if t.ID == id {
            t.State = state
        }
        out[i] = t
    }
    return out
}

func withStatus(rs []model.Reservation, ids map[string]bool, status model.ReservationStatus) []model.Reservation {
    out := make([]model.Reservation, len(rs))
    for i, r := range rs {
        if ids[r.ID] {
            r.Status = status
        }
        out[i] = r
    }
    return out
}
