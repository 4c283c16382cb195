package model

import "time"

// ReservationStatus tracks a reservation through its lifecycle.  Only
// pending may transition; every other status is terminal.
type ReservationStatus string

const (
    StatusPending   ReservationStatus = "pending"
    StatusPaid      ReservationStatus = "paid"
    StatusExpired   ReservationStatus = "expired"
    StatusCancelled ReservationStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReservationStatus) IsTerminal() bool { return s != StatusPending }

// Reservation is a customer's hold on one tent plus the extras in their cart.
//
// Fields:
//  ID        – random unique identifier.
//  TentID    – tent being held.
//  Status    – pending, paid, expired or cancelled.
//  CreatedAt – submission time.
//  ExpiresAt – end of the hold (CreatedAt + hold TTL).
//  Customer  – contact details captured from the form.
//  Cart      – extras captured at submission.
type Reservation struct {
    ID        string            `json:"id"`
    TentID    int               `json:"tentId"`
    Status    ReservationStatus `json:"status"`
    CreatedAt time.Time         `json:"createdAt"`
    ExpiresAt time.Time         `json:"expiresAt"`
    Customer  Customer          `json:"customer"`
    Cart      []CartLine        `json:"cart"`
}

// Active reports whether the reservation still holds its tent at now.
func (r Reservation) Active(now time.Time) bool {
    return r.Status == StatusPending && r.ExpiresAt.After(now)
}

// Expired reports whether a pending hold has reached its deadline.
func (r Reservation) Expired(now time.Time) bool {
    return r.Status == StatusPending && !r.ExpiresAt.After(now)
}

type Customer struct {
    Name  string `json:"name"`
    Phone string `json:"phone"`
    Email string `json:"email"`
}

// CartLine is one extra item.  Key is "extra:<item id>".
type CartLine struct {
    Key   string  `json:"key"`
    Name  string  `json:"name"`
    Price float64 `json:"price"`
    Qty   int     `json:"qty"`
}
