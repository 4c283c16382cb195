// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationQueue is the durable queue carrying reservation lifecycle events.
const ReservationQueue = "board.reservations"

// Event types published on ReservationQueue.
const (
    EventCreated   = "reservation.created"
    EventPaid      = "reservation.paid"
    EventExpired   = "reservation.expired"
    EventCancelled = "reservation.cancelled"
)

// ReservationEvent is published whenever a merge creates a reservation or
// moves one to a new status.  It carries enough for consumers to log or
// archive the transition without reading the board document.
type ReservationEvent struct {
    Type          string  `json:"type"`
    ReservationID string  `json:"reservation_id"`
    TentID        int     `json:"tent_id"`
    Status        string  `json:"status"`
    CustomerName  string  `json:"customer_name"`
    Total         float64 `json:"total"`
    Revision      int64   `json:"revision"`
    At            string  `json:"at"`
}
