package repository

import (
    "context"
    "database/sql"
    "time"
)

// EventRecord is one archived reservation lifecycle event.
type EventRecord struct {
    ID            uint64    `json:"id"`
    Type          string    `json:"type"`          // reservation.created, reservation.paid, ...
    ReservationID string    `json:"reservationId"` // board reservation id (uuid)
    TentID        int       `json:"tentId"`
    Status        string    `json:"status"` // reservation status after the event
    CustomerName  string    `json:"customerName"`
    TotalAmount   float64   `json:"totalAmount"` // cart total in the board currency
    OccurredAt    time.Time `json:"occurredAt"`
}

// EventRepo archives reservation events in MySQL.  The board document never
// deletes reservations, but it is not meant as long-term storage either.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// EnsureSchema creates the archive table when missing.
func (r *EventRepo) EnsureSchema(ctx context.Context) error {
    const ddl = `CREATE TABLE IF NOT EXISTS reservation_events (
        id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        type VARCHAR(64) NOT NULL,
        reservation_id VARCHAR(64) NOT NULL,
        tent_id INT NOT NULL,
        status VARCHAR(16) NOT NULL,
        customer_name VARCHAR(255) NOT NULL DEFAULT '',
        total_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
        occurred_at DATETIME NOT NULL,
        KEY idx_reservation (reservation_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
    _, err := r.db.ExecContext(ctx, ddl)
    return err
}

// Insert appends one event and sets rec.ID.
func (r *EventRepo) Insert(ctx context.Context, rec *EventRecord) error {
    const q = `INSERT INTO reservation_events
        (type, reservation_id, tent_id, status, customer_name, total_amount, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        rec.Type, rec.ReservationID, rec.TentID, rec.Status, rec.CustomerName, rec.TotalAmount,
        rec.OccurredAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    rec.ID = uint64(id)
    return nil
}

// ListByReservation returns the archived history of one reservation, oldest first.
func (r *EventRepo) ListByReservation(ctx context.Context, reservationID string) ([]EventRecord, error) {
    const q = `SELECT id, type, reservation_id, tent_id, status, customer_name, total_amount, occurred_at
               FROM reservation_events WHERE reservation_id = ? ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []EventRecord
    for rows.Next() {
        var e EventRecord
        if err := rows.Scan(&e.ID, &e.Type, &e.ReservationID, &e.TentID, &e.Status, &e.CustomerName, &e.TotalAmount, &e.OccurredAt); err != nil {
            return nil, err
        }
        out = append(out, e)
    }
    return out, rows.Err()
}
