package service

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/coral-club-board/internal/model"
    q "github.com/iliyamo/coral-club-board/internal/queue"
    "github.com/iliyamo/coral-club-board/internal/reservation"
)

// EventPublisher is a Listener that publishes reservation transitions to
// RabbitMQ.  Publishing happens off the request path; failures are logged
// and never affect the merge that triggered them.
type EventPublisher struct {
    url     string
    log     *slog.Logger
    timeout time.Duration
}

// NewEventPublisher returns a publisher for the broker at url.
func NewEventPublisher(url string, log *slog.Logger) *EventPublisher {
    if log == nil {
        log = slog.Default()
    }
    return &EventPublisher{url: url, log: log, timeout: 5 * time.Second}
}

func (p *EventPublisher) OnMerged(_ context.Context, before, after model.Document, rev int64) {
    events := ReservationEvents(before, after, rev, time.Now().UTC())
    if len(events) == 0 {
        return
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
        defer cancel()
        if err := p.Publish(ctx, events...); err != nil {
            p.log.Warn("reservation events not published", "count", len(events), "err", err)
        }
    }()
}

// Publish sends events to the reservation queue over a fresh connection.
// Messages are persistent.
func (p *EventPublisher) Publish(ctx context.Context, events ...q.ReservationEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(q.ReservationQueue, true, false, false, false, nil); err != nil {
        return err
    }

    for _, ev := range events {
        body, err := json.Marshal(ev)
        if err != nil {
            return err
        }
        pub := amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Type:         ev.Type,
            Body:         body,
        }
        if err := ch.PublishWithContext(ctx, "", q.ReservationQueue, false, false, pub); err != nil {
            return err
        }
    }
    return nil
}

// ReservationEvents lists the reservations that are new in after or whose
// status differs from before.
func ReservationEvents(before, after model.Document, rev int64, at time.Time) []q.ReservationEvent {
    prev := make(map[string]model.ReservationStatus, len(before.Reservations))
    for _, r := range before.Reservations {
        prev[r.ID] = r.Status
    }
    var out []q.ReservationEvent
    // after is newest first; walk it backwards so events come out oldest first
    for i := len(after.Reservations) - 1; i >= 0; i-- {
        r := after.Reservations[i]
        old, seen := prev[r.ID]
        var typ string
        switch {
        case !seen:
            typ = q.EventCreated
        case old != r.Status:
            typ = eventType(r.Status)
        }
        if typ == "" {
            continue
        }
        out = append(out, q.ReservationEvent{
            Type:          typ,
            ReservationID: r.ID,
            TentID:        r.TentID,
            Status:        string(r.Status),
            CustomerName:  r.Customer.Name,
            Total:         reservation.CartTotal(r.Cart),
            Revision:      rev,
            At:            at.Format(time.RFC3339),
        })
    }
    return out
}

func eventType(s model.ReservationStatus) string {
    switch s {
    case model.StatusPaid:
        return q.EventPaid
    case model.StatusExpired:
        return q.EventExpired
    case model.StatusCancelled:
        return q.EventCancelled
    }
    return ""
}
