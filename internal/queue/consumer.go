package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    "github.com/cockroachdb/errors"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/coral-club-board/internal/repository"
)

// Archive stores consumed events.  *repository.EventRepo satisfies it.
type Archive interface {
    Insert(ctx context.Context, rec *repository.EventRecord) error
}

// Consumer reads ReservationQueue, appends each event to
// <LogDir>/reservations.log and, when Archive is set, inserts it there.
type Consumer struct {
    URL     string
    LogDir  string
    Archive Archive
    Log     *slog.Logger
}

// Run dials the broker and consumes until ctx is cancelled.  Connection
// failures are retried with exponential backoff capped at 30s; a message
// that cannot be handled is rejected without requeue so it cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
    log := c.Log
    if log == nil {
        log = slog.Default()
    }
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warn("reservation consumer: dial failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("reservation consumer: loop ended, reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *slog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return errors.Wrap(err, "channel open")
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("reservation consumer: set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(ReservationQueue, true, false, false, false, nil); err != nil {
        return errors.Wrap(err, "queue declare")
    }
    msgs, err := ch.ConsumeWithContext(ctx, ReservationQueue, "", false, false, false, false, nil)
    if err != nil {
        return errors.Wrap(err, "queue consume")
    }

    for d := range msgs {
        if err := c.Handle(ctx, d.Body); err != nil {
            log.Warn("reservation consumer: handle message failed", "err", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// Handle processes one message body.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return errors.Wrap(err, "unmarshal")
    }
    if ev.Type == "" || ev.ReservationID == "" {
        return errors.New("event without type or reservation id")
    }
    if err := c.appendLine(ev); err != nil {
        return err
    }
    if c.Archive == nil {
        return nil
    }
    at, err := time.Parse(time.RFC3339, ev.At)
    if err != nil {
        at = time.Now().UTC()
    }
    return c.Archive.Insert(ctx, &repository.EventRecord{
        Type:          ev.Type,
        ReservationID: ev.ReservationID,
        TentID:        ev.TentID,
        Status:        ev.Status,
        CustomerName:  ev.CustomerName,
        TotalAmount:   ev.Total,
        OccurredAt:    at,
    })
}

func (c *Consumer) appendLine(ev ReservationEvent) error {
    dir := c.LogDir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return errors.Wrap(err, "mkdir logs")
    }
    f, err := os.OpenFile(filepath.Join(dir, "reservations.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return errors.Wrap(err, "open log file")
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] %s | reservation_id=%s | tent=%d | status=%s | customer=%q | total=%.2f | rev=%d\n",
        ev.At, ev.Type, ev.ReservationID, ev.TentID, ev.Status, ev.CustomerName, ev.Total, ev.Revision)
    if _, err := f.WriteString(line); err != nil {
        return errors.Wrap(err, "write log")
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
