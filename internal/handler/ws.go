package handler

import (
    "context"
    "encoding/json"
    "log/slog"
    "net/http"
    "sync"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/coral-club-board/internal/model"
)

// RevisionHub pushes {"rev": n} to every connected websocket after each
// merge.  Clients treat the push as a hint to poll right away; polling
// stays the source of truth.
type RevisionHub struct {
    upgrader websocket.Upgrader
    log      *slog.Logger

    mu    sync.Mutex
    conns map[*websocket.Conn]struct{}
}

func NewRevisionHub(log *slog.Logger) *RevisionHub {
    if log == nil {
        log = slog.Default()
    }
    return &RevisionHub{
        upgrader: websocket.Upgrader{
            // the board page is served from its own origin
            CheckOrigin: func(*http.Request) bool { return true },
        },
        log:   log,
        conns: make(map[*websocket.Conn]struct{}),
    }
}

// Serve handles GET /v1/board/ws.  It blocks until the client goes away.
func (h *RevisionHub) Serve(c echo.Context) error {
    conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // Upgrade already wrote the error response.
        return nil
    }
    h.mu.Lock()
    h.conns[conn] = struct{}{}
    h.mu.Unlock()

    for {
        if _, _, err := conn.ReadMessage(); err != nil {
            break
        }
    }

    h.mu.Lock()
    delete(h.conns, conn)
    h.mu.Unlock()
    _ = conn.Close()
    return nil
}

// OnMerged implements service.Listener.
func (h *RevisionHub) OnMerged(_ context.Context, _, _ model.Document, rev int64) {
    h.Broadcast(rev)
}

// Broadcast sends rev to every client.  Writes happen under the lock so a
// connection never sees two concurrent writers; slow or dead clients are
// dropped.
func (h *RevisionHub) Broadcast(rev int64) {
    msg, _ := json.Marshal(map[string]int64{"rev": rev})

    h.mu.Lock()
    defer h.mu.Unlock()
    for conn := range h.conns {
        _ = conn.SetWriteDeadline(time.Now().Add(time.Second))
        if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
            h.log.Debug("dropping websocket client", "remote", conn.RemoteAddr().String(), "err", err)
            delete(h.conns, conn)
            _ = conn.Close()
        }
    }
}

// Clients returns the number of connected websockets.
func (h *RevisionHub) Clients() int {
    h.mu.Lock()
    defer h.mu.Unlock()
    return len(h.conns)
}
