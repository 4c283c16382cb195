package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "strings"

    "github.com/cockroachdb/errors"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/repository"
    "github.com/iliyamo/coral-club-board/internal/service"
)

// KVHandler exposes the raw key-value contract the board clients are built
// on.  Values are JSON documents or integer counters.  The board document
// under StateKey never exposes or accepts the PIN hash here; that goes
// through PUT /v1/admin/pin only.
type KVHandler struct {
    KV       repository.KV
    Writer   *service.MergeWriter
    StateKey string
}

func NewKVHandler(kv repository.KV, w *service.MergeWriter, stateKey string) *KVHandler {
    if kv == nil || w == nil {
        panic("nil dependency passed to NewKVHandler")
    }
    return &KVHandler{KV: kv, Writer: w, StateKey: stateKey}
}

type kvSetReq struct {
    Key   string          `json:"key"`
    Value json.RawMessage `json:"value"`
}

type kvIncrReq struct {
    Key string `json:"key"`
}

// Get handles GET /kv/get?key=.  An absent key answers {ok:true, value:null}.
func (h *KVHandler) Get(c echo.Context) error {
    key := strings.TrimSpace(c.QueryParam("key"))
    if key == "" {
        return badRequest(c, "key is required")
    }
    raw, err := h.KV.Get(c.Request().Context(), key)
    if err != nil {
        return fail(c, err)
    }
    if key == h.StateKey && raw != nil {
        var doc model.Document
        if err := json.Unmarshal(raw, &doc); err != nil {
            return fail(c, errors.Mark(errors.Wrap(err, "decode state"), service.ErrCorruptState))
        }
        return c.JSON(http.StatusOK, echo.Map{"ok": true, "value": doc.Public()})
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "value": rawValue(raw)})
}

// Set handles POST /kv/set.  The value is stored exactly as sent, except
// that a board document keeps the PIN hash already stored.
func (h *KVHandler) Set(c echo.Context) error {
    var body kvSetReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if strings.TrimSpace(body.Key) == "" {
        return badRequest(c, "key is required")
    }
    if len(body.Value) == 0 {
        body.Value = json.RawMessage("null")
    }
    if body.Key == h.StateKey {
        value, err := h.keepSecurity(c.Request().Context(), body.Value)
        if err != nil {
            if errors.Is(err, errNotDocument) {
                return badRequest(c, "value must be a board document")
            }
            return fail(c, err)
        }
        body.Value = value
    }
    if err := h.KV.Set(c.Request().Context(), body.Key, body.Value); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Incr handles POST /kv/incr.  An absent key becomes 1.
func (h *KVHandler) Incr(c echo.Context) error {
    var body kvIncrReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if strings.TrimSpace(body.Key) == "" {
        return badRequest(c, "key is required")
    }
    n, err := h.KV.Incr(c.Request().Context(), body.Key)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "value": n})
}

// Merge handles POST /kv/merge: read the document, merge the patch, write
// it back and bump the revision counter.
func (h *KVHandler) Merge(c echo.Context) error {
    var req service.MergeRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    if strings.TrimSpace(req.StateKey) == "" || strings.TrimSpace(req.RevKey) == "" {
        return badRequest(c, "stateKey and revKey are required")
    }
    req.Patch.Security = nil
    doc, rev, err := h.Writer.MergeState(c.Request().Context(), req)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "state": doc.Public(), "rev": rev})
}

var errNotDocument = errors.New("value is not a board document")

// keepSecurity replaces the security section of an incoming document with
// the stored one.  With nothing stored the section is cleared.
func (h *KVHandler) keepSecurity(ctx context.Context, value json.RawMessage) (json.RawMessage, error) {
    var doc model.Document
    if err := json.Unmarshal(value, &doc); err != nil {
        return nil, errors.Mark(err, errNotDocument)
    }
    doc.Security = model.Security{}
    stored, err := h.KV.Get(ctx, h.StateKey)
    if err != nil {
        return nil, err
    }
    if stored != nil {
        var prev model.Document
        if err := json.Unmarshal(stored, &prev); err == nil {
            doc.Security = prev.Security
        }
    }
    out, err := json.Marshal(doc)
    if err != nil {
        return nil, errors.Wrap(err, "encode state")
    }
    return out, nil
}

// rawValue returns stored bytes as embedded JSON when they parse, and as a
// string otherwise.
func rawValue(raw []byte) any {
    if raw == nil {
        return nil
    }
    if json.Valid(raw) {
        return json.RawMessage(raw)
    }
    return string(raw)
}
