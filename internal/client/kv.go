// Package client is the board's sync client: a cached copy of the shared
// document kept fresh by polling, optimistic merges that fall back to the
// local copy when the server is unreachable, and the expiry sweeper.
package client

import (
    "bytes"
    "context"
    "encoding/json"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/service"
)

// ErrRemoteUnavailable marks failures to reach the store: transport errors,
// 5xx answers, unreadable bodies and ok=false envelopes.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// ErrRejected marks 4xx answers.  The server was reached and refused the
// request, so retrying it or applying it locally would be wrong.
var ErrRejected = errors.New("request rejected by server")

// HTTPStore talks to the /kv endpoints of a board server.  It satisfies
// repository.KV so server-side code can be pointed at a remote store too.
type HTTPStore struct {
    base string
    hc   *http.Client
}

// NewHTTPStore returns a store for the server at baseURL.  A nil hc gets a
// client with a short timeout; polling must never hang a tick.
func NewHTTPStore(baseURL string, hc *http.Client) *HTTPStore {
    if hc == nil {
        hc = &http.Client{Timeout: 5 * time.Second}
    }
    return &HTTPStore{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

type envelope struct {
    OK    bool            `json:"ok"`
    Value json.RawMessage `json:"value"`
    State json.RawMessage `json:"state"`
    Rev   int64           `json:"rev"`
    Error string          `json:"error"`
}

// Get returns the raw JSON value under key, or nil when absent.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
    env, err := s.do(ctx, http.MethodGet, "/kv/get?key="+url.QueryEscape(key), nil)
    if err != nil {
        return nil, err
    }
    if len(env.Value) == 0 || string(env.Value) == "null" {
        return nil, nil
    }
    return env.Value, nil
}

// Set stores value under key.  value must be valid JSON.
func (s *HTTPStore) Set(ctx context.Context, key string, value []byte) error {
    _, err := s.do(ctx, http.MethodPost, "/kv/set", map[string]any{"key": key, "value": json.RawMessage(value)})
    return err
}

// Incr bumps the counter under key and returns its new value.
func (s *HTTPStore) Incr(ctx context.Context, key string) (int64, error) {
    env, err := s.do(ctx, http.MethodPost, "/kv/incr", map[string]string{"key": key})
    if err != nil {
        return 0, err
    }
    var n int64
    if err := json.Unmarshal(env.Value, &n); err != nil {
        return 0, errors.Mark(errors.Wrap(err, "decode incr value"), ErrRemoteUnavailable)
    }
    return n, nil
}

// Merge sends a patch to /kv/merge and returns the merged document and the
// new revision.
func (s *HTTPStore) Merge(ctx context.Context, req service.MergeRequest) (model.Document, int64, error) {
    env, err := s.do(ctx, http.MethodPost, "/kv/merge", req)
    if err != nil {
        return model.Document{}, 0, err
    }
    var doc model.Document
    if err := json.Unmarshal(env.State, &doc); err != nil {
        return model.Document{}, 0, errors.Mark(errors.Wrap(err, "decode merged state"), ErrRemoteUnavailable)
    }
    return doc, env.Rev, nil
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body any) (envelope, error) {
    var rd io.Reader
    if body != nil {
        raw, err := json.Marshal(body)
        if err != nil {
            return envelope{}, errors.Wrap(err, "encode request")
        }
        rd = bytes.NewReader(raw)
    }
    req, err := http.NewRequestWithContext(ctx, method, s.base+path, rd)
    if err != nil {
        return envelope{}, errors.Wrap(err, "build request")
    }
    if body != nil {
        req.Header.Set("Content-Type", "application/json")
    }
    req.Header.Set("Cache-Control", "no-store")

    resp, err := s.hc.Do(req)
    if err != nil {
        return envelope{}, errors.Mark(errors.Wrapf(err, "%s %s", method, path), ErrRemoteUnavailable)
    }
    defer func() { _ = resp.Body.Close() }()

    var env envelope
    decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env)
    if resp.StatusCode/100 != 2 {
        msg := env.Error
        if msg == "" {
            msg = resp.Status
        }
        err := errors.Newf("%s %s: %d %s", method, path, resp.StatusCode, msg)
        if resp.StatusCode/100 == 4 {
            return envelope{}, errors.Mark(err, ErrRejected)
        }
        return envelope{}, errors.Mark(err, ErrRemoteUnavailable)
    }
    if decodeErr != nil {
        return envelope{}, errors.Mark(errors.Wrapf(decodeErr, "decode %s", path), ErrRemoteUnavailable)
    }
    if !env.OK {
        return envelope{}, errors.Mark(errors.Newf("%s %s: %s", method, path, env.Error), ErrRemoteUnavailable)
    }
    return env, nil
}
