package service

import (
    "context"
    "encoding/json"

    "github.com/cockroachdb/errors"

    "github.com/iliyamo/coral-club-board/internal/model"
    "github.com/iliyamo/coral-club-board/internal/reservation"
)

// Seed makes sure a usable document exists.  An absent document is written
// with defaults, a generated grid and revision 1.  A document without tents
// gets a fresh grid through a regular merge.  seeded reports whether
// anything was written.
func (w *MergeWriter) Seed(ctx context.Context, stateKey, revKey, pinHash string) (seeded bool, err error) {
    doc, found, err := w.Load(ctx, stateKey)
    if err != nil {
        return false, err
    }
    if !found {
        doc = model.DefaultDocument(pinHash)
        doc.Tents = reservation.GenerateGrid(doc.Layout.Count)
        doc.Rev = 1
        doc.Logs = model.AppendLog(nil, model.LogEntry{TS: w.now().UTC(), Type: "system", Message: "Seed inicial"})
        raw, err := json.Marshal(doc)
        if err != nil {
            return false, errors.Wrap(err, "encode seed")
        }
        if err := w.kv.Set(ctx, stateKey, raw); err != nil {
            return false, err
        }
        if err := w.kv.Set(ctx, revKey, []byte("1")); err != nil {
            return false, err
        }
        w.log.Info("board seeded", "state_key", stateKey, "tents", len(doc.Tents))
        return true, nil
    }

    var patch model.Patch
    if len(doc.Tents) == 0 {
        tents := reservation.GenerateGrid(doc.Layout.Count)
        patch.Tents = &tents
    }
    if doc.Security.PINHash == "" && pinHash != "" {
        patch.Security = &model.SecurityPatch{PINHash: &pinHash}
    }
    if patch.IsEmpty() {
        return false, nil
    }
    if _, _, err := w.MergeState(ctx, MergeRequest{StateKey: stateKey, RevKey: revKey, Patch: patch, Note: "Completar estado"}); err != nil {
        return false, err
    }
    return true, nil
}
