package reservation

import (
    "time"

    "github.com/iliyamo/coral-club-board/internal/model"
)

// Expire finds every pending reservation whose hold ended at or before now,
// marks it expired and frees its tent.  All corrections come back as one
// patch.  ok is false when nothing expired; an already expired reservation
// is never touched again, which keeps overlapping sweeps harmless.
func Expire(doc model.Document, now time.Time) (patch model.Patch, expired []string, ok bool) {
    ids := map[string]bool{}
    tentIDs := map[int]bool{}
    for _, r := range doc.Reservations {
        if r.Expired(now) {
            ids[r.ID] = true
            tentIDs[r.TentID] = true
            expired = append(expired, r.ID)
        }
    }
    if len(expired) == 0 {
        return model.Patch{}, nil, false
    }
    tents := make([]model.Tent, len(doc.Tents))
    for i, t := range doc.Tents {
        // a tent re-held by a newer active reservation stays pending
        if tentIDs[t.ID] && t.State == model.TentPending {
            if _, held := heldByOther(doc, t.ID, ids, now); !held {
                t.State = model.TentAvailable
            }
        }
        tents[i] = t
    }
    reservations := withStatus(doc.Reservations, ids, model.StatusExpired)
    return model.Patch{Tents: &tents, Reservations: &reservations}, expired, true
}

func heldByOther(doc model.Document, tentID int, expiring map[string]bool, now time.Time) (model.Reservation, bool) {
    for _, r := range doc.Reservations {
        if r.TentID == tentID && !expiring[r.ID] && r.Active(now) {
            return r, true
        }
    }
    return model.Reservation{}, false
}
