package reservation

import (
    "math"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/iliyamo/coral-club-board/internal/model"
)

// DefaultTentCount is used when the layout does not specify a count.
const DefaultTentCount = 20

const (
    gridPadX      = 0.10
    gridPadTop    = 0.16
    gridPadBottom = 0.10
    minCoord      = 0.02
    maxCoord      = 0.98
)

// GenerateGrid lays count tents out row by row over the usable map area.
// All tents start available and are numbered from 1.
func GenerateGrid(count int) []model.Tent {
    if count <= 0 {
        count = DefaultTentCount
    }
    cols := int(math.Ceil(math.Sqrt(float64(count))))
    rows := int(math.Ceil(float64(count) / float64(cols)))
    usableW := 1 - gridPadX*2
    usableH := 1 - gridPadTop - gridPadBottom

    tents := make([]model.Tent, 0, count)
    for i := 0; i < count; i++ {
        r, c := i/cols, i%cols
        x := gridPadX + ((float64(c)+0.5)/float64(cols))*usableW
        y := gridPadTop + ((float64(r)+0.5)/float64(rows))*usableH
        tents = append(tents, model.Tent{ID: i + 1, X: round4(x), Y: round4(y), State: model.TentAvailable})
    }
    return tents
}

// RegenerateGrid replaces every tent with a fresh grid of count tents.  It
// refuses while any hold is active, since the new tents would orphan it.
func RegenerateGrid(doc model.Document, count int, now time.Time) (model.Patch, error) {
    for _, r := range doc.Reservations {
        if r.Active(now) {
            return model.Patch{}, errors.Wrapf(ErrActiveHolds, "reservation %s holds tent #%d", r.ID, r.TentID)
        }
    }
    if count <= 0 {
        count = doc.Layout.Count
    }
    if count <= 0 {
        count = DefaultTentCount
    }
    tents := GenerateGrid(count)
    return model.Patch{Tents: &tents, Layout: &model.LayoutPatch{Count: &count}}, nil
}

// MoveTent repositions one tent, clamping it inside the map.
func MoveTent(doc model.Document, id int, x, y float64) (model.Patch, error) {
    idx := doc.FindTent(id)
    if idx < 0 {
        return model.Patch{}, errors.Wrapf(ErrTentNotFound, "tent #%d", id)
    }
    tents := append([]model.Tent{}, doc.Tents...)
    tents[idx].X = round4(clamp(x))
    tents[idx].Y = round4(clamp(y))
    return model.Patch{Tents: &tents}, nil
}

// SetTentState lets staff block, unblock or free a tent by hand.  Holds are
// owned by reservations, so pending is not a valid target and a tent with
// an active hold must be released through its reservation instead.
func SetTentState(doc model.Document, id int, state model.TentState, now time.Time) (model.Patch, error) {
    if !state.Valid() || state == model.TentPending {
        return model.Patch{}, errors.Wrapf(ErrInvalidTransition, "tent state %q", state)
    }
    if doc.FindTent(id) < 0 {
        return model.Patch{}, errors.Wrapf(ErrTentNotFound, "tent #%d", id)
    }
    if r, held := doc.ActiveHold(id, now); held {
        return model.Patch{}, errors.Wrapf(ErrActiveHolds, "reservation %s holds tent #%d", r.ID, id)
    }
    tents := withTentState(doc.Tents, id, state)
    return model.Patch{Tents: &tents}, nil
}

func clamp(v float64) float64 {
    if math.IsNaN(v) {
        return minCoord
    }
    return math.Min(maxCoord, math.Max(minCoord, v))
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
