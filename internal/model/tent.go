package model

// TentState is the availability of a single tent on the map.
type TentState string

const (
    TentAvailable TentState = "available"
    TentPending   TentState = "pending" // held by a pending reservation
    TentOccupied  TentState = "occupied"
    TentBlocked   TentState = "blocked"
)

// Valid reports whether s is one of the known states.
func (s TentState) Valid() bool {
    switch s {
    case TentAvailable, TentPending, TentOccupied, TentBlocked:
        return true
    }
    return false
}

// Tent is a spot on the map.  X and Y are normalized to [0,1] relative to
// the background image.
type Tent struct {
    ID    int       `json:"id"`
    X     float64   `json:"x"`
    Y     float64   `json:"y"`
    State TentState `json:"state"`
}
