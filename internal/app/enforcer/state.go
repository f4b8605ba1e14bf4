// Package enforcer provides the coordinator that skips blocked tracks.
package enforcer

// State represents the skip state of the coordinator.
type State int

const (
	StateIdle        State = iota // No skip outstanding
	StateSkipPending              // Skip issued for the ledger track
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSkipPending:
		return "skip_pending"
	default:
		return "unknown"
	}
}
