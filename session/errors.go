package session

import "fmt"

// Kind enumerates the error taxonomy of spec §7 (a taxonomy, not type
// names — represented here as a Go error value carrying a Kind rather
// than distinct sentinel types).
type Kind int

const (
	SessionNotFound Kind = iota
	SessionBusy
	SessionDuplicate
	InvalidDialogPos
)

// Error is the session manager's error type: a Kind plus, for
// InvalidDialogPos, the session's current dialog position so the caller
// can resync (spec §7, §8).
type Error struct {
	Kind    Kind
	Current int
}

func (e *Error) Error() string {
	switch e.Kind {
	case SessionNotFound:
		return "session: not found"
	case SessionBusy:
		return "session: busy"
	case SessionDuplicate:
		return "session: duplicate"
	case InvalidDialogPos:
		return fmt.Sprintf("session: invalid dialog position (current %d)", e.Current)
	default:
		return "session: error"
	}
}
