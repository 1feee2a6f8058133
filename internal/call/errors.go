package call

import "errors"

var (
	// ErrBusy rejects an initiate when either party already has a
	// non-terminal session. First session wins; the new caller is
	// refused without disturbing the existing call.
	ErrBusy = errors.New("call: user busy")

	// ErrUnreachable means the callee has no live connection; the
	// caller learns immediately instead of waiting out a ring timeout.
	ErrUnreachable = errors.New("call: callee unreachable")

	// ErrNoSession means the event does not match any live session for
	// that user and chat.
	ErrNoSession = errors.New("call: no matching session")

	// ErrBadTransition reports an event that is invalid in the
	// session's current state.
	ErrBadTransition = errors.New("call: invalid state transition")
)
