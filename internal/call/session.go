package call

import (
	"fmt"
	"time"

	"github.com/Programmist999/kyst/internal/models"
)

// Media kinds.
const (
	KindVoice = "voice"
	KindVideo = "video"
)

// bufferedCandidate is an ICE candidate that arrived before the
// receiving side had a remote description to attach it to. Buffered in
// arrival order, flushed on connect, never discarded.
type bufferedCandidate struct {
	to   int
	push models.ICECandidatePush
}

// Session is one call attempt between exactly two users. All fields are
// guarded by the owning Manager's mutex.
type Session struct {
	ID     string
	Caller int
	Callee int
	ChatID int
	Kind   string

	State     State
	EnteredAt time.Time

	pending   []bufferedCandidate
	ringTimer *time.Timer
}

// transition moves the session to a new state or rejects the move.
func (s *Session) transition(to State) error {
	if !canTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, s.State, to)
	}
	s.State = to
	s.EnteredAt = time.Now()
	return nil
}

// peerOf returns the other party, or zero if the user is not part of
// this session.
func (s *Session) peerOf(userID int) int {
	switch userID {
	case s.Caller:
		return s.Callee
	case s.Callee:
		return s.Caller
	}
	return 0
}
