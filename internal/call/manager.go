// Package call drives the offer/answer/ICE exchange between two
// connected users. It owns the session table and the single busy slot
// per user; the transport is reached only through the Relay interface,
// so the package stays decoupled from the websocket layer. Signaling
// payloads are transient and never persisted.
package call

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Programmist999/kyst/internal/models"
)

// Relay addresses a user's live connections. The delivered count is the
// number of connections that accepted the payload; zero means the user
// is unreachable right now.
type Relay interface {
	SendToUser(userID int, event string, data any) int
}

// DefaultRingTimeout bounds how long a session may stay unanswered
// before it fails. The browser client enforced this; owning it on the
// server survives a caller that never follows up.
const DefaultRingTimeout = 45 * time.Second

// Manager owns every live call session. The check-and-set of the busy
// slot and all state transitions happen under one mutex, so two
// simultaneous initiates can never both be admitted for the same user.
type Manager struct {
	relay Relay

	// RingTimeout moves an unanswered session to Failed. Covers both
	// pre-connected states, so it also bounds a caller stuck in
	// Calling. Set before serving traffic.
	RingTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[int]string
}

func NewManager(relay Relay) *Manager {
	return &Manager{
		relay:       relay,
		RingTimeout: DefaultRingTimeout,
		sessions:    make(map[string]*Session),
		byUser:      make(map[int]string),
	}
}

// lookup resolves the session a user event addresses. Callers hold m.mu.
func (m *Manager) lookup(userID, chatID int) *Session {
	id, ok := m.byUser[userID]
	if !ok {
		return nil
	}
	s := m.sessions[id]
	if s == nil || s.ChatID != chatID {
		return nil
	}
	return s
}

// terminate moves a session to a terminal state and synchronously
// releases both busy slots so either party can start a new call
// immediately. Callers hold m.mu.
func (m *Manager) terminate(s *Session, to State) {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
	}
	if err := s.transition(to); err != nil {
		// Session is being torn down regardless; force the state.
		s.State = to
	}
	delete(m.sessions, s.ID)
	if m.byUser[s.Caller] == s.ID {
		delete(m.byUser, s.Caller)
	}
	if m.byUser[s.Callee] == s.ID {
		delete(m.byUser, s.Callee)
	}
	s.pending = nil
	log.Printf("call %s: %d <-> %d %s", s.ID, s.Caller, s.Callee, s.State)
}

// Initiate admits a new session and relays call_incoming to the callee.
// Rejected with ErrBusy while either party has a non-terminal session,
// and with ErrUnreachable when the callee has no live connection.
func (m *Manager) Initiate(p models.CallInitiate) error {
	if p.Type != KindVideo {
		p.Type = KindVoice
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.byUser[p.From]; busy {
		return ErrBusy
	}
	if _, busy := m.byUser[p.To]; busy {
		return ErrBusy
	}

	s := &Session{
		ID:     uuid.NewString(),
		Caller: p.From,
		Callee: p.To,
		ChatID: p.ChatID,
		Kind:   p.Type,
		State:  StateIdle,
	}
	if err := s.transition(StateCalling); err != nil {
		return err
	}

	delivered := m.relay.SendToUser(p.To, models.EventCallIncoming, models.CallIncoming{
		From:   p.From,
		ChatID: p.ChatID,
		Type:   p.Type,
		Offer:  p.Offer,
	})
	if delivered == 0 {
		// Never admitted; no slot to release.
		return ErrUnreachable
	}

	if err := s.transition(StateRinging); err != nil {
		return err
	}
	m.sessions[s.ID] = s
	m.byUser[s.Caller] = s.ID
	m.byUser[s.Callee] = s.ID
	s.ringTimer = time.AfterFunc(m.RingTimeout, func() { m.expire(s.ID) })

	log.Printf("call %s: %d -> %d ringing (%s, chat %d)", s.ID, s.Caller, s.Callee, s.Kind, s.ChatID)
	return nil
}

// Answer connects a ringing session: the answer goes back to the caller
// and every candidate buffered before the remote descriptions existed is
// flushed in arrival order.
func (m *Manager) Answer(p models.CallAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(p.From, p.ChatID)
	if s == nil || p.From != s.Callee {
		return ErrNoSession
	}
	if err := s.transition(StateConnected); err != nil {
		return err
	}
	if s.ringTimer != nil {
		s.ringTimer.Stop()
	}

	m.relay.SendToUser(s.Caller, models.EventCallAnswer, models.CallAnswerPush{
		From:   s.Callee,
		ChatID: s.ChatID,
		Answer: p.Answer,
	})
	m.relay.SendToUser(s.Caller, models.EventCallAccepted, models.CallStatus{ChatID: s.ChatID})

	for _, bc := range s.pending {
		m.relay.SendToUser(bc.to, models.EventICECandidate, bc.push)
	}
	s.pending = nil

	log.Printf("call %s: connected", s.ID)
	return nil
}

// Reject declines a ringing session from the callee side.
func (m *Manager) Reject(p models.CallSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(p.From, p.ChatID)
	if s == nil || p.From != s.Callee {
		return ErrNoSession
	}
	if !canTransition(s.State, StateRejected) {
		return ErrBadTransition
	}
	m.relay.SendToUser(s.Caller, models.EventCallRejected, models.CallStatus{ChatID: s.ChatID})
	m.terminate(s, StateRejected)
	return nil
}

// End terminates a session from either side and notifies the peer.
// Ending with no matching session (already terminal) is a no-op.
func (m *Manager) End(p models.CallSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(p.From, p.ChatID)
	if s == nil {
		return nil
	}
	peer := s.peerOf(p.From)
	m.relay.SendToUser(peer, models.EventCallEnded, models.CallStatus{ChatID: s.ChatID})
	m.terminate(s, StateEnded)
	return nil
}

// AddCandidate relays an ICE candidate to the peer, or buffers it while
// the session is still pre-connected so the peer can apply it after its
// remote description is set. Buffered candidates keep arrival order.
func (m *Manager) AddCandidate(p models.ICECandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(p.From, p.ChatID)
	if s == nil {
		return ErrNoSession
	}
	to := s.peerOf(p.From)
	push := models.ICECandidatePush{From: p.From, ChatID: s.ChatID, Candidate: p.Candidate}

	if s.State == StateConnected {
		m.relay.SendToUser(to, models.EventICECandidate, push)
		return nil
	}
	s.pending = append(s.pending, bufferedCandidate{to: to, push: push})
	return nil
}

// Renegotiate relays a new offer on an established call. Only the
// connected case is supported, mirroring the narrow have-local-offer
// branch the browser client handles.
func (m *Manager) Renegotiate(p models.CallOffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(p.From, p.ChatID)
	if s == nil || s.State != StateConnected {
		return ErrNoSession
	}
	m.relay.SendToUser(s.peerOf(p.From), models.EventCallOffer, models.CallOffer{
		From:   p.From,
		ChatID: s.ChatID,
		Offer:  p.Offer,
	})
	return nil
}

// HandleDisconnect fails the session of a user whose last connection
// dropped. The remaining peer is notified if reachable and both busy
// slots are released.
func (m *Manager) HandleDisconnect(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUser[userID]
	if !ok {
		return
	}
	s := m.sessions[id]
	if s == nil {
		return
	}
	m.relay.SendToUser(s.peerOf(userID), models.EventCallFailed, models.CallStatus{ChatID: s.ChatID})
	m.terminate(s, StateFailed)
}

// expire fires when a session rings past the timeout.
func (m *Manager) expire(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[sessionID]
	if s == nil || s.State.Terminal() || s.State == StateConnected {
		return
	}
	m.relay.SendToUser(s.Caller, models.EventCallFailed, models.CallStatus{ChatID: s.ChatID})
	m.relay.SendToUser(s.Callee, models.EventCallFailed, models.CallStatus{ChatID: s.ChatID})
	m.terminate(s, StateFailed)
}

// SessionOf returns a copy of the user's live session state, if any.
func (m *Manager) SessionOf(userID int) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUser[userID]
	if !ok {
		return Session{}, false
	}
	s := m.sessions[id]
	if s == nil {
		return Session{}, false
	}
	out := *s
	out.pending = nil
	out.ringTimer = nil
	return out, true
}
