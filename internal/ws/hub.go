package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/Programmist999/kyst/internal/models"
)

// CallRouter is what the hub needs from the call layer. The concrete
// call.Manager satisfies it; main.go wires the two together to keep the
// packages decoupled.
type CallRouter interface {
	Initiate(p models.CallInitiate) error
	Answer(p models.CallAnswer) error
	Reject(p models.CallSignal) error
	End(p models.CallSignal) error
	Renegotiate(p models.CallOffer) error
	AddCandidate(p models.ICECandidate) error
	HandleDisconnect(userID int)
}

// Hub keeps the two registries the realtime core runs on:
//
//   - presence: user id -> live connections for that user (multi-device)
//   - rooms: chat id -> connections currently subscribed to that chat
//
// Registry operations are short map mutations under one RWMutex; anything
// that blocks (crypto, persistence) happens in the caller's goroutine
// before the hub is touched.
type Hub struct {
	mu       sync.RWMutex
	presence map[int]map[*Client]bool
	rooms    map[int]map[*Client]bool

	calls CallRouter
}

func NewHub() *Hub {
	return &Hub{
		presence: make(map[int]map[*Client]bool),
		rooms:    make(map[int]map[*Client]bool),
	}
}

// SetCallRouter attaches the call layer. Must be called before clients
// are served; call events on a hub without a router are dropped.
func (h *Hub) SetCallRouter(r CallRouter) {
	h.calls = r
}

// Envelope wraps a payload in the wire event envelope.
func Envelope(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("ws: marshal %s payload: %v", event, err)
		return nil
	}
	msg, _ := json.Marshal(models.Event{Name: event, Data: raw})
	return msg
}

// Register binds a connection to a user. Idempotent per connection; a
// connection belongs to at most one user.
func (h *Hub) Register(userID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.isClosed() {
		return
	}
	if c.userID != 0 && c.userID != userID {
		delete(h.presence[c.userID], c)
		if len(h.presence[c.userID]) == 0 {
			delete(h.presence, c.userID)
		}
	}
	c.userID = userID
	if h.presence[userID] == nil {
		h.presence[userID] = make(map[*Client]bool)
	}
	h.presence[userID][c] = true
}

// Unregister removes the connection from presence and every room and
// closes its send channel. Returns the user id the connection was bound
// to and whether that user has no remaining live connections; callers use
// that to fail the user's call sessions.
func (h *Hub) Unregister(c *Client) (userID int, lastForUser bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) (userID int, lastForUser bool) {
	if !c.markClosed() {
		return c.userID, false
	}

	userID = c.userID
	if userID != 0 {
		delete(h.presence[userID], c)
		if len(h.presence[userID]) == 0 {
			delete(h.presence, userID)
			lastForUser = true
		}
	}
	for chatID, members := range h.rooms {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	return userID, lastForUser
}

// ConnectionsOf returns the user's live connections. Absence is a normal
// outcome and yields an empty slice.
func (h *Hub) ConnectionsOf(userID int) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.presence[userID]))
	for c := range h.presence[userID] {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) Join(chatID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.isClosed() {
		return
	}
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[*Client]bool)
	}
	h.rooms[chatID][c] = true
}

func (h *Hub) Leave(chatID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members := h.rooms[chatID]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// Publish pushes an event to every connection subscribed to the chat,
// except exclude. Delivery is fire-and-forget per connection: a
// subscriber whose send buffer is full is evicted as if it had
// disconnected, and delivery to the rest proceeds. Returns the number of
// connections that accepted the payload.
func (h *Hub) Publish(chatID int, event string, data any, exclude *Client) int {
	payload := Envelope(event, data)
	if payload == nil {
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[chatID]))
	for c := range h.rooms[chatID] {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	var dead []*Client
	for _, c := range targets {
		if c.trySend(payload) {
			delivered++
		} else {
			dead = append(dead, c)
		}
	}
	h.evict(dead)
	return delivered
}

// SendToUser pushes an event to all of the user's live connections.
// Returns the delivered count; zero means the user is unreachable.
func (h *Hub) SendToUser(userID int, event string, data any) int {
	payload := Envelope(event, data)
	if payload == nil {
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.presence[userID]))
	for c := range h.presence[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	var dead []*Client
	for _, c := range targets {
		if c.trySend(payload) {
			delivered++
		} else {
			dead = append(dead, c)
		}
	}
	h.evict(dead)
	return delivered
}

func (h *Hub) evict(dead []*Client) {
	for _, c := range dead {
		userID, last := h.Unregister(c)
		log.Printf("ws: evicted unresponsive connection (user %d)", userID)
		if last && userID != 0 && h.calls != nil {
			h.calls.HandleDisconnect(userID)
		}
	}
}
