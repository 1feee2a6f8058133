package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Programmist999/kyst/internal/call"
	"github.com/Programmist999/kyst/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers are a few KB;
	// this leaves generous headroom.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection. A consumer that falls this far
	// behind is treated as disconnected.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between one websocket connection and the hub.
// A connection is unbound until a register_user event arrives; unbound
// connections cannot originate or receive call signaling.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// User this connection is bound to; zero while unbound. Written
	// under hub.mu.
	userID int

	mu     sync.Mutex
	closed bool
}

// markClosed closes the send channel exactly once. Returns false if the
// client was already closed.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// trySend queues a payload without blocking. Returns false if the
// client is gone or its buffer is full.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		userID, last := c.hub.Unregister(c)
		c.conn.Close()
		if last && userID != 0 && c.hub.calls != nil {
			c.hub.calls.HandleDisconnect(userID)
		}
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev models.Event) {
	switch ev.Name {
	case models.EventRegisterUser:
		var p models.RegisterUser
		if json.Unmarshal(ev.Data, &p) != nil || p.UserID == 0 {
			return
		}
		c.hub.Register(p.UserID, c)
		log.Printf("ws: user %d registered for signaling", p.UserID)

	case models.EventJoinChat:
		var p models.JoinChat
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		c.hub.Join(p.ChatID, c)

	case models.EventLeaveChat:
		var p models.JoinChat
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		c.hub.Leave(p.ChatID, c)

	case models.EventTyping:
		var p models.Typing
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		c.hub.Publish(p.ChatID, models.EventUserTyping, models.UserTyping{UserID: p.UserID, IsTyping: p.IsTyping}, c)

	case models.EventSendMessage:
		// Plain socket relay, no persistence. Encrypted sends go over
		// HTTP and are published by the message pipeline.
		var p models.Message
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		c.hub.Publish(p.ChatID, models.EventNewMessage, p, nil)

	case models.EventCallInitiate, models.EventCallAnswer, models.EventCallReject,
		models.EventCallEnd, models.EventCallOffer, models.EventICECandidate:
		c.dispatchCall(ev)
	}
}

func (c *Client) dispatchCall(ev models.Event) {
	if c.hub.calls == nil {
		return
	}
	if c.userID == 0 {
		log.Printf("ws: dropping %s from unbound connection", ev.Name)
		return
	}

	var err error
	chatID := 0
	switch ev.Name {
	case models.EventCallInitiate:
		var p models.CallInitiate
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		p.From = c.userID
		chatID = p.ChatID
		err = c.hub.calls.Initiate(p)

	case models.EventCallAnswer:
		var p models.CallAnswer
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		p.From = c.userID
		chatID = p.ChatID
		err = c.hub.calls.Answer(p)

	case models.EventCallReject:
		var p models.CallSignal
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		p.From = c.userID
		chatID = p.ChatID
		err = c.hub.calls.Reject(p)

	case models.EventCallEnd:
		var p models.CallSignal
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		p.From = c.userID
		chatID = p.ChatID
		err = c.hub.calls.End(p)

	case models.EventCallOffer:
		var p models.CallOffer
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		p.From = c.userID
		chatID = p.ChatID
		err = c.hub.calls.Renegotiate(p)

	case models.EventICECandidate:
		var p models.ICECandidate
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		p.From = c.userID
		chatID = p.ChatID
		err = c.hub.calls.AddCandidate(p)
	}

	switch {
	case err == nil:
	case errors.Is(err, call.ErrBusy):
		c.trySend(Envelope(models.EventCallBusy, models.CallStatus{ChatID: chatID}))
	case errors.Is(err, call.ErrUnreachable):
		c.trySend(Envelope(models.EventCallUnreachable, models.CallStatus{ChatID: chatID}))
	default:
		log.Printf("ws: %s from user %d: %v", ev.Name, c.userID, err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an HTTP request to a websocket connection and starts
// its pumps. The connection binds to a user when register_user arrives.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	go client.writePump()
	go client.readPump()
}
