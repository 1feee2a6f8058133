// Package messaging owns the path a message takes from a sender to a
// chat: policy check, per-recipient encryption fanout, persistence, and
// the realtime publish. Stages run sequentially on the request
// goroutine; a message is never announced before its row exists.
package messaging

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"github.com/Programmist999/kyst/internal/crypto"
	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store"
	"github.com/Programmist999/kyst/internal/ws"
)

// ErrNotParticipant rejects senders and readers that are not members of
// the chat they address.
var ErrNotParticipant = errors.New("user is not a chat participant")

// Publisher pushes an event to every live connection in a chat room.
// *ws.Hub satisfies it.
type Publisher interface {
	Publish(chatID int, event string, data any, exclude *ws.Client) int
}

type Pipeline struct {
	store store.Store
	pub   Publisher
}

func NewPipeline(st store.Store, pub Publisher) *Pipeline {
	return &Pipeline{store: st, pub: pub}
}

// SendRequest is one inbound message before the pipeline has touched it.
type SendRequest struct {
	ChatID        int    `json:"chat_id"`
	UserID        int    `json:"user_id"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	FileURL       string `json:"file_url,omitempty"`
	ReplyTo       *int   `json:"reply_to,omitempty"`
	ForwardedFrom *int   `json:"forwarded_from,omitempty"`
}

// EncryptForChat produces an independently encrypted copy of the body
// for every participant plus the sender, keyed by decimal user id. A
// recipient whose key is missing, or whose copy exceeds the RSA payload
// limit, gets the plaintext as their entry so the message stays
// readable for them.
func (p *Pipeline) EncryptForChat(chatID, senderID int, plaintext string) (models.CipherMap, error) {
	ids, err := p.store.GetParticipantIDs(chatID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(ids)+1)
	cm := make(models.CipherMap, len(ids)+1)
	for _, id := range append(ids, senderID) {
		if seen[id] {
			continue
		}
		seen[id] = true

		entry := plaintext
		u, err := p.store.GetUserByID(id)
		switch {
		case err != nil || u.PublicKey == "":
			log.Printf("messaging: no public key for user %d in chat %d, storing plaintext entry", id, chatID)
		default:
			ct, err := crypto.Encrypt(plaintext, u.PublicKey)
			if err != nil {
				log.Printf("messaging: encrypt for user %d in chat %d: %v", id, chatID, err)
			} else {
				entry = ct
			}
		}
		cm[strconv.Itoa(id)] = entry
	}
	return cm, nil
}

// DecryptForUser resolves the readable body of a stored message for one
// reader: their own ciphertext entry, failing that the sender's, failing
// that the raw content. A value that does not decrypt is returned as
// stored, which keeps legacy plaintext rows readable.
func (p *Pipeline) DecryptForUser(m *models.Message, readerID int) string {
	if !m.Encrypted {
		return m.Content
	}
	reader, err := p.store.GetUserByID(readerID)
	if err != nil {
		return m.Content
	}
	return decryptWith(m, readerID, reader.PrivateKey)
}

func decryptWith(m *models.Message, readerID int, privatePEM string) string {
	if !m.Encrypted {
		return m.Content
	}
	cm, ok := m.CipherMap()
	if !ok {
		return m.Content
	}

	entry, ok := cm[strconv.Itoa(readerID)]
	if !ok {
		entry, ok = cm[strconv.Itoa(m.UserID)]
	}
	if !ok {
		return m.Content
	}

	if privatePEM == "" {
		return entry
	}
	plain, err := crypto.Decrypt(entry, privatePEM)
	if err != nil {
		return entry
	}
	return plain
}

// Send runs the full pipeline for one message. The row is persisted with
// the ciphertext map; the room push carries the plaintext, so the
// sender's other devices and every live participant render it without a
// round trip. A persistence failure aborts before anything is published.
func (p *Pipeline) Send(req SendRequest) (*models.Message, error) {
	ok, err := p.store.IsParticipant(req.ChatID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	if req.Type == "" {
		req.Type = models.MessageText
	}

	msg := &models.Message{
		ChatID:        req.ChatID,
		UserID:        req.UserID,
		Content:       req.Content,
		Type:          req.Type,
		FileURL:       req.FileURL,
		ReplyTo:       req.ReplyTo,
		ForwardedFrom: req.ForwardedFrom,
	}

	cm, err := p.EncryptForChat(req.ChatID, req.UserID, req.Content)
	if err != nil {
		log.Printf("messaging: fanout for chat %d failed, storing plaintext: %v", req.ChatID, err)
	} else if raw, err := json.Marshal(cm); err == nil {
		msg.Content = string(raw)
		msg.Encrypted = true
	}

	if err := p.store.SaveMessage(msg); err != nil {
		return nil, err
	}

	out := *msg
	out.Content = req.Content
	if sender, err := p.store.GetUserByID(req.UserID); err == nil {
		out.Username = sender.Username
		out.DisplayName = sender.Name()
		out.Avatar = sender.Avatar
	}

	p.pub.Publish(req.ChatID, models.EventNewMessage, out, nil)
	return &out, nil
}

// Fetch returns a chat's history in creation order, each row decrypted
// for the reader.
func (p *Pipeline) Fetch(chatID, readerID int) ([]models.Message, error) {
	ok, err := p.store.IsParticipant(chatID, readerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	reader, err := p.store.GetUserByID(readerID)
	if err != nil {
		return nil, err
	}

	msgs, err := p.store.GetChatMessages(chatID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Content = decryptWith(&msgs[i], readerID, reader.PrivateKey)
	}
	return msgs, nil
}

// Delete removes a message row. Deleting a row that does not exist
// surfaces store.ErrNotFound.
func (p *Pipeline) Delete(messageID int) error {
	return p.store.DeleteMessage(messageID)
}
