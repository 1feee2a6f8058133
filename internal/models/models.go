package models

import (
	"encoding/json"
	"time"
)

// Chat kinds.
const (
	ChatPrivate = "private"
	ChatGroup   = "group"
	ChatChannel = "channel"
)

// Message types.
const (
	MessageText  = "text"
	MessageFile  = "file"
	MessageVoice = "voice"
)

type User struct {
	ID          int       `json:"id"`
	Email       string    `json:"email,omitempty"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Status      string    `json:"status"`
	Password    string    `json:"-"`
	PublicKey   string    `json:"public_key,omitempty"`
	PrivateKey  string    `json:"-"`
	Encrypted   bool      `json:"encrypted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Name returns the display name, falling back to the username. A missing
// avatar is handled client side by deriving initials from this value.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type Chat struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Type         string `json:"type"`
	AdminID      int    `json:"admin_id"`
	Participants []int  `json:"participants,omitempty"`
}

// CipherMap associates each chat participant with an independently
// encrypted copy of a message body. Keys are decimal user ids; this is
// the JSON object stored in messages.content when messages.encrypted is
// set.
type CipherMap map[string]string

type Message struct {
	ID            int       `json:"id"`
	ChatID        int       `json:"chat_id"`
	UserID        int       `json:"user_id"`
	Username      string    `json:"username,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Content       string    `json:"content"`
	Type          string    `json:"type"`
	FileURL       string    `json:"file_url,omitempty"`
	ReplyTo       *int      `json:"reply_to,omitempty"`
	ForwardedFrom *int      `json:"forwarded_from,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Encrypted     bool      `json:"encrypted"`
}

// CipherMap parses the stored content as a per-recipient ciphertext map.
// Returns false for legacy plaintext rows whose content is not a JSON
// object.
func (m *Message) CipherMap() (CipherMap, bool) {
	var cm CipherMap
	if err := json.Unmarshal([]byte(m.Content), &cm); err != nil {
		return nil, false
	}
	return cm, true
}
