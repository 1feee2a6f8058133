package models

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Socket event names. Client-to-server events mirror what the browser
// emits; server pushes reuse the same envelope shape.
const (
	EventRegisterUser = "register_user"
	EventJoinChat     = "join_chat"
	EventLeaveChat    = "leave_chat"
	EventSendMessage  = "send_message"
	EventNewMessage   = "new_message"
	EventTyping       = "typing"
	EventUserTyping   = "user_typing"
	EventChatCreated  = "chat_created"

	EventCallInitiate    = "call_initiate"
	EventCallIncoming    = "call_incoming"
	EventCallAnswer      = "call_answer"
	EventCallAccepted    = "call_accepted"
	EventCallReject      = "call_reject"
	EventCallRejected    = "call_rejected"
	EventCallEnd         = "call_end"
	EventCallEnded       = "call_ended"
	EventCallOffer       = "call_offer"
	EventCallFailed      = "call_failed"
	EventCallBusy        = "call_busy"
	EventCallUnreachable = "call_unreachable"
	EventICECandidate    = "ice_candidate"
)

// Event is the envelope for all websocket traffic, both directions.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

type RegisterUser struct {
	UserID int `json:"userId"`
}

type JoinChat struct {
	ChatID int `json:"chatId"`
}

type Typing struct {
	ChatID   int  `json:"chatId"`
	UserID   int  `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

// UserTyping is the room push derived from a Typing event.
type UserTyping struct {
	UserID   int  `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

type CallInitiate struct {
	From   int                       `json:"from"`
	To     int                       `json:"to"`
	ChatID int                       `json:"chatId"`
	Type   string                    `json:"type"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type CallIncoming struct {
	From   int                       `json:"from"`
	ChatID int                       `json:"chatId"`
	Type   string                    `json:"type"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type CallAnswer struct {
	From   int                       `json:"from"`
	To     int                       `json:"to"`
	ChatID int                       `json:"chatId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// CallAnswerPush is relayed to the caller when the callee accepts.
type CallAnswerPush struct {
	From   int                       `json:"from"`
	ChatID int                       `json:"chatId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// CallSignal covers reject and end, which carry no SDP.
type CallSignal struct {
	From   int `json:"from"`
	To     int `json:"to"`
	ChatID int `json:"chatId"`
}

// CallStatus is the minimal push for accepted/rejected/ended/failed/busy.
type CallStatus struct {
	ChatID int `json:"chatId"`
}

// CallOffer carries a renegotiation offer on an established call.
type CallOffer struct {
	From   int                       `json:"from"`
	To     int                       `json:"to"`
	ChatID int                       `json:"chatId"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type ICECandidate struct {
	From      int                     `json:"from"`
	To        int                     `json:"to"`
	ChatID    int                     `json:"chatId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// ICECandidatePush is the relayed form, addressed by the session.
type ICECandidatePush struct {
	From      int                     `json:"from"`
	ChatID    int                     `json:"chatId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}
