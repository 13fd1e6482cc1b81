package ws

import "encoding/json"

// Client-to-server event names.
const (
	EventAnnounce           = "announce"
	EventGetUserList        = "getUserList"
	EventJoinPublicChat     = "joinPublicChat"
	EventJoinPrivateChat    = "joinPrivateChat"
	EventPublicMessage      = "publicMessage"
	EventPrivateMessage     = "privateMessage"
	EventUpdateOnlineStatus = "updateOnlineStatus"
)

// Server-to-client event names. EventPrivateMessage is shared between
// directions.
const (
	EventOnlineUsers             = "onlineUsers"
	EventPreviousMessages        = "previousMessages"
	EventPreviousPrivateMessages = "previousPrivateMessages"
	EventMessage                 = "message"
	EventNewPrivateMessage       = "newPrivateMessage"
	EventUserList                = "userList"
	EventError                   = "error"
)

// Event is the inbound wire envelope: a type tag plus an event-specific
// JSON object in Data.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type announcePayload struct {
	UserID string `json:"userId"`
}

type joinPrivatePayload struct {
	OtherUserID string `json:"otherUserId"`
}

type publicMessagePayload struct {
	Text   string `json:"text"`
	UserID string `json:"userId"`
}

type privateMessagePayload struct {
	Text       string `json:"text"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// outEvent is the outbound wire envelope.
type outEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type privateHistoryPayload struct {
	Messages    any    `json:"messages"`
	OtherUserID string `json:"otherUserId"`
	ChatRoomID  string `json:"chatRoomId"`
}

type privateNoticePayload struct {
	From       string `json:"from"`
	FromID     string `json:"fromId"`
	Message    string `json:"message"`
	ChatRoomID string `json:"chatRoomId"`
}
