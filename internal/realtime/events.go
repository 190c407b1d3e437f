// Package realtime runs the authenticated chat rooms served over WebSocket.
//
// A connection opens with a handshake frame carrying the bearer token. Once
// the SessionAuthenticator accepts it, the connection is registered with the
// RoomBroker and exchanges JSON frames of the form {"event", "id", "data"}.
package realtime

import (
	"encoding/json"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// Client events.
const (
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
)

// Server events.
const (
	EventConnected      = "connected"
	EventConnectError   = "connect_error"
	EventAck            = "ack"
	EventNewMessage     = "newMessage"
	EventError          = "error"
	EventSessionExpired = "session_expired"
)

// HandshakePayload is the first frame a client sends.
type HandshakePayload struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

type clientFrame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type serverFrame struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type joinRoomData struct {
	Room string `json:"room"`
}

type sendMessageData struct {
	Text string `json:"text"`
	Room string `json:"room"`
}

type typingData struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

type typingEvent struct {
	User     string `json:"user"`
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

type connectedEvent struct {
	ConnectionID string          `json:"connectionId"`
	User         domain.Identity `json:"user"`
}

func encode(f serverFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		// Only values built in this package are encoded.
		panic("realtime: encode frame: " + err.Error())
	}
	return b
}
