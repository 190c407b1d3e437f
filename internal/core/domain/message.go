package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultRoom      = "general"
	MaxMessageLength = 4000
	MaxRoomLength    = 64
)

// Message is a chat line persisted before it is broadcast.
type Message struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	AuthorSubjectID string    `json:"author"`
	Room            string    `json:"room"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewMessage validates text and room and stamps the message with now.
// An empty room means DefaultRoom.
func NewMessage(author, text, room string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: message text is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return Message{}, fmt.Errorf("%w: message text exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	room, err := NormalizeRoom(room)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Text:            text,
		AuthorSubjectID: author,
		Room:            room,
		Timestamp:       now,
	}, nil
}

// NormalizeRoom trims a room name, defaulting to DefaultRoom.
func NormalizeRoom(room string) (string, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return DefaultRoom, nil
	}
	if utf8.RuneCountInString(room) > MaxRoomLength {
		return "", fmt.Errorf("%w: room name exceeds %d characters", ErrValidation, MaxRoomLength)
	}
	return room, nil
}
