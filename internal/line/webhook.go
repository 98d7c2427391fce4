package line

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventTypeMessage = "message"
	MessageTypeText  = "text"

	SourceTypeUser  = "user"
	SourceTypeGroup = "group"
	SourceTypeRoom  = "room"
)

// ErrMalformedSource is returned for sources missing the ids their type needs.
var ErrMalformedSource = errors.New("line: malformed event source")

type WebhookPayload struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken,omitempty"`
	Timestamp  int64    `json:"timestamp,omitempty"`
	Source     Source   `json:"source"`
	Message    *Message `json:"message,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type Message struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseWebhook decodes a verified webhook body.
func ParseWebhook(body []byte) (WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookPayload{}, fmt.Errorf("line: decode webhook: %w", err)
	}
	return p, nil
}

// IsText reports whether e is a text message event.
func (e Event) IsText() bool {
	return e.Type == EventTypeMessage && e.Message != nil && e.Message.Type == MessageTypeText
}

// ContextID is the group id for group sources and the room id for room
// sources. Rooms are treated as groups everywhere downstream.
func (s Source) ContextID() string {
	switch s.Type {
	case SourceTypeGroup:
		if s.GroupID != "" {
			return s.GroupID
		}
		return s.RoomID
	case SourceTypeRoom:
		if s.RoomID != "" {
			return s.RoomID
		}
		return s.GroupID
	default:
		return ""
	}
}

// IsGroupContext reports whether the event came from a group or room.
func (s Source) IsGroupContext() bool {
	return s.Type == SourceTypeGroup || s.Type == SourceTypeRoom
}
