package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageState is the delivery state of a message. The server only ever
// reports sent, delivered or read; sending and failed exist purely on the
// client for messages that have not been confirmed yet.
type MessageState string

const (
	// MessageSending marks a locally created message awaiting server
	// confirmation. Never seen on the wire.
	MessageSending MessageState = "sending"
	// MessageFailed marks a local message whose send request failed.
	// Never seen on the wire.
	MessageFailed MessageState = "failed"

	MessageSent      MessageState = "s"
	MessageDelivered MessageState = "d"
	MessageRead      MessageState = "r"
)

// Local reports whether the state is a client-only pseudo-state.
func (s MessageState) Local() bool {
	return s == MessageSending || s == MessageFailed
}

// timestampLayouts covers the formats the API emits: RFC 3339 with an offset
// and the zone-less ISO-8601 form.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// Message is a single chat message within a conversation thread.
//
// Timestamp carries the raw ISO-8601 wire string; SentAt parses it lazily on
// first access and caches the result.
type Message struct {
	ID        uuid.UUID    `json:"id"`
	SenderID  uuid.UUID    `json:"sender_id"`
	Body      string       `json:"message"`
	Timestamp string       `json:"timestamp"`
	State     MessageState `json:"state"`

	sentAt time.Time
}

// SentAt returns the parsed send time. Unparseable timestamps yield the zero
// time, which sorts such messages first instead of failing the render.
func (m *Message) SentAt() time.Time {
	if !m.sentAt.IsZero() {
		return m.sentAt
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			m.sentAt = t
			break
		}
	}
	return m.sentAt
}

// ThreadState is the moderation state of a conversation thread.
type ThreadState string

// Thread state wire tags.
const (
	ThreadRequested ThreadState = "r"
	ThreadBlocked   ThreadState = "b"
	ThreadAllowed   ThreadState = "a"
)

// Recipient is the counterpart-user summary attached to a thread.
type Recipient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// MessageThread is a bounded conversation between two users: the counterpart
// summary, a moderation state and the ordered message history.
type MessageThread struct {
	ID           uuid.UUID   `json:"id"`
	Recipient    Recipient   `json:"recipient"`
	State        ThreadState `json:"state"`
	Messages     []*Message  `json:"messages"`
	MessageCount int         `json:"message_count"`
}
