package ws

import (
	"github.com/google/uuid"

	"tutorlink/internal/models"
)

// Server event names carried in the envelope's "e" field.
const (
	// EventMessage announces a new message from a counterpart.
	EventMessage = "MESSAGE"
	// EventMessageSent acknowledges a message this client sent.
	EventMessageSent = "MESSAGE_SENT"
)

// Sender identifies the originating user of a pushed message.
type Sender struct {
	ID uuid.UUID `json:"id"`
}

// MessageEvent is the payload of a MESSAGE event.
type MessageEvent struct {
	ThreadID  uuid.UUID           `json:"thread_id"`
	ID        uuid.UUID           `json:"id"`
	From      Sender              `json:"from"`
	Body      string              `json:"message"`
	Timestamp string              `json:"timestamp"`
	State     models.MessageState `json:"state"`
}

// Message converts the event into the domain message it announces.
func (e *MessageEvent) Message() *models.Message {
	return &models.Message{
		ID:        e.ID,
		SenderID:  e.From.ID,
		Body:      e.Body,
		Timestamp: e.Timestamp,
		State:     e.State,
	}
}

// EventHandler receives decoded feed events. Implementations are invoked
// from the feed's read goroutine and must hand off into their own
// serialization point before touching shared state.
//
// The handler is a typed construction-time dependency of the feed; nothing
// discovers it at runtime.
type EventHandler interface {
	OnMessage(event *MessageEvent)
	OnMessageSent()
}
