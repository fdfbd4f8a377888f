package backend

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"tutorlink/internal/models"
)

// messageRequest is the wire body for sending or starting a conversation.
type messageRequest struct {
	To      string `json:"to,omitempty"`
	Message string `json:"message"`
}

// Inbox lists the logged-in user's conversation threads.
func (c *Client) Inbox(ctx context.Context) ([]*models.MessageThread, error) {
	var threads []*models.MessageThread
	if err := c.do(ctx, http.MethodGet, "/thread", nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// Thread fetches a single conversation with its full message history.
func (c *Client) Thread(ctx context.Context, id uuid.UUID) (*models.MessageThread, error) {
	var thread models.MessageThread
	if err := c.do(ctx, http.MethodGet, "/thread/"+id.String(), nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// SendMessage posts a message into an existing thread. The server responds
// with the updated thread, which is the authoritative view including the
// confirmed copy of the message just sent.
func (c *Client) SendMessage(ctx context.Context, threadID uuid.UUID, body string) (*models.MessageThread, error) {
	var thread models.MessageThread
	req := messageRequest{Message: body}
	if err := c.do(ctx, http.MethodPost, "/thread/"+threadID.String(), req, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// StartThread opens a new conversation with another user. The thread starts
// in the requested state until the counterpart approves it.
func (c *Client) StartThread(ctx context.Context, to uuid.UUID, body string) error {
	req := messageRequest{To: to.String(), Message: body}
	return c.do(ctx, http.MethodPost, "/thread", req, nil)
}

// BlockThread blocks a conversation. No further messages are delivered.
func (c *Client) BlockThread(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/thread/"+id.String()+"/block", nil, nil)
}

// ApproveThread accepts a requested conversation, moving it to allowed.
func (c *Client) ApproveThread(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/thread/"+id.String()+"/approve", nil, nil)
}
