package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tutorlink/internal/models"
	"tutorlink/internal/session"
	"tutorlink/internal/ws"
)

// ThreadAPI is the slice of the backend client the synchronizer depends on.
type ThreadAPI interface {
	Thread(ctx context.Context, id uuid.UUID) (*models.MessageThread, error)
	SendMessage(ctx context.Context, threadID uuid.UUID, body string) (*models.MessageThread, error)
}

// Synchronizer merges the three message sources of one open conversation —
// the initial REST fetch, optimistic local sends and live push events —
// into a single ordered, duplicate-free view.
//
// All view-state mutation is serialized under one mutex; REST calls run
// outside it so a slow network never blocks an optimistic append. Completions
// that arrive after the open thread has changed are discarded via a
// generation counter, so navigating away turns in-flight requests into
// no-ops.
//
// Synchronizer implements ws.EventHandler: the feed's read goroutine hands
// events off here, and the mutex is the serialization point.
type Synchronizer struct {
	api     ThreadAPI
	session *session.Session

	mu         sync.Mutex
	generation uint64
	threadID   uuid.UUID
	state      models.ThreadState
	recipient  models.Recipient
	messages   []*models.Message
}

// NewSynchronizer creates a synchronizer with no open thread.
func NewSynchronizer(api ThreadAPI, sess *session.Session) *Synchronizer {
	return &Synchronizer{api: api, session: sess}
}

// LoadInitial opens a thread: it fetches the full conversation and replaces
// the view state entirely. Opening a different thread while the fetch is in
// flight discards the stale completion.
func (s *Synchronizer) LoadInitial(ctx context.Context, threadID uuid.UUID) (*models.MessageThread, error) {
	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.threadID = threadID
	s.messages = nil
	s.recipient = models.Recipient{}
	s.state = ""
	s.mu.Unlock()

	thread, err := s.api.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		log.Debug().Str("thread_id", threadID.String()).Msg("Dropping stale thread fetch")
		return thread, nil
	}
	s.replaceLocked(thread)
	return thread, nil
}

// AppendOptimistic synthesizes a message stamped with the current time, the
// session user's id and the sending state, and appends it to the view
// immediately. It performs no I/O and always succeeds.
func (s *Synchronizer) AppendOptimistic(body string) *models.Message {
	msg := &models.Message{
		ID:        uuid.New(),
		SenderID:  s.session.UserID(),
		Body:      body,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		State:     models.MessageSending,
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

// ConfirmSend posts an optimistic message to the server. On success the
// whole view is replaced with the authoritative thread, superseding the
// sending placeholder. On failure the placeholder is marked failed and the
// rest of the view stays intact; the caller decides whether to re-send.
func (s *Synchronizer) ConfirmSend(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	generation := s.generation
	threadID := s.threadID
	s.mu.Unlock()

	thread, err := s.api.SendMessage(ctx, threadID, msg.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		msg.State = models.MessageFailed
		return err
	}
	if s.generation != generation {
		log.Debug().Str("thread_id", threadID.String()).Msg("Dropping stale send confirmation")
		return nil
	}
	s.replaceLocked(thread)
	return nil
}

// OnMessage implements ws.EventHandler. Events for other threads are
// no-ops; matching events are appended to the view.
func (s *Synchronizer) OnMessage(event *ws.MessageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ThreadID != s.threadID {
		log.Debug().
			Str("thread_id", event.ThreadID.String()).
			Msg("Ignoring pushed message for another thread")
		return
	}
	s.messages = append(s.messages, event.Message())
}

// OnMessageSent implements ws.EventHandler. The acknowledgement carries no
// data the view needs; the authoritative copy arrives with the send
// confirmation.
func (s *Synchronizer) OnMessageSent() {}

// Messages returns the rendered view: a copy of the message list
// deduplicated by id and sorted ascending by timestamp, regardless of the
// order the three sources delivered them in. When a server copy and a local
// placeholder share an id, the server copy wins.
func (s *Synchronizer) Messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]*models.Message, 0, len(s.messages))
	index := make(map[uuid.UUID]int, len(s.messages))
	for _, msg := range s.messages {
		at, seen := index[msg.ID]
		if !seen {
			index[msg.ID] = len(merged)
			merged = append(merged, msg)
			continue
		}
		if merged[at].State.Local() && !msg.State.Local() {
			merged[at] = msg
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt().Before(merged[j].SentAt())
	})
	return merged
}

// SentByMe reports whether a message was authored by the session user. This
// is a pure function of the message and the session, not stored state.
func (s *Synchronizer) SentByMe(msg *models.Message) bool {
	return msg.SenderID == s.session.UserID()
}

// ThreadID returns the id of the open thread, or uuid.Nil before the first
// LoadInitial.
func (s *Synchronizer) ThreadID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Recipient returns the counterpart summary of the open thread.
func (s *Synchronizer) Recipient() models.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipient
}

// State returns the moderation state of the open thread.
func (s *Synchronizer) State() models.ThreadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// replaceLocked swaps in the server's authoritative thread. Callers must
// hold the mutex.
func (s *Synchronizer) replaceLocked(thread *models.MessageThread) {
	s.threadID = thread.ID
	s.recipient = thread.Recipient
	s.state = thread.State
	s.messages = append([]*models.Message(nil), thread.Messages...)
}
