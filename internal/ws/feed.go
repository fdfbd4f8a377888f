// Package ws maintains the live-message feed: a single WebSocket connection
// per application session over which the server pushes message events.
//
// The wire protocol is a small envelope {"o": opcode, "e": event, "d": data}.
// The client identifies itself with opcode 2 immediately after connecting;
// the server dispatches events with opcode 0. Envelopes with any other
// opcode, and events this client does not recognise, are logged and ignored
// so that protocol additions never crash an older client. There is no
// reconnect or backoff: when the connection drops the feed is done, and it
// is up to the caller to dial a new one.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tutorlink/pkg/config"
)

// Envelope opcodes.
const (
	opDispatch = 0
	opIdentify = 2
)

// envelope is the frame wrapper for every message in either direction.
type envelope struct {
	Op    int             `json:"o"`
	Event string          `json:"e,omitempty"`
	Data  json.RawMessage `json:"d,omitempty"`
}

// identifyData is the payload the client sends on open to authenticate the
// connection.
type identifyData struct {
	Properties identifyProperties `json:"properties"`
	Token      string             `json:"token"`
}

type identifyProperties struct {
	Device string `json:"device"`
	OS     string `json:"os"`
}

// Feed is one live connection to the message feed.
type Feed struct {
	conn    *websocket.Conn
	handler EventHandler

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the feed, sends the identify payload with the given
// access token, and starts delivering events to handler from a dedicated
// read goroutine. Cancelling ctx aborts the dial but does not affect an
// established feed; use Close for that.
func Dial(ctx context.Context, cfg *config.FeedConfig, token string, handler EventHandler) (*Feed, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to message feed: %w", err)
	}

	identify, err := json.Marshal(identifyData{
		Properties: identifyProperties{Device: cfg.Device, OS: cfg.OS},
		Token:      token,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to encode identify payload: %w", err)
	}
	if err := conn.WriteJSON(envelope{Op: opIdentify, Data: identify}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to identify to message feed: %w", err)
	}

	f := &Feed{
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}
	go f.readLoop()

	log.Info().Str("url", cfg.URL).Msg("Connected to message feed")
	return f, nil
}

// readLoop decodes envelopes until the connection fails or is closed.
func (f *Feed) readLoop() {
	defer close(f.done)

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Message feed closed unexpectedly")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("Dropping undecodable feed frame")
			continue
		}

		if env.Op != opDispatch {
			log.Debug().Int("opcode", env.Op).Msg("Ignoring non-dispatch envelope")
			continue
		}
		f.dispatch(&env)
	}
}

// dispatch routes one opcode-0 envelope to the handler.
func (f *Feed) dispatch(env *envelope) {
	switch env.Event {
	case EventMessage:
		var event MessageEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			log.Warn().Err(err).Msg("Dropping malformed MESSAGE event")
			return
		}
		f.handler.OnMessage(&event)
	case EventMessageSent:
		f.handler.OnMessageSent()
	default:
		// Forward compatibility: new server event kinds must not crash
		// the client.
		log.Debug().Str("event", env.Event).Msg("Ignoring unrecognised feed event")
	}
}

// Done is closed once the read loop has exited, whether by Close or by a
// connection failure.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Close shuts the connection down. Safe to call more than once.
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = f.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		err = f.conn.Close()
	})
	return err
}
