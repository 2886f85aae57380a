package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/config"
)

// Channel event types pushed by the realtime backend.
const (
	EventMessage  = "message"  // a message row was inserted or updated
	EventTyping   = "typing"   // ephemeral typing broadcast from a participant
	EventPresence = "presence" // full snapshot of connected participants
)

// ChannelEvent is one event received on a joined wedding channel.
type ChannelEvent struct {
	Type     string
	Row      json.RawMessage // EventMessage: the full message row
	UserID   string          // EventTyping
	UserName string          // EventTyping
	Users    []string        // EventPresence: complete set, not a diff
}

// frame is the wire format exchanged with the realtime endpoint.
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Realtime dials websocket channels on the remote backend. One channel per
// wedding carries message-row pushes, typing broadcasts and presence
// snapshots.
type Realtime struct {
	url    string
	apiKey string
	logger *zap.Logger
}

// NewRealtime builds a realtime dialer from config.
func NewRealtime(cfg *config.Config, logger *zap.Logger) *Realtime {
	return &Realtime{url: cfg.RealtimeURL, apiKey: cfg.RemoteKey, logger: logger}
}

// Configured reports whether a realtime endpoint is set up.
func (r *Realtime) Configured() bool {
	return r.url != ""
}

// Join connects to the wedding's channel and announces the local
// participant. The returned channel delivers events until Close.
func (r *Realtime) Join(ctx context.Context, weddingID, userID string) (*Channel, error) {
	if !r.Configured() {
		return nil, fmt.Errorf("realtime endpoint not configured")
	}

	header := map[string][]string{"Authorization": {"Bearer " + r.apiKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	topic := "wedding:" + weddingID
	join := frame{
		Topic:   topic,
		Event:   "join",
		Payload: mustMarshal(map[string]string{"user_id": userID}),
	}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join %s: %w", topic, err)
	}

	ch := &Channel{
		conn:   conn,
		topic:  topic,
		events: make(chan ChannelEvent, 64),
		done:   make(chan struct{}),
		logger: r.logger,
	}
	go ch.readLoop()
	return ch, nil
}

// Channel is one joined wedding channel.
type Channel struct {
	conn    *websocket.Conn
	topic   string
	events  chan ChannelEvent
	done    chan struct{}
	closing sync.Once
	writeMu sync.Mutex
	logger  *zap.Logger
}

// Events returns the inbound event stream. The channel is closed on Close
// or when the connection drops.
func (ch *Channel) Events() <-chan ChannelEvent {
	return ch.events
}

// SendTyping broadcasts an ephemeral typing notification. Throttling is the
// caller's responsibility.
func (ch *Channel) SendTyping(userID, userName string) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return ch.conn.WriteJSON(frame{
		Topic:   ch.topic,
		Event:   "typing",
		Payload: mustMarshal(map[string]string{"user_id": userID, "user_name": userName}),
	})
}

// Close tears the channel down. Idempotent.
func (ch *Channel) Close() {
	ch.closing.Do(func() {
		close(ch.done)
		_ = ch.conn.Close()
	})
}

func (ch *Channel) readLoop() {
	defer close(ch.events)
	for {
		var f frame
		if err := ch.conn.ReadJSON(&f); err != nil {
			select {
			case <-ch.done:
				// Deliberate close.
			default:
				ch.logger.Warn("realtime read failed", zap.String("topic", ch.topic), zap.Error(err))
			}
			return
		}
		evt, ok := decodeFrame(f)
		if !ok {
			continue
		}
		select {
		case ch.events <- evt:
		case <-ch.done:
			return
		}
	}
}

func decodeFrame(f frame) (ChannelEvent, bool) {
	switch f.Event {
	case "insert", "update":
		return ChannelEvent{Type: EventMessage, Row: f.Payload}, true
	case "typing":
		var p struct {
			UserID   string `json:"user_id"`
			UserName string `json:"user_name"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return ChannelEvent{}, false
		}
		return ChannelEvent{Type: EventTyping, UserID: p.UserID, UserName: p.UserName}, true
	case "presence_state":
		var p struct {
			Users []string `json:"users"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return ChannelEvent{}, false
		}
		return ChannelEvent{Type: EventPresence, Users: p.Users}, true
	}
	return ChannelEvent{}, false
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
