package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/status"
	"github.com/aisleplan/aisle/internal/store"
)

// Source fetches the remote message window on load.
type Source interface {
	Configured() bool
	Select(ctx context.Context, table, field, value string, limit int, desc bool) ([]json.RawMessage, error)
}

// Enqueuer hands chat mutations to the durable outbound queue. Chat writes
// ride the same at-least-once queue as every other collection.
type Enqueuer interface {
	Enqueue(ctx context.Context, table, op string, data any)
}

// ErrNotAuthor is returned when someone other than a message's author
// attempts to delete it.
var ErrNotAuthor = fmt.Errorf("only the author may delete a message")

// Service holds the merged, time-ordered message list for one wedding plus
// the ephemeral typing and presence state around it.
type Service struct {
	db       *store.DB
	source   Source
	queue    Enqueuer
	tracker  *status.Tracker
	realtime Realtime
	bus      *bus.Bus
	logger   *zap.Logger
	window   int

	typingTTL      time.Duration
	typingThrottle time.Duration

	mu         sync.Mutex
	weddingID  string
	messages   []Message
	replyingTo *Message
	typing     map[string]*typingEntry
	online     map[string]struct{}
	lastTyping time.Time
	sub        *subscription
}

type typingEntry struct {
	name  string
	timer *time.Timer
}

// NewService creates a chat service. window bounds the remote fetch on Load.
func NewService(db *store.DB, source Source, queue Enqueuer, tracker *status.Tracker, realtime Realtime, b *bus.Bus, logger *zap.Logger, window int) *Service {
	if window <= 0 {
		window = 500
	}
	return &Service{
		db:             db,
		source:         source,
		queue:          queue,
		tracker:        tracker,
		realtime:       realtime,
		bus:            b,
		logger:         logger,
		window:         window,
		typingTTL:      3 * time.Second,
		typingThrottle: 2 * time.Second,
		typing:         make(map[string]*typingEntry),
		online:         make(map[string]struct{}),
	}
}

// Load reads the full local message set for the wedding, fetches a bounded
// window of remote messages when reachable, and installs the merged,
// time-ordered result as the visible state. The local read is the primary
// path; a remote failure degrades to local-only and is just logged.
func (s *Service) Load(ctx context.Context, weddingID string) error {
	coll := s.db.MustCollection(store.Messages)
	local, err := store.Query[Message](ctx, coll, "wedding_id", weddingID)
	if err != nil {
		return fmt.Errorf("load local messages: %w", err)
	}

	var remoteMsgs []Message
	if s.source.Configured() && s.tracker.Online() {
		rows, err := s.source.Select(ctx, store.Messages, "wedding_id", weddingID, s.window, true)
		if err != nil {
			s.logger.Warn("remote message fetch failed, using local only",
				zap.String("wedding_id", weddingID), zap.Error(err))
		} else {
			for _, row := range rows {
				var m Message
				if err := json.Unmarshal(row, &m); err != nil {
					s.logger.Warn("skipping undecodable remote message", zap.Error(err))
					continue
				}
				remoteMsgs = append(remoteMsgs, m)
			}
		}
	}

	merged := Merge(local, remoteMsgs)

	s.mu.Lock()
	s.weddingID = weddingID
	s.messages = merged
	s.mu.Unlock()
	return nil
}

// SendParams describes an outgoing message.
type SendParams struct {
	WeddingID    string
	AuthorID     string
	AuthorName   string
	AuthorAvatar string
	Content      string
	Kind         Kind
	ReplyTo      string
	ImageURL     string
}

// Send constructs and dispatches a message: optimistic in-memory append,
// then durable local write, then outbound enqueue. A whitespace-only
// message with no image is silently dropped. Local persistence failures are
// logged, not surfaced; the optimistic state stays ahead of disk.
func (s *Service) Send(ctx context.Context, p SendParams) *Message {
	content := strings.TrimSpace(p.Content)
	if content == "" && p.ImageURL == "" {
		return nil
	}

	kind := p.Kind
	if kind == "" {
		kind = KindText
	}
	msg := Message{
		ID:           uuid.NewString(),
		WeddingID:    p.WeddingID,
		AuthorID:     p.AuthorID,
		AuthorName:   p.AuthorName,
		AuthorAvatar: p.AuthorAvatar,
		Content:      content,
		Kind:         kind,
		ReplyTo:      p.ReplyTo,
		Reactions:    map[string][]string{},
		ImageURL:     p.ImageURL,
		IsDeleted:    false,
		CreatedAt:    time.Now().UTC(),
	}

	// Optimistic: visible before durable. The list gets its own copy so the
	// marshals below never share a reactions map with the live record.
	s.mu.Lock()
	s.messages = append(s.messages, msg.clone())
	s.replyingTo = nil
	s.mu.Unlock()

	if err := s.db.MustCollection(store.Messages).Put(ctx, msg.ID, msg); err != nil {
		s.logger.Error("failed to persist message locally",
			zap.String("message_id", msg.ID), zap.Error(err))
	}
	s.queue.Enqueue(ctx, store.Messages, store.OpInsert, msg)

	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpserted,
		Timestamp: time.Now(),
		Payload:   map[string]string{"message_id": msg.ID, "wedding_id": msg.WeddingID},
	})
	return &msg
}

// DeleteMessage soft-deletes: the row survives with is_deleted=true and the
// content scrubbed. Only the author may delete.
func (s *Service) DeleteMessage(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	var target *Message
	for i := range s.messages {
		if s.messages[i].ID == id {
			target = &s.messages[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return nil
	}
	if target.AuthorID != userID {
		s.mu.Unlock()
		return ErrNotAuthor
	}
	target.IsDeleted = true
	target.Content = ""
	snapshot := target.clone()
	s.mu.Unlock()

	if err := s.db.MustCollection(store.Messages).Put(ctx, snapshot.ID, snapshot); err != nil {
		s.logger.Error("failed to persist soft delete",
			zap.String("message_id", id), zap.Error(err))
	}
	s.queue.Enqueue(ctx, store.Messages, store.OpUpdate, map[string]any{
		"id":         snapshot.ID,
		"is_deleted": true,
		"content":    "",
	})
	return nil
}

// ToggleReaction flips userID's reaction on a message. Unknown message ids
// are a no-op. Any participant may react.
func (s *Service) ToggleReaction(ctx context.Context, id, emoji, userID string) {
	s.mu.Lock()
	var snapshot *Message
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].toggleReaction(emoji, userID)
			cp := s.messages[i].clone()
			snapshot = &cp
			break
		}
	}
	s.mu.Unlock()
	if snapshot == nil {
		return
	}

	if err := s.db.MustCollection(store.Messages).Put(ctx, snapshot.ID, *snapshot); err != nil {
		s.logger.Error("failed to persist reaction",
			zap.String("message_id", id), zap.Error(err))
	}
	s.queue.Enqueue(ctx, store.Messages, store.OpUpdate, map[string]any{
		"id":        snapshot.ID,
		"reactions": snapshot.Reactions,
	})
}

// Messages returns a copy of the visible message list.
func (s *Service) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// SetReplyingTo records (or clears, with nil) the pending reply target.
func (s *Service) SetReplyingTo(m *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyingTo = m
}

// ReplyingTo returns the pending reply target, or nil.
func (s *Service) ReplyingTo() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyingTo
}
