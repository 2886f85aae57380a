package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/remote"
)

// Channel is one joined realtime channel: inbound events plus the typing
// broadcast primitive. Close must be idempotent.
type Channel interface {
	Events() <-chan remote.ChannelEvent
	SendTyping(userID, userName string) error
	Close()
}

// Realtime dials wedding channels. The production implementation lives in
// internal/remote; tests inject fakes.
type Realtime interface {
	Configured() bool
	Join(ctx context.Context, weddingID, userID string) (Channel, error)
}

// TypingUser is one participant currently typing.
type TypingUser struct {
	ID   string
	Name string
}

type subscription struct {
	channel Channel
	done    chan struct{}
	once    sync.Once
}

// Subscribe joins the wedding's realtime channel and starts consuming
// message pushes, typing broadcasts and presence snapshots. The returned
// teardown is idempotent: it closes the channel, cancels every pending
// typing-expiry timer and resets typing and presence state. With no
// realtime endpoint configured it returns a no-op teardown.
func (s *Service) Subscribe(ctx context.Context, weddingID, userID string) (func(), error) {
	if !s.realtime.Configured() {
		return func() {}, nil
	}

	ch, err := s.realtime.Join(ctx, weddingID, userID)
	if err != nil {
		return nil, err
	}

	sub := &subscription{channel: ch, done: make(chan struct{})}
	s.mu.Lock()
	if prev := s.sub; prev != nil {
		s.mu.Unlock()
		s.teardown(prev)
		s.mu.Lock()
	}
	s.sub = sub
	s.mu.Unlock()

	go s.consume(sub, userID)

	return func() { s.teardown(sub) }, nil
}

// NotifyTyping broadcasts that the local user is typing, throttled to one
// broadcast per window regardless of keystroke rate.
func (s *Service) NotifyTyping(userID, userName string) {
	s.mu.Lock()
	sub := s.sub
	if sub == nil || time.Since(s.lastTyping) < s.typingThrottle {
		s.mu.Unlock()
		return
	}
	s.lastTyping = time.Now()
	s.mu.Unlock()

	if err := sub.channel.SendTyping(userID, userName); err != nil {
		s.logger.Warn("typing broadcast failed", zap.Error(err))
	}
}

// TypingUsers returns everyone currently typing, excluding expired entries.
func (s *Service) TypingUsers() []TypingUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]TypingUser, 0, len(s.typing))
	for id, e := range s.typing {
		users = append(users, TypingUser{ID: id, Name: e.name})
	}
	return users
}

// OnlineUsers returns the latest presence snapshot.
func (s *Service) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.online))
	for id := range s.online {
		users = append(users, id)
	}
	return users
}

func (s *Service) consume(sub *subscription, localUserID string) {
	for {
		select {
		case evt, ok := <-sub.channel.Events():
			if !ok {
				return
			}
			s.handleEvent(evt, localUserID)
		case <-sub.done:
			return
		}
	}
}

func (s *Service) handleEvent(evt remote.ChannelEvent, localUserID string) {
	switch evt.Type {
	case remote.EventMessage:
		var m Message
		if err := json.Unmarshal(evt.Row, &m); err != nil {
			s.logger.Warn("undecodable message push", zap.Error(err))
			return
		}
		s.upsertMessage(m)
	case remote.EventTyping:
		if evt.UserID == localUserID {
			return
		}
		s.markTyping(evt.UserID, evt.UserName)
	case remote.EventPresence:
		s.replacePresence(evt.Users)
	}
}

// upsertMessage folds a pushed insert/update into the visible list,
// deduplicated by id and kept in created_at order.
func (s *Service) upsertMessage(m Message) {
	s.mu.Lock()
	replaced := false
	for i := range s.messages {
		if s.messages[i].ID == m.ID {
			s.messages[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		s.messages = Merge(s.messages, []Message{m})
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpserted,
		Timestamp: time.Now(),
		Payload:   map[string]string{"message_id": m.ID, "wedding_id": m.WeddingID},
	})
}

// markTyping records a typing broadcast with an expiry timer. A fresh
// broadcast from the same author resets the timer; expiry actively removes
// the entry so the typing view only ever shows currently-active typers.
func (s *Service) markTyping(userID, userName string) {
	s.mu.Lock()
	if prev, ok := s.typing[userID]; ok {
		prev.timer.Stop()
	}
	entry := &typingEntry{name: userName}
	entry.timer = time.AfterFunc(s.typingTTL, func() {
		s.mu.Lock()
		if s.typing[userID] == entry {
			delete(s.typing, userID)
		}
		s.mu.Unlock()
	})
	s.typing[userID] = entry
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindTyping,
		Timestamp: time.Now(),
		Payload:   map[string]string{"user_id": userID, "user_name": userName},
	})
}

// replacePresence installs a full presence snapshot. Snapshots are not
// diffed; a missed event just means a stale set until the next one.
func (s *Service) replacePresence(users []string) {
	s.mu.Lock()
	s.online = make(map[string]struct{}, len(users))
	for _, u := range users {
		s.online[u] = struct{}{}
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindPresenceChanged,
		Timestamp: time.Now(),
		Payload:   users,
	})
}

func (s *Service) teardown(sub *subscription) {
	sub.once.Do(func() {
		close(sub.done)
		sub.channel.Close()

		s.mu.Lock()
		for _, e := range s.typing {
			e.timer.Stop()
		}
		s.typing = make(map[string]*typingEntry)
		s.online = make(map[string]struct{})
		if s.sub == sub {
			s.sub = nil
		}
		s.mu.Unlock()
	})
}
