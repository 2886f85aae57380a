package chat

import (
	"sort"
	"time"
)

// Kind classifies a chat message.
type Kind string

const (
	KindText         Kind = "text"
	KindSystemUpdate Kind = "system-update"
	KindPhoto        Kind = "photo"
	KindEmoji        Kind = "emoji"
)

// Message is one chat message scoped to a wedding. Reactions map an emoji
// to the ordered set of user ids who reacted; an emoji with no reactors is
// removed from the map entirely, never left as an empty list. A deleted
// message keeps its row with is_deleted=true and content scrubbed to "".
type Message struct {
	ID           string              `json:"id"`
	WeddingID    string              `json:"wedding_id"`
	AuthorID     string              `json:"author_id"`
	AuthorName   string              `json:"author_name"`
	AuthorAvatar string              `json:"author_avatar,omitempty"`
	Content      string              `json:"content"`
	Kind         Kind                `json:"kind"`
	ReplyTo      string              `json:"reply_to,omitempty"`
	Reactions    map[string][]string `json:"reactions"`
	ImageURL     string              `json:"image_url,omitempty"`
	IsDeleted    bool                `json:"is_deleted"`
	CreatedAt    time.Time           `json:"created_at"`
}

// toggleReaction flips userID's membership in the emoji's reactor set.
// Adding then removing restores the prior state exactly, including the
// absence of the emoji key.
func (m *Message) toggleReaction(emoji, userID string) {
	if m.Reactions == nil {
		m.Reactions = map[string][]string{}
	}
	users := m.Reactions[emoji]
	for i, u := range users {
		if u == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = users
			}
			return
		}
	}
	m.Reactions[emoji] = append(users, userID)
}

// clone returns a copy whose reactions map is independent of the original.
// Snapshots handed outside the service mutex must not share the map with
// the live record, or a marshal can race a concurrent toggle.
func (m Message) clone() Message {
	if m.Reactions != nil {
		reactions := make(map[string][]string, len(m.Reactions))
		for emoji, users := range m.Reactions {
			reactions[emoji] = append([]string(nil), users...)
		}
		m.Reactions = reactions
	}
	return m
}

// Merge combines the locally-persisted and remotely-fetched message sets.
// Records are deduplicated by id with the remote copy winning (whole-record
// last-writer-wins), then ordered by creation time so out-of-order network
// arrival cannot scramble the conversation.
func Merge(local, remote []Message) []Message {
	byID := make(map[string]Message, len(local)+len(remote))
	for _, m := range local {
		byID[m.ID] = m
	}
	for _, m := range remote {
		byID[m.ID] = m
	}

	merged := make([]Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
