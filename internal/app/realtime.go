package app

import (
	"context"

	"github.com/aisleplan/aisle/internal/chat"
	"github.com/aisleplan/aisle/internal/remote"
)

// realtimeAdapter narrows *remote.Realtime to the chat-side interface.
type realtimeAdapter struct {
	rt *remote.Realtime
}

func (a realtimeAdapter) Configured() bool {
	return a.rt.Configured()
}

func (a realtimeAdapter) Join(ctx context.Context, weddingID, userID string) (chat.Channel, error) {
	ch, err := a.rt.Join(ctx, weddingID, userID)
	if err != nil {
		return nil, err
	}
	return ch, nil
}
