package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the sync core.
const (
	KindOnline          = "net.online"            // connectivity restored
	KindStatusChanged   = "sync.status_changed"   // idle/syncing/error transition
	KindEnqueued        = "queue.enqueued"        // mutation persisted to the outbox
	KindDrained         = "queue.drained"         // full drain completed clean
	KindEntryDiscarded  = "queue.entry_discarded" // entry dropped as permanently failed
	KindCollectionSync  = "pull.collection_synced"
	KindMessageUpserted = "chat.message_upserted"
	KindTyping          = "chat.typing"
	KindPresenceChanged = "chat.presence_changed"
)
