package status

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/aisleplan/aisle/internal/bus"
)

// SyncStatus describes what the outbound queue is doing right now.
type SyncStatus string

const (
	Idle    SyncStatus = "idle"
	Syncing SyncStatus = "syncing"
	Error   SyncStatus = "error"
)

// Probe answers "can we reach the network" at call time. Tests inject
// fakes; production uses DialProbe against the remote host.
type Probe func() bool

// Tracker is the process-wide connectivity and sync state. It is an
// explicitly constructed service: every caller receives it by injection and
// tests can run any number of independent instances.
type Tracker struct {
	mu     sync.RWMutex
	probe  Probe
	status SyncStatus
	bus    *bus.Bus
}

// NewTracker creates a tracker starting in Idle.
func NewTracker(probe Probe, b *bus.Bus) *Tracker {
	return &Tracker{probe: probe, status: Idle, bus: b}
}

// Online reflects the platform's reachability signal at call time; it is
// never cached.
func (t *Tracker) Online() bool {
	if t.probe == nil {
		return false
	}
	return t.probe()
}

// SyncStatus returns the current outbound queue state.
func (t *Tracker) SyncStatus() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetSyncStatus records a queue state transition. Only the outbound queue
// calls this; an Error state clears back to Idle solely through a
// subsequent clean drain.
func (t *Tracker) SetSyncStatus(s SyncStatus) {
	t.mu.Lock()
	if t.status == s {
		t.mu.Unlock()
		return
	}
	from := t.status
	t.status = s
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload:   Change{From: from, To: s},
		})
	}
}

// Change is the payload for sync status change events.
type Change struct {
	From SyncStatus
	To   SyncStatus
}

// DialProbe returns a Probe that checks TCP reachability of the remote
// backend host. An empty or unparsable URL yields an always-offline probe.
func DialProbe(rawURL string, timeout time.Duration) Probe {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return func() bool { return false }
	}
	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return func() bool {
		conn, err := net.DialTimeout("tcp", host, timeout)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}
