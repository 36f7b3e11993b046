package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"studydesk/internal/progress"
)

// Kind tells which pipeline an event comes from.
type Kind string

const (
	KindUpload     Kind = "upload"
	KindAssessment Kind = "assessment"
)

// Event types.
const (
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeError    = "error"
)

const defaultBuffer = 64

// Event is one notification delivered to subscribers.
type Event struct {
	Type     string         `json:"type"`
	Kind     Kind           `json:"kind"`
	ID       string         `json:"id"`
	Progress int            `json:"progress"`
	Stage    progress.Stage `json:"stage,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	At       time.Time      `json:"at"`
}

// Hub fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber. The returned function unsubscribes; the
// channel is closed on unsubscribe or when the hub closes.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Publish delivers ev to every subscriber.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("event", ev.Type).Str("item_id", ev.ID).Msg("subscriber lagging, event dropped")
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan Event]struct{})
}

// Listener returns a progress.Listener publishing events of the given kind.
func (h *Hub) Listener(kind Kind) progress.Listener {
	return progress.ListenerFuncs{
		Progress: func(id string, pct int, stage progress.Stage) {
			h.Publish(Event{Type: TypeProgress, Kind: kind, ID: id, Progress: pct, Stage: stage})
		},
		Complete: func(id string) {
			h.Publish(Event{Type: TypeComplete, Kind: kind, ID: id, Progress: 100, Stage: progress.StageCompleted})
		},
		Error: func(id, reason string) {
			h.Publish(Event{Type: TypeError, Kind: kind, ID: id, Stage: progress.StageError, Reason: reason})
		},
	}
}
