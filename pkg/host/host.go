// Package host describes the download facility that delivers a finished
// archive to its destination, and the lifecycle notifications it emits.
package host

import (
	"context"
	"sync"

	"comicgrabber/pkg/job"
)

// ID identifies one download started on a host
type ID string

// State is a download lifecycle state
type State string

const (
	StateInProgress  State = "in_progress"
	StateInterrupted State = "interrupted"
	StateComplete    State = "complete"
)

// Terminal reports whether no further notifications follow this state
func (s State) Terminal() bool {
	return s == StateInterrupted || s == StateComplete
}

// Request asks the host to save Source under Filename
type Request struct {
	Source         []byte
	Filename       string
	ConflictPolicy job.ConflictPolicy
}

// Delta is one lifecycle notification. State is nil when the notification
// carries no state change (for example a progress update).
type Delta struct {
	ID    ID
	State *State
	// Path is where the file ended up, set on completion
	Path  string
	Error string
}

// StatePtr returns a pointer to s, for building deltas
func StatePtr(s State) *State {
	return &s
}

// Downloader starts downloads and publishes their lifecycle.
//
// Download either rejects the request synchronously or returns an id whose
// progress is reported later through Subscribe. It must not block waiting
// for subscribers to consume deltas.
type Downloader interface {
	Download(ctx context.Context, req Request) (ID, error)
	// Subscribe returns a stream of deltas for every download and a function
	// that ends the subscription. The channel is not closed.
	Subscribe() (<-chan Delta, func())
}

type subscriber struct {
	ch   chan Delta
	done chan struct{}
}

// Hub fans deltas out to subscribers
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer deltas
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() (<-chan Delta, func()) {
	s := &subscriber{ch: make(chan Delta, h.buffer), done: make(chan struct{})}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			close(s.done)
		})
	}
}

// Publish delivers d to every current subscriber, blocking on a full
// subscriber until it drains or unsubscribes
func (h *Hub) Publish(d Delta) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- d:
		case <-s.done:
		}
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
