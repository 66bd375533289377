package host

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Downloader for tests. Downloads are recorded and
// nothing is published until Emit is called, unless AutoComplete is set.
type Fake struct {
	*Hub

	// Reject, when set, is returned by Download instead of an id
	Reject error
	// AutoComplete publishes in_progress then complete for every download
	AutoComplete bool

	mu       sync.Mutex
	next     int
	requests map[ID]Request
	order    []ID
}

// NewFake creates a fake host
func NewFake() *Fake {
	return &Fake{Hub: NewHub(0), requests: make(map[ID]Request)}
}

func (f *Fake) Download(ctx context.Context, req Request) (ID, error) {
	if f.Reject != nil {
		return "", f.Reject
	}

	f.mu.Lock()
	f.next++
	id := ID(fmt.Sprintf("dl-%d", f.next))
	f.requests[id] = req
	f.order = append(f.order, id)
	f.mu.Unlock()

	if f.AutoComplete {
		go func() {
			f.Publish(Delta{ID: id, State: StatePtr(StateInProgress)})
			f.Publish(Delta{ID: id, State: StatePtr(StateComplete), Path: req.Filename})
		}()
	}
	return id, nil
}

// Emit publishes a delta for id
func (f *Fake) Emit(id ID, state State) {
	f.Publish(Delta{ID: id, State: StatePtr(state)})
}

// Requests returns the downloads started so far, in order
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Request, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.requests[id])
	}
	return out
}

// IDs returns the ids handed out so far, in order
func (f *Fake) IDs() []ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ID(nil), f.order...)
}
