// Package lifecycle turns a host's fire-and-forget download notifications
// into one awaited job result per download.
//
// Each started download gets exactly one registry entry keyed by its id. The
// entry holds a one-shot channel that is fulfilled by the first terminal
// notification for that id; the entry is removed at the same moment, so
// later notifications for the id find nothing and are dropped.
package lifecycle

import (
	"context"
	"sync"
	"time"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/host"
	"comicgrabber/pkg/job"
	"comicgrabber/pkg/logger"
)

type pending struct {
	done chan host.Delta
}

// Tracker awaits download completion on a host
type Tracker struct {
	host        host.Downloader
	waitTimeout time.Duration
	logger      logger.Logger

	mu      sync.Mutex
	pending map[host.ID]*pending
	closed  bool

	unsubscribe func()
	stop        chan struct{}
	stopped     chan struct{}
}

// NewTracker subscribes to h and starts the event loop. waitTimeout bounds
// how long Start waits for a terminal notification; zero means no bound.
func NewTracker(h host.Downloader, waitTimeout time.Duration, log logger.Logger) *Tracker {
	deltas, unsubscribe := h.Subscribe()
	t := &Tracker{
		host:        h,
		waitTimeout: waitTimeout,
		logger:      logger.OrDefault(log).WithField("component", "lifecycle"),
		pending:     make(map[host.ID]*pending),
		unsubscribe: unsubscribe,
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go t.loop(deltas)
	return t
}

// Start asks the host to save req and waits for the download to finish.
// A request the host rejects resolves to invalidFilename without ever being
// registered.
func (t *Tracker) Start(ctx context.Context, req host.Request) job.Result {
	log := logger.FromContext(ctx, t.logger).WithField("filename", req.Filename)

	// Holding mu across Download keeps the event loop from seeing deltas for
	// the new id before it is registered.
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return interrupted(req.Filename, "tracker closed")
	}
	id, err := t.host.Download(ctx, req)
	if err != nil {
		t.mu.Unlock()
		log.WithError(err).Warn("Download rejected")
		return job.Result{Status: job.StatusInvalidFilename, Filename: req.Filename, Error: err.Error()}
	}
	p := &pending{done: make(chan host.Delta, 1)}
	t.pending[id] = p
	t.mu.Unlock()

	log = log.WithField("download_id", string(id))
	log.Debug("Download registered")

	var timeout <-chan time.Time
	if t.waitTimeout > 0 {
		timer := time.NewTimer(t.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case d := <-p.done:
		result := job.Result{Status: job.StatusComplete, Filename: req.Filename, Error: d.Error}
		if *d.State != host.StateComplete {
			reason := d.Error
			if reason == "" {
				reason = "download " + string(*d.State)
			}
			result = interrupted(req.Filename, reason)
		}
		log.InfoWithFields("Download finished", map[string]interface{}{
			"state": string(*d.State),
			"path":  d.Path,
		})
		return result
	case <-timeout:
		t.forget(id)
		log.Warn("Timed out waiting for download")
		return interrupted(req.Filename, "timed out waiting for download")
	case <-ctx.Done():
		t.forget(id)
		return interrupted(req.Filename, ctx.Err().Error())
	case <-t.stop:
		t.forget(id)
		return interrupted(req.Filename, "tracker closed")
	}
}

func interrupted(filename, reason string) job.Result {
	return job.Result{
		Status:   job.StatusInterrupted,
		Filename: filename,
		Error:    errs.NewInterrupted(reason).Error(),
	}
}

// Pending returns the number of downloads still awaiting a terminal state
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close stops the event loop. Waiting Start calls return interrupted.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.unsubscribe()
	close(t.stop)
	<-t.stopped
}

func (t *Tracker) loop(deltas <-chan host.Delta) {
	defer close(t.stopped)
	for {
		select {
		case d := <-deltas:
			t.handle(d)
		case <-t.stop:
			return
		}
	}
}

func (t *Tracker) handle(d host.Delta) {
	if d.State == nil || !d.State.Terminal() {
		return
	}

	t.mu.Lock()
	p, ok := t.pending[d.ID]
	if ok {
		delete(t.pending, d.ID)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	p.done <- d
}

func (t *Tracker) forget(id host.ID) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}
