package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/host"
	"comicgrabber/pkg/job"
	"comicgrabber/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startAsync(t *testing.T, tr *Tracker, req host.Request) <-chan job.Result {
	t.Helper()
	out := make(chan job.Result, 1)
	go func() { out <- tr.Start(context.Background(), req) }()
	return out
}

func waitRegistered(t *testing.T, f *host.Fake, tr *Tracker, n int) []host.ID {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.IDs()) == n && tr.Pending() >= 1
	}, time.Second, 5*time.Millisecond)
	return f.IDs()
}

func TestTerminalNotificationResolves(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	res := startAsync(t, tr, host.Request{Filename: "A"})
	ids := waitRegistered(t, f, tr, 1)

	f.Emit(ids[0], host.StateInProgress)
	f.Emit(ids[0], host.StateComplete)

	select {
	case r := <-res:
		assert.Equal(t, job.Result{Status: job.StatusComplete, Filename: "A"}, r)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	assert.Equal(t, 0, tr.Pending())
}

func TestForeignIDLeavesRegistrationPending(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	res := startAsync(t, tr, host.Request{Filename: "A"})
	ids := waitRegistered(t, f, tr, 1)

	f.Emit("someone-else", host.StateComplete)
	f.Emit("someone-else", host.StateInterrupted)

	select {
	case r := <-res:
		t.Fatalf("resolved by a foreign id: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, tr.Pending())

	f.Emit(ids[0], host.StateInterrupted)
	r := <-res
	assert.Equal(t, job.StatusInterrupted, r.Status)
}

func TestHostInterruptionCarriesReason(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	res := startAsync(t, tr, host.Request{Filename: "A"})
	ids := waitRegistered(t, f, tr, 1)
	f.Emit(ids[0], host.StateInterrupted)

	r := <-res
	assert.Equal(t, job.StatusInterrupted, r.Status)
	assert.Equal(t, errs.NewInterrupted("download interrupted").Error(), r.Error)
}

func TestDuplicateTerminalIsIgnored(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	res := startAsync(t, tr, host.Request{Filename: "A"})
	ids := waitRegistered(t, f, tr, 1)

	f.Emit(ids[0], host.StateComplete)
	f.Emit(ids[0], host.StateComplete)
	f.Emit(ids[0], host.StateInterrupted)

	r := <-res
	assert.Equal(t, job.StatusComplete, r.Status)

	select {
	case extra := <-res:
		t.Fatalf("resolved twice: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, tr.Pending())
}

func TestNonTerminalAndStatelessDeltasIgnored(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	res := startAsync(t, tr, host.Request{Filename: "A"})
	ids := waitRegistered(t, f, tr, 1)

	f.Publish(host.Delta{ID: ids[0]})
	f.Emit(ids[0], host.StateInProgress)

	select {
	case r := <-res:
		t.Fatalf("resolved early: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
	f.Emit(ids[0], host.StateComplete)
	assert.Equal(t, job.StatusComplete, (<-res).Status)
}

func TestRejectedDownloadNeverRegisters(t *testing.T) {
	f := host.NewFake()
	f.Reject = errs.NewInvalidFilename("a?b", "character '?' not allowed")
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	r := tr.Start(context.Background(), host.Request{Filename: "a?b"})

	assert.Equal(t, job.StatusInvalidFilename, r.Status)
	assert.Equal(t, "a?b", r.Filename)
	assert.Equal(t, 0, tr.Pending())
	assert.Empty(t, f.IDs())
}

func TestConcurrentDownloadsResolveIndependently(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	first := startAsync(t, tr, host.Request{Filename: "first"})
	second := startAsync(t, tr, host.Request{Filename: "second"})
	require.Eventually(t, func() bool { return tr.Pending() == 2 }, time.Second, 5*time.Millisecond)

	byName := make(map[string]host.ID)
	reqs := f.Requests()
	for i, id := range f.IDs() {
		byName[reqs[i].Filename] = id
	}

	f.Emit(byName["second"], host.StateInterrupted)
	assert.Equal(t, job.Result{Status: job.StatusInterrupted, Filename: "second"}, <-second)
	assert.Equal(t, 1, tr.Pending())

	f.Emit(byName["first"], host.StateComplete)
	assert.Equal(t, job.Result{Status: job.StatusComplete, Filename: "first"}, <-first)
}

func TestWaitTimeoutInterrupts(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 30*time.Millisecond, logger.NewNopLogger())
	defer tr.Close()

	r := tr.Start(context.Background(), host.Request{Filename: "slow"})

	assert.Equal(t, job.StatusInterrupted, r.Status)
	assert.Equal(t, errs.NewInterrupted("timed out waiting for download").Error(), r.Error)
	assert.Equal(t, 0, tr.Pending())

	// a late notification for the expired id is harmless
	f.Emit(f.IDs()[0], host.StateComplete)
}

func TestContextCancelInterrupts(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := tr.Start(ctx, host.Request{Filename: "A"})
	assert.Equal(t, job.StatusInterrupted, r.Status)
	assert.True(t, errors.Is(ctx.Err(), context.DeadlineExceeded))
	assert.Equal(t, 0, tr.Pending())
}

func TestCloseReleasesWaiters(t *testing.T) {
	f := host.NewFake()
	tr := NewTracker(f, 0, logger.NewNopLogger())

	res := startAsync(t, tr, host.Request{Filename: "A"})
	waitRegistered(t, f, tr, 1)

	tr.Close()
	assert.Equal(t, job.StatusInterrupted, (<-res).Status)
	assert.Equal(t, 0, f.Subscribers())

	r := tr.Start(context.Background(), host.Request{Filename: "B"})
	assert.Equal(t, job.StatusInterrupted, r.Status)
}
