package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/host"
	"comicgrabber/pkg/job"
	"comicgrabber/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir, logger.NewTestLogger())
	require.NoError(t, err)
	return m, dir
}

// awaitTerminal reads deltas until id reaches a terminal state
func awaitTerminal(t *testing.T, ch <-chan host.Delta, id host.ID) host.Delta {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case d := <-ch:
			if d.ID == id && d.State != nil && d.State.Terminal() {
				return d
			}
		case <-timeout:
			t.Fatalf("no terminal delta for %s", id)
		}
	}
}

func TestDownloadWritesFile(t *testing.T) {
	m, dir := newManager(t)
	ch, stop := m.Subscribe()
	defer stop()

	id, err := m.Download(context.Background(), host.Request{
		Source:         []byte("zipdata"),
		Filename:       "Title/Episode 1.zip",
		ConflictPolicy: job.ConflictOverwrite,
	})
	require.NoError(t, err)

	d := awaitTerminal(t, ch, id)
	assert.Equal(t, host.StateComplete, *d.State)

	expected := filepath.Join(dir, "Title", "Episode 1.zip")
	assert.Equal(t, expected, d.Path)
	content, err := os.ReadFile(expected)
	require.NoError(t, err)
	assert.Equal(t, "zipdata", string(content))

	leftovers, err := filepath.Glob(filepath.Join(dir, "Title", ".download-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestInvalidFilenameRejectedSynchronously(t *testing.T) {
	m, _ := newManager(t)

	for _, name := range []string{"a?b.zip", "../up.zip", "/abs.zip", ""} {
		id, err := m.Download(context.Background(), host.Request{Source: []byte("x"), Filename: name})
		assert.Empty(t, id)
		assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidFilename), name)
	}
}

func TestConflictPolicies(t *testing.T) {
	m, dir := newManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.zip"), []byte("old"), 0644))

	ch, stop := m.Subscribe()
	defer stop()

	download := func(policy job.ConflictPolicy, data string) host.Delta {
		id, err := m.Download(context.Background(), host.Request{Source: []byte(data), Filename: "A.zip", ConflictPolicy: policy})
		require.NoError(t, err)
		return awaitTerminal(t, ch, id)
	}

	d := download(job.ConflictUniquify, "second")
	assert.Equal(t, host.StateComplete, *d.State)
	assert.Equal(t, filepath.Join(dir, "A (1).zip"), d.Path)

	d = download(job.ConflictUniquify, "third")
	assert.Equal(t, filepath.Join(dir, "A (2).zip"), d.Path)

	d = download(job.ConflictFail, "nope")
	assert.Equal(t, host.StateInterrupted, *d.State)
	assert.Contains(t, d.Error, "already exists")

	d = download(job.ConflictOverwrite, "new")
	assert.Equal(t, host.StateComplete, *d.State)
	content, err := os.ReadFile(filepath.Join(dir, "A.zip"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestEmptyPolicyOverwrites(t *testing.T) {
	m, dir := newManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.zip"), []byte("old"), 0644))
	ch, stop := m.Subscribe()
	defer stop()

	id, err := m.Download(context.Background(), host.Request{Source: []byte("x"), Filename: "B.zip"})
	require.NoError(t, err)

	d := awaitTerminal(t, ch, id)
	assert.Equal(t, filepath.Join(dir, "B.zip"), d.Path)
}

func TestConcurrentUniquifyPicksDistinctNames(t *testing.T) {
	m, _ := newManager(t)
	ch, stop := m.Subscribe()
	defer stop()

	ids := make(map[host.ID]bool)
	for i := 0; i < 5; i++ {
		id, err := m.Download(context.Background(), host.Request{Source: []byte("x"), Filename: "C.zip", ConflictPolicy: job.ConflictUniquify})
		require.NoError(t, err)
		ids[id] = true
	}

	paths := make(map[string]bool)
	deadline := time.After(2 * time.Second)
	for len(paths) < 5 {
		select {
		case d := <-ch:
			if ids[d.ID] && d.State != nil && *d.State == host.StateComplete {
				paths[d.Path] = true
			}
		case <-deadline:
			t.Fatalf("only %d downloads completed", len(paths))
		}
	}
	m.Wait()
	assert.Len(t, paths, 5)
}

func TestEveryDownloadStartsInProgress(t *testing.T) {
	m, _ := newManager(t)
	ch, stop := m.Subscribe()
	defer stop()

	id, err := m.Download(context.Background(), host.Request{Source: []byte("x"), Filename: "D.zip"})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, id, first.ID)
	assert.Equal(t, host.StateInProgress, *first.State)
}
