package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/filename"
	"comicgrabber/pkg/host"
	"comicgrabber/pkg/job"
	"comicgrabber/pkg/logger"

	"github.com/google/uuid"
)

// maxUniquify bounds the "name (n).ext" search
const maxUniquify = 1000

// Manager is a download host that writes archives under a local directory
type Manager struct {
	outputDir string
	hub       *host.Hub
	logger    logger.Logger

	// reserved holds target paths claimed by in-flight writes so two
	// uniquified downloads never pick the same name
	reserved map[string]bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

var _ host.Downloader = (*Manager)(nil)

// NewManager creates a new storage manager
func NewManager(outputDir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		hub:       host.NewHub(0),
		logger:    logger.OrDefault(log).WithField("component", "storage"),
		reserved:  make(map[string]bool),
	}, nil
}

// Download validates the request and starts writing it in the background.
// An invalid filename is rejected before any id is allocated.
func (m *Manager) Download(ctx context.Context, req host.Request) (host.ID, error) {
	if err := filename.Validate(req.Filename); err != nil {
		return "", errs.NewInvalidFilename(req.Filename, err.Error())
	}
	switch req.ConflictPolicy {
	case job.ConflictOverwrite, job.ConflictUniquify, job.ConflictFail:
	case "":
		req.ConflictPolicy = job.ConflictOverwrite
	default:
		return "", fmt.Errorf("unknown conflict policy %q", req.ConflictPolicy)
	}

	id := host.ID(uuid.NewString())
	m.wg.Add(1)
	go m.write(id, req)
	return id, nil
}

// Subscribe returns the lifecycle stream of every download on this host
func (m *Manager) Subscribe() (<-chan host.Delta, func()) {
	return m.hub.Subscribe()
}

// Wait blocks until all started downloads have finished writing
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) write(id host.ID, req host.Request) {
	defer m.wg.Done()

	log := m.logger.WithFields(map[string]interface{}{
		"download_id": string(id),
		"filename":    req.Filename,
	})
	m.hub.Publish(host.Delta{ID: id, State: host.StatePtr(host.StateInProgress)})

	target, err := m.claim(req)
	if err != nil {
		log.WithError(err).Warn("Download interrupted")
		m.hub.Publish(host.Delta{ID: id, State: host.StatePtr(host.StateInterrupted), Error: err.Error()})
		return
	}
	defer m.release(target)

	if err := saveAtomic(target, req.Source); err != nil {
		log.WithError(err).Warn("Download interrupted")
		m.hub.Publish(host.Delta{ID: id, State: host.StatePtr(host.StateInterrupted), Error: err.Error()})
		return
	}

	log.InfoWithFields("Download complete", map[string]interface{}{
		"path": target,
		"size": len(req.Source),
	})
	m.hub.Publish(host.Delta{ID: id, State: host.StatePtr(host.StateComplete), Path: target})
}

// claim resolves the final path for req under its conflict policy and
// reserves it until release
func (m *Manager) claim(req host.Request) (string, error) {
	target := filepath.Join(m.outputDir, filepath.FromSlash(req.Filename))

	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.ConflictPolicy {
	case job.ConflictOverwrite:
		if m.reserved[target] {
			return "", fmt.Errorf("%s is being written by another download", req.Filename)
		}
	case job.ConflictFail:
		if m.reserved[target] || exists(target) {
			return "", fmt.Errorf("%s already exists", req.Filename)
		}
	default:
		unique, err := m.uniquify(target)
		if err != nil {
			return "", err
		}
		target = unique
	}

	m.reserved[target] = true
	return target, nil
}

func (m *Manager) uniquify(target string) (string, error) {
	if !m.reserved[target] && !exists(target) {
		return target, nil
	}
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	for i := 1; i <= maxUniquify; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if !m.reserved[candidate] && !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s", filepath.Base(target))
}

func (m *Manager) release(target string) {
	m.mu.Lock()
	delete(m.reserved, target)
	m.mu.Unlock()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// saveAtomic writes data to a temporary file next to path and renames it
// into place
func saveAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.CreateTemp(filepath.Dir(path), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = out.Write(data)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
