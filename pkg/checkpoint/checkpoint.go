package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"comicgrabber/pkg/filename"
	"comicgrabber/pkg/logger"
)

const currentVersion = 1

// Checkpoint is the download state of one series
type Checkpoint struct {
	Series string `json:"series"`
	// NextURL is the page of the first episode not yet downloaded. Empty
	// once the latest episode has been reached.
	NextURL         string            `json:"next_url"`
	Episodes        map[string]string `json:"episodes"` // page URL -> archive filename
	TotalDownloaded int               `json:"total_downloaded"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int               `json:"version"`
}

// Manager handles checkpoint operations for one series
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for series in the user data directory
func NewManager(series string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerInDir(filepath.Join(dataDir, "checkpoints"), series, log)
}

// NewManagerInDir creates a checkpoint manager that keeps its file in dir
func NewManagerInDir(dir, series string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	name := filename.Sanitize(series)
	if name == "" {
		name = "untitled"
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, name+".checkpoint.json"),
		logger:         logger.OrDefault(log).WithField("series", series),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a new checkpoint for series and saves it
func (m *Manager) Create(series string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Series:    series,
		Episodes:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.WithField("path", m.checkpointPath).Info("Checkpoint created")
	return cp, nil
}

// Load reads the checkpoint. A missing file yields nil, nil.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, currentVersion)
	}
	if cp.Episodes == nil {
		cp.Episodes = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"total_downloaded": cp.TotalDownloaded,
		"next_url":         cp.NextURL,
		"updated_at":       cp.UpdatedAt,
	})
	return &cp, nil
}

// LoadOrCreate loads the checkpoint, creating it when none exists
func (m *Manager) LoadOrCreate(series string) (*Checkpoint, error) {
	cp, err := m.Load()
	if err != nil || cp != nil {
		return cp, err
	}
	return m.Create(series)
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"total_downloaded": cp.TotalDownloaded,
		"next_url":         cp.NextURL,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordEpisode records a finished episode and where to continue from.
// nextURL is empty when the episode was the latest one.
func (m *Manager) RecordEpisode(cp *Checkpoint, pageURL, archive, nextURL string) error {
	if _, seen := cp.Episodes[pageURL]; !seen {
		cp.TotalDownloaded++
	}
	cp.Episodes[pageURL] = archive
	cp.NextURL = nextURL
	return m.Save(cp)
}

// IsEpisodeDownloaded reports whether pageURL has already been archived
func (cp *Checkpoint) IsEpisodeDownloaded(pageURL string) bool {
	_, exists := cp.Episodes[pageURL]
	return exists
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "comicgrabber")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "comicgrabber")
	default:
		// XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "comicgrabber")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "comicgrabber")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
