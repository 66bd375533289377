package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"comicgrabber/pkg/logger"
)

func TestCheckpointManager(t *testing.T) {
	dir := t.TempDir()
	series := "나의 만화/시즌2"

	mgr, err := NewManagerInDir(dir, series, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if filepath.Dir(mgr.Path()) != dir {
		t.Errorf("Checkpoint escaped its directory: %s", mgr.Path())
	}
	if strings.Contains(filepath.Base(mgr.Path()), "/") {
		t.Errorf("Series name not sanitized: %s", mgr.Path())
	}

	t.Run("LoadMissing", func(t *testing.T) {
		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Fatalf("Expected nil, nil for missing checkpoint, got %v, %v", cp, err)
		}
	})

	t.Run("CreateAndLoad", func(t *testing.T) {
		cp, err := mgr.LoadOrCreate(series)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.Series != series || cp.Version != currentVersion {
			t.Errorf("Unexpected checkpoint %+v", cp)
		}
		if !mgr.Exists() {
			t.Fatal("Checkpoint file not written")
		}

		loaded, err := mgr.LoadOrCreate(series)
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !loaded.CreatedAt.Equal(cp.CreatedAt) {
			t.Error("LoadOrCreate should load the existing checkpoint")
		}
	})

	t.Run("RecordEpisode", func(t *testing.T) {
		cp, err := mgr.Load()
		if err != nil {
			t.Fatal(err)
		}

		if err := mgr.RecordEpisode(cp, "https://x/1", "S/1화.zip", "https://x/2"); err != nil {
			t.Fatalf("Failed to record episode: %v", err)
		}
		if err := mgr.RecordEpisode(cp, "https://x/1", "S/1화.zip", "https://x/2"); err != nil {
			t.Fatal(err)
		}
		if err := mgr.RecordEpisode(cp, "https://x/2", "S/2화.zip", ""); err != nil {
			t.Fatal(err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatal(err)
		}
		if loaded.TotalDownloaded != 2 {
			t.Errorf("Expected 2 episodes, got %d", loaded.TotalDownloaded)
		}
		if !loaded.IsEpisodeDownloaded("https://x/2") || loaded.IsEpisodeDownloaded("https://x/3") {
			t.Error("IsEpisodeDownloaded reports the wrong episodes")
		}
		if loaded.NextURL != "" {
			t.Errorf("Expected empty next URL at the latest episode, got %q", loaded.NextURL)
		}
	})

	t.Run("NoTempFileLeft", func(t *testing.T) {
		if _, err := os.Stat(mgr.Path() + ".tmp"); !os.IsNotExist(err) {
			t.Error("Temporary file left behind")
		}
	})

	t.Run("RejectNewerVersion", func(t *testing.T) {
		if err := os.WriteFile(mgr.Path(), []byte(`{"series":"x","version":99}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.Load(); err == nil {
			t.Error("Expected error for newer checkpoint version")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Checkpoint still exists after delete")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting a missing checkpoint should succeed: %v", err)
		}
	})
}

func TestNewManagerUsesDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	mgr, err := NewManager("series", nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if !strings.Contains(mgr.Path(), "comicgrabber") {
		t.Errorf("Unexpected checkpoint path %s", mgr.Path())
	}
}
