package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Session is the stored login of one site
type Session struct {
	Site         string    `json:"site"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving sessions
type CredentialStore interface {
	// Store saves the session for its site
	Store(session *Session) error

	// Retrieve gets the session for a specific site
	Retrieve(site string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the session for a specific site
	Delete(site string) error

	// Exists checks if a session exists for a site
	Exists(site string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new session manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Environment variables as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager that consults stores in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the session using the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if session == nil || session.Site == "" {
		return errors.New("site is required")
	}
	if strings.TrimSpace(session.Cookie) == "" {
		return errors.New("cookie is required")
	}

	session.Site = NormalizeSite(session.Site)
	session.Cookie = strings.TrimSpace(session.Cookie)
	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(session)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the session from the first store that has it
func (m *Manager) Retrieve(site string) (*Session, error) {
	site = NormalizeSite(site)
	for _, store := range m.stores {
		if session, err := store.Retrieve(site); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w for site: %s", ErrCredentialsNotFound, site)
}

// Cookie returns the stored cookie for site, or "" when there is none
func (m *Manager) Cookie(site string) string {
	session, err := m.Retrieve(site)
	if err != nil {
		return ""
	}
	return session.Cookie
}

// List returns all stored sessions from all stores, sorted by site
func (m *Manager) List() ([]*Session, error) {
	bySite := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range sessions {
			// Use the most recently modified version
			if existing, ok := bySite[s.Site]; !ok || s.LastModified.After(existing.LastModified) {
				bySite[s.Site] = s
			}
		}
	}

	result := make([]*Session, 0, len(bySite))
	for _, s := range bySite {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Site < result[j].Site })
	return result, nil
}

// Delete removes the session from all stores
func (m *Manager) Delete(site string) error {
	site = NormalizeSite(site)

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(site); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for site: %s", ErrCredentialsNotFound, site)
	}
	return nil
}

// DeleteAll removes all stored sessions
func (m *Manager) DeleteAll() error {
	sessions, err := m.List()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		_ = m.Delete(s.Site) // Ignore individual errors
	}
	return nil
}

// NormalizeSite lower-cases and trims a site name
func NormalizeSite(site string) string {
	return strings.ToLower(strings.TrimSpace(site))
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "comicgrabber")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "comicgrabber")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "comicgrabber")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "comicgrabber")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSession creates a copy of the session with the cookie masked
func SanitizeSession(session *Session) *Session {
	if session == nil {
		return nil
	}

	return &Session{
		Site:         session.Site,
		Cookie:       maskString(session.Cookie),
		UserAgent:    session.UserAgent,
		LastModified: session.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
