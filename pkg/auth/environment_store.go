package auth

import (
	"os"
	"strings"
	"time"
)

const (
	envPrefix       = "COMICGRABBER_"
	envCookieSuffix = "_COOKIE"
	envAgentSuffix  = "_USER_AGENT"
)

// EnvironmentStore implements CredentialStore using environment variables
// named COMICGRABBER_<SITE>_COOKIE and COMICGRABBER_<SITE>_USER_AGENT
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvKey returns the variable holding the cookie of site
func EnvKey(site string) string {
	return envPrefix + envSite(site) + envCookieSuffix
}

func envSite(site string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, NormalizeSite(site))
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve gets the session from environment variables
func (e *EnvironmentStore) Retrieve(site string) (*Session, error) {
	if site == "" {
		return nil, ErrInvalidCredentials
	}

	cookie := os.Getenv(EnvKey(site))
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Session{
		Site:         NormalizeSite(site),
		Cookie:       cookie,
		UserAgent:    os.Getenv(envPrefix + envSite(site) + envAgentSuffix),
		LastModified: time.Now(),
	}, nil
}

// List returns a session for every known site with a cookie variable set
func (e *EnvironmentStore) List() ([]*Session, error) {
	var sessions []*Session
	for _, site := range KnownSites {
		if s, err := e.Retrieve(site); err == nil {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(site string) error {
	return ErrStoreUnavailable
}

// Exists checks if a cookie variable is set for site
func (e *EnvironmentStore) Exists(site string) bool {
	return site != "" && os.Getenv(EnvKey(site)) != ""
}
