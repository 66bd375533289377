package auth

import (
	"sync"
)

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

// Store saves the session to the mock store
func (m *MockStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil || session.Site == "" {
		return ErrInvalidCredentials
	}

	cp := *session
	m.sessions[session.Site] = &cp
	return nil
}

// Retrieve gets the session from the mock store
func (m *MockStore) Retrieve(site string) (*Session, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if site == "" {
		return nil, ErrInvalidCredentials
	}

	s, exists := m.sessions[site]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	cp := *s
	return &cp, nil
}

// List returns all stored sessions from the mock store
func (m *MockStore) List() ([]*Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*Session
	for _, s := range m.sessions {
		cp := *s
		sessions = append(sessions, &cp)
	}
	return sessions, nil
}

// Delete removes the session from the mock store
func (m *MockStore) Delete(site string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if site == "" {
		return ErrInvalidCredentials
	}
	if _, exists := m.sessions[site]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, site)
	return nil
}

// Exists checks if a session exists in the mock store
func (m *MockStore) Exists(site string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.sessions[site]
	return exists
}

// Count returns the number of sessions in the mock store
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// NewMockManager creates a Manager backed by a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
