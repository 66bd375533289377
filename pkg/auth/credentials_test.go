package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	session := &Session{
		Site:      " KakaoPage ",
		Cookie:    "  _kpdid=abc123; _kawlt=secret-token  ",
		UserAgent: "TestAgent/1.0",
	}
	if err := manager.Store(session); err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}

	retrieved, err := manager.Retrieve("kakaopage")
	if err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}
	if retrieved.Site != "kakaopage" {
		t.Errorf("Site not normalized: got %q", retrieved.Site)
	}
	if retrieved.Cookie != "_kpdid=abc123; _kawlt=secret-token" {
		t.Errorf("Cookie not trimmed: got %q", retrieved.Cookie)
	}
	if retrieved.LastModified.IsZero() {
		t.Error("LastModified should be set on store")
	}

	if got := manager.Cookie("KAKAOPAGE"); got != retrieved.Cookie {
		t.Errorf("Cookie() = %q, want %q", got, retrieved.Cookie)
	}
	if got := manager.Cookie("marumaru"); got != "" {
		t.Errorf("Cookie() for unknown site = %q, want empty", got)
	}

	sessions, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}

	if err := manager.Delete("kakaopage"); err != nil {
		t.Errorf("Failed to delete session: %v", err)
	}
	if _, err := manager.Retrieve("kakaopage"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 sessions after deletion, got %d", mockStore.Count())
	}
	if err := manager.Delete("kakaopage"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Deleting twice should report not found, got %v", err)
	}
}

func TestStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(nil); err == nil {
		t.Error("Expected error for nil session")
	}
	if err := manager.Store(&Session{Site: "11toon", Cookie: "   "}); err == nil {
		t.Error("Expected error for blank cookie")
	}
}

func TestStoreFallsThroughFailingStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	backup := NewMockStore()

	manager := NewManagerWithStores(broken, backup)
	if err := manager.Store(&Session{Site: "11toon", Cookie: "a=b"}); err != nil {
		t.Fatalf("Expected fallback store to accept session: %v", err)
	}
	if !backup.Exists("11toon") {
		t.Error("Session should land in the second store")
	}

	backup.StoreError = errors.New("disk full")
	err := manager.Store(&Session{Site: "11toon", Cookie: "a=b"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Expected last store error, got %v", err)
	}
}

func TestListPrefersNewestSession(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	manager := NewManagerWithStores(older, newer)

	if err := manager.Store(&Session{Site: "marumaru", Cookie: "old=1"}); err != nil {
		t.Fatal(err)
	}
	// Only the first store accepts writes, so seed the second directly.
	s := &Session{Site: "marumaru", Cookie: "new=1"}
	first, _ := older.Retrieve("marumaru")
	s.LastModified = first.LastModified.Add(1)
	if err := newer.Store(s); err != nil {
		t.Fatal(err)
	}
	if err := newer.Store(&Session{Site: "11toon", Cookie: "x=1"}); err != nil {
		t.Fatal(err)
	}

	sessions, err := manager.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Site != "11toon" || sessions[1].Site != "marumaru" {
		t.Errorf("Sessions not sorted by site: %s, %s", sessions[0].Site, sessions[1].Site)
	}
	if sessions[1].Cookie != "new=1" {
		t.Errorf("Expected newest cookie, got %q", sessions[1].Cookie)
	}

	if err := manager.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	if older.Count()+newer.Count() != 0 {
		t.Error("DeleteAll should empty every store")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test-passphrase")
	path := filepath.Join(t.TempDir(), "nested", "sessions.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	session := &Session{Site: "kakaopage", Cookie: "_kawlt=very-secret-value"}
	if err := store.Store(session); err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read store file: %v", err)
	}
	if bytes.Contains(content, []byte("very-secret-value")) {
		t.Error("Cookie must not appear in plaintext")
	}

	// A second store instance with the same passphrase reads it back.
	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Retrieve("kakaopage")
	if err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}
	if got.Cookie != session.Cookie {
		t.Errorf("Cookie mismatch: got %q, want %q", got.Cookie, session.Cookie)
	}
	if !reopened.Exists("kakaopage") || reopened.Exists("11toon") {
		t.Error("Exists reports the wrong sites")
	}

	t.Setenv(PassphraseEnv, "wrong-passphrase")
	wrong, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.Retrieve("kakaopage"); err == nil {
		t.Error("Expected decryption to fail with the wrong passphrase")
	}

	if err := reopened.Delete("kakaopage"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Store file should be removed once empty")
	}
	sessions, err := reopened.List()
	if err != nil || len(sessions) != 0 {
		t.Errorf("Expected empty list, got %v (%v)", sessions, err)
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	if _, err := NewEncryptedFileStore(filepath.Join(dir, "sessions.enc")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Passphrase file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Passphrase file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("COMICGRABBER_11TOON_COOKIE", "PHPSESSID=abc")
	t.Setenv("COMICGRABBER_11TOON_USER_AGENT", "Agent/2")

	store := NewEnvironmentStore()
	if EnvKey("11toon") != "COMICGRABBER_11TOON_COOKIE" {
		t.Errorf("Unexpected env key %s", EnvKey("11toon"))
	}
	if EnvKey("my-site.kr") != "COMICGRABBER_MY_SITE_KR_COOKIE" {
		t.Errorf("Unexpected env key %s", EnvKey("my-site.kr"))
	}

	s, err := store.Retrieve("11toon")
	if err != nil {
		t.Fatalf("Failed to retrieve from env: %v", err)
	}
	if s.Cookie != "PHPSESSID=abc" || s.UserAgent != "Agent/2" {
		t.Errorf("Unexpected session %+v", s)
	}
	if !store.Exists("11toon") || store.Exists("kakaopage") {
		t.Error("Exists reports the wrong sites")
	}

	if err := store.Store(s); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Store should be unavailable, got %v", err)
	}
	if err := store.Delete("11toon"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Delete should be unavailable, got %v", err)
	}

	sessions, _ := store.List()
	if len(sessions) != 1 || sessions[0].Site != "11toon" {
		t.Errorf("Unexpected env sessions %+v", sessions)
	}
}

func TestSanitizeSession(t *testing.T) {
	s := &Session{Site: "11toon", Cookie: "PHPSESSID=0123456789abcdef"}
	clean := SanitizeSession(s)
	if clean.Cookie == s.Cookie {
		t.Error("Cookie should be masked")
	}
	if !strings.HasPrefix(clean.Cookie, "PHPS") || !strings.HasSuffix(clean.Cookie, "cdef") {
		t.Errorf("Unexpected mask %q", clean.Cookie)
	}
	if clean.Site != s.Site {
		t.Error("Site should not be masked")
	}
	if maskString("short") != "********" {
		t.Error("Short values should be fully masked")
	}
	if SanitizeSession(nil) != nil {
		t.Error("nil session should stay nil")
	}
}

func TestCookieGuideNamesEnvVariable(t *testing.T) {
	var buf bytes.Buffer
	ShowCookieExtractionGuide(&buf, "kakaopage")
	if !strings.Contains(buf.String(), "COMICGRABBER_KAKAOPAGE_COOKIE") {
		t.Error("Guide should mention the environment variable")
	}
}
