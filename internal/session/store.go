// Package session manages login credentials for the comment extractor:
// persistence in the OS keyring with a file fallback, validation against the
// live site, and the acquisition ladder that tries cached credentials, then
// a browser profile, then an interactive login.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"

	"github.com/redthread-tools/redthread/internal/browser"
)

const (
	// KeyringService is the service name under which sessions are stored.
	KeyringService = "redthread"
	// FallbackDir holds session files when no keyring is available.
	FallbackDir = ".redthread/sessions"

	// TTL is how long a stored session is trusted without revalidation.
	TTL = 24 * time.Hour

	manifestKey = "_manifest"
)

// ErrSessionExpired is returned by Load when the stored session is past TTL.
var ErrSessionExpired = errors.New("session expired")

// Session is a validated set of login cookies.
type Session struct {
	Name        string           `json:"name"`
	Cookies     []browser.Cookie `json:"cookies"`
	AcquiredAt  time.Time        `json:"acquired_at"`
	ValidatedAt time.Time        `json:"validated_at,omitempty"`
}

// NewFromCookies builds a fresh session from an externally provided cookie
// set, such as a string pasted from browser devtools.
func NewFromCookies(name string, cookies []browser.Cookie) *Session {
	return &Session{Name: name, Cookies: cookies, AcquiredAt: time.Now()}
}

// Age returns time since acquisition.
func (s *Session) Age() time.Duration {
	return time.Since(s.AcquiredAt)
}

// Expired reports whether the session is past TTL.
func (s *Session) Expired() bool {
	return s.Age() > TTL
}

// Store persists sessions. Keyring is preferred; environments without one
// (CI, containers) fall back to 0600 files under the user's home directory.
type Store struct {
	dir      string
	fileOnly bool
	probed   bool
	useFiles bool
}

// NewStore returns a store rooted at the default fallback directory.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return &Store{dir: filepath.Join(home, FallbackDir)}, nil
}

// NewFileStore returns a store that only uses files under dir. Used in tests
// and when the keyring is known to be unusable.
func NewFileStore(dir string) *Store {
	return &Store{dir: dir, fileOnly: true}
}

func (st *Store) fileBased() bool {
	if st.fileOnly {
		return true
	}
	if st.probed {
		return st.useFiles
	}
	st.probed = true

	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		st.useFiles = true
		return true
	}

	const probe = "_keyring_probe_"
	if err := keyring.Set(KeyringService, probe, "ok"); err != nil {
		log.Debug().Err(err).Msg("Keyring unavailable, using file-based session storage")
		st.useFiles = true
		return true
	}
	_ = keyring.Delete(KeyringService, probe)
	return false
}

func (st *Store) path(name string) (string, error) {
	if err := os.MkdirAll(st.dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(st.dir, name+".json"), nil
}

// Save persists the session under its name.
func (st *Store) Save(s *Session) error {
	if s.Name == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if st.fileBased() {
		path, err := st.path(s.Name)
		if err != nil {
			return fmt.Errorf("failed to resolve session path: %w", err)
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to write session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, s.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return st.updateManifest(s.Name, true)
}

// Load retrieves a session by name. ErrSessionExpired is returned when the
// session exists but is older than TTL; callers should re-acquire.
func (st *Store) Load(name string) (*Session, error) {
	if name == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	var data []byte
	if st.fileBased() {
		path, err := st.path(name)
		if err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read session file: %w", err)
		}
	} else {
		raw, err := keyring.Get(KeyringService, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load from keyring: %w", err)
		}
		data = []byte(raw)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	if s.Expired() {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

// Delete removes a session. Missing sessions are not an error.
func (st *Store) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if st.fileBased() {
		path, err := st.path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return st.updateManifest(name, false)
}

// List returns the names of all stored sessions.
func (st *Store) List() ([]string, error) {
	if st.fileBased() {
		entries, err := os.ReadDir(st.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				names = append(names, strings.TrimSuffix(e.Name(), ".json"))
			}
		}
		return names, nil
	}

	raw, err := keyring.Get(KeyringService, manifestKey)
	if err != nil {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	return names, nil
}

// The keyring has no enumeration API, so a manifest entry tracks the names.
func (st *Store) updateManifest(name string, add bool) error {
	names, _ := st.List()

	if add {
		for _, n := range names {
			if n == name {
				return nil
			}
		}
		names = append(names, name)
	} else {
		kept := names[:0]
		for _, n := range names {
			if n != name {
				kept = append(kept, n)
			}
		}
		names = kept
	}

	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, manifestKey, string(data))
}
