package authclient

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Session is a point-in-time snapshot of the token pair. AccessToken and
// RefreshToken are either both set or both empty; there is no partial
// session.
type Session struct {
	AccessToken  string
	RefreshToken string
	Loaded       bool // persisted credentials have been restored (or found absent)
}

// Authenticated reports whether the session holds a token pair.
func (s Session) Authenticated() bool { return s.AccessToken != "" }

// SessionStore holds the mutable session state shared between the gateway
// and the coordinator. The coordinator (on successful refresh) and the
// login/logout flows are the only writers; everything else reads snapshots.
// Every Set/Clear is written through to the configured CredentialStore.
type SessionStore struct {
	mu      sync.Mutex
	access  string
	refresh string
	profile json.RawMessage
	loaded  bool

	creds   CredentialStore // optional write-through persistence
	onClear func()          // wired by the coordinator to abort queued waiters
	logger  *slog.Logger
}

// NewSessionStore creates an empty store. creds may be nil for a purely
// in-memory session.
func NewSessionStore(creds CredentialStore, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{creds: creds, logger: logger}
}

// Restore loads persisted credentials into the store. An absent credential
// file is not an error; the store just comes up empty with Loaded set.
func (s *SessionStore) Restore() error {
	var creds *Credentials
	if s.creds != nil {
		loaded, err := s.creds.Load()
		if err != nil {
			return err
		}
		creds = loaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if creds == nil || creds.AccessToken == "" || creds.RefreshToken == "" {
		// Partial credentials on disk are treated as no session at all.
		return nil
	}
	s.access = creds.AccessToken
	s.refresh = creds.RefreshToken
	s.profile = creds.Profile
	return nil
}

// Get returns a consistent snapshot of the session. A reader never observes
// an access token from one Set paired with a refresh token from another.
func (s *SessionStore) Get() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{AccessToken: s.access, RefreshToken: s.refresh, Loaded: s.loaded}
}

// Profile returns the stored profile JSON, or nil if none.
func (s *SessionStore) Profile() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Set atomically replaces the token pair, keeping the stored profile.
func (s *SessionStore) Set(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(accessToken, refreshToken, s.profile)
}

// SetSession atomically replaces the token pair and the profile. Used by the
// login flow, which receives all three together.
func (s *SessionStore) SetSession(accessToken, refreshToken string, profile json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(accessToken, refreshToken, profile)
}

func (s *SessionStore) setLocked(accessToken, refreshToken string, profile json.RawMessage) {
	s.access = accessToken
	s.refresh = refreshToken
	s.profile = profile
	if s.creds == nil {
		return
	}
	err := s.creds.Save(&Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile,
	})
	if err != nil {
		// A failed save leaves the in-memory session authoritative; the next
		// successful Set rewrites the file.
		s.logger.Warn("failed to persist credentials", "error", err)
	}
}

// Clear resets the store to the empty session and removes persisted
// credentials. When a coordinator hook is wired, clearing is delegated to it
// so that aborting queued refresh waiters, invalidating any in-flight
// refresh result, and wiping the session happen as one step under the
// coordinator's lock; a refresh result landing concurrently can then never
// overwrite the cleared session.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	onClear := s.onClear
	s.mu.Unlock()

	if onClear != nil {
		onClear()
		return
	}
	s.invalidate()
}

// invalidate wipes the session and persisted credentials without going
// through the clear hook.
func (s *SessionStore) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	s.profile = nil
	if s.creds != nil {
		if err := s.creds.Clear(); err != nil {
			s.logger.Warn("failed to clear persisted credentials", "error", err)
		}
	}
}

// setOnClear registers the coordinator's clear hook. Once set, Clear defers
// to the hook, which must wipe the store itself (via invalidate) after
// draining its waiter queue. Called outside the store mutex so the hook may
// take its own locks.
func (s *SessionStore) setOnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = fn
}
