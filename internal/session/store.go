package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"simguard/client/internal/models"
)

// Session is the authenticated identity plus credential pair. At most one
// exists per running client. Authenticated holds exactly when both a user
// and an access token are present.
type Session struct {
	AccessToken   string
	RefreshToken  string
	User          *models.User
	Authenticated bool
}

// persistedState mirrors the three durable entries: access token, refresh
// token, serialized user. They are always written and cleared together.
type persistedState struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

const stateFile = "session.json"

// Store is the single holder of the Session. Persist and Clear are the
// only writers of durable storage; everything else reads snapshots.
type Store struct {
	path string
	seal *sealer
	log  zerolog.Logger

	mu      sync.Mutex
	current Session
}

// NewStore prepares a store rooted at dir. A non-empty passphrase enables
// at-rest sealing of the session file.
func NewStore(dir string, passphrase string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &Store{
		path: filepath.Join(dir, stateFile),
		log:  logger,
	}
	if passphrase != "" {
		s.seal = newSealer(passphrase)
	}
	return s, nil
}

// Load rehydrates the session from durable storage. Anything unreadable,
// unsealable, or undecodable counts as "never logged in": the blob is
// discarded and an unauthenticated session returned. Load never fails.
func (s *Store) Load() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.discardLocked("unreadable session file")
		}
		s.current = Session{}
		return s.current
	}

	if s.seal != nil {
		raw, err = s.seal.open(raw)
		if err != nil {
			s.discardLocked("session file failed to unseal")
			s.current = Session{}
			return s.current
		}
	}

	var st persistedState
	if err := json.Unmarshal(raw, &st); err != nil || st.AccessToken == "" || st.User == nil {
		s.discardLocked("malformed session file")
		s.current = Session{}
		return s.current
	}

	s.current = Session{
		AccessToken:   st.AccessToken,
		RefreshToken:  st.RefreshToken,
		User:          st.User,
		Authenticated: true,
	}
	return s.current
}

// Persist writes tokens and identity together and replaces the in-memory
// session. A Load in this or a later process reconstructs the same value.
func (s *Store) Persist(accessToken, refreshToken string, user models.User) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := persistedState{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         &user,
	}
	data, err := json.Marshal(st)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if s.seal != nil {
		data, err = s.seal.close(data)
		if err != nil {
			return Session{}, fmt.Errorf("seal session: %w", err)
		}
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return Session{}, fmt.Errorf("write session: %w", err)
	}

	u := user
	s.current = Session{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		User:          &u,
		Authenticated: true,
	}
	return s.current, nil
}

// ReplaceUser swaps the identity snapshot wholesale, keeping the current
// tokens. No-op when unauthenticated.
func (s *Store) ReplaceUser(user models.User) (Session, error) {
	s.mu.Lock()
	access, refresh := s.current.AccessToken, s.current.RefreshToken
	authed := s.current.Authenticated
	s.mu.Unlock()

	if !authed {
		return Session{}, nil
	}
	return s.Persist(access, refresh, user)
}

// Clear removes all persisted fields and empties the in-memory session.
// It is idempotent; the return value reports whether this call was the
// one that observably cleared an authenticated session, so callers can
// fire exactly-once side effects under concurrent invalidation.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := s.current.Authenticated
	s.current = Session{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Msg("remove session file failed")
	}
	return cleared
}

// Session returns a snapshot of the current session.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsAuthenticated is a pure predicate over in-memory state. An access
// token whose embedded expiry has passed counts as unauthenticated, since
// the server would reject it anyway.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Authenticated && !tokenExpired(s.current.AccessToken)
}

// BearerToken returns the access token to sign requests with, and whether
// one should be attached at all.
func (s *Store) BearerToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.Authenticated || tokenExpired(s.current.AccessToken) {
		return "", false
	}
	return s.current.AccessToken, true
}

func (s *Store) discardLocked(reason string) {
	s.log.Debug().Str("path", s.path).Msg(reason + ", discarding")
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Msg("discard session file failed")
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
