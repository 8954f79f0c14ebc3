// Package session holds the persisted client-side login record and the
// bearer-token slot the gateway client attaches to backend requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alecgard/ovpnadmin/internal/crypto"
	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

const (
	// StorageName is the fixed key of the persisted session record.
	StorageName = "ovpnadmin-session"

	// stateVersion tags the persisted envelope for future migrations.
	stateVersion = 1
)

// State is the persisted session record.
type State struct {
	User        model.User `json:"user"`
	IsLogin     bool       `json:"isLogin"`
	AccessToken string     `json:"accessToken"`
}

func (s State) empty() bool {
	return !s.IsLogin && s.User.IsZero() && s.AccessToken == ""
}

type envelope struct {
	Version int   `json:"version"`
	State   State `json:"state"`
}

// Store is the single mutable session resource. All mutation goes through
// UpdateUser, UpdateIsLogin, UpdateAccessToken and ClearLoginInfo; each
// updates memory first (visible to every reader immediately) and then
// persists. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	// writeMu orders persistence so storage never lags behind an older
	// in-memory state.
	writeMu sync.Mutex

	kv     storage.KV
	token  *TokenSlot
	cipher *crypto.Cipher
}

// NewStore creates an empty store persisting to kv. token may be nil when no
// transport-layer token mirror is used; cipher may be nil to store plain JSON.
func NewStore(kv storage.KV, token *TokenSlot, cipher *crypto.Cipher) *Store {
	return &Store{kv: kv, token: token, cipher: cipher}
}

// Load rehydrates the in-memory state from storage. A missing, unreadable or
// unknown-version record yields the empty session.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, StorageName)
	if errors.Is(err, storage.ErrNotFound) {
		s.set(State{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	plain, err := s.cipher.Open(raw)
	if err != nil {
		logging.FromContext(ctx).Warn("discarding unreadable session record", "error", err)
		s.set(State{})
		return nil
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		logging.FromContext(ctx).Warn("discarding malformed session record", "error", err)
		s.set(State{})
		return nil
	}
	if env.Version != stateVersion {
		logging.FromContext(ctx).Warn("discarding session record with unknown version", "version", env.Version)
		s.set(State{})
		return nil
	}

	s.set(env.State)
	return nil
}

func (s *Store) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the cached user record; zero when not authenticated.
func (s *Store) User() model.User {
	return s.Snapshot().User
}

// IsLogin returns the authentication flag.
func (s *Store) IsLogin() bool {
	return s.Snapshot().IsLogin
}

// AccessToken returns the stored bearer token.
func (s *Store) AccessToken() string {
	return s.Snapshot().AccessToken
}

// Authenticated reports whether role-dependent views may render: the flag is
// set and the profile has been fetched.
func (s *Store) Authenticated() bool {
	st := s.Snapshot()
	return st.IsLogin && !st.User.IsZero()
}

// UpdateUser replaces the cached user record.
func (s *Store) UpdateUser(ctx context.Context, u model.User) error {
	return s.mutate(ctx, func(st *State) { st.User = u })
}

// UpdateIsLogin sets the authentication flag independently of the user
// record.
func (s *Store) UpdateIsLogin(ctx context.Context, flag bool) error {
	return s.mutate(ctx, func(st *State) { st.IsLogin = flag })
}

// UpdateAccessToken stores the bearer token and mirrors it into the token
// slot (an empty token clears the slot).
func (s *Store) UpdateAccessToken(ctx context.Context, token string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st := s.apply(func(st *State) { st.AccessToken = token })

	var slotErr error
	if s.token != nil {
		if token == "" {
			slotErr = s.token.Clear(ctx)
		} else {
			slotErr = s.token.Set(ctx, token)
		}
	}
	return errors.Join(s.persist(ctx, st), slotErr)
}

// ClearLoginInfo atomically resets the record to empty and removes the token
// slot and the persisted record. Presence is checked on the raw keys, so
// artifacts sealed under a rotated secret are removed too. It reports
// whether anything was cleared; a call on an already empty session performs
// no writes.
func (s *Store) ClearLoginInfo(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	hadState := !s.state.empty()
	s.state = State{}
	s.mu.Unlock()

	hadToken := false
	if s.token != nil && s.token.present(ctx) {
		hadToken = true
		if err := s.token.Clear(ctx); err != nil {
			logging.FromContext(ctx).Error("failed to clear token slot", "error", err)
		}
	}

	hadRecord := hadState
	if !hadRecord {
		_, err := s.kv.Get(ctx, StorageName)
		hadRecord = !errors.Is(err, storage.ErrNotFound)
	}
	if hadRecord {
		if err := s.kv.Delete(ctx, StorageName); err != nil {
			logging.FromContext(ctx).Error("failed to delete session record", "error", err)
		}
	}
	return hadState || hadToken || hadRecord
}

func (s *Store) mutate(ctx context.Context, fn func(*State)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(ctx, s.apply(fn))
}

func (s *Store) apply(fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	return s.state
}

// persist must be called with writeMu held.
func (s *Store) persist(ctx context.Context, st State) error {
	if st.empty() {
		if err := s.kv.Delete(ctx, StorageName); err != nil {
			return fmt.Errorf("persisting session: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(envelope{Version: stateVersion, State: st})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	sealed, err := s.cipher.Seal(data)
	if err != nil {
		return fmt.Errorf("sealing session: %w", err)
	}
	if err := s.kv.Set(ctx, StorageName, sealed, time.Time{}); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}
