package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/credential"
	"github.com/nhle/collabtask/internal/model"
)

// ErrNoCredential is returned when an operation needs a credential and the
// slot is empty.
var ErrNoCredential = errors.New("no credential")

// Session is the single process-wide credential slot. Every component reads
// tokens through it on each use; a refresh may replace them at any moment.
type Session struct {
	store  credential.Store
	logger *zap.Logger

	mu      sync.RWMutex
	cred    *model.Credential
	version uint64
	ended   bool
	hooks   []func(reason error)
}

// New creates an empty session persisting through store.
func New(store credential.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, logger: logger, ended: true}
}

// Restore loads a previously persisted credential, if any.
func (s *Session) Restore() error {
	cred, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.version++
	s.ended = cred == nil
	return nil
}

// Login installs a fresh credential after login or OTP verification.
func (s *Session) Login(cred model.Credential) error {
	if cred.AccessToken == "" {
		return fmt.Errorf("login: %w", ErrNoCredential)
	}
	if err := s.store.Save(cred); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := cred
	s.cred = &c
	s.version++
	s.ended = false
	return nil
}

// Rotate replaces both tokens after a successful refresh. The store is
// written first; the in-memory slot only changes once that succeeded, so
// readers see both new tokens or neither.
func (s *Session) Rotate(access, refresh string) error {
	s.mu.RLock()
	if s.cred == nil {
		s.mu.RUnlock()
		return fmt.Errorf("rotate: %w", ErrNoCredential)
	}
	next := *s.cred
	s.mu.RUnlock()

	next.AccessToken = access
	if refresh != "" {
		next.RefreshToken = refresh
	}

	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("saving rotated credential: %w", err)
	}

	s.mu.Lock()
	if s.cred == nil {
		// Ended while the store write was in flight.
		s.mu.Unlock()
		if err := s.store.Clear(); err != nil {
			s.logger.Warn("clearing credential store", zap.Error(err))
		}
		return fmt.Errorf("rotate: %w", ErrNoCredential)
	}
	s.cred = &next
	s.version++
	s.mu.Unlock()
	return nil
}

// SetUser replaces the cached profile after a profile edit. Tokens and the
// version are untouched.
func (s *Session) SetUser(user model.User) error {
	s.mu.RLock()
	if s.cred == nil {
		s.mu.RUnlock()
		return fmt.Errorf("set user: %w", ErrNoCredential)
	}
	next := *s.cred
	s.mu.RUnlock()

	next.User = user
	if err := s.store.Save(next); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil || s.cred.AccessToken != next.AccessToken {
		// Ended or rotated meanwhile; keep whatever is current.
		return nil
	}
	s.cred = &next
	return nil
}

// Clear drops the credential without signalling session end. Used by an
// explicit logout.
func (s *Session) Clear() error {
	s.mu.Lock()
	had := s.cred != nil
	s.cred = nil
	s.ended = true
	if had {
		s.version++
	}
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	return nil
}

// End clears the credential and notifies every OnEnd hook. Hooks run once
// per live session: a second End before the next Login is a no-op.
func (s *Session) End(reason error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.cred = nil
	s.version++
	hooks := append([]func(error){}, s.hooks...)
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		s.logger.Warn("clearing credential store", zap.Error(err))
	}

	s.logger.Info("session ended", zap.Error(reason))
	for _, hook := range hooks {
		hook(reason)
	}
}

// OnEnd registers fn to run when the session ends involuntarily. The caller
// decides what "go to login" means.
func (s *Session) OnEnd(fn func(reason error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// AccessToken returns the current access token, or "".
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.RefreshToken
}

// Credential returns a copy of the current credential.
func (s *Session) Credential() (model.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return model.Credential{}, false
	}
	return *s.cred, true
}

// Present reports whether a credential is held.
func (s *Session) Present() bool {
	return s.AccessToken() != ""
}

// Version increases on every credential change.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Expiry reads the exp claim of a JWT access token without verifying its
// signature. ok is false for opaque or malformed tokens.
func Expiry(token string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
