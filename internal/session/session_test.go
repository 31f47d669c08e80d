package session

import (
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/collabtask/internal/credential"
	"github.com/nhle/collabtask/internal/model"
)

type failingStore struct {
	credential.Store
	saveErr error
}

func (f failingStore) Save(model.Credential) error { return f.saveErr }

func newTestSession(t *testing.T) (*Session, *credential.KeyringStore) {
	t.Helper()
	store := credential.NewKeyringStore(keyring.NewArrayKeyring(nil))
	return New(store, nil), store
}

func TestSession_LoginRotateRestore(t *testing.T) {
	s, store := newTestSession(t)
	assert.False(t, s.Present())

	require.NoError(t, s.Login(model.Credential{
		AccessToken:  "a1",
		RefreshToken: "r1",
		User:         model.User{ID: "u1"},
	}))
	v1 := s.Version()

	require.NoError(t, s.Rotate("a2", "r2"))
	assert.Equal(t, "a2", s.AccessToken())
	assert.Equal(t, "r2", s.RefreshToken())
	assert.Greater(t, s.Version(), v1)

	restored := New(store, nil)
	require.NoError(t, restored.Restore())
	cred, ok := restored.Credential()
	require.True(t, ok)
	assert.Equal(t, "a2", cred.AccessToken)
	assert.Equal(t, "r2", cred.RefreshToken)
	assert.Equal(t, "u1", cred.User.ID)
}

func TestSession_RotateIsAllOrNothing(t *testing.T) {
	base := credential.NewKeyringStore(keyring.NewArrayKeyring(nil))
	s := New(base, nil)
	require.NoError(t, s.Login(model.Credential{AccessToken: "a1", RefreshToken: "r1"}))

	s.store = failingStore{Store: base, saveErr: errors.New("disk full")}
	err := s.Rotate("a2", "r2")
	require.Error(t, err)

	assert.Equal(t, "a1", s.AccessToken())
	assert.Equal(t, "r1", s.RefreshToken())
}

// endingStore ends the session while a save is in flight and fails every
// clear.
type endingStore struct {
	credential.Store
	session  *Session
	clearErr error
}

func (e *endingStore) Save(model.Credential) error {
	e.session.End(errors.New("revoked"))
	return nil
}

func (e *endingStore) Clear() error { return e.clearErr }

func TestSession_RotateAfterEndLogsClearFailure(t *testing.T) {
	base := credential.NewKeyringStore(keyring.NewArrayKeyring(nil))
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(base, zap.New(core))
	require.NoError(t, s.Login(model.Credential{AccessToken: "a1", RefreshToken: "r1"}))

	s.store = &endingStore{Store: base, session: s, clearErr: errors.New("keyring locked")}
	err := s.Rotate("a2", "r2")
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.False(t, s.Present())

	// One from End, one from Rotate noticing the end.
	warnings := logs.FilterMessage("clearing credential store").All()
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, "keyring locked", w.ContextMap()["error"])
	}
}

func TestSession_RotateWithoutCredentialFails(t *testing.T) {
	s, _ := newTestSession(t)
	assert.ErrorIs(t, s.Rotate("a", "r"), ErrNoCredential)
}

func TestSession_EndFiresHooksOnce(t *testing.T) {
	s, store := newTestSession(t)
	require.NoError(t, s.Login(model.Credential{AccessToken: "a1", RefreshToken: "r1"}))

	var reasons []error
	s.OnEnd(func(reason error) { reasons = append(reasons, reason) })

	cause := errors.New("refresh rejected")
	s.End(cause)
	s.End(cause)

	require.Len(t, reasons, 1)
	assert.Equal(t, cause, reasons[0])
	assert.False(t, s.Present())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)

	// A new login re-arms the hooks.
	require.NoError(t, s.Login(model.Credential{AccessToken: "a2"}))
	s.End(cause)
	assert.Len(t, reasons, 2)
}

func TestSession_ClearDoesNotFireHooks(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Login(model.Credential{AccessToken: "a1"}))

	fired := false
	s.OnEnd(func(error) { fired = true })

	require.NoError(t, s.Clear())
	assert.False(t, fired)
	assert.False(t, s.Present())
}

func TestSession_SetUserKeepsTokens(t *testing.T) {
	s, store := newTestSession(t)
	assert.ErrorIs(t, s.SetUser(model.User{ID: "u1"}), ErrNoCredential)

	require.NoError(t, s.Login(model.Credential{AccessToken: "a1", RefreshToken: "r1", User: model.User{ID: "u1", FirstName: "Ada"}}))
	v := s.Version()

	require.NoError(t, s.SetUser(model.User{ID: "u1", FirstName: "Augusta"}))
	cred, ok := s.Credential()
	require.True(t, ok)
	assert.Equal(t, "Augusta", cred.User.FirstName)
	assert.Equal(t, "a1", cred.AccessToken)
	assert.Equal(t, v, s.Version())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Augusta", stored.User.FirstName)
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := Expiry(token)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = Expiry("opaque-token")
	assert.False(t, ok)
}
