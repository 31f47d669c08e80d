package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/collabtask/internal/credential"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/session"
)

// NewSession returns a session backed by an in-memory keyring, logged in
// with cred when cred carries an access token.
func NewSession(t *testing.T, cred model.Credential) *session.Session {
	t.Helper()

	sess := session.New(credential.NewKeyringStore(keyring.NewArrayKeyring(nil)), nil)
	if cred.AccessToken != "" {
		if err := sess.Login(cred); err != nil {
			t.Fatalf("logging in test session: %v", err)
		}
	}
	return sess
}

// APIConfig returns client settings pointed at baseURL with test-friendly
// defaults.
func APIConfig(baseURL string) model.APIConfig {
	cfg := model.DefaultAppConfig().API
	cfg.BaseURL = baseURL
	cfg.TimeoutSec = 5
	return cfg
}
