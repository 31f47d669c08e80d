package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/collabtask/internal/model"
)

const serviceName = "collabtask"

// Fixed keys the credential is stored under.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Store persists the session credential. It is opaque to the rest of the
// client beyond load, save and clear.
type Store interface {
	// Load returns the stored credential, or nil when none is stored.
	Load() (*model.Credential, error)

	// Save replaces the stored credential.
	Save(cred model.Credential) error

	// Clear removes every stored credential key.
	Clear() error
}

// KeyringStore implements Store on top of the system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// Open returns a KeyringStore backed by the best available OS keyring,
// falling back to an encrypted file under fileDir.
func Open(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("collabtask-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Load reads the three credential keys. A credential without an access
// token is reported as absent.
func (s *KeyringStore) Load() (*model.Credential, error) {
	access, err := s.get(KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, nil
	}

	refresh, err := s.get(KeyRefreshToken)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{AccessToken: access, RefreshToken: refresh}

	rawUser, err := s.get(KeyUser)
	if err != nil {
		return nil, err
	}
	if rawUser != "" {
		if err := json.Unmarshal([]byte(rawUser), &cred.User); err != nil {
			return nil, fmt.Errorf("decoding stored user: %w", err)
		}
	}

	return cred, nil
}

// Save writes the user first and the access token last, so a reader never
// sees a new access token next to a missing refresh token.
func (s *KeyringStore) Save(cred model.Credential) error {
	user, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	if err := s.set(KeyUser, string(user)); err != nil {
		return err
	}
	if err := s.set(KeyRefreshToken, cred.RefreshToken); err != nil {
		return err
	}
	return s.set(KeyAccessToken, cred.AccessToken)
}

// Clear removes all keys. Keys that are already absent are not an error.
func (s *KeyringStore) Clear() error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			errs = append(errs, fmt.Errorf("deleting credential %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// get returns "" for a missing key.
func (s *KeyringStore) get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}
