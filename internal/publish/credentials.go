package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrCredentialMissing is returned when a user has not linked a YouTube
// account yet.
var ErrCredentialMissing = errors.New("youtube credential not linked")

// Credential is one user's stored OAuth token pair.
type Credential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the access token expires inside the leeway
// window. A zero expiry is treated as still valid, matching tokens issued
// without an expiry hint.
func (c Credential) ExpiresWithin(leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !c.ExpiresAt.After(time.Now().Add(leeway))
}

// CredentialStore abstracts persistence of per-user credentials.
type CredentialStore interface {
	Load(userID string) (Credential, error)
	Save(credential Credential) error
}

// FileCredentialStore writes one JSON file per user under a directory.
type FileCredentialStore struct {
	dir string
}

// NewFileCredentialStore builds a FileCredentialStore rooted at dir.
func NewFileCredentialStore(dir string) *FileCredentialStore {
	return &FileCredentialStore{dir: dir}
}

func (s *FileCredentialStore) path(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, "/\\") {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(s.dir, userID+".json"), nil
}

// Load reads a user's credential. A missing file resolves to
// ErrCredentialMissing.
func (s *FileCredentialStore) Load(userID string) (Credential, error) {
	path, err := s.path(userID)
	if err != nil {
		return Credential{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, ErrCredentialMissing
		}
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}
	var credential Credential
	if err := json.Unmarshal(data, &credential); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	if credential.UserID == "" {
		credential.UserID = userID
	}
	return credential, nil
}

// Save persists a credential with restricted permissions.
func (s *FileCredentialStore) Save(credential Credential) error {
	path, err := s.path(credential.UserID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure credential directory: %w", err)
	}
	data, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}
