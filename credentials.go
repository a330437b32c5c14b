package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Credentials is the durable form of a session: the entries that survive a
// process restart. The JSON field names are the fixed storage keys and must
// stay stable so existing credential files keep loading.
type Credentials struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Profile      json.RawMessage `json:"profile,omitempty"`
}

// CredentialStore provides persistent storage for session credentials.
// Implementations can use a file, a keychain, or any other durable backend.
type CredentialStore interface {
	// Load retrieves the stored credentials. A store with nothing persisted
	// returns (nil, nil).
	Load() (*Credentials, error)

	// Save stores the credentials, replacing whatever was there.
	Save(*Credentials) error

	// Clear removes the stored credentials. Clearing an empty store is not
	// an error.
	Clear() error
}

// FileCredentialStore persists credentials as a JSON file. Writes go to a
// temp file followed by an atomic rename, guarded by a lock file so
// concurrent processes sharing the same file do not interleave.
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore creates a store backed by the file at path.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Path returns the backing file path.
func (f *FileCredentialStore) Path() string { return f.path }

func (f *FileCredentialStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	return &creds, nil
}

func (f *FileCredentialStore) Save(creds *Credentials) error {
	lock, err := acquireFileLock(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first, then rename over the target so readers
	// never see a half-written file.
	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *FileCredentialStore) Clear() error {
	lock, err := acquireFileLock(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}
