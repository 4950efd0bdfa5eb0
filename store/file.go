package store

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileStore keeps one JSON document per account in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file holding accountID's state.
func (s *FileStore) Path(accountID string) string {
	return filepath.Join(s.dir, url.PathEscape(accountID)+".json")
}

// Load reads accountID's document; a missing file yields an empty state.
func (s *FileStore) Load(accountID string) (*State, error) {
	if err := validateAccount(accountID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(accountID))
	if errors.Is(err, fs.ErrNotExist) {
		logrus.WithFields(logrus.Fields{
			"function":   "Load",
			"account_id": accountID,
		}).Debug("No saved state, starting empty")
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return LoadState(data)
}

// Save rewrites accountID's document.
func (s *FileStore) Save(accountID string, state *State) error {
	if err := validateAccount(accountID); err != nil {
		return err
	}

	data, err := state.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(accountID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
