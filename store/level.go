package store

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
)

// stateKeyPrefix namespaces account documents inside the database.
const stateKeyPrefix = "state/"

// LevelStore keeps one JSON document per account under a LevelDB key.
type LevelStore struct {
	db *leveldb.DB
}

// NewLevelStore opens or creates a LevelDB database at path.
func NewLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewLevelStore",
		"path":     path,
	}).Debug("State database opened")

	return &LevelStore{db: db}, nil
}

func stateKey(accountID string) []byte {
	return []byte(stateKeyPrefix + accountID)
}

// Load reads accountID's document; a missing key yields an empty state.
func (s *LevelStore) Load(accountID string) (*State, error) {
	if err := validateAccount(accountID); err != nil {
		return nil, err
	}

	data, err := s.db.Get(stateKey(accountID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return LoadState(data)
}

// Save rewrites accountID's document.
func (s *LevelStore) Save(accountID string, state *State) error {
	if err := validateAccount(accountID); err != nil {
		return err
	}

	data, err := state.Serialize()
	if err != nil {
		return err
	}
	if err := s.db.Put(stateKey(accountID), data, nil); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
