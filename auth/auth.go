// Package auth implements the meshchat credential store.
//
// Accounts are kept in one JSON file. Secrets are stored only as bcrypt
// hashes; a profile carries the account id and display name a session
// announces itself with.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/meshchat/limits"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates an unknown account or a wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateAccount indicates the account id is already registered.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidAccountID indicates an account id with characters outside [A-Za-z0-9._-].
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrEmptySecret indicates an empty secret.
	ErrEmptySecret = errors.New("empty secret")
)

// Profile is the public part of an account.
type Profile struct {
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type record struct {
	Profile
	Hash []byte `json:"hash"`
}

// CredentialStore registers and authenticates accounts.
type CredentialStore struct {
	path string
	cost int

	mu      sync.Mutex
	records map[string]record
}

// Open loads the credential file at path, creating an empty store if the
// file does not exist yet.
func Open(path string) (*CredentialStore, error) {
	return OpenWithCost(path, bcrypt.DefaultCost)
}

// OpenWithCost is Open with an explicit bcrypt cost.
func OpenWithCost(path string, cost int) (*CredentialStore, error) {
	c := &CredentialStore{
		path:    path,
		cost:    cost,
		records: make(map[string]record),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	for _, r := range records {
		c.records[r.AccountID] = r
	}
	return c, nil
}

// Register creates an account. The secret is hashed before it is stored.
func (c *CredentialStore) Register(accountID, displayName, secret string) (*Profile, error) {
	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}
	if err := limits.ValidateName(displayName); err != nil {
		return nil, fmt.Errorf("invalid display name: %w", err)
	}
	if secret == "" {
		return nil, ErrEmptySecret
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), c.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[accountID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, accountID)
	}

	r := record{
		Profile: Profile{
			AccountID:   accountID,
			DisplayName: displayName,
			CreatedAt:   time.Now(),
		},
		Hash: hash,
	}
	c.records[accountID] = r

	if err := c.save(); err != nil {
		delete(c.records, accountID)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Register",
		"account_id": accountID,
	}).Info("Account registered")

	profile := r.Profile
	return &profile, nil
}

// Authenticate checks a secret against the stored hash.
func (c *CredentialStore) Authenticate(accountID, secret string) (*Profile, error) {
	c.mu.Lock()
	r, exists := c.records[accountID]
	c.mu.Unlock()

	if !exists {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(r.Hash, []byte(secret)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Authenticate",
			"account_id": accountID,
		}).Warn("Authentication failed")
		return nil, ErrInvalidCredentials
	}

	profile := r.Profile
	return &profile, nil
}

// Lookup returns the profile of a registered account.
func (c *CredentialStore) Lookup(accountID string) (*Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, exists := c.records[accountID]
	if !exists {
		return nil, false
	}
	profile := r.Profile
	return &profile, true
}

// save rewrites the credential file; c.mu must be held.
func (c *CredentialStore) save() error {
	records := make([]record, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AccountID < records[j].AccountID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// ValidateAccountID checks that an account id is usable as a durable key.
// "_" is excluded: it separates the creator from the name in group ids.
func ValidateAccountID(accountID string) error {
	if err := limits.ValidateName(accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccountID, err)
	}
	for _, r := range accountID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidAccountID, accountID, r)
		}
	}
	return nil
}
