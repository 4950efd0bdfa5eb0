package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opd-ai/meshchat/async"
	"github.com/opd-ai/meshchat/friend"
	"github.com/opd-ai/meshchat/group"
)

// StateVersion is written into every saved document.
const StateVersion = 1

var (
	// ErrInvalidAccount indicates an empty account id
	ErrInvalidAccount = errors.New("invalid account id")
	// ErrCorruptState indicates a saved document that cannot be decoded
	ErrCorruptState = errors.New("corrupt saved state")
)

// Store loads and saves per-account state.
type Store interface {
	// Load returns the saved state of accountID, or an empty state if none exists.
	Load(accountID string) (*State, error)
	// Save replaces the saved state of accountID.
	Save(accountID string, state *State) error
	// Close releases the backend.
	Close() error
}

// State is the durable part of one account's session.
type State struct {
	Version              int                              `json:"version"`
	Friends              []friend.Friend                  `json:"friends"`
	PendingDirect        map[string][]async.DirectMessage `json:"pending_direct"`
	PendingGroupMessages map[string][]async.GroupMessage  `json:"pending_group_messages"`
	PendingGroupLeaves   map[string][]async.GroupLeave    `json:"pending_group_leaves"`
	Groups               []group.Snapshot                 `json:"groups"`
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		Version:              StateVersion,
		Friends:              []friend.Friend{},
		PendingDirect:        map[string][]async.DirectMessage{},
		PendingGroupMessages: map[string][]async.GroupMessage{},
		PendingGroupLeaves:   map[string][]async.GroupLeave{},
		Groups:               []group.Snapshot{},
	}
}

// Queues returns the delivery queues in the form async.Queue restores from.
func (s *State) Queues() async.Snapshot {
	return async.Snapshot{
		Direct:        s.PendingDirect,
		GroupMessages: s.PendingGroupMessages,
		GroupLeaves:   s.PendingGroupLeaves,
	}
}

// SetQueues stores a delivery queue snapshot.
func (s *State) SetQueues(q async.Snapshot) {
	s.PendingDirect = q.Direct
	s.PendingGroupMessages = q.GroupMessages
	s.PendingGroupLeaves = q.GroupLeaves
}

// Serialize converts the state to its JSON document.
func (s *State) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	return data, nil
}

// LoadState decodes a saved JSON document. Missing sections come back empty.
func LoadState(data []byte) (*State, error) {
	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	state.fillDefaults()
	return state, nil
}

// fillDefaults replaces sections a document left out or set to null.
func (s *State) fillDefaults() {
	empty := NewState()
	if s.Friends == nil {
		s.Friends = empty.Friends
	}
	if s.PendingDirect == nil {
		s.PendingDirect = empty.PendingDirect
	}
	if s.PendingGroupMessages == nil {
		s.PendingGroupMessages = empty.PendingGroupMessages
	}
	if s.PendingGroupLeaves == nil {
		s.PendingGroupLeaves = empty.PendingGroupLeaves
	}
	if s.Groups == nil {
		s.Groups = empty.Groups
	}
}

func validateAccount(accountID string) error {
	if accountID == "" {
		return ErrInvalidAccount
	}
	return nil
}
