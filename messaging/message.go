package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/meshchat/limits"
)

// Topic names one of the broadcast channels every peer subscribes to.
type Topic string

const (
	// TopicPresence carries presence beacons.
	TopicPresence Topic = "presence"
	// TopicFriend carries friend requests and accept notices.
	TopicFriend Topic = "friend"
	// TopicDirect carries direct messages.
	TopicDirect Topic = "direct"
	// TopicGroup carries group invitations, membership changes and messages.
	TopicGroup Topic = "group"
)

// Topics lists every topic a session subscribes to.
var Topics = []Topic{TopicPresence, TopicFriend, TopicDirect, TopicGroup}

// EventType is the type discriminator carried by every record.
type EventType string

const (
	// TypeAnnounce is the periodic presence beacon. Never addressed.
	TypeAnnounce EventType = "announce"
	// TypeFriendRequest asks the addressed account for friendship.
	TypeFriendRequest EventType = "friend_request"
	// TypeFriendAccept tells a requester its request was accepted.
	TypeFriendAccept EventType = "friend_accept"
	// TypeDirectMessage carries a body for exactly one addressed friend.
	TypeDirectMessage EventType = "direct_message"
	// TypeGroupInvite offers membership of a group to the addressed account.
	TypeGroupInvite EventType = "group_invite"
	// TypeGroupJoin announces that the sender accepted an invitation.
	TypeGroupJoin EventType = "group_join"
	// TypeGroupLeave announces that the sender left a group. When replayed
	// from a delivery queue it is addressed to the absent participant.
	TypeGroupLeave EventType = "group_leave"
	// TypeGroupMessage carries a body for every participant of a group.
	// When replayed from a delivery queue it is addressed to one participant.
	TypeGroupMessage EventType = "group_message"
)

var (
	// ErrMalformed indicates a record that cannot be decoded or lacks required fields.
	ErrMalformed = errors.New("malformed event")
	// ErrUnknownType indicates a record whose type discriminator is not recognized.
	ErrUnknownType = errors.New("unknown event type")
)

var eventTopics = map[EventType]Topic{
	TypeAnnounce:      TopicPresence,
	TypeFriendRequest: TopicFriend,
	TypeFriendAccept:  TopicFriend,
	TypeDirectMessage: TopicDirect,
	TypeGroupInvite:   TopicGroup,
	TypeGroupJoin:     TopicGroup,
	TypeGroupLeave:    TopicGroup,
	TypeGroupMessage:  TopicGroup,
}

// Event is the single record shape published on every topic.
type Event struct {
	Type      EventType `json:"type"`
	NetworkID string    `json:"network_id,omitempty"`
	From      string    `json:"from"`
	FromName  string    `json:"from_name,omitempty"`
	To        string    `json:"to,omitempty"`
	ToName    string    `json:"to_name,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	GroupName string    `json:"group_name,omitempty"`
	Creator   string    `json:"creator,omitempty"`
	Body      string    `json:"body,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// NewAnnounce creates a presence beacon.
func NewAnnounce(networkID, accountID, displayName string, sentAt time.Time) *Event {
	return &Event{
		Type:      TypeAnnounce,
		NetworkID: networkID,
		From:      accountID,
		FromName:  displayName,
		SentAt:    sentAt,
	}
}

// NewFriendRequest creates a friend request addressed to the target account.
func NewFriendRequest(from, fromName, to, toName string, sentAt time.Time) *Event {
	return &Event{
		Type:     TypeFriendRequest,
		From:     from,
		FromName: fromName,
		To:       to,
		ToName:   toName,
		SentAt:   sentAt,
	}
}

// NewFriendAccept creates the notice telling a requester its request was accepted.
func NewFriendAccept(from, fromName, to, toName string, sentAt time.Time) *Event {
	evt := NewFriendRequest(from, fromName, to, toName, sentAt)
	evt.Type = TypeFriendAccept
	return evt
}

// NewDirectMessage creates a direct message addressed to one account.
func NewDirectMessage(from, fromName, to, body string, sentAt time.Time) *Event {
	return &Event{
		Type:     TypeDirectMessage,
		From:     from,
		FromName: fromName,
		To:       to,
		Body:     body,
		SentAt:   sentAt,
	}
}

// NewGroupInvite creates an invitation addressed to the invited account.
func NewGroupInvite(groupID, groupName, creator, from, fromName, to, toName string, sentAt time.Time) *Event {
	return &Event{
		Type:      TypeGroupInvite,
		From:      from,
		FromName:  fromName,
		To:        to,
		ToName:    toName,
		GroupID:   groupID,
		GroupName: groupName,
		Creator:   creator,
		SentAt:    sentAt,
	}
}

// NewGroupJoin creates the membership notice broadcast after accepting an invitation.
func NewGroupJoin(groupID, groupName, creator, from, fromName string, sentAt time.Time) *Event {
	return &Event{
		Type:      TypeGroupJoin,
		From:      from,
		FromName:  fromName,
		GroupID:   groupID,
		GroupName: groupName,
		Creator:   creator,
		SentAt:    sentAt,
	}
}

// NewGroupLeave creates the membership notice broadcast when a participant leaves.
func NewGroupLeave(groupID, groupName, creator, from, fromName string, sentAt time.Time) *Event {
	evt := NewGroupJoin(groupID, groupName, creator, from, fromName, sentAt)
	evt.Type = TypeGroupLeave
	return evt
}

// NewGroupMessage creates a message for every participant of a group.
func NewGroupMessage(groupID, groupName, creator, from, fromName, body string, sentAt time.Time) *Event {
	return &Event{
		Type:      TypeGroupMessage,
		From:      from,
		FromName:  fromName,
		GroupID:   groupID,
		GroupName: groupName,
		Creator:   creator,
		Body:      body,
		SentAt:    sentAt,
	}
}

// Topic returns the topic the record is published on.
func (e *Event) Topic() Topic {
	return eventTopics[e.Type]
}

// AddressedTo reports whether the record concerns accountID: records without
// a target concern every subscriber.
func (e *Event) AddressedTo(accountID string) bool {
	return e.To == "" || e.To == accountID
}

// Validate checks the type discriminator and the fields that type requires.
func (e *Event) Validate() error {
	if _, ok := eventTopics[e.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if e.From == "" {
		return fmt.Errorf("%w: %s without sender", ErrMalformed, e.Type)
	}

	switch e.Type {
	case TypeAnnounce:
		if e.NetworkID == "" {
			return fmt.Errorf("%w: announce without network id", ErrMalformed)
		}
	case TypeFriendRequest, TypeFriendAccept:
		if e.To == "" {
			return fmt.Errorf("%w: %s without target", ErrMalformed, e.Type)
		}
	case TypeDirectMessage:
		if e.To == "" || e.Body == "" {
			return fmt.Errorf("%w: direct message without target or body", ErrMalformed)
		}
	case TypeGroupInvite:
		if e.GroupID == "" || e.To == "" {
			return fmt.Errorf("%w: invite without group or target", ErrMalformed)
		}
	case TypeGroupJoin, TypeGroupLeave:
		if e.GroupID == "" {
			return fmt.Errorf("%w: %s without group", ErrMalformed, e.Type)
		}
	case TypeGroupMessage:
		if e.GroupID == "" || e.Body == "" {
			return fmt.Errorf("%w: group message without group or body", ErrMalformed)
		}
	}
	return nil
}

// Encode validates and serializes a record for publishing.
func Encode(e *Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s event: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses and validates a received record.
func Decode(data []byte) (*Event, error) {
	if err := limits.ValidateProcessingBuffer(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}
