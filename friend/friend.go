package friend

import (
	"time"

	"github.com/sirupsen/logrus"
)

// TimeProvider abstracts time operations so tests can pin friend timestamps.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider implements TimeProvider using the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// Relation is the local view of the relationship with one account.
type Relation uint8

const (
	// RelationNone means no friendship and no pending request either way.
	RelationNone Relation = iota
	// RelationRequestSent means this peer sent a request that was not answered yet.
	RelationRequestSent
	// RelationRequestReceived means a request from the account waits for a decision.
	RelationRequestReceived
	// RelationFriend means the friend edge exists in this ledger.
	RelationFriend
)

// String returns a readable relation name.
func (r Relation) String() string {
	switch r {
	case RelationRequestSent:
		return "request-sent"
	case RelationRequestReceived:
		return "request-received"
	case RelationFriend:
		return "friend"
	default:
		return "none"
	}
}

// Friend is one edge of the local friend graph. Edges are never deleted.
type Friend struct {
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	AddedAt     time.Time `json:"added_at"`
}

// newFriend creates a friend edge stamped with the provider's clock.
func newFriend(accountID, displayName string, tp TimeProvider) *Friend {
	if tp == nil {
		tp = defaultTimeProvider
	}

	f := &Friend{
		AccountID:   accountID,
		DisplayName: displayName,
		AddedAt:     tp.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"function":     "newFriend",
		"account_id":   accountID,
		"display_name": displayName,
		"added_at":     f.AddedAt,
	}).Info("Friend edge created")

	return f
}

// Request is a pending inbound friend request, keyed by its sender.
type Request struct {
	SenderAccountID string
	SenderName      string
	ReceivedAt      time.Time
}

// OutboundRequest marks a request this peer sent, keyed by its target.
type OutboundRequest struct {
	TargetAccountID string
	TargetName      string
	SentAt          time.Time
}
