package friend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyFriends indicates the account is already a friend.
	ErrAlreadyFriends = errors.New("already friends")
	// ErrAlreadySent indicates an outbound request to the account is still pending.
	ErrAlreadySent = errors.New("friend request already sent")
	// ErrDuplicateRequest indicates an inbound request from the sender is already pending.
	ErrDuplicateRequest = errors.New("friend request already pending")
	// ErrNoPendingRequest indicates no inbound request from the account exists.
	ErrNoPendingRequest = errors.New("no pending friend request")
	// ErrNoOutstandingRequest indicates an accept notice for a request this peer never sent.
	ErrNoOutstandingRequest = errors.New("no outstanding friend request")
	// ErrSelfRequest indicates an attempt to befriend oneself.
	ErrSelfRequest = errors.New("cannot befriend yourself")
)

// Ledger is the local friend graph plus pending request state.
// A Ledger is not safe for concurrent use; the session's event loop owns it.
type Ledger struct {
	selfAccountID string
	friends       map[string]*Friend
	inbound       map[string]*Request
	outbound      map[string]*OutboundRequest
	timeProvider  TimeProvider
}

// NewLedger creates an empty ledger for selfAccountID.
func NewLedger(selfAccountID string) *Ledger {
	return NewLedgerWithTimeProvider(selfAccountID, defaultTimeProvider)
}

// NewLedgerWithTimeProvider creates an empty ledger with a custom time provider.
func NewLedgerWithTimeProvider(selfAccountID string, tp TimeProvider) *Ledger {
	if tp == nil {
		tp = defaultTimeProvider
	}
	return &Ledger{
		selfAccountID: selfAccountID,
		friends:       make(map[string]*Friend),
		inbound:       make(map[string]*Request),
		outbound:      make(map[string]*OutboundRequest),
		timeProvider:  tp,
	}
}

// Relation returns the local view of the relationship with accountID.
func (l *Ledger) Relation(accountID string) Relation {
	if _, ok := l.friends[accountID]; ok {
		return RelationFriend
	}
	if _, ok := l.inbound[accountID]; ok {
		return RelationRequestReceived
	}
	if _, ok := l.outbound[accountID]; ok {
		return RelationRequestSent
	}
	return RelationNone
}

// MarkSent records an outbound request to target. Presence of the target is
// checked by the caller. The marker stays set even if the publish later fails.
func (l *Ledger) MarkSent(targetAccountID, targetName string) error {
	if targetAccountID == l.selfAccountID {
		return ErrSelfRequest
	}
	if _, ok := l.friends[targetAccountID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyFriends, targetAccountID)
	}
	if _, ok := l.outbound[targetAccountID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySent, targetAccountID)
	}

	l.outbound[targetAccountID] = &OutboundRequest{
		TargetAccountID: targetAccountID,
		TargetName:      targetName,
		SentAt:          l.timeProvider.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"function": "MarkSent",
		"self":     l.selfAccountID,
		"target":   targetAccountID,
	}).Debug("Outbound friend request recorded")

	return nil
}

// ReceiveRequest records an inbound request addressed to this peer.
func (l *Ledger) ReceiveRequest(senderAccountID, senderName string) error {
	if senderAccountID == l.selfAccountID {
		return ErrSelfRequest
	}
	if _, ok := l.friends[senderAccountID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyFriends, senderAccountID)
	}
	if _, ok := l.inbound[senderAccountID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, senderAccountID)
	}

	l.inbound[senderAccountID] = &Request{
		SenderAccountID: senderAccountID,
		SenderName:      senderName,
		ReceivedAt:      l.timeProvider.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"function": "ReceiveRequest",
		"self":     l.selfAccountID,
		"sender":   senderAccountID,
	}).Info("Friend request received")

	return nil
}

// Accept turns the pending inbound request from sender into a friend edge
// and clears every pending marker for that account.
func (l *Ledger) Accept(senderAccountID string) (Friend, error) {
	req, ok := l.inbound[senderAccountID]
	if !ok {
		return Friend{}, fmt.Errorf("%w: %s", ErrNoPendingRequest, senderAccountID)
	}

	f := newFriend(req.SenderAccountID, req.SenderName, l.timeProvider)
	l.friends[f.AccountID] = f
	delete(l.inbound, senderAccountID)
	delete(l.outbound, senderAccountID)

	return *f, nil
}

// Reject drops the pending inbound request from sender. Nothing is sent to
// the sender, who stays in the request-sent state on its side.
func (l *Ledger) Reject(senderAccountID string) error {
	if _, ok := l.inbound[senderAccountID]; !ok {
		return fmt.Errorf("%w: %s", ErrNoPendingRequest, senderAccountID)
	}
	delete(l.inbound, senderAccountID)

	logrus.WithFields(logrus.Fields{
		"function": "Reject",
		"self":     l.selfAccountID,
		"sender":   senderAccountID,
	}).Info("Friend request rejected")

	return nil
}

// ReceiveAccept applies an accept notice addressed to this peer. Only an
// outstanding outbound request can be completed this way.
func (l *Ledger) ReceiveAccept(fromAccountID, fromName string) (Friend, error) {
	if _, ok := l.friends[fromAccountID]; ok {
		return Friend{}, fmt.Errorf("%w: %s", ErrAlreadyFriends, fromAccountID)
	}
	out, ok := l.outbound[fromAccountID]
	if !ok {
		return Friend{}, fmt.Errorf("%w: %s", ErrNoOutstandingRequest, fromAccountID)
	}

	name := fromName
	if name == "" {
		name = out.TargetName
	}
	f := newFriend(fromAccountID, name, l.timeProvider)
	l.friends[f.AccountID] = f
	delete(l.outbound, fromAccountID)
	delete(l.inbound, fromAccountID)

	return *f, nil
}

// IsFriend reports whether accountID is a friend.
func (l *Ledger) IsFriend(accountID string) bool {
	_, ok := l.friends[accountID]
	return ok
}

// Resolve finds a friend by account id, falling back to a case-insensitive
// display name match.
func (l *Ledger) Resolve(target string) (Friend, bool) {
	if f, ok := l.friends[target]; ok {
		return *f, true
	}
	for _, f := range l.friends {
		if strings.EqualFold(f.DisplayName, target) {
			return *f, true
		}
	}
	return Friend{}, false
}

// ResolvePending finds a pending inbound request by sender account id or name.
func (l *Ledger) ResolvePending(target string) (Request, bool) {
	if req, ok := l.inbound[target]; ok {
		return *req, true
	}
	for _, req := range l.inbound {
		if strings.EqualFold(req.SenderName, target) {
			return *req, true
		}
	}
	return Request{}, false
}

// Friends returns the friend edges ordered by account id.
func (l *Ledger) Friends() []Friend {
	result := make([]Friend, 0, len(l.friends))
	for _, f := range l.friends {
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result
}

// Pending returns inbound requests ordered by arrival.
func (l *Ledger) Pending() []Request {
	result := make([]Request, 0, len(l.inbound))
	for _, req := range l.inbound {
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ReceivedAt.Equal(result[j].ReceivedAt) {
			return result[i].SenderAccountID < result[j].SenderAccountID
		}
		return result[i].ReceivedAt.Before(result[j].ReceivedAt)
	})
	return result
}

// Outbound returns the requests this peer sent that are still unanswered.
func (l *Ledger) Outbound() []OutboundRequest {
	result := make([]OutboundRequest, 0, len(l.outbound))
	for _, out := range l.outbound {
		result = append(result, *out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TargetAccountID < result[j].TargetAccountID })
	return result
}

// Restore replaces the friend edges with persisted ones. Pending request
// state is not persisted and is left untouched.
func (l *Ledger) Restore(friends []Friend) {
	l.friends = make(map[string]*Friend, len(friends))
	for i := range friends {
		f := friends[i]
		if f.AccountID == "" {
			continue
		}
		l.friends[f.AccountID] = &f
	}
}
