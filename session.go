package meshchat

import (
	"errors"
	"fmt"

	"github.com/opd-ai/meshchat/async"
	"github.com/opd-ai/meshchat/auth"
	"github.com/opd-ai/meshchat/friend"
	"github.com/opd-ai/meshchat/group"
	"github.com/opd-ai/meshchat/limits"
	"github.com/opd-ai/meshchat/messaging"
	"github.com/opd-ai/meshchat/presence"
	"github.com/opd-ai/meshchat/store"
	"github.com/opd-ai/meshchat/transport"
	"github.com/sirupsen/logrus"
)

// ErrInvalidSessionConfig indicates a SessionConfig missing a required field.
var ErrInvalidSessionConfig = errors.New("invalid session config")

// Dispatcher runs f on the goroutine that owns the session. The Node posts f
// to its event loop; a nil Dispatcher runs f inline.
type Dispatcher func(f func())

// SessionConfig holds what a Session is built from.
type SessionConfig struct {
	Profile      auth.Profile
	Transport    transport.Transport
	Store        store.Store
	Notifier     Notifier
	Metrics      *Metrics
	TimeProvider TimeProvider
	Dispatch     Dispatcher
}

// Session is the state aggregate of one logged-in account: the online-set,
// the friend ledger, the group directory and the delivery queue, plus the
// transport and store they are synchronized through.
//
// A Session is not safe for concurrent use. Every operation and every
// inbound event must run on the same goroutine; the Node's event loop
// provides that.
type Session struct {
	self         auth.Profile
	transport    transport.Transport
	store        store.Store
	notifier     Notifier
	metrics      *Metrics
	timeProvider TimeProvider

	presence *presence.Directory
	ledger   *friend.Ledger
	groups   *group.Directory
	queue    *async.Queue
}

// NewSession loads the account's saved state and subscribes to every topic
// on the transport.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Transport == nil || cfg.Store == nil {
		return nil, fmt.Errorf("%w: transport and store are required", ErrInvalidSessionConfig)
	}
	if err := auth.ValidateAccountID(cfg.Profile.AccountID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionConfig, err)
	}

	state, err := cfg.Store.Load(cfg.Profile.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state for %s: %w", cfg.Profile.AccountID, err)
	}

	tp := getTimeProvider(cfg.TimeProvider)
	s := &Session{
		self:         cfg.Profile,
		transport:    cfg.Transport,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		timeProvider: tp,
		presence:     presence.NewDirectoryWithTimeProvider(cfg.Transport.LocalID(), tp),
		ledger:       friend.NewLedgerWithTimeProvider(cfg.Profile.AccountID, tp),
		groups:       group.NewDirectory(cfg.Profile.AccountID, cfg.Profile.DisplayName),
		queue:        async.NewQueue(),
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}

	s.ledger.Restore(state.Friends)
	s.groups.Restore(state.Groups)
	s.queue.Restore(state.Queues())

	s.subscribe(cfg.Dispatch)

	logrus.WithFields(logrus.Fields{
		"function":   "NewSession",
		"account_id": s.self.AccountID,
		"network_id": s.transport.LocalID(),
		"friends":    len(state.Friends),
		"groups":     len(state.Groups),
	}).Info("Session started")

	return s, nil
}

// subscribe routes transport callbacks through dispatch.
func (s *Session) subscribe(dispatch Dispatcher) {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	for _, topic := range messaging.Topics {
		topic := string(topic)
		s.transport.RegisterHandler(topic, func(from string, data []byte) {
			dispatch(func() { s.HandleMessage(topic, from, data) })
		})
	}
	s.transport.OnPeerUp(func(peerID string) {
		dispatch(func() { s.HandlePeerUp(peerID) })
	})
	s.transport.OnPeerDown(func(peerID string) {
		dispatch(func() { s.HandlePeerDown(peerID) })
	})
}

// Self returns the profile the session runs as.
func (s *Session) Self() auth.Profile {
	return s.self
}

// NetworkID returns the transport identity of this process.
func (s *Session) NetworkID() string {
	return s.transport.LocalID()
}

// publish encodes and broadcasts a record. Failures are logged and counted;
// local state already mutated by the caller stays as it is.
func (s *Session) publish(evt *messaging.Event) error {
	data, err := messaging.Encode(evt)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publish",
			"type":     evt.Type,
			"error":    err.Error(),
		}).Warn("Refusing to publish invalid event")
		return err
	}

	if err := s.transport.Publish(string(evt.Topic()), data); err != nil {
		s.metrics.publishFailed()
		logrus.WithFields(logrus.Fields{
			"function": "publish",
			"topic":    evt.Topic(),
			"type":     evt.Type,
			"to":       evt.To,
			"error":    err.Error(),
		}).Warn("Transport publish failed")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "publish",
		"topic":    evt.Topic(),
		"type":     evt.Type,
		"to":       evt.To,
	}).Debug("Event published")
	return nil
}

// persist rewrites the account's saved state from the live components.
func (s *Session) persist() {
	state := store.NewState()
	state.Friends = s.ledger.Friends()
	state.SetQueues(s.queue.Snapshot())
	state.Groups = s.groups.Groups()

	if err := s.store.Save(s.self.AccountID, state); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "persist",
			"account_id": s.self.AccountID,
			"error":      err.Error(),
		}).Warn("Failed to save state")
	}
}

func (s *Session) notify(n Notice) {
	s.notifier.Notify(n)
}

// Announce broadcasts a presence beacon for this process.
func (s *Session) Announce() Outcome {
	s.publish(messaging.NewAnnounce(s.transport.LocalID(), s.self.AccountID, s.self.DisplayName, s.timeProvider.Now()))
	return succeed("announced %s", s.self.AccountID)
}

// SendFriendRequest sends a request to an online account, named by account
// id or display name. The request is marked sent even if the publish fails.
func (s *Session) SendFriendRequest(target string) Outcome {
	entry, ok := s.presence.Lookup(target)
	if !ok {
		return fail("%v: %s", ErrTargetOffline, target)
	}
	if err := s.ledger.MarkSent(entry.AccountID, entry.DisplayName); err != nil {
		return failErr(err)
	}

	s.publish(messaging.NewFriendRequest(s.self.AccountID, s.self.DisplayName, entry.AccountID, entry.DisplayName, s.timeProvider.Now()))
	return succeed("friend request sent to %s", entry.DisplayName)
}

// AcceptFriendRequest accepts a pending request. The sender is told only if
// it is online right now; nothing is queued for it otherwise.
func (s *Session) AcceptFriendRequest(sender string) Outcome {
	req, ok := s.ledger.ResolvePending(sender)
	if !ok {
		return fail("%v: %s", friend.ErrNoPendingRequest, sender)
	}
	f, err := s.ledger.Accept(req.SenderAccountID)
	if err != nil {
		return failErr(err)
	}
	s.persist()

	if !s.presence.IsOnline(f.AccountID) {
		return succeed("%s is now a friend (not notified: offline)", f.DisplayName)
	}
	s.publish(messaging.NewFriendAccept(s.self.AccountID, s.self.DisplayName, f.AccountID, f.DisplayName, s.timeProvider.Now()))
	return succeed("%s is now a friend", f.DisplayName)
}

// RejectFriendRequest drops a pending request without telling the sender.
func (s *Session) RejectFriendRequest(sender string) Outcome {
	req, ok := s.ledger.ResolvePending(sender)
	if !ok {
		return fail("%v: %s", friend.ErrNoPendingRequest, sender)
	}
	if err := s.ledger.Reject(req.SenderAccountID); err != nil {
		return failErr(err)
	}
	return succeed("rejected friend request from %s", req.SenderName)
}

// SendDirectMessage sends a message to a friend. If the friend is offline a
// copy is queued and replayed when it is next seen.
func (s *Session) SendDirectMessage(target, body string) Outcome {
	if err := limits.ValidateBody(body); err != nil {
		return failErr(err)
	}
	f, ok := s.ledger.Resolve(target)
	if !ok {
		return fail("%v: %s", ErrNotFriend, target)
	}

	sentAt := s.timeProvider.Now()
	s.publish(messaging.NewDirectMessage(s.self.AccountID, s.self.DisplayName, f.AccountID, body, sentAt))

	if s.presence.IsOnline(f.AccountID) {
		return succeed("sent to %s", f.DisplayName)
	}

	err := s.queue.EnqueueDirect(f.AccountID, async.DirectMessage{
		From:     s.self.AccountID,
		FromName: s.self.DisplayName,
		Body:     body,
		SentAt:   sentAt,
	})
	if err != nil {
		return failErr(err)
	}
	s.metrics.queued(async.KindDirectMessage.String())
	s.persist()
	return succeed("%s is offline; message queued", f.DisplayName)
}

// CreateGroup creates a group owned by this account.
func (s *Session) CreateGroup(name string) Outcome {
	snap, err := s.groups.Create(name)
	if err != nil {
		return failErr(err)
	}
	s.persist()
	return succeed("created group %q (%s)", snap.Name, snap.ID)
}

// InviteToGroup invites an online friend to a group this account
// participates in.
func (s *Session) InviteToGroup(groupRef, target string) Outcome {
	rec, err := s.groups.RequireParticipant(groupRef)
	if err != nil {
		return failErr(err)
	}
	entry, ok := s.presence.Lookup(target)
	if !ok {
		return fail("%v: %s", ErrTargetOffline, target)
	}
	if !s.ledger.IsFriend(entry.AccountID) {
		return fail("%v: %s", ErrNotFriend, entry.DisplayName)
	}

	snap, err := s.groups.Invite(rec.ID, entry.AccountID, entry.DisplayName)
	if err != nil {
		return failErr(err)
	}
	s.persist()

	s.publish(messaging.NewGroupInvite(snap.ID, snap.Name, snap.Creator,
		s.self.AccountID, s.self.DisplayName, entry.AccountID, entry.DisplayName, s.timeProvider.Now()))
	return succeed("invited %s to %q", entry.DisplayName, snap.Name)
}

// AcceptGroupInvite joins a group this account was invited to. The join is
// broadcast but, unlike leaves and messages, not queued for absent members.
func (s *Session) AcceptGroupInvite(groupRef string) Outcome {
	snap, err := s.groups.Accept(groupRef)
	if err != nil {
		return failErr(err)
	}
	s.persist()

	s.publish(messaging.NewGroupJoin(snap.ID, snap.Name, snap.Creator, s.self.AccountID, s.self.DisplayName, s.timeProvider.Now()))
	return succeed("joined group %q", snap.Name)
}

// RejectGroupInvite drops this account's invitation. Nothing is sent.
func (s *Session) RejectGroupInvite(groupRef string) Outcome {
	snap, deleted, err := s.groups.Reject(groupRef)
	if err != nil {
		return failErr(err)
	}
	s.persist()

	if deleted {
		return succeed("rejected invitation to %q; group removed", snap.Name)
	}
	return succeed("rejected invitation to %q", snap.Name)
}

// LeaveGroup leaves a group, broadcasting the leave and queueing it for
// every remaining participant that is offline.
func (s *Session) LeaveGroup(groupRef string) Outcome {
	snap, deleted, err := s.groups.Leave(groupRef)
	if err != nil {
		return failErr(err)
	}

	leftAt := s.timeProvider.Now()
	s.publish(messaging.NewGroupLeave(snap.ID, snap.Name, snap.Creator, s.self.AccountID, s.self.DisplayName, leftAt))

	queued := 0
	for _, m := range snap.Participants {
		if m.AccountID == s.self.AccountID || s.presence.IsOnline(m.AccountID) {
			continue
		}
		err := s.queue.EnqueueGroupLeave(m.AccountID, async.GroupLeave{
			GroupID:            snap.ID,
			GroupName:          snap.Name,
			Creator:            snap.Creator,
			LeavingAccountID:   s.self.AccountID,
			LeavingDisplayName: s.self.DisplayName,
			SentAt:             leftAt,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "LeaveGroup",
				"recipient": m.AccountID,
				"error":     err.Error(),
			}).Warn("Failed to queue leave notice")
			continue
		}
		s.metrics.queued(async.KindGroupLeave.String())
		queued++
	}
	s.persist()

	detail := fmt.Sprintf("left group %q", snap.Name)
	if queued > 0 {
		detail += fmt.Sprintf("; notice queued for %d offline participant(s)", queued)
	}
	if deleted {
		detail += "; group removed"
	}
	return succeed("%s", detail)
}

// SendGroupMessage posts to a group and queues a copy for every other
// participant that is offline.
func (s *Session) SendGroupMessage(groupRef, body string) Outcome {
	if err := limits.ValidateBody(body); err != nil {
		return failErr(err)
	}
	rec, err := s.groups.RequireParticipant(groupRef)
	if err != nil {
		return failErr(err)
	}

	sentAt := s.timeProvider.Now()
	s.publish(messaging.NewGroupMessage(rec.ID, rec.Name, rec.Creator,
		s.self.AccountID, s.self.DisplayName, body, sentAt))

	queued := 0
	for _, m := range rec.Participants() {
		if m.AccountID == s.self.AccountID || s.presence.IsOnline(m.AccountID) {
			continue
		}
		err := s.queue.EnqueueGroupMessage(m.AccountID, async.GroupMessage{
			GroupID:   rec.ID,
			GroupName: rec.Name,
			Creator:   rec.Creator,
			From:      s.self.AccountID,
			FromName:  s.self.DisplayName,
			Body:      body,
			SentAt:    sentAt,
		})
		if err != nil {
			return failErr(err)
		}
		s.metrics.queued(async.KindGroupMessage.String())
		queued++
	}
	if queued > 0 {
		s.persist()
		return succeed("sent to %q; queued for %d offline participant(s)", rec.Name, queued)
	}
	return succeed("sent to %q", rec.Name)
}

// OnlinePeers returns the online-set.
func (s *Session) OnlinePeers() []presence.Entry {
	return s.presence.Online()
}

// Friends returns the friend edges.
func (s *Session) Friends() []friend.Friend {
	return s.ledger.Friends()
}

// PendingRequests returns inbound friend requests awaiting an answer.
func (s *Session) PendingRequests() []friend.Request {
	return s.ledger.Pending()
}

// OutboundRequests returns friend requests this account sent that are still
// unanswered.
func (s *Session) OutboundRequests() []friend.OutboundRequest {
	return s.ledger.Outbound()
}

// Groups returns every group record known locally.
func (s *Session) Groups() []group.Snapshot {
	return s.groups.Groups()
}

// QueueDepth returns how many entries are queued for recipient.
func (s *Session) QueueDepth(recipient string) int {
	return s.queue.Depth(recipient)
}

// QueuedRecipients returns the accounts with queued entries.
func (s *Session) QueuedRecipients() []string {
	return s.queue.Recipients()
}

// IsOnline reports whether accountID is currently reachable.
func (s *Session) IsOnline(accountID string) bool {
	return s.presence.IsOnline(accountID)
}
