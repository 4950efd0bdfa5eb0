package meshchat

import (
	"github.com/opd-ai/meshchat/async"
	"github.com/opd-ai/meshchat/group"
	"github.com/opd-ai/meshchat/messaging"
	"github.com/sirupsen/logrus"
)

// HandleMessage routes one inbound record. Malformed records, records
// published by this account and records addressed to another account are
// dropped without side effects.
func (s *Session) HandleMessage(topic, from string, data []byte) {
	evt, err := messaging.Decode(data)
	if err != nil {
		s.drop(dropMalformed, topic, from, err.Error())
		return
	}
	if string(evt.Topic()) != topic {
		s.drop(dropTopicMismatch, topic, from, string(evt.Type))
		return
	}
	if evt.From == s.self.AccountID {
		s.drop(dropSelf, topic, from, string(evt.Type))
		return
	}
	if !evt.AddressedTo(s.self.AccountID) {
		s.drop(dropNotAddressed, topic, from, string(evt.Type))
		return
	}

	s.metrics.routed(topic, string(evt.Type))
	logrus.WithFields(logrus.Fields{
		"function": "HandleMessage",
		"topic":    topic,
		"type":     evt.Type,
		"from":     evt.From,
		"peer_id":  from,
	}).Debug("Routing event")

	switch evt.Type {
	case messaging.TypeAnnounce:
		s.onAnnounce(from, evt)
	case messaging.TypeFriendRequest:
		s.onFriendRequest(evt)
	case messaging.TypeFriendAccept:
		s.onFriendAccept(evt)
	case messaging.TypeDirectMessage:
		s.onDirectMessage(evt)
	case messaging.TypeGroupInvite:
		s.onGroupInvite(evt)
	case messaging.TypeGroupJoin:
		s.onGroupJoin(evt)
	case messaging.TypeGroupLeave:
		s.onGroupLeave(evt)
	case messaging.TypeGroupMessage:
		s.onGroupMessage(evt)
	}
}

func (s *Session) drop(reason, topic, from, detail string) {
	s.metrics.dropped(reason)
	logrus.WithFields(logrus.Fields{
		"function": "HandleMessage",
		"reason":   reason,
		"topic":    topic,
		"peer_id":  from,
		"detail":   detail,
	}).Debug("Dropping event")
}

// HandlePeerUp records a new link. Presence is established by the beacon
// that follows, not by the link itself.
func (s *Session) HandlePeerUp(peerID string) {
	logrus.WithFields(logrus.Fields{
		"function": "HandlePeerUp",
		"peer_id":  peerID,
	}).Debug("Link up")
}

// HandlePeerDown removes the peer from the online-set.
func (s *Session) HandlePeerDown(peerID string) {
	accountID, ok := s.presence.Remove(peerID)
	if !ok {
		return
	}
	s.notify(Notice{Kind: NoticePeerOffline, From: accountID})
}

// onAnnounce applies a beacon. Only the absent to present transition
// flushes the delivery queue, so re-announcements never replay anything.
func (s *Session) onAnnounce(from string, evt *messaging.Event) {
	if evt.NetworkID != from {
		s.drop(dropSpoofed, string(messaging.TopicPresence), from, evt.NetworkID)
		return
	}
	if !s.presence.Observe(evt.NetworkID, evt.From, evt.FromName) {
		return
	}

	s.notify(Notice{Kind: NoticePeerOnline, From: evt.From, FromName: evt.FromName})
	s.flush(evt.From)
}

// flush replays everything queued for recipient through the normal publish
// path and clears it, whether or not the replay reaches anyone.
func (s *Session) flush(recipient string) {
	batch := s.queue.Drain(recipient)
	if batch.Len() == 0 {
		return
	}

	for _, e := range batch.Entries() {
		var evt *messaging.Event
		switch e.Kind {
		case async.KindDirectMessage:
			m := e.Direct
			evt = messaging.NewDirectMessage(m.From, m.FromName, recipient, m.Body, m.SentAt)
		case async.KindGroupMessage:
			m := e.GroupMessage
			evt = messaging.NewGroupMessage(m.GroupID, m.GroupName, m.Creator, m.From, m.FromName, m.Body, m.SentAt)
		case async.KindGroupLeave:
			l := e.GroupLeave
			sentAt := l.SentAt
			if sentAt.IsZero() {
				sentAt = s.timeProvider.Now()
			}
			evt = messaging.NewGroupLeave(l.GroupID, l.GroupName, l.Creator, l.LeavingAccountID, l.LeavingDisplayName, sentAt)
		default:
			continue
		}
		evt.To = recipient
		s.publish(evt)
	}

	s.metrics.flushed()
	s.persist()

	logrus.WithFields(logrus.Fields{
		"function":  "flush",
		"recipient": recipient,
		"replayed":  batch.Len(),
	}).Info("Delivery queue flushed")
}

func (s *Session) onFriendRequest(evt *messaging.Event) {
	if err := s.ledger.ReceiveRequest(evt.From, evt.FromName); err != nil {
		s.drop(dropRejected, string(messaging.TopicFriend), evt.From, err.Error())
		return
	}
	s.notify(Notice{Kind: NoticeFriendRequest, From: evt.From, FromName: evt.FromName, SentAt: evt.SentAt})
}

func (s *Session) onFriendAccept(evt *messaging.Event) {
	f, err := s.ledger.ReceiveAccept(evt.From, evt.FromName)
	if err != nil {
		s.drop(dropRejected, string(messaging.TopicFriend), evt.From, err.Error())
		return
	}
	s.persist()
	s.notify(Notice{Kind: NoticeFriendAccepted, From: f.AccountID, FromName: f.DisplayName, SentAt: evt.SentAt})
}

func (s *Session) onDirectMessage(evt *messaging.Event) {
	s.notify(Notice{
		Kind:     NoticeDirectMessage,
		From:     evt.From,
		FromName: evt.FromName,
		Body:     evt.Body,
		SentAt:   evt.SentAt,
	})
}

// onGroupInvite applies an invite. Only the invitee sees a notice.
func (s *Session) onGroupInvite(evt *messaging.Event) {
	if !group.ValidID(evt.GroupID, evt.Creator, evt.GroupName) {
		s.drop(dropRejected, string(messaging.TopicGroup), evt.From, evt.GroupID)
		return
	}
	change := s.groups.ApplyInvite(evt.GroupID, evt.GroupName, evt.Creator,
		evt.From, evt.FromName, evt.To, evt.ToName)
	if !change.Applied {
		return
	}
	s.persist()

	if evt.To == s.self.AccountID && !change.SelfParticipant {
		s.notify(Notice{
			Kind:      NoticeGroupInvite,
			From:      evt.From,
			FromName:  evt.FromName,
			GroupID:   change.Record.ID,
			GroupName: change.Record.Name,
			SentAt:    evt.SentAt,
		})
	}
}

func (s *Session) onGroupJoin(evt *messaging.Event) {
	change := s.groups.ApplyJoin(evt.GroupID, evt.From, evt.FromName)
	if !change.Applied {
		return
	}
	s.persist()

	if change.SelfParticipant {
		s.notify(Notice{
			Kind:      NoticeGroupJoin,
			From:      evt.From,
			FromName:  evt.FromName,
			GroupID:   change.Record.ID,
			GroupName: change.Record.Name,
			SentAt:    evt.SentAt,
		})
	}
}

func (s *Session) onGroupLeave(evt *messaging.Event) {
	change := s.groups.ApplyLeave(evt.GroupID, evt.From)
	if !change.Applied {
		return
	}
	s.persist()

	if change.SelfParticipant {
		s.notify(Notice{
			Kind:      NoticeGroupLeave,
			From:      evt.From,
			FromName:  evt.FromName,
			GroupID:   change.Record.ID,
			GroupName: change.Record.Name,
			SentAt:    evt.SentAt,
		})
	}
}

func (s *Session) onGroupMessage(evt *messaging.Event) {
	if !s.groups.IsParticipant(evt.GroupID) {
		s.drop(dropNotAddressed, string(messaging.TopicGroup), evt.From, evt.GroupID)
		return
	}
	s.notify(Notice{
		Kind:      NoticeGroupMessage,
		From:      evt.From,
		FromName:  evt.FromName,
		GroupID:   evt.GroupID,
		GroupName: evt.GroupName,
		Body:      evt.Body,
		SentAt:    evt.SentAt,
	})
}
