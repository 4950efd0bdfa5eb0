// Package meshchat implements a peer-to-peer chat protocol over a broadcast
// transport: presence, friends, groups and store-and-forward delivery.
//
// Every peer subscribes to four topics and receives every record published on
// them; records addressed to another account are discarded locally. Sends to
// an account that is not currently online are additionally filed in a
// durable per-recipient queue and replayed the next time that account is
// observed online.
//
// Example:
//
//	options := meshchat.NewOptions()
//	options.Peers = []string{"10.0.0.2:7400"}
//
//	mesh, err := transport.NewMeshTransport(options.ListenAddr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	node, err := meshchat.NewNode(options, meshchat.SessionConfig{
//	    Profile:   *profile,
//	    Transport: mesh,
//	    Store:     st,
//	    Notifier: meshchat.NotifierFunc(func(n meshchat.Notice) {
//	        fmt.Println(n)
//	    }),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	node.Start()
//	defer node.Stop()
//
//	outcome := node.Do(ctx, func(s *meshchat.Session) meshchat.Outcome {
//	    return s.SendDirectMessage("bob", "hello")
//	})
//	fmt.Println(outcome.Detail)
package meshchat

import (
	"errors"
	"fmt"
	"time"
)

// Outcome is the structured result of every user-facing operation.
// Validation failures are reported here rather than as errors; none of them
// are fatal.
type Outcome struct {
	Succeeded bool
	Detail    string
}

// String renders the outcome for display.
func (o Outcome) String() string {
	if o.Succeeded {
		return o.Detail
	}
	return "error: " + o.Detail
}

func succeed(format string, args ...interface{}) Outcome {
	return Outcome{Succeeded: true, Detail: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...interface{}) Outcome {
	return Outcome{Succeeded: false, Detail: fmt.Sprintf(format, args...)}
}

// failErr converts a component error into a failed outcome.
func failErr(err error) Outcome {
	return Outcome{Succeeded: false, Detail: err.Error()}
}

var (
	// ErrTargetOffline indicates the target account is not currently online.
	ErrTargetOffline = errors.New("target is not online")
	// ErrNotFriend indicates the target account is not a friend.
	ErrNotFriend = errors.New("target is not a friend")
)

// NoticeKind identifies a user-visible notice.
type NoticeKind uint8

const (
	// NoticePeerOnline fires when an account appears or reappears with a new network id.
	NoticePeerOnline NoticeKind = iota
	// NoticePeerOffline fires when the link carrying an online account goes down.
	NoticePeerOffline
	// NoticeFriendRequest fires when a request addressed to self arrives.
	NoticeFriendRequest
	// NoticeFriendAccepted fires when an account accepts self's request.
	NoticeFriendAccepted
	// NoticeDirectMessage fires for every direct message addressed to self, live or replayed.
	NoticeDirectMessage
	// NoticeGroupInvite fires when self is invited to a group it does not participate in.
	NoticeGroupInvite
	// NoticeGroupJoin fires when another account joins a group self participates in.
	// Invitees and former participants update their record without a notice.
	NoticeGroupJoin
	// NoticeGroupLeave fires when another account leaves a group self participates in.
	// Invitees and former participants update their record without a notice.
	NoticeGroupLeave
	// NoticeGroupMessage fires for messages of groups self participates in.
	NoticeGroupMessage
)

// String returns the label of the notice kind.
func (k NoticeKind) String() string {
	switch k {
	case NoticePeerOnline:
		return "online"
	case NoticePeerOffline:
		return "offline"
	case NoticeFriendRequest:
		return "friend-request"
	case NoticeFriendAccepted:
		return "friend-accepted"
	case NoticeDirectMessage:
		return "message"
	case NoticeGroupInvite:
		return "group-invite"
	case NoticeGroupJoin:
		return "group-join"
	case NoticeGroupLeave:
		return "group-leave"
	case NoticeGroupMessage:
		return "group-message"
	default:
		return "unknown"
	}
}

// Notice is something an inbound event wants the user to see.
type Notice struct {
	Kind      NoticeKind
	From      string
	FromName  string
	GroupID   string
	GroupName string
	Body      string
	SentAt    time.Time
}

// String renders the notice as one line of text.
func (n Notice) String() string {
	who := n.FromName
	if who == "" {
		who = n.From
	}

	switch n.Kind {
	case NoticePeerOnline:
		return fmt.Sprintf("%s (%s) is online", who, n.From)
	case NoticePeerOffline:
		return fmt.Sprintf("%s is offline", who)
	case NoticeFriendRequest:
		return fmt.Sprintf("friend request from %s (%s)", who, n.From)
	case NoticeFriendAccepted:
		return fmt.Sprintf("%s accepted your friend request", who)
	case NoticeDirectMessage:
		return fmt.Sprintf("[%s] %s: %s", n.SentAt.Format("15:04"), who, n.Body)
	case NoticeGroupInvite:
		return fmt.Sprintf("%s invited you to group %q (%s)", who, n.GroupName, n.GroupID)
	case NoticeGroupJoin:
		return fmt.Sprintf("%s joined group %q", who, n.GroupName)
	case NoticeGroupLeave:
		return fmt.Sprintf("%s left group %q", who, n.GroupName)
	case NoticeGroupMessage:
		return fmt.Sprintf("[%s] #%s %s: %s", n.SentAt.Format("15:04"), n.GroupName, who, n.Body)
	default:
		return fmt.Sprintf("%s from %s", n.Kind, who)
	}
}

// Notifier receives user-visible notices. It is called on the session's
// event loop and must not block.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}
