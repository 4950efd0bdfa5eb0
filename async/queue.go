package async

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/opd-ai/meshchat/limits"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidRecipient indicates an empty recipient account id
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInvalidEntry indicates an entry missing a required field
	ErrInvalidEntry = errors.New("invalid queue entry")
)

// Kind identifies one of the three queued entry kinds.
type Kind uint8

const (
	// KindDirectMessage is a queued direct message
	KindDirectMessage Kind = iota
	// KindGroupMessage is a queued group message
	KindGroupMessage
	// KindGroupLeave is a queued group leave notice
	KindGroupLeave
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindDirectMessage:
		return "direct_message"
	case KindGroupMessage:
		return "group_message"
	case KindGroupLeave:
		return "group_leave"
	default:
		return "unknown"
	}
}

// DirectMessage is a direct message awaiting its recipient.
type DirectMessage struct {
	Seq      uint64    `json:"seq,omitempty"`
	From     string    `json:"from"`
	FromName string    `json:"from_name,omitempty"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// GroupMessage is a group message awaiting one absent participant.
type GroupMessage struct {
	Seq       uint64    `json:"seq,omitempty"`
	GroupID   string    `json:"group_id"`
	GroupName string    `json:"group_name"`
	Creator   string    `json:"creator,omitempty"`
	From      string    `json:"from"`
	FromName  string    `json:"from_name,omitempty"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// GroupLeave is a leave notice awaiting one absent participant.
type GroupLeave struct {
	Seq                uint64    `json:"seq,omitempty"`
	GroupID            string    `json:"group_id"`
	GroupName          string    `json:"group_name"`
	Creator            string    `json:"creator,omitempty"`
	LeavingAccountID   string    `json:"leaving_account_id"`
	LeavingDisplayName string    `json:"leaving_display_name,omitempty"`
	SentAt             time.Time `json:"sent_at"`
}

// Batch is everything drained for one recipient, each kind in enqueue order.
// Entries merges the kinds back into one sequence.
type Batch struct {
	Direct        []DirectMessage
	GroupMessages []GroupMessage
	GroupLeaves   []GroupLeave
}

// Len returns the number of entries in the batch.
func (b Batch) Len() int {
	return len(b.Direct) + len(b.GroupMessages) + len(b.GroupLeaves)
}

// Entry is one drained entry of any kind. Only the field matching Kind is set.
type Entry struct {
	Kind         Kind
	Seq          uint64
	Direct       DirectMessage
	GroupMessage GroupMessage
	GroupLeave   GroupLeave
}

// Entries returns the batch as one slice in enqueue order across all kinds.
// Entries without a sequence number sort first, direct messages before group
// messages before leave notices.
func (b Batch) Entries() []Entry {
	entries := make([]Entry, 0, b.Len())
	for _, m := range b.Direct {
		entries = append(entries, Entry{Kind: KindDirectMessage, Seq: m.Seq, Direct: m})
	}
	for _, m := range b.GroupMessages {
		entries = append(entries, Entry{Kind: KindGroupMessage, Seq: m.Seq, GroupMessage: m})
	}
	for _, l := range b.GroupLeaves {
		entries = append(entries, Entry{Kind: KindGroupLeave, Seq: l.Seq, GroupLeave: l})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries
}

// Snapshot is the persisted form of a Queue, keyed by recipient account id.
type Snapshot struct {
	Direct        map[string][]DirectMessage `json:"pending_direct"`
	GroupMessages map[string][]GroupMessage  `json:"pending_group_messages"`
	GroupLeaves   map[string][]GroupLeave    `json:"pending_group_leaves"`
}

// Queue holds the per-recipient, per-kind FIFOs. Every entry is stamped with
// a sequence number shared across kinds so a drain can replay in send order.
type Queue struct {
	direct        map[string][]DirectMessage
	groupMessages map[string][]GroupMessage
	groupLeaves   map[string][]GroupLeave
	lastSeq       uint64
}

// NewQueue creates an empty delivery queue.
func NewQueue() *Queue {
	return &Queue{
		direct:        make(map[string][]DirectMessage),
		groupMessages: make(map[string][]GroupMessage),
		groupLeaves:   make(map[string][]GroupLeave),
	}
}

// EnqueueDirect files a direct message for recipient.
func (q *Queue) EnqueueDirect(recipient string, msg DirectMessage) error {
	if err := validateEntry(recipient, msg.From); err != nil {
		return err
	}
	if err := limits.ValidateBody(msg.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	msg.Seq = q.nextSeq()
	q.direct[recipient] = append(q.direct[recipient], msg)
	logEnqueue(recipient, KindDirectMessage, len(q.direct[recipient]))
	return nil
}

// EnqueueGroupMessage files a group message for one absent participant.
func (q *Queue) EnqueueGroupMessage(recipient string, msg GroupMessage) error {
	if err := validateEntry(recipient, msg.From); err != nil {
		return err
	}
	if msg.GroupID == "" {
		return fmt.Errorf("%w: group message without group id", ErrInvalidEntry)
	}
	if err := limits.ValidateBody(msg.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	msg.Seq = q.nextSeq()
	q.groupMessages[recipient] = append(q.groupMessages[recipient], msg)
	logEnqueue(recipient, KindGroupMessage, len(q.groupMessages[recipient]))
	return nil
}

// EnqueueGroupLeave files a leave notice for one absent participant.
func (q *Queue) EnqueueGroupLeave(recipient string, leave GroupLeave) error {
	if err := validateEntry(recipient, leave.LeavingAccountID); err != nil {
		return err
	}
	if leave.GroupID == "" {
		return fmt.Errorf("%w: leave notice without group id", ErrInvalidEntry)
	}

	leave.Seq = q.nextSeq()
	q.groupLeaves[recipient] = append(q.groupLeaves[recipient], leave)
	logEnqueue(recipient, KindGroupLeave, len(q.groupLeaves[recipient]))
	return nil
}

func (q *Queue) nextSeq() uint64 {
	q.lastSeq++
	return q.lastSeq
}

func validateEntry(recipient, sender string) error {
	if recipient == "" {
		return ErrInvalidRecipient
	}
	if sender == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidEntry)
	}
	return nil
}

func logEnqueue(recipient string, kind Kind, depth int) {
	logrus.WithFields(logrus.Fields{
		"function":  "Enqueue",
		"recipient": recipient,
		"kind":      kind.String(),
		"depth":     depth,
	}).Debug("Queued entry for absent recipient")
}

// Drain returns every entry queued for recipient and clears its three queues
// together. The result is empty when nothing is queued.
func (q *Queue) Drain(recipient string) Batch {
	batch := Batch{
		Direct:        q.direct[recipient],
		GroupMessages: q.groupMessages[recipient],
		GroupLeaves:   q.groupLeaves[recipient],
	}

	delete(q.direct, recipient)
	delete(q.groupMessages, recipient)
	delete(q.groupLeaves, recipient)

	if batch.Len() > 0 {
		logrus.WithFields(logrus.Fields{
			"function":       "Drain",
			"recipient":      recipient,
			"direct":         len(batch.Direct),
			"group_messages": len(batch.GroupMessages),
			"group_leaves":   len(batch.GroupLeaves),
		}).Info("Drained delivery queue")
	}

	return batch
}

// Depth returns how many entries of any kind are queued for recipient.
func (q *Queue) Depth(recipient string) int {
	return len(q.direct[recipient]) + len(q.groupMessages[recipient]) + len(q.groupLeaves[recipient])
}

// DepthByKind returns how many entries of one kind are queued for recipient.
func (q *Queue) DepthByKind(recipient string, kind Kind) int {
	switch kind {
	case KindDirectMessage:
		return len(q.direct[recipient])
	case KindGroupMessage:
		return len(q.groupMessages[recipient])
	case KindGroupLeave:
		return len(q.groupLeaves[recipient])
	default:
		return 0
	}
}

// Recipients returns the account ids with at least one queued entry.
func (q *Queue) Recipients() []string {
	seen := make(map[string]struct{})
	for r := range q.direct {
		seen[r] = struct{}{}
	}
	for r := range q.groupMessages {
		seen[r] = struct{}{}
	}
	for r := range q.groupLeaves {
		seen[r] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for r := range seen {
		result = append(result, r)
	}
	sort.Strings(result)
	return result
}

// Snapshot returns a copy of every queue for persisting.
func (q *Queue) Snapshot() Snapshot {
	return Snapshot{
		Direct:        copyQueues(q.direct),
		GroupMessages: copyQueues(q.groupMessages),
		GroupLeaves:   copyQueues(q.groupLeaves),
	}
}

// Restore replaces the queue contents with a persisted snapshot.
func (q *Queue) Restore(s Snapshot) {
	q.direct = copyQueues(s.Direct)
	q.groupMessages = copyQueues(s.GroupMessages)
	q.groupLeaves = copyQueues(s.GroupLeaves)

	q.lastSeq = 0
	for _, entries := range q.direct {
		for _, m := range entries {
			q.lastSeq = max(q.lastSeq, m.Seq)
		}
	}
	for _, entries := range q.groupMessages {
		for _, m := range entries {
			q.lastSeq = max(q.lastSeq, m.Seq)
		}
	}
	for _, entries := range q.groupLeaves {
		for _, l := range entries {
			q.lastSeq = max(q.lastSeq, l.Seq)
		}
	}
}

func copyQueues[T any](src map[string][]T) map[string][]T {
	dst := make(map[string][]T, len(src))
	for recipient, entries := range src {
		if recipient == "" || len(entries) == 0 {
			continue
		}
		dst[recipient] = append([]T(nil), entries...)
	}
	return dst
}
