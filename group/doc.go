// Package group implements the group directory of a meshchat peer.
//
// # Group Identity
//
// A group id is derived from the creator's account id and the normalized
// group name ([DeriveID]), so any peer can compute it without coordination:
//
//	group.DeriveID("alice", "Study") // "alice_study"
//
// Names are compared case-insensitively with golang.org/x/text/cases.
//
// # Local Operations
//
// [Directory.Create], [Directory.Invite], [Directory.Accept],
// [Directory.Reject] and [Directory.Leave] validate against the local record
// and mutate it; the caller publishes the matching event and queues copies for
// absent participants.
//
// # Inbound Events
//
// [Directory.ApplyInvite], [Directory.ApplyJoin] and [Directory.ApplyLeave]
// are applied to the local record whether or not self is a member. They are
// set-based and idempotent: replaying an event leaves the record unchanged.
// The returned [Change] tells the caller whether to show a notice.
//
// A record whose participant and invitation sets are both empty is deleted.
//
// A Directory is not safe for concurrent use; in meshchat it is owned by the
// session's event loop.
package group
