// Package friend implements the relationship ledger of a meshchat peer.
//
// # State Machine
//
// Each account has a local relation state:
//
//	sender side:   None --MarkSent--> RequestSent --ReceiveAccept--> Friend
//	receiver side: None --ReceiveRequest--> RequestReceived --Accept--> Friend
//
// Reject drops the inbound request without telling the sender, so the
// sender's ledger stays in RequestSent. Edges are only ever added: there is
// no unfriend operation.
//
// # Ledger
//
//	ledger := friend.NewLedger("bob")
//	if err := ledger.ReceiveRequest("alice", "Alice"); err != nil {
//	    // ErrAlreadyFriends or ErrDuplicateRequest
//	}
//	edge, err := ledger.Accept("alice")
//
// Presence checks (a request needs its target online; an accept notice is
// sent only when the requester is online) belong to the caller, which also
// owns publishing.
//
// A Ledger is not safe for concurrent use. In meshchat it is owned by the
// session's single event loop.
package friend
