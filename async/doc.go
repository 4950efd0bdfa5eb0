// Package async implements the store-and-forward delivery queue of a meshchat
// peer.
//
// # Overview
//
// Broadcasts only reach peers that hold a live link, so every send whose
// target account is not currently online also files a copy here, under the
// recipient's account id. Three kinds of entry are kept, each in its own
// per-recipient FIFO:
//
//   - DirectMessage: a direct message from self
//   - GroupMessage: a message posted to a group self participates in
//   - GroupLeave: the notice that self left a group
//
// # Flushing
//
// When the recipient is next observed online, [Queue.Drain] hands back every
// entry for it, in enqueue order and grouped by kind, and clears all three
// queues in one step. The caller replays them through the normal publish path.
// No acknowledgement exists: an entry counts as delivered the instant it is
// drained.
//
//	q := async.NewQueue()
//	_ = q.EnqueueDirect("bob", async.DirectMessage{From: "alice", Body: "hi", SentAt: time.Now()})
//	batch := q.Drain("bob") // batch.Len() == 1, q.Depth("bob") == 0
//
// # Persistence
//
// [Queue.Snapshot] and [Queue.Restore] convert the queues to and from the form
// kept by the state store. A Queue is not safe for concurrent use.
package async
