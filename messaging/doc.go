// Package messaging provides the wire records exchanged by meshchat peers.
//
// # Overview
//
// Peers share four broadcast topics. Every subscriber receives every record
// published on a topic and filters locally:
//
//   - [TopicPresence]: presence beacons ([TypeAnnounce]) binding a transient
//     network identity to a durable account id.
//   - [TopicFriend]: friend requests and accept notices, addressed with To.
//   - [TopicDirect]: direct messages, addressed with To.
//   - [TopicGroup]: group invitations (addressed), joins, leaves and messages.
//     Replayed group records carry To so only the recipient acts on them.
//
// # Encoding
//
// Records are JSON objects with a "type" discriminator. [Decode] rejects
// records with an unknown type ([ErrUnknownType]) or missing required fields
// ([ErrMalformed]); callers drop such records without retry.
//
//	evt, err := messaging.Decode(data)
//	if err != nil {
//	    return // dropped
//	}
//	if !evt.AddressedTo(self) {
//	    return // someone else's record
//	}
package messaging
