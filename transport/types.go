package transport

import "errors"

var (
	// ErrClosed indicates an operation on a transport that has been closed.
	ErrClosed = errors.New("transport closed")
	// ErrInvalidTopic indicates an empty or oversized topic name.
	ErrInvalidTopic = errors.New("invalid topic")
)

// MessageHandler processes a record received on a subscribed topic.
// from is the network identity of the peer whose link delivered it.
type MessageHandler func(from string, data []byte)

// PeerHandler is called when a link to a peer comes up or goes down.
type PeerHandler func(peerID string)

// Transport is the broadcast boundary meshchat sessions publish through.
// Delivery is at-least-once and only to peers holding a live link; nothing
// is retained for peers that are not connected, and no ordering holds across
// publishers.
type Transport interface {
	// LocalID returns this process's network identity.
	LocalID() string

	// RegisterHandler subscribes to a topic. A later registration for the
	// same topic replaces the earlier one.
	RegisterHandler(topic string, handler MessageHandler)

	// Publish broadcasts data on a topic to every linked peer.
	Publish(topic string, data []byte) error

	// OnPeerUp registers a callback fired when a link to a peer is established.
	OnPeerUp(handler PeerHandler)

	// OnPeerDown registers a callback fired when a link to a peer is lost.
	OnPeerDown(handler PeerHandler)

	// Close shuts down the transport and all of its links.
	Close() error
}
