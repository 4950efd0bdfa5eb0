// Package transport provides the broadcast transports meshchat sessions
// publish through.
//
// # Architecture
//
// A Transport exposes named topics. Publish sends a record to every peer that
// currently holds a link; subscribers receive every record on their topics and
// filter locally. Link lifecycle is reported through OnPeerUp and OnPeerDown
// using transient network identities.
//
//	type Transport interface {
//	    LocalID() string
//	    RegisterHandler(topic string, handler MessageHandler)
//	    Publish(topic string, data []byte) error
//	    OnPeerUp(handler PeerHandler)
//	    OnPeerDown(handler PeerHandler)
//	    Close() error
//	}
//
// # Mesh Transport
//
// MeshTransport links processes over TCP. Every frame carries a 4-byte
// big-endian length prefix. Each link runs a Noise XX handshake
// (github.com/flynn/noise, Curve25519, ChaChaPoly, SHA-256) and all later
// frames are encrypted with the resulting cipher states:
//
//	mesh, err := transport.NewMeshTransport(":7400")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mesh.Close()
//
//	peerID, err := mesh.Dial(ctx, "10.0.0.2:7400")
//
// The network identity is the hex form of the static public key, generated
// fresh on every start, so it never outlives the process.
//
// # In-Memory Hub
//
// Hub links any number of MemoryTransport values inside one process. It
// queues deliveries instead of running them inline, and Flush drains the
// queue in order. Multi-peer tests use it to get a deterministic schedule:
//
//	hub := transport.NewHub()
//	a, b := hub.Join(), hub.Join()
//	hub.Flush() // peer-up on both sides
//
// # Thread Safety
//
// MeshTransport is safe for concurrent use and runs callbacks on its link
// goroutines. MemoryTransport runs callbacks only from Hub.Flush.
package transport
