package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateLink indicates a second link to a peer that is already linked.
var ErrDuplicateLink = errors.New("peer already linked")

// WriteTimeout bounds a single frame write on a link (5 seconds)
const WriteTimeout = 5 * time.Second

// link is one authenticated, encrypted TCP connection to a peer.
// dialAddr is guarded by MeshTransport.mu once the link is registered.
type link struct {
	conn     net.Conn
	peerID   string
	outbound bool
	dialAddr string
	writeMu  sync.Mutex
	send     *noise.CipherState
	recv     *noise.CipherState
}

// write encrypts and frames one envelope.
func (l *link) write(envelope []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	ciphertext, err := l.send.Encrypt(nil, nil, envelope)
	if err != nil {
		return fmt.Errorf("failed to encrypt frame: %w", err)
	}
	if err := l.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	return writeFrame(l.conn, ciphertext)
}

// MeshTransport links peers over TCP. Each link is secured with a Noise XX
// handshake and the network identity is the hex form of the process's static
// key, which is generated fresh on every start. Publish writes the record to
// every live link; records are not relayed further.
type MeshTransport struct {
	static   noise.DHKey
	id       string
	listener net.Listener

	mu       sync.RWMutex
	links    map[string]*link
	handlers map[string]MessageHandler
	peerUp   []PeerHandler
	peerDown []PeerHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMeshTransport creates a mesh transport. A non-empty listenAddr starts a
// listener accepting inbound links; an empty one makes a dial-only transport.
func NewMeshTransport(listenAddr string) (*MeshTransport, error) {
	static, err := generateStaticKeypair()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &MeshTransport{
		static:   static,
		id:       peerIDFromStatic(static.Public),
		links:    make(map[string]*link),
		handlers: make(map[string]MessageHandler),
		ctx:      ctx,
		cancel:   cancel,
	}

	if listenAddr != "" {
		listener, err := net.Listen("tcp", listenAddr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
		}
		t.listener = listener
		t.wg.Add(1)
		go t.acceptConnections()
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewMeshTransport",
		"peer_id":     t.id,
		"listen_addr": listenAddr,
	}).Info("Mesh transport started")

	return t, nil
}

// LocalID returns the hex static key identifying this process.
func (t *MeshTransport) LocalID() string {
	return t.id
}

// Addr returns the listener address, or nil for a dial-only transport.
func (t *MeshTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// RegisterHandler subscribes to a topic.
func (t *MeshTransport) RegisterHandler(topic string, handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[topic] = handler
}

// OnPeerUp registers a link-up callback. Callbacks run on link goroutines.
func (t *MeshTransport) OnPeerUp(handler PeerHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerUp = append(t.peerUp, handler)
}

// OnPeerDown registers a link-down callback. Callbacks run on link goroutines.
func (t *MeshTransport) OnPeerDown(handler PeerHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerDown = append(t.peerDown, handler)
}

// Peers returns the identities of every linked peer, sorted.
func (t *MeshTransport) Peers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]string, 0, len(t.links))
	for id := range t.links {
		peers = append(peers, id)
	}
	sort.Strings(peers)
	return peers
}

// Connected reports whether a link dialed to addr is live.
func (t *MeshTransport) Connected(addr string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, l := range t.links {
		if l.dialAddr == addr {
			return true
		}
	}
	return false
}

// Dial opens a link to addr and returns the peer's identity once the
// handshake completes.
func (t *MeshTransport) Dial(ctx context.Context, addr string) (string, error) {
	if t.ctx.Err() != nil {
		return "", ErrClosed
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	ciphers, err := performHandshake(conn, t.static, initiator)
	if err != nil {
		conn.Close()
		return "", err
	}

	l := &link{
		conn:     conn,
		peerID:   peerIDFromStatic(ciphers.peerStatic),
		outbound: true,
		dialAddr: addr,
		send:     ciphers.send,
		recv:     ciphers.recv,
	}
	if err := t.addLink(l); err != nil {
		conn.Close()
		return "", err
	}
	return l.peerID, nil
}

// acceptConnections handles incoming connections.
func (t *MeshTransport) acceptConnections() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "acceptConnections",
				"error":    err.Error(),
			}).Warn("Accept failed")
			continue
		}

		t.wg.Add(1)
		go t.handleInbound(conn)
	}
}

// handleInbound completes the responder side of the handshake.
func (t *MeshTransport) handleInbound(conn net.Conn) {
	defer t.wg.Done()

	ciphers, err := performHandshake(conn, t.static, responder)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "handleInbound",
			"remote_addr": conn.RemoteAddr().String(),
			"error":       err.Error(),
		}).Debug("Inbound handshake failed")
		conn.Close()
		return
	}

	l := &link{
		conn:   conn,
		peerID: peerIDFromStatic(ciphers.peerStatic),
		send:   ciphers.send,
		recv:   ciphers.recv,
	}
	if err := t.addLink(l); err != nil {
		conn.Close()
	}
}

// preferred reports whether l is the link both ends keep when two peers dial
// each other at once: the one initiated by the side with the lower identity.
func (t *MeshTransport) preferred(l *link) bool {
	return l.outbound == (t.id < l.peerID)
}

// addLink registers a link, starts its read loop and fires peer-up. A second
// link to a linked peer replaces the first only if it is the preferred one;
// the peer stays up across the swap.
func (t *MeshTransport) addLink(l *link) error {
	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		return ErrClosed
	}
	if l.peerID == t.id {
		t.mu.Unlock()
		return fmt.Errorf("%w: refusing link to self", ErrDuplicateLink)
	}
	if existing, exists := t.links[l.peerID]; exists {
		if !t.preferred(l) || t.preferred(existing) {
			if existing.dialAddr == "" {
				existing.dialAddr = l.dialAddr
			}
			t.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateLink, l.peerID)
		}
		return t.replaceLink(existing, l)
	}
	t.links[l.peerID] = l
	handlers := append([]PeerHandler(nil), t.peerUp...)
	t.wg.Add(1)
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "addLink",
		"peer_id":     l.peerID,
		"remote_addr": l.conn.RemoteAddr().String(),
	}).Info("Link established")

	for _, handler := range handlers {
		handler(l.peerID)
	}

	go t.readLoop(l)
	return nil
}

// replaceLink swaps existing for l without firing peer callbacks. It is
// called with t.mu held and releases it.
func (t *MeshTransport) replaceLink(existing, l *link) error {
	if l.dialAddr == "" {
		l.dialAddr = existing.dialAddr
	}
	t.links[l.peerID] = l
	t.wg.Add(1)
	t.mu.Unlock()

	existing.conn.Close()

	logrus.WithFields(logrus.Fields{
		"function":    "addLink",
		"peer_id":     l.peerID,
		"remote_addr": l.conn.RemoteAddr().String(),
		"outbound":    l.outbound,
	}).Info("Link replaced by simultaneous dial")

	go t.readLoop(l)
	return nil
}

// readLoop decrypts frames from one link until it fails.
func (t *MeshTransport) readLoop(l *link) {
	defer t.wg.Done()
	defer t.removeLink(l)

	for {
		frame, err := readFrame(l.conn)
		if err != nil {
			return
		}

		envelope, err := l.recv.Decrypt(nil, nil, frame)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"peer_id":  l.peerID,
				"error":    err.Error(),
			}).Warn("Dropping link after decryption failure")
			return
		}

		topic, data, err := decodeEnvelope(envelope)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"peer_id":  l.peerID,
				"error":    err.Error(),
			}).Debug("Dropping malformed envelope")
			continue
		}

		t.mu.RLock()
		handler, ok := t.handlers[topic]
		t.mu.RUnlock()
		if ok {
			handler(l.peerID, data)
		}
	}
}

// removeLink closes a link and fires peer-down if it was still registered.
func (t *MeshTransport) removeLink(l *link) {
	l.conn.Close()

	t.mu.Lock()
	current, ok := t.links[l.peerID]
	if !ok || current != l {
		t.mu.Unlock()
		return
	}
	delete(t.links, l.peerID)
	handlers := append([]PeerHandler(nil), t.peerDown...)
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "removeLink",
		"peer_id":  l.peerID,
	}).Info("Link lost")

	for _, handler := range handlers {
		handler(l.peerID)
	}
}

// Publish writes data to every live link. A link whose write fails is
// closed; its read loop then reports it down. The returned error joins the
// per-link failures.
func (t *MeshTransport) Publish(topic string, data []byte) error {
	if t.ctx.Err() != nil {
		return ErrClosed
	}

	envelope, err := encodeEnvelope(topic, data)
	if err != nil {
		return err
	}

	t.mu.RLock()
	links := make([]*link, 0, len(t.links))
	for _, l := range t.links {
		links = append(links, l)
	}
	t.mu.RUnlock()

	var errs []error
	for _, l := range links {
		if err := l.write(envelope); err != nil {
			l.conn.Close()
			errs = append(errs, fmt.Errorf("peer %s: %w", l.peerID, err))
		}
	}
	return errors.Join(errs...)
}

// Close shuts down the listener and every link, then waits for their
// goroutines to exit.
func (t *MeshTransport) Close() error {
	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		return nil
	}
	t.cancel()
	links := make([]*link, 0, len(t.links))
	for _, l := range t.links {
		links = append(links, l)
	}
	t.mu.Unlock()

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	for _, l := range links {
		l.conn.Close()
	}
	t.wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"peer_id":  t.id,
	}).Info("Mesh transport closed")

	return err
}
