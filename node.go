package meshchat

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNodeStopped indicates an operation submitted to a stopped node.
var ErrNodeStopped = errors.New("node stopped")

// eventQueueSize bounds the closures waiting for the event loop.
const eventQueueSize = 256

// Dialer is implemented by transports that open links to configured peers.
type Dialer interface {
	Dial(ctx context.Context, addr string) (string, error)
	Connected(addr string) bool
}

// Node runs a Session on a single event loop. Transport callbacks, timers
// and console operations are posted to the loop as closures and each runs to
// completion before the next starts, so the session needs no locking.
type Node struct {
	options      *Options
	session      *Session
	dialer       Dialer
	timeProvider TimeProvider

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewNode creates a node and its session. cfg.Dispatch is replaced by the
// node's event loop.
func NewNode(options *Options, cfg SessionConfig) (*Node, error) {
	if options == nil {
		options = NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		options:      options,
		timeProvider: getTimeProvider(cfg.TimeProvider),
		events:       make(chan func(), eventQueueSize),
		ctx:          ctx,
		cancel:       cancel,
	}

	cfg.Dispatch = n.post
	session, err := NewSession(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	n.session = session

	if d, ok := cfg.Transport.(Dialer); ok {
		n.dialer = d
	}

	cfg.Transport.OnPeerUp(func(string) {
		n.timeProvider.AfterFunc(options.AnnounceDelay, func() {
			n.post(func() { n.session.Announce() })
		})
	})

	return n, nil
}

// post hands f to the event loop. It drops f once the node is stopped.
func (n *Node) post(f func()) {
	select {
	case n.events <- f:
	case <-n.ctx.Done():
	}
}

// Start launches the event loop, the periodic announcer and, for transports
// that can dial, the redial loop.
func (n *Node) Start() {
	n.startOnce.Do(func() {
		n.wg.Add(2)
		go n.loop()
		go n.announceLoop()

		if n.dialer != nil && len(n.options.Peers) > 0 {
			n.wg.Add(1)
			go n.redialLoop()
		}

		logrus.WithFields(logrus.Fields{
			"function":   "Start",
			"account_id": n.session.self.AccountID,
			"peers":      len(n.options.Peers),
		}).Info("Node started")
	})
}

func (n *Node) loop() {
	defer n.wg.Done()
	for {
		select {
		case f := <-n.events:
			f()
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) announceLoop() {
	defer n.wg.Done()

	n.post(func() { n.session.Announce() })

	ticker := n.timeProvider.NewTicker(n.options.AnnounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.post(func() { n.session.Announce() })
		case <-n.ctx.Done():
			return
		}
	}
}

// redialLoop keeps links to the configured peers. Dialing blocks on the
// network and runs here, never on the event loop.
func (n *Node) redialLoop() {
	defer n.wg.Done()

	n.dialPeers()

	ticker := n.timeProvider.NewTicker(n.options.RedialInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.dialPeers()
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) dialPeers() {
	for _, addr := range n.options.Peers {
		if n.ctx.Err() != nil {
			return
		}
		if n.dialer.Connected(addr) {
			continue
		}

		ctx, cancel := context.WithTimeout(n.ctx, n.options.DialTimeout)
		peerID, err := n.dialer.Dial(ctx, addr)
		cancel()

		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "dialPeers",
				"addr":     addr,
				"error":    err.Error(),
			}).Debug("Dial failed")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"function": "dialPeers",
			"addr":     addr,
			"peer_id":  peerID,
		}).Info("Linked to peer")
	}
}

// Do runs op on the event loop and waits for its outcome.
func (n *Node) Do(ctx context.Context, op func(*Session) Outcome) Outcome {
	result := make(chan Outcome, 1)
	f := func() { result <- op(n.session) }

	select {
	case n.events <- f:
	case <-n.ctx.Done():
		return failErr(ErrNodeStopped)
	case <-ctx.Done():
		return failErr(ctx.Err())
	}

	select {
	case outcome := <-result:
		return outcome
	case <-n.ctx.Done():
		return failErr(ErrNodeStopped)
	case <-ctx.Done():
		return failErr(ctx.Err())
	}
}

// Stop ends the loops and closes the session's transport and store.
func (n *Node) Stop() error {
	var err error
	n.stopOnce.Do(func() {
		n.cancel()
		n.wg.Wait()

		err = errors.Join(n.session.transport.Close(), n.session.store.Close())

		logrus.WithFields(logrus.Fields{
			"function":   "Stop",
			"account_id": n.session.self.AccountID,
		}).Info("Node stopped")
	})
	return err
}
