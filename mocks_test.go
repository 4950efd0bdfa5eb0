package meshchat

import (
	"testing"
	"time"

	"github.com/opd-ai/meshchat/auth"
	"github.com/opd-ai/meshchat/store"
	"github.com/opd-ai/meshchat/transport"
	"github.com/stretchr/testify/require"
)

// MockTimeProvider is a deterministic time provider for testing.
type MockTimeProvider struct {
	currentTime time.Time
}

// Now returns the mock time.
func (m *MockTimeProvider) Now() time.Time {
	return m.currentTime
}

// Advance moves the mock time forward by the given duration.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.currentTime = m.currentTime.Add(d)
}

// NewTicker returns a real ticker; session tests never wait on it.
func (m *MockTimeProvider) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// AfterFunc returns a real timer; session tests never wait on it.
func (m *MockTimeProvider) AfterFunc(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, f)
}

// testNetwork links sessions through one in-memory hub and one state store.
type testNetwork struct {
	t     *testing.T
	hub   *transport.Hub
	store store.Store
	clock *MockTimeProvider
	peers []*testPeer
}

// testPeer is one logged-in session plus everything it was notified of.
type testPeer struct {
	net       *testNetwork
	profile   auth.Profile
	transport *transport.MemoryTransport
	session   *Session
	metrics   *Metrics
	notices   []Notice
}

func newTestNetwork(t *testing.T) *testNetwork {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return &testNetwork{
		t:     t,
		hub:   transport.NewHub(),
		store: st,
		clock: &MockTimeProvider{currentTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
}

// join starts a session for the account on a fresh transport.
func (n *testNetwork) join(accountID, displayName string) *testPeer {
	n.t.Helper()

	p := &testPeer{
		net:       n,
		profile:   auth.Profile{AccountID: accountID, DisplayName: displayName},
		transport: n.hub.Join(),
		metrics:   NewMetrics(),
	}
	session, err := NewSession(SessionConfig{
		Profile:      p.profile,
		Transport:    p.transport,
		Store:        n.store,
		Notifier:     NotifierFunc(func(notice Notice) { p.notices = append(p.notices, notice) }),
		Metrics:      p.metrics,
		TimeProvider: n.clock,
	})
	require.NoError(n.t, err)
	p.session = session
	n.peers = append(n.peers, p)
	return p
}

// settle delivers everything queued, has every session announce itself and
// delivers the beacons and whatever they trigger.
func (n *testNetwork) settle() {
	n.hub.Flush()
	for _, p := range n.peers {
		p.session.Announce()
	}
	n.hub.Flush()
}

// goOffline drops every link of the peer.
func (p *testPeer) goOffline() {
	p.transport.Disconnect()
	p.net.hub.Flush()
}

// goOnline restores the peer's links and re-announces everyone.
func (p *testPeer) goOnline() {
	p.transport.Reconnect()
	p.net.settle()
}

// restart closes the session and starts a new one for the same account on a
// new network identity, reloading state from the store.
func (p *testPeer) restart() *testPeer {
	n := p.net
	require.NoError(n.t, p.transport.Close())
	n.hub.Flush()

	for i, peer := range n.peers {
		if peer == p {
			n.peers = append(n.peers[:i], n.peers[i+1:]...)
			break
		}
	}
	return n.join(p.profile.AccountID, p.profile.DisplayName)
}

func (p *testPeer) noticesOf(kind NoticeKind) []Notice {
	var result []Notice
	for _, n := range p.notices {
		if n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

func requireSucceeded(t *testing.T, outcome Outcome) {
	t.Helper()
	require.True(t, outcome.Succeeded, "operation failed: %s", outcome.Detail)
}

// befriend runs a full request/accept exchange between two online peers.
func befriend(t *testing.T, from, to *testPeer) {
	t.Helper()
	requireSucceeded(t, from.session.SendFriendRequest(to.profile.AccountID))
	from.net.hub.Flush()
	requireSucceeded(t, to.session.AcceptFriendRequest(from.profile.AccountID))
	from.net.hub.Flush()
	require.True(t, from.session.ledger.IsFriend(to.profile.AccountID))
	require.True(t, to.session.ledger.IsFriend(from.profile.AccountID))
}
