package meshchat

import (
	"context"
	"testing"
	"time"

	"github.com/opd-ai/meshchat/auth"
	"github.com/opd-ai/meshchat/store"
	"github.com/opd-ai/meshchat/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, hub *transport.Hub, accountID, displayName string) *Node {
	t.Helper()

	opts := NewOptions()
	opts.DataDir = t.TempDir()
	opts.AnnounceDelay = 10 * time.Millisecond

	st, err := store.NewFileStore(opts.DataDir)
	require.NoError(t, err)

	node, err := NewNode(opts, SessionConfig{
		Profile:   auth.Profile{AccountID: accountID, DisplayName: displayName},
		Transport: hub.Join(),
		Store:     st,
	})
	require.NoError(t, err)
	node.Start()
	t.Cleanup(func() { _ = node.Stop() })
	return node
}

// check runs a query on the node's loop and reports its result.
func check(n *Node, query func(*Session) bool) bool {
	outcome := n.Do(context.Background(), func(s *Session) Outcome {
		if query(s) {
			return succeed("ok")
		}
		return fail("not yet")
	})
	return outcome.Succeeded
}

func TestNode_PresenceAndFriendship(t *testing.T) {
	hub := transport.NewHub()
	alice := newTestNode(t, hub, testAlice, testAliceName)
	bob := newTestNode(t, hub, testBob, testBobName)

	require.Eventually(t, func() bool {
		hub.Flush()
		return check(alice, func(s *Session) bool { return s.IsOnline(testBob) }) &&
			check(bob, func(s *Session) bool { return s.IsOnline(testAlice) })
	}, 5*time.Second, 10*time.Millisecond)

	outcome := alice.Do(context.Background(), func(s *Session) Outcome {
		return s.SendFriendRequest(testBob)
	})
	requireSucceeded(t, outcome)

	require.Eventually(t, func() bool {
		hub.Flush()
		return check(bob, func(s *Session) bool { return len(s.PendingRequests()) == 1 })
	}, 5*time.Second, 10*time.Millisecond)

	outcome = bob.Do(context.Background(), func(s *Session) Outcome {
		return s.AcceptFriendRequest(testAliceName)
	})
	requireSucceeded(t, outcome)

	require.Eventually(t, func() bool {
		hub.Flush()
		return check(alice, func(s *Session) bool { return len(s.Friends()) == 1 })
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_DoHonoursContext(t *testing.T) {
	hub := transport.NewHub()
	node := newTestNode(t, hub, testAlice, testAliceName)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The loop may pick the closure up before the cancellation is seen, so
	// only a failure is asserted when the op itself would succeed.
	outcome := node.Do(ctx, func(s *Session) Outcome {
		return fail("ran")
	})
	assert.False(t, outcome.Succeeded)
}

func TestNode_DoAfterStop(t *testing.T) {
	hub := transport.NewHub()
	node := newTestNode(t, hub, testAlice, testAliceName)

	require.NoError(t, node.Stop())
	require.NoError(t, node.Stop())

	outcome := node.Do(context.Background(), func(s *Session) Outcome {
		return succeed("ran")
	})
	assert.False(t, outcome.Succeeded)
	assert.Contains(t, outcome.Detail, ErrNodeStopped.Error())
}

func TestNewNode_RejectsInvalidOptions(t *testing.T) {
	hub := transport.NewHub()
	opts := NewOptions()
	opts.StoreBackend = "tape"

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewNode(opts, SessionConfig{
		Profile:   auth.Profile{AccountID: testAlice, DisplayName: testAliceName},
		Transport: hub.Join(),
		Store:     st,
	})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
