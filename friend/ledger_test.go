package friend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkSent_DuplicateRequestFails(t *testing.T) {
	alice := NewLedger(testAlice)

	require.NoError(t, alice.MarkSent(testBob, testBobName))
	assert.Equal(t, RelationRequestSent, alice.Relation(testBob))

	err := alice.MarkSent(testBob, testBobName)
	assert.ErrorIs(t, err, ErrAlreadySent)
}

func TestMarkSent_RejectsFriendAndSelf(t *testing.T) {
	bob := NewLedger(testBob)
	require.NoError(t, bob.ReceiveRequest(testAlice, testAliceName))
	_, err := bob.Accept(testAlice)
	require.NoError(t, err)

	assert.ErrorIs(t, bob.MarkSent(testAlice, testAliceName), ErrAlreadyFriends)
	assert.ErrorIs(t, bob.MarkSent(testBob, testBobName), ErrSelfRequest)
}

func TestReceiveRequest_Guards(t *testing.T) {
	bob := NewLedger(testBob)

	require.NoError(t, bob.ReceiveRequest(testAlice, testAliceName))
	assert.Equal(t, RelationRequestReceived, bob.Relation(testAlice))
	assert.ErrorIs(t, bob.ReceiveRequest(testAlice, testAliceName), ErrDuplicateRequest)
	assert.ErrorIs(t, bob.ReceiveRequest(testBob, testBobName), ErrSelfRequest)

	_, err := bob.Accept(testAlice)
	require.NoError(t, err)
	assert.ErrorIs(t, bob.ReceiveRequest(testAlice, testAliceName), ErrAlreadyFriends)
}

// TestFriendshipIsAsymmetric walks both ledgers through a request: the
// receiver gains the edge on accept, the sender only on observing the notice.
func TestFriendshipIsAsymmetric(t *testing.T) {
	alice := NewLedger(testAlice)
	bob := NewLedger(testBob)

	require.NoError(t, alice.MarkSent(testBob, testBobName))
	require.NoError(t, bob.ReceiveRequest(testAlice, testAliceName))

	edge, err := bob.Accept(testAlice)
	require.NoError(t, err)
	assert.Equal(t, testAlice, edge.AccountID)
	assert.Equal(t, testAliceName, edge.DisplayName)
	assert.True(t, bob.IsFriend(testAlice))
	assert.Empty(t, bob.Pending())

	assert.False(t, alice.IsFriend(testBob), "sender has no edge until it sees the accept notice")
	assert.Equal(t, RelationRequestSent, alice.Relation(testBob))

	edge, err = alice.ReceiveAccept(testBob, testBobName)
	require.NoError(t, err)
	assert.Equal(t, testBob, edge.AccountID)
	assert.Equal(t, RelationFriend, alice.Relation(testBob))
	assert.Empty(t, alice.Outbound())
}

func TestReject_LeavesSenderStranded(t *testing.T) {
	alice := NewLedger(testAlice)
	bob := NewLedger(testBob)

	require.NoError(t, alice.MarkSent(testBob, testBobName))
	require.NoError(t, bob.ReceiveRequest(testAlice, testAliceName))
	require.NoError(t, bob.Reject(testAlice))

	assert.Equal(t, RelationNone, bob.Relation(testAlice))
	assert.Equal(t, RelationRequestSent, alice.Relation(testBob))
	assert.ErrorIs(t, alice.MarkSent(testBob, testBobName), ErrAlreadySent, "sender cannot retry")

	assert.ErrorIs(t, bob.Reject(testAlice), ErrNoPendingRequest)
}

func TestReceiveAccept_RequiresOutstandingRequest(t *testing.T) {
	alice := NewLedger(testAlice)

	_, err := alice.ReceiveAccept(testCarol, testCarolName)
	assert.ErrorIs(t, err, ErrNoOutstandingRequest)
	assert.False(t, alice.IsFriend(testCarol))

	require.NoError(t, alice.MarkSent(testCarol, testCarolName))
	_, err = alice.ReceiveAccept(testCarol, "")
	require.NoError(t, err)

	f, ok := alice.Resolve(testCarol)
	require.True(t, ok)
	assert.Equal(t, testCarolName, f.DisplayName, "falls back to the name recorded when sending")

	_, err = alice.ReceiveAccept(testCarol, testCarolName)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestAccept_WithoutRequestFails(t *testing.T) {
	bob := NewLedger(testBob)
	_, err := bob.Accept(testAlice)
	assert.ErrorIs(t, err, ErrNoPendingRequest)
}

func TestAccept_ClearsCrossedOutboundRequest(t *testing.T) {
	bob := NewLedger(testBob)
	require.NoError(t, bob.MarkSent(testAlice, testAliceName))
	require.NoError(t, bob.ReceiveRequest(testAlice, testAliceName))

	_, err := bob.Accept(testAlice)
	require.NoError(t, err)
	assert.Empty(t, bob.Outbound())
	assert.Equal(t, RelationFriend, bob.Relation(testAlice))
}

func TestResolve_ByAccountOrName(t *testing.T) {
	l := NewLedger(testAlice)
	l.Restore([]Friend{{AccountID: testBob, DisplayName: testBobName}})

	f, ok := l.Resolve("BOB")
	require.True(t, ok)
	assert.Equal(t, testBob, f.AccountID)

	_, ok = l.Resolve(testCarol)
	assert.False(t, ok)
}

func TestPending_OrderedByArrival(t *testing.T) {
	clock := &mockTimeProvider{fixedTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLedgerWithTimeProvider(testAlice, clock)

	require.NoError(t, l.ReceiveRequest(testCarol, testCarolName))
	clock.advance(time.Minute)
	require.NoError(t, l.ReceiveRequest(testBob, testBobName))

	pending := l.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, testCarol, pending[0].SenderAccountID)
	assert.Equal(t, testBob, pending[1].SenderAccountID)

	req, ok := l.ResolvePending("bob")
	require.True(t, ok)
	assert.Equal(t, testBobName, req.SenderName)
}

func TestRestore_ReplacesEdgesAndSkipsBlank(t *testing.T) {
	fixed := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger(testAlice)
	l.Restore([]Friend{
		{AccountID: testBob, DisplayName: testBobName, AddedAt: fixed},
		{AccountID: "", DisplayName: "ghost"},
	})

	friends := l.Friends()
	require.Len(t, friends, 1)
	assert.Equal(t, fixed, friends[0].AddedAt)
}

func TestRelation_String(t *testing.T) {
	assert.Equal(t, "none", RelationNone.String())
	assert.Equal(t, "request-sent", RelationRequestSent.String())
	assert.Equal(t, "request-received", RelationRequestReceived.String())
	assert.Equal(t, "friend", RelationFriend.String())
}
