package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberIDs(members []Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.AccountID)
	}
	return ids
}

func TestDeriveID(t *testing.T) {
	tests := []struct {
		creator string
		name    string
		want    string
	}{
		{testAlice, "Study", "alice_study"},
		{testAlice, "  study  ", "alice_study"},
		{testAlice, "Book Club", "alice_book-club"},
		{testBob, "STUDY", "bob_study"},
	}

	for _, tt := range tests {
		if got := DeriveID(tt.creator, tt.name); got != tt.want {
			t.Errorf("DeriveID(%q, %q) = %q, want %q", tt.creator, tt.name, got, tt.want)
		}
	}
}

func TestCreate(t *testing.T) {
	d := NewDirectory(testAlice, testAliceName)

	snap, err := d.Create(testGroupName)
	require.NoError(t, err)
	assert.Equal(t, testGroupID, snap.ID)
	assert.Equal(t, testAlice, snap.Creator)
	assert.Equal(t, []string{testAlice}, memberIDs(snap.Participants))
	assert.Empty(t, snap.Invitations)

	_, err = d.Create("study")
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = d.Create("   ")
	assert.Error(t, err)
}

func TestInvite_Guards(t *testing.T) {
	d := NewDirectory(testAlice, testAliceName)
	_, err := d.Create(testGroupName)
	require.NoError(t, err)

	snap, err := d.Invite(testGroupName, testBob, testBobName)
	require.NoError(t, err)
	assert.Equal(t, []string{testBob}, memberIDs(snap.Invitations))

	_, err = d.Invite(testGroupID, testBob, testBobName)
	assert.ErrorIs(t, err, ErrAlreadyInvited)

	_, err = d.Invite(testGroupID, testAlice, testAliceName)
	assert.ErrorIs(t, err, ErrAlreadyParticipant)

	_, err = d.Invite("missing", testCarol, testCarolName)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestInviteeLifecycle(t *testing.T) {
	bob := NewDirectory(testBob, testBobName)

	change := bob.ApplyInvite(testGroupID, testGroupName, testAlice, testAlice, testAliceName, testBob, testBobName)
	require.True(t, change.Created)
	assert.False(t, change.SelfParticipant)
	assert.Equal(t, []string{testAlice}, memberIDs(change.Record.Participants))
	assert.Equal(t, []string{testBob}, memberIDs(change.Record.Invitations))

	_, err := bob.RequireParticipant(testGroupName)
	assert.ErrorIs(t, err, ErrNotParticipant)

	snap, err := bob.Accept(testGroupName)
	require.NoError(t, err)
	assert.Equal(t, []string{testAlice, testBob}, memberIDs(snap.Participants))
	assert.Empty(t, snap.Invitations)
	assert.True(t, bob.IsParticipant(testGroupID))

	_, err = bob.Accept(testGroupID)
	assert.ErrorIs(t, err, ErrNotInvited)
}

func TestApplyInvite_IgnoresUnknownGroupForOthers(t *testing.T) {
	carol := NewDirectory(testCarol, testCarolName)

	change := carol.ApplyInvite(testGroupID, testGroupName, testAlice, testAlice, testAliceName, testBob, testBobName)
	assert.False(t, change.Applied)
	_, ok := carol.Lookup(testGroupID)
	assert.False(t, ok)
}

// TestApplyInvite_RejectsCollidingID covers a creator whose id contains the
// separator: DeriveID("bob_x", "team") equals DeriveID("bob", "x_team").
func TestApplyInvite_RejectsCollidingID(t *testing.T) {
	bob := NewDirectory(testBob, testBobName)
	collidingID := DeriveID("bob_x", "team")
	require.Equal(t, DeriveID(testBob, "x_team"), collidingID)

	change := bob.ApplyInvite(collidingID, "team", "bob_x", "bob_x", "Bob X", testBob, testBobName)
	assert.False(t, change.Applied)
	_, ok := bob.Lookup(collidingID)
	assert.False(t, ok)

	snap, err := bob.Create("x_team")
	require.NoError(t, err)
	assert.Equal(t, collidingID, snap.ID)
	assert.Equal(t, testBob, snap.Creator)
}

func TestApplyInvite_RejectsMismatchedID(t *testing.T) {
	bob := NewDirectory(testBob, testBobName)

	change := bob.ApplyInvite("bob_study", testGroupName, testAlice, testAlice, testAliceName, testBob, testBobName)
	assert.False(t, change.Applied)
	assert.Empty(t, bob.Groups())
}

func TestCreate_ForeignGroupWithSameNameDoesNotBlock(t *testing.T) {
	bob := NewDirectory(testBob, testBobName)
	bob.ApplyInvite(testGroupID, testGroupName, testAlice, testAlice, testAliceName, testBob, testBobName)
	_, err := bob.Accept(testGroupID)
	require.NoError(t, err)

	snap, err := bob.Create(testGroupName)
	require.NoError(t, err)
	assert.Equal(t, "bob_study", snap.ID)
	assert.Len(t, bob.Groups(), 2)

	_, err = bob.Create("STUDY")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestCreate_ForeignRecordAtDerivedID(t *testing.T) {
	bob := NewDirectory(testBob, testBobName)
	bob.Restore([]Snapshot{{
		ID:           "bob_x-team",
		Name:         "team",
		Creator:      "bob_x",
		Participants: []Member{{AccountID: "bob_x", DisplayName: "Bob X"}},
	}})

	_, err := bob.Create("x team")
	assert.ErrorIs(t, err, ErrIDConflict)

	snap, ok := bob.Lookup("bob_x-team")
	require.True(t, ok)
	assert.Equal(t, "bob_x", snap.Creator, "existing record is left untouched")
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(testGroupID, testAlice, testGroupName))
	assert.True(t, ValidID(testGroupID, testAlice, "  STUDY "))
	assert.False(t, ValidID("alice_other", testAlice, testGroupName))
	assert.False(t, ValidID(DeriveID("bob_x", "team"), "bob_x", "team"))
	assert.False(t, ValidID("_study", "", testGroupName))
}

func TestInboundEventsAreIdempotent(t *testing.T) {
	alice := NewDirectory(testAlice, testAliceName)
	_, err := alice.Create(testGroupName)
	require.NoError(t, err)
	_, err = alice.Invite(testGroupID, testBob, testBobName)
	require.NoError(t, err)

	first := alice.ApplyJoin(testGroupID, testBob, testBobName)
	assert.True(t, first.Applied)
	again := alice.ApplyJoin(testGroupID, testBob, testBobName)
	assert.False(t, again.Applied)
	assert.Equal(t, first.Record, again.Record)

	invite := alice.ApplyInvite(testGroupID, testGroupName, testAlice, testBob, testBobName, testBob, testBobName)
	assert.False(t, invite.Applied, "participant cannot be re-invited")

	left := alice.ApplyLeave(testGroupID, testBob)
	assert.True(t, left.Applied)
	assert.Equal(t, left.Record, alice.ApplyLeave(testGroupID, testBob).Record)
	assert.False(t, alice.ApplyLeave(testGroupID, testBob).Applied)
}

func TestApplyEvents_UnknownGroupIgnored(t *testing.T) {
	d := NewDirectory(testCarol, testCarolName)

	assert.Equal(t, Change{}, d.ApplyJoin(testGroupID, testBob, testBobName))
	assert.Equal(t, Change{}, d.ApplyLeave(testGroupID, testBob))
	assert.Empty(t, d.Groups())
}

func TestLeave_GarbageCollectsEmptyRecord(t *testing.T) {
	alice := NewDirectory(testAlice, testAliceName)
	_, err := alice.Create(testGroupName)
	require.NoError(t, err)

	snap, deleted, err := alice.Leave(testGroupName)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, snap.Participants)

	_, ok := alice.Lookup(testGroupID)
	assert.False(t, ok)

	// The id becomes free again.
	_, err = alice.Create(testGroupName)
	assert.NoError(t, err)
}

func TestLeave_KeepsRecordWithInvitations(t *testing.T) {
	alice := NewDirectory(testAlice, testAliceName)
	_, err := alice.Create(testGroupName)
	require.NoError(t, err)
	_, err = alice.Invite(testGroupID, testBob, testBobName)
	require.NoError(t, err)

	snap, deleted, err := alice.Leave(testGroupID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, snap.Participants)
	assert.Equal(t, []string{testBob}, memberIDs(snap.Invitations))

	_, err = alice.Resolve(testGroupID)
	assert.ErrorIs(t, err, ErrGroupNotFound, "self is neither participant nor invitee")
}

func TestReject_DeletesWhenEmpty(t *testing.T) {
	bob := NewDirectory(testBob, testBobName)
	bob.ApplyInvite(testGroupID, testGroupName, testAlice, testAlice, testAliceName, testBob, testBobName)

	_, deleted, err := bob.Reject(testGroupName)
	require.NoError(t, err)
	assert.False(t, deleted, "inviter is still listed as participant")

	_, err = bob.Resolve(testGroupID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	change := bob.ApplyLeave(testGroupID, testAlice)
	assert.True(t, change.Deleted)
	assert.Empty(t, bob.Groups())
}

func TestResolve_AmbiguousName(t *testing.T) {
	carol := NewDirectory(testCarol, testCarolName)
	carol.ApplyInvite("alice_study", "Study", testAlice, testAlice, testAliceName, testCarol, testCarolName)
	carol.ApplyInvite("bob_study", "Study", testBob, testBob, testBobName, testCarol, testCarolName)

	_, err := carol.Resolve("study")
	assert.ErrorIs(t, err, ErrAmbiguousGroup)

	rec, err := carol.Resolve("bob_study")
	require.NoError(t, err)
	assert.Equal(t, testBob, rec.Creator)
}

func TestSnapshotsRoundTrip(t *testing.T) {
	alice := NewDirectory(testAlice, testAliceName)
	_, err := alice.Create(testGroupName)
	require.NoError(t, err)
	_, err = alice.Invite(testGroupID, testBob, testBobName)
	require.NoError(t, err)
	alice.ApplyJoin(testGroupID, testCarol, testCarolName)

	saved := alice.Groups()

	restored := NewDirectory(testAlice, testAliceName)
	restored.Restore(saved)
	assert.Equal(t, saved, restored.Groups())

	rec, err := restored.Resolve(testGroupName)
	require.NoError(t, err)
	assert.Equal(t, testCarolName, rec.DisplayName(testCarol))
}
