package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/meshchat/async"
	"github.com/opd-ai/meshchat/friend"
	"github.com/opd-ai/meshchat/group"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	sentAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state := NewState()
	state.Friends = []friend.Friend{{AccountID: testBob, DisplayName: testBobName, AddedAt: sentAt}}
	state.PendingDirect[testBob] = []async.DirectMessage{{From: testAlice, Body: "hi", SentAt: sentAt}}
	state.PendingGroupLeaves[testBob] = []async.GroupLeave{{
		GroupID: testGroupID, GroupName: "Study", LeavingAccountID: testAlice,
	}}
	state.Groups = []group.Snapshot{{
		ID:           testGroupID,
		Name:         "Study",
		Creator:      testAlice,
		Participants: []group.Member{{AccountID: testAlice, DisplayName: "Alice"}},
		Invitations:  []group.Member{},
	}}
	return state
}

func testBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	files, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	level, err := NewLevelStore(filepath.Join(dir, "level"))
	require.NoError(t, err)
	t.Cleanup(func() { level.Close() })

	return map[string]Store{"file": files, "leveldb": level}
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			state, err := s.Load(testAlice)
			require.NoError(t, err)
			assert.Equal(t, NewState(), state)
		})
	}
}

func TestStore_SaveReplacesWholeDocument(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(testAlice, sampleState()))

			loaded, err := s.Load(testAlice)
			require.NoError(t, err)
			assert.Equal(t, sampleState(), loaded)

			require.NoError(t, s.Save(testAlice, NewState()))
			loaded, err = s.Load(testAlice)
			require.NoError(t, err)
			assert.Empty(t, loaded.Friends)
			assert.Empty(t, loaded.PendingDirect)

			other, err := s.Load(testBob)
			require.NoError(t, err)
			assert.Empty(t, other.Groups, "accounts do not share state")
		})
	}
}

func TestStore_RejectsEmptyAccount(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load("")
			assert.ErrorIs(t, err, ErrInvalidAccount)
			assert.ErrorIs(t, s.Save("", NewState()), ErrInvalidAccount)
		})
	}
}

func TestFileStore_CorruptDocument(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(testAlice), []byte("{not json"), 0o600))

	_, err = s.Load(testAlice)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestLoadState_FillsMissingSections(t *testing.T) {
	state, err := LoadState([]byte(`{"version":1,"friends":null}`))
	require.NoError(t, err)
	assert.NotNil(t, state.Friends)
	assert.NotNil(t, state.PendingGroupMessages)
	assert.NotNil(t, state.Groups)
}

func TestState_Queues(t *testing.T) {
	state := sampleState()

	q := async.NewQueue()
	q.Restore(state.Queues())
	assert.Equal(t, 2, q.Depth(testBob))
	assert.Equal(t, 1, q.DepthByKind(testBob, async.KindGroupLeave))

	require.NoError(t, q.EnqueueDirect(testBob, async.DirectMessage{From: testAlice, Body: "again"}))
	state.SetQueues(q.Snapshot())
	assert.Len(t, state.PendingDirect[testBob], 2)
}
