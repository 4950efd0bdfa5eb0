package console

import (
	"context"
	"testing"

	"github.com/opd-ai/meshchat"
	"github.com/opd-ai/meshchat/auth"
	"github.com/opd-ai/meshchat/store"
	"github.com/opd-ai/meshchat/transport"
	"github.com/stretchr/testify/require"
)

// inlineExecutor runs operations on the calling goroutine.
type inlineExecutor struct {
	session *meshchat.Session
}

func (e inlineExecutor) Do(_ context.Context, op func(*meshchat.Session) meshchat.Outcome) meshchat.Outcome {
	return op(e.session)
}

// newTestSession starts a session on the hub whose notices go to notifier.
func newTestSession(t *testing.T, hub *transport.Hub, st store.Store, accountID, name string, notifier meshchat.Notifier) *meshchat.Session {
	t.Helper()
	s, err := meshchat.NewSession(meshchat.SessionConfig{
		Profile:   auth.Profile{AccountID: accountID, DisplayName: name},
		Transport: hub.Join(),
		Store:     st,
		Notifier:  notifier,
	})
	require.NoError(t, err)
	return s
}

// settle delivers pending records, announces every session and delivers the
// beacons.
func settle(hub *transport.Hub, sessions ...*meshchat.Session) {
	hub.Flush()
	for _, s := range sessions {
		s.Announce()
	}
	hub.Flush()
}
