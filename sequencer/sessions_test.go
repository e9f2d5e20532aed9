package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/grpcmember"
	"github.com/kamma-cc/aeron/internal/devcollab"
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// challengingAuthenticator always challenges a freshly connected session
// with a fixed nonce, then accepts whatever challenge response arrives.
type challengingAuthenticator struct {
	nonce []byte
}

func (challengingAuthenticator) OnConnectRequest(sessionID int64, credentials []byte, nowMs int64) {}

func (a challengingAuthenticator) OnProcessConnectedSession(proxy collab.SessionProxy, nowMs int64) {
	proxy.Challenge(a.nonce)
}

func (challengingAuthenticator) OnProcessChallengedSession(proxy collab.SessionProxy, nowMs int64) {}

func (challengingAuthenticator) OnChallengeResponse(sessionID int64, credentials []byte, nowMs int64, proxy collab.SessionProxy) {
	proxy.Authenticate()
}

var _ collab.Authenticator = challengingAuthenticator{}

func newSingleNodeAgentWithAuthenticator(t *testing.T, auth collab.Authenticator) *Agent {
	t.Helper()
	transport := devcollab.NewTransport()
	archive := devcollab.NewArchive(transport)
	col := Collaborators{
		Transport:      transport,
		Archive:        archive,
		RecordingLog:   devcollab.NewRecordingLog(),
		Authenticator:  auth,
		ServiceControl: grpcmember.NewControl(grpcmember.NewAckInbox(), grpcmember.NewPublisher(), nil),
		ControlFile:    &devcollab.ControlFile{},
		Clock:          devcollab.SystemClock{},
		Idle:           devcollab.BackoffIdle{},
		Termination:    devcollab.LogTermination{},

		IngressChannel:  "ingress",
		IngressStreamID: 1,
		LogChannel:      "log",
		LogStreamID:     2,

		ServiceCount: 0,
	}
	members := []*cluster.Member{{ID: 1}}
	a := New(Options{
		MemberID:              1,
		AppointedLeaderID:     1,
		ClusterSize:           1,
		SessionTimeoutMs:      5000,
		HeartbeatIntervalMs:   1000,
		HeartbeatTimeoutMs:    5000,
		MaxConcurrentSessions: 10,
		MaxIngressFragments:   10,
		MaxLogFragments:       10,
	}, col, members, 1)
	require.NoError(t, a.Start())
	return a
}

// TestPumpPendingSessions_ChallengeReachesClient exercises the full §4.3
// challenge round trip: a connecting session is challenged, and the stashed
// nonce must actually be transmitted to the client over its response
// publication rather than left stranded in PendingChallenge.
func TestPumpPendingSessions_ChallengeReachesClient(t *testing.T) {
	nonce := []byte("prove-it")
	a := newSingleNodeAgentWithAuthenticator(t, challengingAuthenticator{nonce: nonce})

	now := a.col.Clock.NowMillis()
	a.onSessionConnect(1, 5, "resp-chan", []byte("creds"), now)
	require.Len(t, a.sessions.Pending(), 1)
	s := a.sessions.Pending()[0]
	require.NotNil(t, s.ResponsePub)

	// First pump: CONNECTED -> Challenge() issued, state becomes CHALLENGED.
	a.pumpPendingSessions(now)
	require.Equal(t, session.Challenged, s.State)
	require.Equal(t, nonce, s.PendingChallenge)

	// Second pump: the CHALLENGED branch must actually emit the nonce.
	a.pumpPendingSessions(now)

	require.NoError(t, a.col.Transport.AddSubscription("resp-chan", s.StreamID))
	image, err := a.col.Transport.Image(int64(s.StreamID))
	require.NoError(t, err)

	var received *wire.EgressMessage
	n, err := image.Poll(func(f collab.Fragment) error {
		msg := new(wire.EgressMessage)
		if err := wire.Unmarshal(f.Buf, msg); err != nil {
			return err
		}
		received = msg
		return nil
	}, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NotNil(t, received)
	assert.Equal(t, wire.EgressChallenge, received.Kind)
	assert.Equal(t, nonce, received.Payload)
	assert.Nil(t, s.PendingChallenge, "payload must be cleared once sent")
}
