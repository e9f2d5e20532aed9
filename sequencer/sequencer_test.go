package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/grpcmember"
	"github.com/kamma-cc/aeron/internal/devcollab"
)

func newSingleNodeAgent(t *testing.T) *Agent {
	t.Helper()
	transport := devcollab.NewTransport()
	archive := devcollab.NewArchive(transport)
	col := Collaborators{
		Transport:      transport,
		Archive:        archive,
		RecordingLog:   devcollab.NewRecordingLog(),
		Authenticator:  devcollab.AllowAllAuthenticator{},
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

// TestAgent_Start_SingleNodeColdStart mirrors §8 scenario 1: a single-node
// cluster with no recovery plan goes straight from INIT to ACTIVE/LEADER at
// leadership term 0, with base_log_position 0.
func TestAgent_Start_SingleNodeColdStart(t *testing.T) {
	a := newSingleNodeAgent(t)

	assert.Equal(t, Leader, a.Role())
	assert.Equal(t, StateActive, a.State())
	assert.Equal(t, int64(0), a.LeadershipTermID())
	assert.Equal(t, int64(0), a.BaseLogPosition())
	assert.True(t, a.isRecovered)
}

// TestAgent_DoWork_LeaderIdleTickDoesNoWork verifies a leader with no
// pending ingress, sessions, or timers reports zero work on a tick once the
// very first tick's due heartbeat broadcast has already fired.
func TestAgent_DoWork_LeaderIdleTickDoesNoWork(t *testing.T) {
	a := newSingleNodeAgent(t)

	_, err := a.DoWork() // first tick: heartbeat is always due immediately
	require.NoError(t, err)

	n, err := a.DoWork()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestAgent_SessionConnect_ThenIngressMessage_AppendsToLog exercises the
// onSessionConnect -> pending-pump -> open -> onSessionMessage path (§4.3)
// end to end against the in-memory log.
func TestAgent_SessionConnect_ThenIngressMessage_AppendsToLog(t *testing.T) {
	a := newSingleNodeAgent(t)

	now := a.col.Clock.NowMillis()
	a.onSessionConnect(1, 5, "resp-chan", []byte("creds"), now)
	require.Len(t, a.sessions.Pending(), 1)
	sessionID := a.sessions.Pending()[0].ID

	// drive the pending-session pipeline to completion: CONNECTED ->
	// AUTHENTICATED (AllowAllAuthenticator) -> appended as OPEN.
	for i := 0; i < 5; i++ {
		if _, ok := a.sessions.Open(sessionID); ok {
			break
		}
		a.pumpPendingSessions(now)
	}

	s, ok := a.sessions.Open(sessionID)
	require.True(t, ok, "session should have reached OPEN")
	assert.Equal(t, sessionID, s.ID)

	before := a.currentTermPosition()
	require.NoError(t, a.onSessionMessage([]byte("cmd"), sessionID, 2, now))
	assert.Equal(t, before+1, a.currentTermPosition(), "the session message must be appended to the log")
}
