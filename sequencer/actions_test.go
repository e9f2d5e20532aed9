package sequencer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/grpcmember"
	"github.com/kamma-cc/aeron/internal/devcollab"
	"github.com/kamma-cc/aeron/wire"
)

// newSingleNodeAgentWithServices is like newSingleNodeAgent but wires a
// control-toggle counter and a configurable ServiceCount, for exercising
// §4.5 cluster actions.
func newSingleNodeAgentWithServices(t *testing.T, serviceCount int) (*Agent, *devcollab.Counter, *grpcmember.AckInbox) {
	t.Helper()
	transport := devcollab.NewTransport()
	archive := devcollab.NewArchive(transport)
	toggle := &devcollab.Counter{}
	inbox := grpcmember.NewAckInbox()
	col := Collaborators{
		Transport:      transport,
		Archive:        archive,
		RecordingLog:   devcollab.NewRecordingLog(),
		Authenticator:  devcollab.AllowAllAuthenticator{},
		ServiceControl: grpcmember.NewControl(inbox, grpcmember.NewPublisher(), nil),
		ControlFile:    &devcollab.ControlFile{},
		Clock:          devcollab.SystemClock{},
		Idle:           devcollab.BackoffIdle{},
		Termination:    devcollab.LogTermination{},
		ControlToggle:  toggle,

		IngressChannel:  "ingress",
		IngressStreamID: 1,
		LogChannel:      "log",
		LogStreamID:     2,

		ServiceCount: serviceCount,
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
	return a, toggle, inbox
}

// TestProcessControlToggle_SnapshotParksUntilServiceAcksThenCompletes mirrors
// §8 scenario 5: SNAPSHOT must not complete (return to ACTIVE, bump the
// snapshot counter, reset the toggle) until every co-hosted service has
// ACKed it.
func TestProcessControlToggle_SnapshotParksUntilServiceAcksThenCompletes(t *testing.T) {
	a, toggle, inbox := newSingleNodeAgentWithServices(t, 1)

	toggle.Set(int64(wire.ActionSnapshot))
	n, err := a.processControlToggle(a.col.Clock.NowMillis())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, StateSnapshot, a.State(), "snapshot must be parked, not yet complete")
	assert.NotNil(t, a.pendingAction)
	assert.Equal(t, int64(wire.ActionSnapshot), toggle.Get(), "toggle must not reset until the action completes")

	expectedLogPos := a.baseLogPosition + a.currentTermPosition()
	_, err = inbox.Ack(context.Background(), &wire.ServiceAck{
		LogPosition: expectedLogPos,
		TermId:      a.leadershipTermID,
		ServiceId:   1,
		Action:      wire.ActionSnapshot,
	})
	require.NoError(t, err)

	n2 := a.col.ServiceControl.PollAcks(a.handleServiceAck)
	assert.Equal(t, 1, n2)

	assert.Equal(t, StateActive, a.State())
	assert.Nil(t, a.pendingAction)
	assert.Equal(t, int64(1), a.SnapshotCount())
	assert.Equal(t, int64(wire.ActionNeutral), toggle.Get())
}

// TestProcessControlToggle_ZeroServiceCountCompletesVacuously verifies a
// cluster with no co-hosted services doesn't park forever awaiting ACKs that
// will never arrive.
func TestProcessControlToggle_ZeroServiceCountCompletesVacuously(t *testing.T) {
	a, toggle, _ := newSingleNodeAgentWithServices(t, 0)

	toggle.Set(int64(wire.ActionSnapshot))
	_, err := a.processControlToggle(a.col.Clock.NowMillis())
	require.NoError(t, err)

	assert.Equal(t, StateActive, a.State())
	assert.Nil(t, a.pendingAction)
	assert.Equal(t, int64(1), a.SnapshotCount())
}

// TestProcessControlToggle_InvalidForStateLeavesTogglePending covers the §8
// boundary behaviour: SNAPSHOT while SUSPENDED must not append a record, must
// not touch the toggle, and must not return an error.
func TestProcessControlToggle_InvalidForStateLeavesTogglePending(t *testing.T) {
	a, toggle, _ := newSingleNodeAgentWithServices(t, 0)
	a.alterState(StateSuspended)

	toggle.Set(int64(wire.ActionSnapshot))
	n, err := a.processControlToggle(a.col.Clock.NowMillis())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, StateSuspended, a.State())
	assert.Equal(t, int64(wire.ActionSnapshot), toggle.Get(), "toggle must remain pending, not reset")
}

// TestProcessControlToggle_ResumeReachableWhileSuspended verifies a
// suspended leader can still observe and apply RESUME (loop.go used to gate
// processControlToggle behind state==ACTIVE, making this unreachable).
func TestProcessControlToggle_ResumeReachableWhileSuspended(t *testing.T) {
	a, toggle, _ := newSingleNodeAgentWithServices(t, 0)
	a.alterState(StateSuspended)

	toggle.Set(int64(wire.ActionResume))
	n, err := a.processControlToggle(a.col.Clock.NowMillis())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateActive, a.State())
	assert.Equal(t, int64(wire.ActionNeutral), toggle.Get())
}

// TestDoWork_ControlToggleReachableWhileSuspended exercises the same
// reachability guarantee through the real DoWork tick rather than calling
// processControlToggle directly.
func TestDoWork_ControlToggleReachableWhileSuspended(t *testing.T) {
	a, toggle, _ := newSingleNodeAgentWithServices(t, 0)
	a.alterState(StateSuspended)
	toggle.Set(int64(wire.ActionResume))

	_, err := a.DoWork()
	require.NoError(t, err)
	assert.Equal(t, StateActive, a.State())
}
