// Package sequencer implements the Sequencer Agent itself: the role/state
// machine, election, client session pipeline, log sequencing, commit
// advancement, cluster actions and snapshot/recovery orchestration (§4).
// Agent.DoWork is the single entry point an external runner invokes
// repeatedly (§4.1/§5).
package sequencer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/grpcmember"
	"github.com/kamma-cc/aeron/internal/logging"
	"github.com/kamma-cc/aeron/recovery"
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/timer"
)

// Role is one of FOLLOWER/CANDIDATE/LEADER (§3).
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "FOLLOWER"
	case Candidate:
		return "CANDIDATE"
	case Leader:
		return "LEADER"
	default:
		return "UNKNOWN"
	}
}

// ConsensusState is the agent's cooperative-transition state (§3).
type ConsensusState int

const (
	StateInit ConsensusState = iota
	StateActive
	StateSuspended
	StateSnapshot
	StateShutdown
	StateAbort
	StateClosed
)

func (s ConsensusState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateActive:
		return "ACTIVE"
	case StateSuspended:
		return "SUSPENDED"
	case StateSnapshot:
		return "SNAPSHOT"
	case StateShutdown:
		return "SHUTDOWN"
	case StateAbort:
		return "ABORT"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// NullPosition marks "no follower commit position known yet" (§4.2 become
// follower).
const NullPosition int64 = -1

// Collaborators bundles every consumed capability the agent needs (§6).
type Collaborators struct {
	Transport      collab.Transport
	Archive        collab.Archive
	RecordingLog   collab.RecordingLog
	Authenticator  collab.Authenticator
	ServiceControl collab.ServiceControl
	ControlFile    collab.ControlFile
	Clock          collab.Clock
	Idle           collab.IdleStrategy
	Termination    collab.TerminationHook

	ModuleStateCounter   collab.Counter
	ClusterRoleCounter   collab.Counter
	RecoveryCounter      collab.RecoveryStateCounter
	ControlToggle        collab.Counter

	MemberPublisher *grpcmember.Publisher

	IngressChannel string
	IngressStreamID int32
	LogChannel      string
	LogStreamID     int32
	MemberStatusChannel string

	ServiceCount int
}

// Options carries the static configuration the agent is constructed with.
type Options struct {
	MemberID          int32
	AppointedLeaderID int32
	ClusterSize       int

	SessionTimeoutMs    int64
	HeartbeatIntervalMs int64
	HeartbeatTimeoutMs  int64

	MaxConcurrentSessions int

	MaxIngressFragments int
	MaxLogFragments     int
}

// Agent is the Sequencer Agent (§2/§3). It owns the session map,
// pending/rejected lists, timer service, role/state and position counters
// exclusively (§3 Ownership); collaborators are borrowed handles.
type Agent struct {
	logger *zap.SugaredLogger

	opts Options
	col  Collaborators

	members *cluster.Table
	self    *cluster.Member

	sessions *session.Registry
	timers   *timer.Service

	role           Role
	state          ConsensusState
	memberID       int32
	leaderMemberID int32
	votedForMemberID int32
	leadershipTermID int64

	baseLogPosition        int64
	followerCommitPosition int64
	commitPosition         int64

	timeOfLastLogUpdateMs int64
	serviceAckCount       int
	logSessionID          int64
	logRecordingID        int64
	isRecovered           bool

	cachedNowMs   int64
	lastSlowTickMs int64

	failedTimerCancellations []int64

	ingress     collab.Image
	logAdapter  collab.Image
	logAppender collab.Publication

	recoveryPlan *recovery.Plan

	pendingAction *pendingClusterAction
	snapshotCount int64

	flagReselect bool
}

// New constructs an Agent in FOLLOWER/INIT; Start moves it to its startup
// role and state.
func New(opts Options, col Collaborators, members []*cluster.Member, selfID int32) *Agent {
	table := cluster.NewTable(members)
	a := &Agent{
		opts:                   opts,
		col:                    col,
		members:                table,
		self:                   table.Get(selfID),
		sessions:               session.NewRegistry(),
		timers:                 timer.NewService(),
		role:                   Follower,
		state:                  StateInit,
		memberID:               selfID,
		leaderMemberID:         0,
		votedForMemberID:       0,
		followerCommitPosition: NullPosition,
		logSessionID:           NullPosition,
	}
	a.logger = logging.New("info")
	return a
}

func (a *Agent) fields(kvs ...interface{}) []interface{} {
	return logging.Fields(a.memberID, a.role.String(), a.state.String(), kvs...)
}

func (a *Agent) alterRole(role Role) {
	a.logger.Infow("alter role", a.fields("new_role", role.String())...)
	a.role = role
	if a.col.ClusterRoleCounter != nil {
		a.col.ClusterRoleCounter.Set(int64(role))
	}
}

func (a *Agent) alterState(state ConsensusState) {
	a.logger.Infow("alter consensus state", a.fields("new_state", state.String())...)
	a.state = state
	if a.col.ModuleStateCounter != nil {
		a.col.ModuleStateCounter.Set(int64(state))
	}
}

func (a *Agent) alterTerm(termID int64) {
	a.logger.Infow("alter leadership term", a.fields("new_term", termID)...)
	a.leadershipTermID = termID
}

func (a *Agent) alterLeader(leaderID int32) {
	a.logger.Infow("alter leader", a.fields("new_leader", leaderID)...)
	a.leaderMemberID = leaderID
}

// Role returns the agent's current role.
func (a *Agent) Role() Role { return a.role }

// State returns the agent's current consensus state.
func (a *Agent) State() ConsensusState { return a.state }

// LeadershipTermID returns the current leadership term id.
func (a *Agent) LeadershipTermID() int64 { return a.leadershipTermID }

// BaseLogPosition returns the sum of committed term lengths before the
// current term.
func (a *Agent) BaseLogPosition() int64 { return a.baseLogPosition }

// CommitPosition returns the locally tracked commit position.
func (a *Agent) CommitPosition() int64 { return a.commitPosition }

// SnapshotCount returns the number of SNAPSHOT cluster actions this agent has
// completed since startup.
func (a *Agent) SnapshotCount() int64 { return a.snapshotCount }

// currentTermPosition is the recording-position counter's value less the
// base; on the leader it is read from the log appender's publication, on a
// follower from the log adapter image.
func (a *Agent) currentTermPosition() int64 {
	switch a.role {
	case Leader:
		if a.logAppender == nil {
			return 0
		}
		return positionOrZero(a.logAppender)
	default:
		if a.logAdapter == nil {
			return 0
		}
		return a.logAdapter.Position()
	}
}

func positionOrZero(p collab.Publication) int64 {
	type positioned interface{ Position() int64 }
	if pp, ok := p.(positioned); ok {
		return pp.Position()
	}
	return 0
}

func (a *Agent) reselectLoop() { a.flagReselect = true }

// faultError marks the §7 fatal taxonomy; the outer runner is expected to
// terminate the agent's host task when DoWork returns one.
type faultError struct {
	msg string
}

func (f *faultError) Error() string { return f.msg }

func fatalf(format string, args ...interface{}) error {
	return &faultError{msg: fmt.Sprintf(format, args...)}
}

var (
	errAckCountExceedsServiceCount = fatalf("service ack count exceeds service count")
	errAckLogPositionMismatch      = fatalf("service ack log position does not match current position")
	errInvalidActionForState       = fatalf("cluster action is not valid for current consensus state")
	errNoHeartbeatWithinTimeout    = fatalf("no commit-position heartbeat received within timeout")
	errRequestVoteSendFailed       = fatalf("failed to send request_vote to peer")
)
