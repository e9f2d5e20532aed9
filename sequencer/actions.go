package sequencer

import (
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// pendingClusterAction tracks a cluster action between its durable append
// and the moment every co-hosted service has ACKed it (§4.5): SNAPSHOT,
// SHUTDOWN and ABORT all park here until handleServiceAck's count reaches
// ServiceCount, validating every ACK's log position against the current log
// position (base plus current term position) and its term id against the
// term the action was appended in.
type pendingClusterAction struct {
	kind        wire.ClusterActionKind
	logPosition int64
	termID      int64
}

// processControlToggle reads the external control-toggle counter and, if it
// names a valid action for the current consensus state, appends a
// ClusterAction record and begins applying it only once that record is
// durably appended (§4.5). An action invalid for the current state leaves
// the toggle untouched so it is re-read, and re-validated, every slow tick
// until the state it requires is reached (§8 boundary behaviour).
func (a *Agent) processControlToggle(nowMs int64) (int, error) {
	if a.col.ControlToggle == nil || a.pendingAction != nil {
		return 0, nil
	}
	action := wire.ClusterActionKind(a.col.ControlToggle.Get())
	if action == wire.ActionNeutral {
		return 0, nil
	}
	if !a.clusterActionValidForState(action) {
		return 0, nil
	}

	rec := &wire.LogRecord{
		Kind:             wire.RecordClusterAction,
		LeadershipTermId: a.leadershipTermID,
		TimestampMs:      nowMs,
		Action:           action,
	}
	pos, err := a.appendLogRecord(rec)
	if err != nil || pos <= 0 {
		return 0, nil
	}

	a.beginClusterAction(action, pos)
	return 1, nil
}

// clusterActionValidForState mirrors ConsensusState.is_valid(action) (§3/§4.5).
// SNAPSHOT is valid only in ACTIVE (§8 boundary behaviour); SUSPEND/RESUME
// and SHUTDOWN/ABORT tolerate either ACTIVE or SUSPENDED.
func (a *Agent) clusterActionValidForState(action wire.ClusterActionKind) bool {
	switch action {
	case wire.ActionSuspend:
		return a.state == StateActive
	case wire.ActionResume:
		return a.state == StateSuspended
	case wire.ActionSnapshot:
		return a.state == StateActive
	case wire.ActionShutdown, wire.ActionAbort:
		return a.state == StateActive || a.state == StateSuspended
	default:
		return false
	}
}

// beginClusterAction applies the immediate half of an accepted, durably
// appended cluster action. SUSPEND/RESUME complete outright ("no service ACK
// gate beyond the action record itself", §4.5); SNAPSHOT/SHUTDOWN/ABORT park
// in an intermediate state and await service ACKs before completing.
func (a *Agent) beginClusterAction(action wire.ClusterActionKind, logPosition int64) {
	a.pendingAction = &pendingClusterAction{kind: action, logPosition: logPosition, termID: a.leadershipTermID}
	switch action {
	case wire.ActionSuspend:
		a.alterState(StateSuspended)
		a.finishClusterAction()
	case wire.ActionResume:
		a.alterState(StateActive)
		a.finishClusterAction()
	case wire.ActionSnapshot:
		a.alterState(StateSnapshot)
		a.takeSnapshot()
	case wire.ActionShutdown:
		a.alterState(StateShutdown)
	case wire.ActionAbort:
		a.alterState(StateAbort)
	}
	// A cluster with no co-hosted services has nothing to ACK; complete
	// vacuously rather than parking forever, mirroring AwaitServiceAcks'
	// own expected<=0 guard (sequencer/recovery.go).
	if a.pendingAction != nil && a.col.ServiceCount <= 0 {
		a.completeClusterAction()
	}
}

// ackStateValid is the is_valid(action) half of ACK validation (§4.5/§7
// (iii)): while an action is pending, the agent must still be parked in the
// intermediate state that action put it in.
func (a *Agent) ackStateValid(action wire.ClusterActionKind) bool {
	switch action {
	case wire.ActionSnapshot:
		return a.state == StateSnapshot
	case wire.ActionShutdown:
		return a.state == StateShutdown
	case wire.ActionAbort:
		return a.state == StateAbort
	default:
		return true
	}
}

// completeClusterAction runs once every co-hosted service has ACKed the
// pending action, finishing the transition §4.5 describes for each kind.
func (a *Agent) completeClusterAction() {
	action := a.pendingAction.kind
	switch action {
	case wire.ActionSnapshot:
		a.snapshotCount++
		a.alterState(StateActive)
		a.sessions.EachOpen(func(s *session.Session) {
			s.TouchActivity(a.cachedNowMs)
		})
	case wire.ActionShutdown:
		a.commitPendingActionTermPosition()
		a.alterState(StateClosed)
		if a.col.Termination != nil {
			a.col.Termination.OnTerminate("shutdown")
		}
	case wire.ActionAbort:
		a.commitPendingActionTermPosition()
		a.alterState(StateClosed)
		if a.col.Termination != nil {
			a.col.Termination.OnTerminate("abort")
		}
	}
	a.finishClusterAction()
}

// commitPendingActionTermPosition closes out the current term step in the
// recording log at the action's append position, the same bookkeeping
// recovery's CommitTermPositionIfAdvanced performs after a term replay (§4.5
// "commit the term position in the recording log").
func (a *Agent) commitPendingActionTermPosition() {
	if a.col.RecordingLog != nil {
		a.col.RecordingLog.CommitLeadershipTermPosition(a.pendingAction.termID, a.currentTermPosition())
	}
}

// finishClusterAction resets the toggle to NEUTRAL and clears the pending
// action; the toggle is reset only on apply (§8 boundary behaviour), never
// while an action is merely pending ACKs.
func (a *Agent) finishClusterAction() {
	if a.col.ControlToggle != nil {
		a.col.ControlToggle.Set(int64(wire.ActionNeutral))
	}
	a.pendingAction = nil
}
