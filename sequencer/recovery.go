package sequencer

import (
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// This file implements recovery.Handler on *Agent (§4.7), letting the
// recovery.Pipeline drive replay without reaching into agent internals.

// OnReloadState restores the session id allocator once a snapshot's
// sequencer-state record has been read.
func (a *Agent) OnReloadState(nextSessionID int64) {
	a.sessions.SetNextSessionID(nextSessionID)
}

// OnReplaySessionOpen reconstructs one open session from a snapshot record.
func (a *Agent) OnReplaySessionOpen(rec *wire.SnapshotRecord) {
	s := session.NewOpen(rec.SessionId, 0, rec.ResponseStreamId, rec.ResponseChan, rec.TimeOfLastActivity, rec.OpenLogPosition)
	a.sessions.PutOpen(s)
	a.sessions.ObserveSessionID(rec.SessionId)
}

// RestoreTimer re-schedules one timer from a snapshot record.
func (a *Agent) RestoreTimer(correlationID, deadlineMs int64) {
	a.timers.Schedule(correlationID, deadlineMs)
}

// SetLeadershipTermID is called once per term step before its replay begins.
func (a *Agent) SetLeadershipTermID(termID int64) {
	a.leadershipTermID = termID
}

// SetBaseLogPosition seeds the base position the current term builds on top
// of (snapshot's log position, or 0 on a cold start).
func (a *Agent) SetBaseLogPosition(pos int64) {
	a.baseLogPosition = pos
}

// CommitTermPositionIfAdvanced records the recording-log commit for a
// completed term replay step and advances the running base position by
// termPosition (§4.7). It commits unconditionally; the step's
// LogPositionBase is not checked against the base position.
func (a *Agent) CommitTermPositionIfAdvanced(termID, termPosition int64) error {
	if a.col.RecordingLog != nil {
		if err := a.col.RecordingLog.CommitLeadershipTermPosition(termID, termPosition); err != nil {
			return err
		}
	}
	a.baseLogPosition += termPosition
	return nil
}

// DrainFailedTimerCancellations implements recovery.Handler.
func (a *Agent) DrainFailedTimerCancellations() {
	a.drainFailedTimerCancellations()
}

// AwaitServiceAcks spin-waits until serviceAckCount reaches expected,
// resetting the counter once satisfied so the next phase starts from zero
// (§4.5/§4.7). A mismatched excess is the fatal condition handleServiceAck
// already guards against.
func (a *Agent) AwaitServiceAcks(expected int) error {
	if expected <= 0 {
		return nil
	}
	for a.serviceAckCount < expected {
		n := a.col.ServiceControl.PollAcks(a.handleServiceAck)
		if n == 0 {
			if err := a.col.Idle.Idle(0); err != nil {
				return err
			}
		}
	}
	a.serviceAckCount = 0
	return nil
}
