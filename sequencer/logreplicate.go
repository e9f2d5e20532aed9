package sequencer

import (
	"context"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// appendLogRecord is the leader-only path that writes a framed record into
// the replicated log (§4.4). A non-positive position signals back-pressure.
func (a *Agent) appendLogRecord(rec *wire.LogRecord) (int64, error) {
	if a.logAppender == nil {
		return 0, nil
	}
	rec.LogPosition = a.baseLogPosition + a.currentTermPosition()
	buf, err := wire.Marshal(rec)
	if err != nil {
		return 0, err
	}
	return a.logAppender.Offer(buf)
}

// dispatchReplayFragment decodes one replicated-log record and routes it to
// the matching replay handler (§4.4). Used both for steady-state follower
// replay and for recovery's term replay (via Agent.ReplayLogRecord).
func (a *Agent) dispatchReplayFragment(buf []byte) error {
	rec := new(wire.LogRecord)
	if err := wire.Unmarshal(buf, rec); err != nil {
		return nil
	}
	return a.ReplayLogRecord(rec)
}

// ReplayLogRecord implements recovery.Handler and is reused by steady-state
// follower replay: each handler updates the cached clock, mutates in-memory
// state, and maintains next_session_id as max(seen_id+1, current) (§4.4).
func (a *Agent) ReplayLogRecord(rec *wire.LogRecord) error {
	a.cachedNowMs = rec.TimestampMs
	switch rec.Kind {
	case wire.RecordSessionOpen:
		return a.onReplaySessionOpen(rec)
	case wire.RecordSessionMessage:
		return a.onReplaySessionMessage(rec)
	case wire.RecordSessionClose:
		return a.onReplaySessionClose(rec)
	case wire.RecordTimerEvent:
		return a.onReplayTimerEvent(rec)
	case wire.RecordClusterAction:
		return a.onReplayClusterAction(rec)
	}
	return nil
}

func (a *Agent) onReplaySessionOpen(rec *wire.LogRecord) error {
	s := session.NewOpen(rec.SessionID, rec.CorrelationID, rec.ResponseStreamID, rec.ResponseChan, rec.TimestampMs, rec.LogPosition)
	a.sessions.PutOpen(s)
	a.sessions.ObserveSessionID(rec.SessionID)
	return nil
}

func (a *Agent) onReplaySessionMessage(rec *wire.LogRecord) error {
	// State-machine application is out of scope here (§1 out-of-scope: the
	// per-service state-machine hosts apply it via replay of the same log);
	// the sequencer only needs to keep its own bookkeeping current.
	if s, ok := a.sessions.Open(rec.SessionID); ok {
		s.TouchActivity(rec.TimestampMs)
	}
	a.sessions.ObserveSessionID(rec.SessionID)
	return nil
}

func (a *Agent) onReplaySessionClose(rec *wire.LogRecord) error {
	a.sessions.RemoveOpen(rec.SessionID)
	a.sessions.ObserveSessionID(rec.SessionID)
	return nil
}

func (a *Agent) onReplayTimerEvent(rec *wire.LogRecord) error {
	if !a.timers.Cancel(rec.CorrelationID) {
		if !a.isRecovered {
			a.failedTimerCancellations = append(a.failedTimerCancellations, rec.CorrelationID)
		}
	}
	return nil
}

func (a *Agent) onReplayClusterAction(rec *wire.LogRecord) error {
	switch rec.Action {
	case wire.ActionSnapshot:
		a.alterState(StateSnapshot)
	case wire.ActionShutdown:
		a.alterState(StateShutdown)
	case wire.ActionAbort:
		a.alterState(StateAbort)
	case wire.ActionSuspend:
		a.alterState(StateSuspended)
	case wire.ActionResume:
		a.alterState(StateActive)
	}
	return nil
}

// pollMemberStatus advances the recording/commit counters: the leader writes
// its own term position and broadcasts commit_position on quorum advance or
// heartbeat; the follower reports appended_position and checks the
// heartbeat-timeout fatal condition (§4.4).
func (a *Agent) pollMemberStatus() (int, error) {
	switch a.role {
	case Leader:
		return a.leaderAdvanceCommit()
	case Follower:
		return a.followerReportAppended()
	default:
		return 0, nil
	}
}

func (a *Agent) leaderAdvanceCommit() (int, error) {
	work := 0
	termPos := a.currentTermPosition()
	if a.self != nil {
		a.self.TermPosition = termPos
	}

	quorumPos := a.members.QuorumTermPosition()
	now := a.cachedNowMs
	heartbeatDue := now-a.timeOfLastLogUpdateMs >= a.opts.HeartbeatIntervalMs
	if quorumPos > a.commitPosition || heartbeatDue {
		if quorumPos > a.commitPosition {
			a.commitPosition = quorumPos
		}
		req := &wire.CommitPosition{
			TermPosition:     a.commitPosition,
			LeadershipTermId: a.leadershipTermID,
			LeaderId:         a.memberID,
			LogSessionId:     a.logSessionID,
		}
		a.broadcastCommitPosition(req)
		a.timeOfLastLogUpdateMs = now
		work++
	}
	return work, nil
}

func (a *Agent) broadcastCommitPosition(req *wire.CommitPosition) {
	if a.col.MemberPublisher == nil {
		return
	}
	a.members.Each(func(m *cluster.Member) {
		if m.ID == a.memberID {
			return
		}
		_ = a.col.MemberPublisher.CommitPosition(context.Background(), m.ID, m.MemberEndpoint, req)
	})
}

func (a *Agent) followerReportAppended() (int, error) {
	work := 0
	termPos := a.currentTermPosition()
	if a.self != nil && termPos != a.self.TermPosition {
		a.self.TermPosition = termPos
		if a.col.MemberPublisher != nil && a.leaderMemberID != 0 {
			leader := a.members.Get(a.leaderMemberID)
			if leader != nil {
				req := &wire.AppendedPosition{
					TermPosition: termPos,
					TermId:       a.leadershipTermID,
					FollowerId:   a.memberID,
				}
				_ = a.col.MemberPublisher.AppendedPosition(context.Background(), leader.ID, leader.MemberEndpoint, req)
			}
		}
		work++
	}
	if a.followerCommitPosition != NullPosition && a.logAdapter != nil {
		consumed := a.logAdapter.Position()
		if consumed > a.commitPosition {
			a.commitPosition = consumed
		}
	}
	now := a.cachedNowMs
	if a.timeOfLastLogUpdateMs != 0 && now-a.timeOfLastLogUpdateMs > a.opts.HeartbeatTimeoutMs {
		return work, errNoHeartbeatWithinTimeout
	}
	return work, nil
}

// updatePositions is the always-run "advances commit/appended-position
// reporting" step from §4.1. It does nothing: the leader/follower specifics
// live in pollMemberStatus, and the last-update clock used by the heartbeat
// checks above is maintained by the memberstatus.go CommitPosition handler.
func (a *Agent) updatePositions(nowMs int64) error {
	return nil
}
