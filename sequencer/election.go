package sequencer

import (
	"context"

	"github.com/kamma-cc/aeron/cluster"
	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/recovery"
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// Start runs the full §4.2 startup sequence: build and replay the recovery
// plan, then run the appointed-leader election and become leader or
// follower. DoWork must not be called until Start returns nil.
func (a *Agent) Start() error {
	plan, err := a.buildRecoveryPlan()
	if err != nil {
		return err
	}
	a.recoveryPlan = plan

	if a.col.RecoveryCounter != nil {
		a.col.RecoveryCounter.Set(plan.LastLeadershipTermID(), plan.LastTermPositionAppended(), a.col.Clock.NowMillis(), int64(len(plan.TermSteps)))
	}

	pipeline := &recovery.Pipeline{
		Archive:       a.col.Archive,
		Transport:     a.col.Transport,
		Idle:          a.col.Idle,
		ReplayChannel: a.col.LogChannel,
	}
	if err := pipeline.Run(plan, a, a.col.ServiceCount); err != nil {
		return fatalf("recovery: %v", err)
	}
	a.isRecovered = true
	a.alterState(StateActive)

	a.alterTerm(plan.LastLeadershipTermID() + 1)

	if a.memberID == a.opts.AppointedLeaderID {
		return a.becomeLeader()
	}
	return a.becomeFollower()
}

func (a *Agent) buildRecoveryPlan() (*recovery.Plan, error) {
	data, err := a.col.RecordingLog.CreateRecoveryPlan()
	if err != nil {
		return nil, fatalf("create recovery plan: %v", err)
	}
	return recovery.FromData(data), nil
}

// becomeLeader runs the appointed-leader's election round (self-vote plus a
// RequestVote to every peer, spin-polled to completion) and then performs
// the become-leader sequence: exclusive log publication, archive recording,
// ingress subscription and signalling co-hosted services to join the log
// (§4.2).
//
// TODO(spec §9 item 1): a permanently lagging voter (one whose recovery plan
// can never satisfy the tie-break) stalls this loop forever; catching such a
// follower up before granting it a vote is an open gap, left fatal/blocking
// rather than silently papered over.
func (a *Agent) becomeLeader() error {
	a.alterRole(Candidate)

	req := &wire.RequestVote{
		TermId:              a.leadershipTermID,
		LastBaseLogPosition: a.recoveryPlan.LastLogPosition(),
		LastTermPosition:    a.recoveryPlan.LastTermPositionAppended(),
		CandidateId:         a.memberID,
	}
	if self := a.members.Get(a.memberID); self != nil {
		self.VotedForID = a.memberID
	}

	for !a.members.AllVoted(a.leadershipTermID) {
		allVoted := true
		a.members.Each(func(m *cluster.Member) {
			if m.ID == a.memberID || m.VotedForID == a.memberID {
				return
			}
			vote, err := a.col.MemberPublisher.RequestVote(context.Background(), m.ID, m.MemberEndpoint, req)
			if err != nil || vote == nil || !vote.VoteGranted {
				allVoted = false
				return
			}
			m.VotedForID = a.memberID
		})
		if allVoted {
			break
		}
		if err := a.col.Idle.Idle(0); err != nil {
			return errRequestVoteSendFailed
		}
		a.col.Transport.ConductorDuty()
	}

	a.alterRole(Leader)
	a.alterLeader(a.memberID)
	a.baseLogPosition = a.recoveryPlan.LastLogPosition()

	pub, err := a.col.Transport.AddExclusivePublication(a.col.LogChannel, a.col.LogStreamID)
	if err != nil {
		return fatalf("become leader: open exclusive log publication: %v", err)
	}
	a.logAppender = pub

	subscriptionID, err := a.col.Archive.StartRecording(a.col.LogChannel, a.col.LogStreamID, true)
	if err != nil {
		return fatalf("become leader: start recording: %v", err)
	}
	if a.col.RecordingLog != nil {
		if err := a.col.RecordingLog.AppendTerm(subscriptionID, a.baseLogPosition, a.leadershipTermID, a.col.Clock.NowMillis()); err != nil {
			return fatalf("become leader: append term to recording log: %v", err)
		}
	}
	a.logRecordingID = subscriptionID
	a.logSessionID = int64(a.memberID)

	if err := a.col.Transport.AddSubscription(a.col.IngressChannel, a.col.IngressStreamID); err != nil {
		return fatalf("become leader: add ingress subscription: %v", err)
	}
	image, err := a.awaitImage(int64(a.col.IngressStreamID))
	if err != nil {
		return err
	}
	a.ingress = image

	if a.col.ServiceControl != nil {
		if err := a.col.ServiceControl.JoinLog(context.Background(), a.leadershipTermID, a.commitPosition, a.logSessionID, a.col.LogStreamID, a.col.LogChannel); err != nil {
			return fatalf("become leader: join log: %v", err)
		}
	}

	// await followers to report reaching position 0 (heartbeat-driven
	// commit-position broadcasts until quorum); a fresh term's followers
	// start at TermPosition 0, so this is typically satisfied immediately.
	for a.members.QuorumTermPosition() < 0 {
		if err := a.col.Idle.Idle(0); err != nil {
			return err
		}
		a.col.Transport.ConductorDuty()
	}

	// connect each (recovered) open session's response publication and
	// stamp its activity time, so a session restored from a snapshot can
	// resume receiving replies under the new term without waiting for the
	// client to reconnect.
	a.sessions.EachOpen(func(s *session.Session) {
		if pub, err := a.col.Transport.AddPublication(s.ResponseChan, s.StreamID); err == nil {
			s.ResponsePub = pub
			s.TouchActivity(a.col.Clock.NowMillis())
		}
	})
	return nil
}

// becomeFollower awaits the leader's first commit_position RPC (which
// supplies leaderMemberID via the CommitPosition handler), then subscribes to
// and archives the leader's log (§4.2).
func (a *Agent) becomeFollower() error {
	a.alterRole(Follower)

	for a.leaderMemberID == 0 {
		if err := a.col.Idle.Idle(0); err != nil {
			return err
		}
		a.col.Transport.ConductorDuty()
	}

	subscriptionID, err := a.col.Archive.StartRecording(a.col.LogChannel, a.col.LogStreamID, false)
	if err != nil {
		return fatalf("become follower: start recording leader's log: %v", err)
	}
	a.logRecordingID = subscriptionID
	a.baseLogPosition = a.recoveryPlan.LastLogPosition()

	if err := a.col.Transport.AddSubscription(a.col.LogChannel, a.col.LogStreamID); err != nil {
		return fatalf("become follower: subscribe to leader's log: %v", err)
	}
	image, err := a.awaitImage(int64(a.col.LogStreamID))
	if err != nil {
		return err
	}
	a.logAdapter = image

	if a.col.ServiceControl != nil {
		if err := a.col.ServiceControl.JoinLog(context.Background(), a.leadershipTermID, a.commitPosition, a.logSessionID, a.col.LogStreamID, a.col.LogChannel); err != nil {
			return fatalf("become follower: join log: %v", err)
		}
	}
	return nil
}

func (a *Agent) awaitImage(sessionID int64) (collab.Image, error) {
	for {
		image, err := a.col.Transport.Image(sessionID)
		if err == nil && image != nil {
			return image, nil
		}
		if err := a.col.Idle.Idle(0); err != nil {
			return nil, err
		}
		a.col.Transport.ConductorDuty()
	}
}
