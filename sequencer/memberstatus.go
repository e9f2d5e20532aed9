package sequencer

import (
	"context"

	"github.com/kamma-cc/aeron/grpcmember"
	"github.com/kamma-cc/aeron/wire"
)

// This file implements grpcmember.MemberStatusServer on *Agent, answering
// the peer RPCs the election and commit-advancement protocols send (§4.2,
// §4.4).

var _ grpcmember.MemberStatusServer = (*Agent)(nil)

// RequestVote grants a vote only to the appointed leader, and only when its
// reported progress is at least as current as this node's own recovery plan
// (§4.2 tie-break: candidate_term_id == leadership_term_id, last base log
// position matches, last term position is no smaller than ours).
func (a *Agent) RequestVote(ctx context.Context, req *wire.RequestVote) (*wire.Vote, error) {
	granted := false
	if req.CandidateId == a.opts.AppointedLeaderID {
		switch {
		case a.recoveryPlan == nil:
			granted = true
		case req.TermId == a.leadershipTermID &&
			req.LastBaseLogPosition == a.recoveryPlan.LastLogPosition() &&
			req.LastTermPosition >= a.recoveryPlan.LastTermPositionAppended():
			granted = true
		}
	}
	if granted {
		a.votedForMemberID = req.CandidateId
		if m := a.members.Get(a.memberID); m != nil {
			m.VotedForID = req.CandidateId
		}
	}
	return &wire.Vote{
		TermId:              req.TermId,
		LastBaseLogPosition: req.LastBaseLogPosition,
		LastTermPosition:    req.LastTermPosition,
		CandidateId:         req.CandidateId,
		FollowerId:          a.memberID,
		VoteGranted:         granted,
	}, nil
}

// AppendedPosition is the leader-side inbound handler reporting a follower's
// recording progress (§4.4); it feeds cluster.Table.QuorumTermPosition.
func (a *Agent) AppendedPosition(ctx context.Context, req *wire.AppendedPosition) (*wire.Ack, error) {
	if req.TermId == a.leadershipTermID {
		if m := a.members.Get(req.FollowerId); m != nil {
			m.TermPosition = req.TermPosition
		}
	}
	return &wire.Ack{}, nil
}

// CommitPosition is the follower-side inbound handler for the leader's
// periodic broadcast (§4.4); a higher leadership term observed here means the
// leader changed (or this node just joined) and adopts it directly rather
// than through RequestVote.
func (a *Agent) CommitPosition(ctx context.Context, req *wire.CommitPosition) (*wire.Ack, error) {
	if req.LeadershipTermId > a.leadershipTermID {
		a.alterTerm(req.LeadershipTermId)
		a.alterLeader(req.LeaderId)
		a.logSessionID = req.LogSessionId
	}
	if a.followerCommitPosition == NullPosition || req.TermPosition > a.followerCommitPosition {
		a.followerCommitPosition = req.TermPosition
	}
	a.timeOfLastLogUpdateMs = a.cachedNowMs
	return &wire.Ack{}, nil
}
