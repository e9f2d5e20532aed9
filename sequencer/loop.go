package sequencer

import "github.com/kamma-cc/aeron/collab"

// DoWork performs one tick and returns a non-negative work count for the
// runner's backpressure idling (§4.1). The suspension points live in the
// startup sequence (election.go), with one exception: a SNAPSHOT cluster
// action's takeSnapshot spin-idles through snapshot back-pressure within
// the tick that applies it.
func (a *Agent) DoWork() (int, error) {
	workCount := 0

	now := a.col.Clock.NowMillis()
	slowTick := false
	if now != a.cachedNowMs {
		slowTick = true
		a.cachedNowMs = now
	}

	switch {
	case a.role == Leader && a.state == StateActive:
		n, err := a.pollIngress()
		if err != nil && err != collab.ErrAbort {
			return workCount, err
		}
		workCount += n
	case a.role == Follower && (a.state == StateActive || a.state == StateSuspended):
		n, err := a.pollLogAdapter()
		if err != nil && err != collab.ErrAbort {
			return workCount, err
		}
		workCount += n
	}

	n, err := a.pollMemberStatus()
	if err != nil {
		return workCount, err
	}
	workCount += n

	if err := a.updatePositions(now); err != nil {
		return workCount, err
	}

	if slowTick {
		a.col.ControlFile.UpdateActivityTimestamp(now)
		workCount += a.col.ServiceControl.PollAcks(a.handleServiceAck)

		// Read regardless of ACTIVE/SUSPENDED: RESUME is only valid while
		// SUSPENDED (§4.5), so gating this on StateActive would make a
		// suspended leader permanently unable to observe RESUME (or any
		// later SNAPSHOT/SHUTDOWN/ABORT).
		if a.role == Leader {
			n, err := a.processControlToggle(now)
			if err != nil {
				return workCount, err
			}
			workCount += n
		}

		if a.role == Leader && a.state == StateActive {
			workCount += a.pumpPendingSessions(now)
			workCount += a.sessionHousekeeping(now)
			workCount += a.pumpRejectedSessions(now)
			workCount += a.pollTimers(now)
		}
	}

	return workCount, nil
}

// pollIngress is the leader-only client-request intake, bounded by the
// transport's fragment limit (§4.1).
func (a *Agent) pollIngress() (int, error) {
	if a.ingress == nil {
		return 0, nil
	}
	return a.ingress.Poll(a.onIngressFragment, a.opts.MaxIngressFragments)
}

// pollLogAdapter is the follower-only replay intake, bounded by
// followerCommitPosition (§4.1): it only consumes up to the position the
// agent already believes is committed. collab.Image.Poll itself has no
// notion of a stop position, so the bound is enforced twice: skip the call
// outright once the image has already reached the boundary, and inside
// onLogFragment reject (via collab.ErrAbort, which holds the read position
// in place for retry) any fragment whose resulting position would cross it.
func (a *Agent) pollLogAdapter() (int, error) {
	if a.logAdapter == nil {
		return 0, nil
	}
	if a.followerCommitPosition != NullPosition && a.logAdapter.Position() >= a.followerCommitPosition {
		return 0, nil
	}
	return a.logAdapter.Poll(a.onLogFragment, a.opts.MaxLogFragments)
}

func (a *Agent) onIngressFragment(f collab.Fragment) error {
	return a.dispatchIngress(f.Buf)
}

func (a *Agent) onLogFragment(f collab.Fragment) error {
	if a.followerCommitPosition != NullPosition && f.Position > a.followerCommitPosition {
		return collab.ErrAbort
	}
	return a.dispatchReplayFragment(f.Buf)
}
