// Package recovery builds and drives the RecoveryPlan described in §3/§4.7:
// an optional snapshot step followed by an ordered list of per-term replay
// steps, used at startup to bring the agent (and its co-hosted services) to
// a known state before accepting new work.
package recovery

import "github.com/kamma-cc/aeron/collab"

// Plan wraps the raw collab.RecoveryPlanData with the fields the recovery
// pipeline and the election tie-break (§4.2) need named directly.
type Plan struct {
	HasSnapshot  bool
	Snapshot     collab.SnapshotStep
	TermSteps    []collab.TermStep
}

// FromData adapts a RecordingLog.CreateRecoveryPlan() result.
func FromData(d collab.RecoveryPlanData) *Plan {
	return &Plan{HasSnapshot: d.HasSnapshot, Snapshot: d.SnapshotStep, TermSteps: d.TermSteps}
}

// LastLogPosition is the absolute position the plan leaves the log at: the
// snapshot's log position (or 0) plus every term step's length.
func (p *Plan) LastLogPosition() int64 {
	base := int64(0)
	if p.HasSnapshot {
		base = p.Snapshot.LogPosition
	}
	for _, step := range p.TermSteps {
		base += step.StopPosition - step.StartPosition
	}
	return base
}

// LastTermPositionAppended is the term position the plan's final term step
// reaches, or the snapshot's term position if there are no term steps. Used
// by the election tie-break in §4.2.
func (p *Plan) LastTermPositionAppended() int64 {
	if len(p.TermSteps) == 0 {
		if p.HasSnapshot {
			return p.Snapshot.TermPosition
		}
		return 0
	}
	last := p.TermSteps[len(p.TermSteps)-1]
	return last.StopPosition - last.StartPosition
}

// LastLeadershipTermID is the term id of the plan's final step, or -1 if the
// plan is empty (cold start).
func (p *Plan) LastLeadershipTermID() int64 {
	if len(p.TermSteps) > 0 {
		return p.TermSteps[len(p.TermSteps)-1].LeadershipTermID
	}
	if p.HasSnapshot {
		return p.Snapshot.LeadershipTermID
	}
	return -1
}
