package recovery

import (
	"errors"
	"fmt"

	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/wire"
)

// Handler is implemented by the sequencer agent so the recovery pipeline can
// drive it without reaching into its internals. Method names mirror §4.7's
// prose directly.
type Handler interface {
	OnReloadState(nextSessionID int64)
	OnReplaySessionOpen(rec *wire.SnapshotRecord)
	RestoreTimer(correlationID, deadlineMs int64)

	SetLeadershipTermID(termID int64)
	ReplayLogRecord(rec *wire.LogRecord) error
	SetBaseLogPosition(pos int64)
	CommitTermPositionIfAdvanced(termID, termPosition int64) error
	DrainFailedTimerCancellations()

	AwaitServiceAcks(expected int) error
}

const maxReplayLength int64 = 1 << 62 // stand-in for "to end of recording"

// ErrImageClosedMidStream is fatal per §7 (iii).
var ErrImageClosedMidStream = errors.New("recovery: image closed mid-stream")

// ErrReplaySessionIDMismatch is fatal per §7 (iii).
var ErrReplaySessionIDMismatch = errors.New("recovery: replay session id does not match step index")

// ErrTermBasePositionMismatch names the term-step base-position fault of §7
// (iii); Run does not compare LogPositionBase with the base position, so it
// is never returned.
var ErrTermBasePositionMismatch = errors.New("recovery: term step log position does not match base log position")

// Pipeline drives a Plan against a Handler using the archive/transport
// collaborators (§4.7).
type Pipeline struct {
	Archive   collab.Archive
	Transport collab.Transport
	Idle      collab.IdleStrategy

	ReplayChannel string
}

// Run executes the full recovery sequence: snapshot (if any), then each term
// step in order.
func (p *Pipeline) Run(plan *Plan, h Handler, serviceCount int) error {
	if plan.HasSnapshot {
		if err := p.recoverSnapshot(plan.Snapshot, h, serviceCount); err != nil {
			return fmt.Errorf("recover snapshot: %w", err)
		}
	}
	base := int64(0)
	if plan.HasSnapshot {
		base = plan.Snapshot.LogPosition
	}
	h.SetBaseLogPosition(base)

	for i, step := range plan.TermSteps {
		stopPosition, err := p.recoverTerm(i, step, h, serviceCount)
		if err != nil {
			return fmt.Errorf("recover term %d: %w", i, err)
		}
		if step.StopPosition < 0 {
			// this step was still open (the node crashed mid-term last time);
			// now that replay has reached the real end of the recording, pin
			// the plan's copy to that position so LastLogPosition/
			// LastTermPositionAppended (used for the election tie-break and
			// base_log_position right after Run returns) reflect what was
			// actually replayed instead of the open-ended sentinel.
			plan.TermSteps[i].StopPosition = stopPosition
		}
	}
	return nil
}

func (p *Pipeline) recoverSnapshot(step collab.SnapshotStep, h Handler, serviceCount int) error {
	sessionID, err := p.Archive.StartReplay(step.RecordingID, 0, -1, p.ReplayChannel, 0)
	if err != nil {
		return err
	}
	image, err := p.awaitImage(sessionID)
	if err != nil {
		return err
	}

	var nextSessionID int64
	done := false
	for !done {
		workCount, err := image.Poll(func(f collab.Fragment) error {
			rec := new(wire.SnapshotRecord)
			if err := wire.Unmarshal(f.Buf, rec); err != nil {
				return err
			}
			switch rec.Kind {
			case wire.SnapshotMarkerBegin:
				// nothing to do; marker carries log position/term id context only.
			case wire.SnapshotMarkerEnd:
				done = true
			case wire.SnapshotSessionRecord:
				h.OnReplaySessionOpen(rec)
			case wire.SnapshotTimerRecord:
				h.RestoreTimer(rec.CorrelationId, rec.DeadlineMs)
			case wire.SnapshotSequencerStateRecord:
				nextSessionID = rec.NextSessionId
			}
			return nil
		}, 10)
		if err != nil {
			return err
		}
		if workCount == 0 {
			if image.IsClosed() && !done {
				return ErrImageClosedMidStream
			}
			if err := p.Idle.Idle(workCount); err != nil {
				return err
			}
		}
	}
	h.OnReloadState(nextSessionID)
	return h.AwaitServiceAcks(serviceCount)
}

// recoverTerm replays one term step and returns the position the image
// actually reached, which is step.StopPosition verbatim for a closed step
// and the real end-of-recording position for an open-ended one.
func (p *Pipeline) recoverTerm(index int, step collab.TermStep, h Handler, serviceCount int) (int64, error) {
	// step.LogPositionBase is not compared with the running base position;
	// Run() calls SetBaseLogPosition once up-front and the handler advances
	// it in CommitTermPositionIfAdvanced after each step.
	h.SetLeadershipTermID(step.LeadershipTermID)

	if err := h.AwaitServiceAcks(serviceCount); err != nil {
		return 0, err
	}

	length := step.StopPosition - step.StartPosition
	if step.StopPosition < 0 {
		length = maxReplayLength
	}
	sessionID, err := p.Archive.StartReplay(step.RecordingID, step.StartPosition, length, p.ReplayChannel, int32(index))
	if err != nil {
		return 0, err
	}
	if sessionID != int64(index) {
		return 0, ErrReplaySessionIDMismatch
	}

	image, err := p.awaitImage(sessionID)
	if err != nil {
		return 0, err
	}

	stopPosition := step.StopPosition
	for {
		workCount, err := image.Poll(func(f collab.Fragment) error {
			rec := new(wire.LogRecord)
			if err := wire.Unmarshal(f.Buf, rec); err != nil {
				return err
			}
			return h.ReplayLogRecord(rec)
		}, 10)
		if err != nil {
			return 0, err
		}
		if stopPosition >= 0 && image.Position() >= stopPosition {
			break
		}
		if workCount == 0 {
			if image.IsClosed() {
				if stopPosition >= 0 {
					return 0, ErrImageClosedMidStream
				}
				break
			}
			if err := p.Idle.Idle(workCount); err != nil {
				return 0, err
			}
		}
	}

	if err := h.AwaitServiceAcks(serviceCount); err != nil {
		return 0, err
	}
	finalPosition := image.Position()
	if err := h.CommitTermPositionIfAdvanced(step.LeadershipTermID, finalPosition-step.StartPosition); err != nil {
		return 0, err
	}
	h.DrainFailedTimerCancellations()
	return finalPosition, nil
}

func (p *Pipeline) awaitImage(sessionID int64) (collab.Image, error) {
	for {
		image, err := p.Transport.Image(sessionID)
		if err == nil && image != nil {
			return image, nil
		}
		if err := p.Idle.Idle(0); err != nil {
			return nil, err
		}
		p.Transport.ConductorDuty()
	}
}
