package sequencer

import (
	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// takeSnapshot writes the full §4.8 record sequence to a fresh recorded
// publication: marker-begin, one record per open session, one record per
// scheduled timer, the sequencer-state record, then marker-end. It runs to
// completion within the tick that triggered it (via processControlToggle),
// spin-idling through back-pressure the same way recovery's replay loop
// spin-idles through an empty poll.
func (a *Agent) takeSnapshot() {
	pub, recordingID, err := a.col.Archive.AddRecordedExclusivePublication(a.col.LogChannel, a.col.LogStreamID)
	if err != nil {
		a.logger.Warnw("snapshot: failed to open recorded publication", a.fields("error", err)...)
		return
	}
	defer pub.Close()

	logPos := a.baseLogPosition + a.currentTermPosition()

	if !a.offerSnapshotRecord(pub, &wire.SnapshotRecord{
		Kind:             wire.SnapshotMarkerBegin,
		SnapshotTypeId:   wire.SnapshotTypeID,
		LogPosition:      logPos,
		LeadershipTermId: a.leadershipTermID,
	}) {
		return
	}

	ok := true
	a.sessions.EachOpen(func(s *session.Session) {
		if !ok {
			return
		}
		ok = a.offerSnapshotRecord(pub, &wire.SnapshotRecord{
			Kind:               wire.SnapshotSessionRecord,
			SessionId:          s.ID,
			ResponseChan:       s.ResponseChan,
			ResponseStreamId:   s.StreamID,
			OpenLogPosition:    s.OpenLogPosition,
			TimeOfLastActivity: s.TimeOfLastActivity,
		})
	})
	if !ok {
		return
	}

	for _, e := range a.timers.Snapshot() {
		if !a.offerSnapshotRecord(pub, &wire.SnapshotRecord{
			Kind:          wire.SnapshotTimerRecord,
			CorrelationId: e.CorrelationID,
			DeadlineMs:    e.DeadlineMs,
		}) {
			return
		}
	}

	if !a.offerSnapshotRecord(pub, &wire.SnapshotRecord{
		Kind:          wire.SnapshotSequencerStateRecord,
		NextSessionId: a.sessions.NextSessionIDValue(),
	}) {
		return
	}

	if !a.offerSnapshotRecord(pub, &wire.SnapshotRecord{
		Kind:           wire.SnapshotMarkerEnd,
		SnapshotTypeId: wire.SnapshotTypeID,
	}) {
		return
	}

	if a.col.RecordingLog != nil {
		if err := a.col.RecordingLog.AppendSnapshot(recordingID, logPos, a.leadershipTermID, a.cachedNowMs, a.currentTermPosition()); err != nil {
			a.logger.Warnw("snapshot: failed to append recording-log entry", a.fields("error", err)...)
		}
	}
}

func (a *Agent) offerSnapshotRecord(pub collab.Publication, rec *wire.SnapshotRecord) bool {
	buf, err := wire.Marshal(rec)
	if err != nil {
		return false
	}
	for {
		pos, err := pub.Offer(buf)
		if err != nil {
			return false
		}
		if pos > 0 {
			return true
		}
		if err := a.col.Idle.Idle(0); err != nil {
			return false
		}
	}
}
