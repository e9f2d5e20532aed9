package sequencer

import "github.com/kamma-cc/aeron/wire"

// pollTimers drives the leader-only timer service: every deadline that has
// elapsed gets a TimerEvent record appended; back-pressure leaves the timer
// scheduled so it is retried next tick (§4.1, timer.Service.Poll contract).
func (a *Agent) pollTimers(nowMs int64) int {
	return a.timers.Poll(nowMs, func(correlationID, deadlineMs int64) bool {
		rec := &wire.LogRecord{
			Kind:             wire.RecordTimerEvent,
			LeadershipTermId: a.leadershipTermID,
			TimestampMs:      nowMs,
			CorrelationID:    correlationID,
			TimerDeadline:    deadlineMs,
		}
		pos, err := a.appendLogRecord(rec)
		return err == nil && pos > 0
	})
}

// scheduleTimer is the service-exposed hook (§4.6) a co-hosted state machine
// calls via ServiceControl; the sequencer itself never originates a timer.
func (a *Agent) scheduleTimer(correlationID, deadlineMs int64) {
	a.timers.Schedule(correlationID, deadlineMs)
}

// cancelTimer removes a scheduled timer; if it is not found and the agent is
// still replaying, the cancellation is deferred (§4.6/§9) so that a later
// replayed Schedule for the same correlation id is still cancelled in order.
func (a *Agent) cancelTimer(correlationID int64) {
	if a.timers.Cancel(correlationID) {
		return
	}
	if !a.isRecovered {
		a.failedTimerCancellations = append(a.failedTimerCancellations, correlationID)
	}
}

// drainFailedTimerCancellations re-applies cancellations that arrived before
// their matching Schedule during replay, once replay has caught up (§4.7
// recovery.Handler.DrainFailedTimerCancellations).
func (a *Agent) drainFailedTimerCancellations() {
	if len(a.failedTimerCancellations) == 0 {
		return
	}
	pending := a.failedTimerCancellations
	a.failedTimerCancellations = nil
	for _, correlationID := range pending {
		a.timers.Cancel(correlationID)
	}
}
