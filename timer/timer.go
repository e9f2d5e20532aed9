// Package timer implements the correlation-id keyed deadline table described
// in §4.6: schedule/cancel by correlation id, poll fires due deadlines in
// order, and a snapshot/restore pair for recovery.
package timer

// Service maps a correlation id to a deadline and exposes an ordered view by
// deadline for Poll. Not safe for concurrent use; the sequencer agent is the
// sole owner (§3 Ownership).
type Service struct {
	deadlines map[int64]int64 // correlationID -> deadlineMs
	order     []int64         // correlationIDs, kept sorted by deadline
}

// NewService returns an empty timer service.
func NewService() *Service {
	return &Service{deadlines: make(map[int64]int64)}
}

// Schedule inserts or overwrites the deadline for correlationID.
func (s *Service) Schedule(correlationID, deadlineMs int64) {
	if _, exists := s.deadlines[correlationID]; exists {
		s.removeFromOrder(correlationID)
	}
	s.deadlines[correlationID] = deadlineMs
	s.insertSorted(correlationID, deadlineMs)
}

// Cancel removes a scheduled timer. It reports whether one was found.
func (s *Service) Cancel(correlationID int64) bool {
	if _, exists := s.deadlines[correlationID]; !exists {
		return false
	}
	delete(s.deadlines, correlationID)
	s.removeFromOrder(correlationID)
	return true
}

// Deadline returns the scheduled deadline, if any.
func (s *Service) Deadline(correlationID int64) (int64, bool) {
	d, ok := s.deadlines[correlationID]
	return d, ok
}

// Len returns the number of scheduled timers.
func (s *Service) Len() int {
	return len(s.deadlines)
}

// Poll invokes fire for every timer whose deadline is <= nowMs, in deadline
// order. fire returns false to signal back-pressure: the timer stays
// scheduled and polling stops for this call (§4.6 "on back-pressure, leave
// the timer scheduled").
func (s *Service) Poll(nowMs int64, fire func(correlationID, deadlineMs int64) bool) int {
	fired := 0
	for len(s.order) > 0 {
		correlationID := s.order[0]
		deadline := s.deadlines[correlationID]
		if deadline > nowMs {
			break
		}
		if !fire(correlationID, deadline) {
			break
		}
		delete(s.deadlines, correlationID)
		s.order = s.order[1:]
		fired++
	}
	return fired
}

// Snapshot returns the set of (correlationID, deadlineMs) pairs, for §4.8.
func (s *Service) Snapshot() []Entry {
	entries := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, Entry{CorrelationID: id, DeadlineMs: s.deadlines[id]})
	}
	return entries
}

// Restore replaces the timer table with entries from a snapshot (§4.7).
func (s *Service) Restore(entries []Entry) {
	s.deadlines = make(map[int64]int64, len(entries))
	s.order = s.order[:0]
	for _, e := range entries {
		s.Schedule(e.CorrelationID, e.DeadlineMs)
	}
}

// Entry is one row of a timer snapshot.
type Entry struct {
	CorrelationID int64
	DeadlineMs    int64
}

func (s *Service) insertSorted(correlationID, deadlineMs int64) {
	i := 0
	for i < len(s.order) && s.deadlines[s.order[i]] <= deadlineMs {
		i++
	}
	s.order = append(s.order, 0)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = correlationID
}

func (s *Service) removeFromOrder(correlationID int64) {
	for i, id := range s.order {
		if id == correlationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
