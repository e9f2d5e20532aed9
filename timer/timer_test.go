package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ScheduleAndDeadline(t *testing.T) {
	s := NewService()
	s.Schedule(1, 100)
	s.Schedule(2, 50)

	d, ok := s.Deadline(1)
	require.True(t, ok)
	assert.Equal(t, int64(100), d)

	assert.Equal(t, 2, s.Len())
}

func TestService_Schedule_Overwrite(t *testing.T) {
	s := NewService()
	s.Schedule(1, 100)
	s.Schedule(1, 10)

	assert.Equal(t, 1, s.Len())
	d, ok := s.Deadline(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), d)
}

func TestService_Cancel(t *testing.T) {
	s := NewService()
	s.Schedule(1, 100)

	assert.True(t, s.Cancel(1))
	assert.False(t, s.Cancel(1), "cancelling twice reports not-found")

	_, ok := s.Deadline(1)
	assert.False(t, ok)
}

func TestService_Poll_FiresInDeadlineOrder(t *testing.T) {
	s := NewService()
	s.Schedule(3, 300)
	s.Schedule(1, 100)
	s.Schedule(2, 200)

	var fired []int64
	n := s.Poll(250, func(correlationID, deadlineMs int64) bool {
		fired = append(fired, correlationID)
		return true
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, fired)
	assert.Equal(t, 1, s.Len(), "only the still-due-later timer remains")
}

func TestService_Poll_BackPressureStopsPolling(t *testing.T) {
	s := NewService()
	s.Schedule(1, 100)
	s.Schedule(2, 110)

	calls := 0
	n := s.Poll(1000, func(correlationID, deadlineMs int64) bool {
		calls++
		return false // simulate back-pressure on the very first fire
	})

	assert.Equal(t, 0, n)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, s.Len(), "both timers remain scheduled on back-pressure")
}

func TestService_SnapshotRestore_RoundTrip(t *testing.T) {
	s := NewService()
	s.Schedule(1, 100)
	s.Schedule(2, 50)
	s.Schedule(3, 75)

	entries := s.Snapshot()
	assert.Len(t, entries, 3)

	restored := NewService()
	restored.Restore(entries)

	assert.Equal(t, s.Len(), restored.Len())
	for _, e := range entries {
		d, ok := restored.Deadline(e.CorrelationID)
		require.True(t, ok)
		assert.Equal(t, e.DeadlineMs, d)
	}

	// restored order must still poll deadline-ascending.
	var fired []int64
	restored.Poll(1000, func(correlationID, deadlineMs int64) bool {
		fired = append(fired, correlationID)
		return true
	})
	assert.Equal(t, []int64{2, 3, 1}, fired)
}
