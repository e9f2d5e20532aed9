package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NextSessionID_Monotonic(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, int64(1), r.NextSessionID())
	assert.Equal(t, int64(2), r.NextSessionID())
}

func TestRegistry_ObserveSessionID_AdvancesAllocator(t *testing.T) {
	r := NewRegistry()
	r.ObserveSessionID(10)
	assert.Equal(t, int64(11), r.NextSessionIDValue())

	r.ObserveSessionID(3)
	assert.Equal(t, int64(11), r.NextSessionIDValue(), "observing a lower id must not move the allocator backward")
}

func TestRegistry_SetNextSessionID_Restore(t *testing.T) {
	r := NewRegistry()
	r.SetNextSessionID(50)
	assert.Equal(t, int64(50), r.NextSessionID())
}

func TestRegistry_PendingToOpen(t *testing.T) {
	r := NewRegistry()
	s := New(1, 0, 0, "", 0)
	r.AddPending(s)
	require.Len(t, r.Pending(), 1)

	r.MoveToOpen(0)
	assert.Empty(t, r.Pending())

	got, ok := r.Open(1)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRegistry_PendingToRejected(t *testing.T) {
	r := NewRegistry()
	s := New(1, 0, 0, "", 0)
	r.AddPending(s)

	r.MoveToRejected(0)
	assert.Empty(t, r.Pending())
	require.Len(t, r.Rejected(), 1)
	assert.Same(t, s, r.Rejected()[0])
}

func TestRegistry_RemovePendingAt_SwapRemove(t *testing.T) {
	r := NewRegistry()
	a := New(1, 0, 0, "", 0)
	b := New(2, 0, 0, "", 0)
	c := New(3, 0, 0, "", 0)
	r.AddPending(a)
	r.AddPending(b)
	r.AddPending(c)

	r.RemovePendingAt(0) // swaps in c, shrinks to [c, b]
	require.Len(t, r.Pending(), 2)
	assert.Same(t, c, r.Pending()[0])
	assert.Same(t, b, r.Pending()[1])
}

func TestRegistry_PutOpenAndRemoveOpen(t *testing.T) {
	r := NewRegistry()
	s := NewOpen(7, 0, 0, "", 0, 0)
	r.PutOpen(s)

	assert.Equal(t, 1, r.OpenCount())
	r.RemoveOpen(7)
	assert.Equal(t, 0, r.OpenCount())
	_, ok := r.Open(7)
	assert.False(t, ok)
}

func TestRegistry_EachOpen(t *testing.T) {
	r := NewRegistry()
	r.PutOpen(NewOpen(1, 0, 0, "", 0, 0))
	r.PutOpen(NewOpen(2, 0, 0, "", 0, 0))

	var ids []int64
	r.EachOpen(func(s *Session) { ids = append(ids, s.ID) })
	assert.Len(t, ids, 2)
}

func TestRegistry_TotalLiveCount(t *testing.T) {
	r := NewRegistry()
	r.AddPending(New(1, 0, 0, "", 0))
	r.PutOpen(NewOpen(2, 0, 0, "", 0, 0))

	assert.Equal(t, 2, r.TotalLiveCount())
}
