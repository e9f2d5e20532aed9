package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeMemberTable() *Table {
	return NewTable([]*Member{
		{ID: 1},
		{ID: 2},
		{ID: 3},
	})
}

func TestTable_Quorum(t *testing.T) {
	assert.Equal(t, 2, threeMemberTable().Quorum())
	assert.Equal(t, 3, NewTable([]*Member{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}).Quorum())
}

func TestTable_Get(t *testing.T) {
	tbl := threeMemberTable()
	require.NotNil(t, tbl.Get(2))
	assert.Equal(t, int32(2), tbl.Get(2).ID)
	assert.Nil(t, tbl.Get(99))
}

func TestTable_Each_AscendingOrder(t *testing.T) {
	tbl := NewTable([]*Member{{ID: 3}, {ID: 1}, {ID: 2}})
	var seen []int32
	tbl.Each(func(m *Member) { seen = append(seen, m.ID) })
	assert.Equal(t, []int32{1, 2, 3}, seen)
}

func TestTable_AllVoted(t *testing.T) {
	tbl := threeMemberTable()
	assert.False(t, tbl.AllVoted(1))

	tbl.Each(func(m *Member) { m.VotedForID = 1 })
	assert.True(t, tbl.AllVoted(1))
}

func TestTable_QuorumTermPosition(t *testing.T) {
	tbl := threeMemberTable()
	tbl.Get(1).TermPosition = 10
	tbl.Get(2).TermPosition = 20
	tbl.Get(3).TermPosition = 5

	// quorum is 2, so the 2nd-highest reported position is the answer.
	assert.Equal(t, int64(10), tbl.QuorumTermPosition())
}

func TestTable_QuorumTermPosition_AllEqual(t *testing.T) {
	tbl := threeMemberTable()
	tbl.Each(func(m *Member) { m.TermPosition = 7 })
	assert.Equal(t, int64(7), tbl.QuorumTermPosition())
}

type stubPublication struct{ connected bool }

func (s *stubPublication) Offer(payload []byte) (int64, error) { return 1, nil }
func (s *stubPublication) IsConnected() bool                   { return s.connected }
func (s *stubPublication) Close() error                        { return nil }

func TestMember_Connected(t *testing.T) {
	m := &Member{ID: 1}
	assert.False(t, m.Connected(), "no publication yet")

	m.Publication = &stubPublication{connected: false}
	assert.False(t, m.Connected())

	m.Publication = &stubPublication{connected: true}
	assert.True(t, m.Connected())
}

func TestMember_Copy_SharesPublication(t *testing.T) {
	pub := &stubPublication{connected: true}
	m := &Member{ID: 1, Publication: pub, TermPosition: 42}
	c := m.Copy()

	assert.Equal(t, m.ID, c.ID)
	assert.Equal(t, m.TermPosition, c.TermPosition)
	assert.Same(t, pub, c.Publication)

	c.TermPosition = 99
	assert.Equal(t, int64(42), m.TermPosition, "copy must not alias the original struct")
}

func TestTable_AllConnected(t *testing.T) {
	tbl := threeMemberTable()
	assert.False(t, tbl.AllConnected())

	tbl.Each(func(m *Member) { m.Publication = &stubPublication{connected: true} })
	assert.True(t, tbl.AllConnected())

	tbl.Get(2).Publication = &stubPublication{connected: false}
	assert.False(t, tbl.AllConnected())
}
