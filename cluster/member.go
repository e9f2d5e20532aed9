// Package cluster holds the static membership table: one Member entry per
// cluster node plus the per-peer positions and publications the sequencer
// agent needs to compute quorum.
package cluster

import "github.com/kamma-cc/aeron/collab"

// Member mirrors a single ClusterMember (§3): a stable id, the three
// endpoints a peer advertises, and the mutable bits the agent tracks about
// it (reported term position, last vote, whether it is currently leader).
type Member struct {
	ID int32

	ClientEndpoint string
	MemberEndpoint string
	LogEndpoint    string

	TermPosition int64
	VotedForID   int32

	IsLeader bool

	// Publication is the outgoing control channel to this peer, borrowed
	// from the transport for the lifetime of the membership table.
	Publication collab.Publication
}

// Copy returns a shallow value copy; Publication is shared, not duplicated.
func (m *Member) Copy() *Member {
	c := *m
	return &c
}

// Connected reports whether the control publication to this peer is up.
func (m *Member) Connected() bool {
	return m.Publication != nil && m.Publication.IsConnected()
}

// Table is the static set of cluster members, indexed by id.
type Table struct {
	members map[int32]*Member
	order   []int32 // stable iteration order, ascending id
}

// NewTable builds a membership table from an ordered member list.
func NewTable(members []*Member) *Table {
	t := &Table{members: make(map[int32]*Member, len(members))}
	for _, m := range members {
		t.members[m.ID] = m
		t.order = append(t.order, m.ID)
	}
	return t
}

// Size returns the number of cluster members, including self.
func (t *Table) Size() int {
	return len(t.members)
}

// Quorum returns floor(n/2)+1 for the current membership size.
func (t *Table) Quorum() int {
	return t.Size()/2 + 1
}

// Get returns the member with the given id, or nil.
func (t *Table) Get(id int32) *Member {
	return t.members[id]
}

// Each iterates all members in ascending id order.
func (t *Table) Each(fn func(*Member)) {
	for _, id := range t.order {
		fn(t.members[id])
	}
}

// AllConnected reports whether every member's publication is connected
// (§4.2). The agent's startup sequence does not call it.
func (t *Table) AllConnected() bool {
	for _, id := range t.order {
		if !t.members[id].Connected() {
			return false
		}
	}
	return true
}

// AllVoted reports whether every member has recorded a non-zero voted-for id;
// termID is not consulted. Used by the appointed-leader candidate to detect
// that the election is fully resolved.
func (t *Table) AllVoted(termID int64) bool {
	for _, id := range t.order {
		if t.members[id].VotedForID == 0 {
			return false
		}
	}
	return true
}

// QuorumTermPosition returns the largest term position reported by at least
// Quorum() members, via a descending sort of the reported positions (§4.4).
func (t *Table) QuorumTermPosition() int64 {
	positions := make([]int64, 0, len(t.order))
	for _, id := range t.order {
		positions = append(positions, t.members[id].TermPosition)
	}
	sortDescending(positions)
	q := t.Quorum()
	if q <= 0 || q > len(positions) {
		return 0
	}
	return positions[q-1]
}

func sortDescending(xs []int64) {
	// Small n (cluster sizes are single digits in practice); insertion sort
	// avoids importing sort for a handful of elements.
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] < v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}
