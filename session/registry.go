package session

// Registry owns the three session collections the sequencer maintains:
// pending (awaiting auth), rejected (awaiting an error reply) and open
// (keyed by id, §3 invariant "OPEN implies an entry in the primary session
// map"). Removal from the ordered lists uses swap-remove (§9 design notes);
// removal from the open map is an explicit delete.
type Registry struct {
	pending  []*Session
	rejected []*Session
	open     map[int64]*Session

	nextSessionID int64
}

// NewRegistry returns an empty registry with next id starting at 1 (ids are
// 1-based so that 0 can mean "no vote"/"no session" in adjacent packages).
func NewRegistry() *Registry {
	return &Registry{open: make(map[int64]*Session), nextSessionID: 1}
}

// NextSessionID allocates a new monotonic, non-wrapping session id.
func (r *Registry) NextSessionID() int64 {
	id := r.nextSessionID
	r.nextSessionID++
	return id
}

// ObserveSessionID folds a replayed/recovered session id into the allocator
// so that next_session_id stays ahead of every id ever seen (§4.4).
func (r *Registry) ObserveSessionID(seenID int64) {
	if seenID+1 > r.nextSessionID {
		r.nextSessionID = seenID + 1
	}
}

// NextSessionIDValue returns the allocator's current value without consuming
// it (used by snapshot/restore, §4.8).
func (r *Registry) NextSessionIDValue() int64 {
	return r.nextSessionID
}

// SetNextSessionID restores the allocator value from a snapshot.
func (r *Registry) SetNextSessionID(v int64) {
	r.nextSessionID = v
}

// AddPending enqueues a newly connected session awaiting authentication.
func (r *Registry) AddPending(s *Session) {
	r.pending = append(r.pending, s)
}

// Pending returns the pending list directly; callers may mutate membership
// through RemovePendingAt while iterating newest-first per §4.3.
func (r *Registry) Pending() []*Session {
	return r.pending
}

// RemovePendingAt swap-removes the pending session at index i.
func (r *Registry) RemovePendingAt(i int) {
	last := len(r.pending) - 1
	r.pending[i] = r.pending[last]
	r.pending = r.pending[:last]
}

// MoveToRejected swap-removes the pending session at i and appends it to
// the rejected list.
func (r *Registry) MoveToRejected(i int) {
	s := r.pending[i]
	r.RemovePendingAt(i)
	r.rejected = append(r.rejected, s)
}

// MoveToOpen swap-removes the pending session at i and inserts it into the
// open map.
func (r *Registry) MoveToOpen(i int) {
	s := r.pending[i]
	r.RemovePendingAt(i)
	r.open[s.ID] = s
}

// Rejected returns the rejected list.
func (r *Registry) Rejected() []*Session {
	return r.rejected
}

// RemoveRejectedAt swap-removes the rejected session at index i.
func (r *Registry) RemoveRejectedAt(i int) {
	last := len(r.rejected) - 1
	r.rejected[i] = r.rejected[last]
	r.rejected = r.rejected[:last]
}

// Open returns the session with the given id, if open.
func (r *Registry) Open(id int64) (*Session, bool) {
	s, ok := r.open[id]
	return s, ok
}

// PutOpen inserts a session directly into the open map (used by replay/
// recovery, §4.4/§4.7, which never goes through the pending pipeline).
func (r *Registry) PutOpen(s *Session) {
	r.open[s.ID] = s
}

// RemoveOpen deletes a session from the open map.
func (r *Registry) RemoveOpen(id int64) {
	delete(r.open, id)
}

// EachOpen iterates the open session map. Order is unspecified; callers
// needing a stable order for snapshotting should sort by ID.
func (r *Registry) EachOpen(fn func(*Session)) {
	for _, s := range r.open {
		fn(s)
	}
}

// OpenCount returns the number of open sessions.
func (r *Registry) OpenCount() int {
	return len(r.open)
}

// TotalLiveCount is pending+open, used by the session-limit check (§4.3).
func (r *Registry) TotalLiveCount() int {
	return len(r.pending) + len(r.open)
}
