// Package session implements the per-client ClusterSession lifecycle state
// machine described in §3/§4.3: connect, challenge-based authentication,
// open, timeout and close, plus the pending/rejected/open list management
// the sequencer drives on every slow tick.
package session

import "github.com/kamma-cc/aeron/collab"

// State is one of the session lifecycle states (§3). Transitions are
// monotonic except for the CONNECTED<->CHALLENGED ping-pong during auth.
type State int

const (
	Init State = iota
	Connected
	Challenged
	Authenticated
	Rejected
	Open
	TimedOut
	Closed
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case Connected:
		return "CONNECTED"
	case Challenged:
		return "CHALLENGED"
	case Authenticated:
		return "AUTHENTICATED"
	case Rejected:
		return "REJECTED"
	case Open:
		return "OPEN"
	case TimedOut:
		return "TIMED_OUT"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// RejectReason distinguishes the two rejected-session outcomes (§4.3).
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectSessionLimit
	RejectAuthenticationRejected
)

// Session is a single ClusterSession (§3). The pending/rejected lists hold
// owning references to these; the open map holds the same *Session
// pointers once a session transitions to Open.
type Session struct {
	ID             int64
	CorrelationID  int64
	StreamID       int32
	ResponseChan   string
	ResponsePub    collab.Publication

	State             State
	RejectReason      RejectReason
	TimeOfLastActivity int64
	OpenLogPosition   int64

	// PendingAdminResponse holds a stashed admin-query reply (§4.3
	// onAdminQuery) awaiting a successful send.
	PendingAdminResponse []byte

	// PendingChallenge holds a stashed CHALLENGED-state authentication
	// payload (§4.3 proxy.Challenge) awaiting a successful send; distinct
	// from PendingAdminResponse since a session can only reach OPEN, and
	// therefore ever issue an admin query, after the challenge round trip
	// this field drives has already completed.
	PendingChallenge []byte

	// closeAppendPending is set by RequestClose while the CLOSED log record
	// still has to be appended, and cleared by AckCloseAppended once it is.
	closeAppendPending bool
	closeReason        CloseReason
}

// CloseReason distinguishes why a session's CLOSED record was appended.
type CloseReason int

const (
	CloseNone CloseReason = iota
	CloseTimeout
	CloseUserAction
)

// New constructs a session in INIT state.
func New(id, correlationID int64, streamID int32, responseChan string, nowMs int64) *Session {
	return &Session{
		ID:                 id,
		CorrelationID:      correlationID,
		StreamID:           streamID,
		ResponseChan:       responseChan,
		State:              Init,
		TimeOfLastActivity: nowMs,
	}
}

// NewOpen reconstructs a session directly in OPEN state from a replayed
// "session open" log record (§4.4/§4.7), bypassing the pending pipeline.
func NewOpen(id, correlationID int64, streamID int32, responseChan string, nowMs, logPosition int64) *Session {
	s := New(id, correlationID, streamID, responseChan, nowMs)
	s.MarkOpen(logPosition)
	return s
}

// TouchActivity stamps the session's last-activity time.
func (s *Session) TouchActivity(nowMs int64) {
	s.TimeOfLastActivity = nowMs
}

// TimedOutAt reports whether the session has been inactive for longer than
// timeoutMs as of nowMs. Exactly-at-timeout is NOT timed out (§8 boundary
// behaviour): only nowMs-lastActivity > timeoutMs triggers it.
func (s *Session) TimedOutAt(nowMs, timeoutMs int64) bool {
	return nowMs-s.TimeOfLastActivity > timeoutMs
}

// proxy adapts a *Session to collab.SessionProxy for the authenticator.
type proxy struct {
	s *Session
}

// NewProxy returns a collab.SessionProxy bound to this session.
func (s *Session) NewProxy() collab.SessionProxy {
	return &proxy{s: s}
}

func (p *proxy) Authenticate() {
	p.s.State = Authenticated
}

func (p *proxy) Challenge(payload []byte) {
	p.s.State = Challenged
	p.s.PendingChallenge = payload
}

func (p *proxy) Reject(reason string) {
	p.s.State = Rejected
	if reason == "limit" {
		p.s.RejectReason = RejectSessionLimit
	} else {
		p.s.RejectReason = RejectAuthenticationRejected
	}
}

// MarkOpen transitions an authenticated session to OPEN once its "session
// open" log record has been durably appended.
func (s *Session) MarkOpen(logPosition int64) {
	s.State = Open
	s.OpenLogPosition = logPosition
}

// RequestClose begins the close-append sequence; CloseReason records why.
func (s *Session) RequestClose(reason CloseReason) {
	s.closeAppendPending = true
	s.closeReason = reason
}

// CloseAppendPending reports whether a CLOSED record still needs appending.
func (s *Session) CloseAppendPending() bool {
	return s.closeAppendPending
}

// CloseReasonValue returns the reason recorded by RequestClose.
func (s *Session) CloseReasonValue() CloseReason {
	return s.closeReason
}

// AckCloseAppended marks the CLOSED record as durably appended.
func (s *Session) AckCloseAppended() {
	s.closeAppendPending = false
}
