package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_StartsInInit(t *testing.T) {
	s := New(1, 10, 2, "resp-chan", 1000)
	assert.Equal(t, Init, s.State)
	assert.Equal(t, int64(1000), s.TimeOfLastActivity)
}

func TestNewOpen_BypassesPendingPipeline(t *testing.T) {
	s := NewOpen(5, 10, 2, "resp-chan", 1000, 42)
	assert.Equal(t, Open, s.State)
	assert.Equal(t, int64(42), s.OpenLogPosition)
}

func TestSession_TimedOutAt_ExactBoundaryIsNotTimedOut(t *testing.T) {
	s := New(1, 0, 0, "", 0)
	s.TouchActivity(1000)

	assert.False(t, s.TimedOutAt(1000+500, 500), "exactly-at-timeout must not be timed out")
	assert.True(t, s.TimedOutAt(1000+501, 500))
}

func TestSession_MarkOpen(t *testing.T) {
	s := New(1, 0, 0, "", 0)
	s.MarkOpen(123)
	assert.Equal(t, Open, s.State)
	assert.Equal(t, int64(123), s.OpenLogPosition)
}

func TestSession_RequestClose_Lifecycle(t *testing.T) {
	s := New(1, 0, 0, "", 0)
	assert.False(t, s.CloseAppendPending())

	s.RequestClose(CloseUserAction)
	assert.True(t, s.CloseAppendPending())
	assert.Equal(t, CloseUserAction, s.CloseReasonValue())

	s.AckCloseAppended()
	assert.False(t, s.CloseAppendPending())
}

func TestSessionProxy_Authenticate(t *testing.T) {
	s := New(1, 0, 0, "", 0)
	proxy := s.NewProxy()
	proxy.Authenticate()
	assert.Equal(t, Authenticated, s.State)
}

func TestSessionProxy_Challenge(t *testing.T) {
	s := New(1, 0, 0, "", 0)
	proxy := s.NewProxy()
	proxy.Challenge([]byte("nonce"))
	assert.Equal(t, Challenged, s.State)
	assert.Equal(t, []byte("nonce"), s.PendingChallenge)
}

func TestSessionProxy_Reject(t *testing.T) {
	s := New(1, 0, 0, "", 0)
	proxy := s.NewProxy()
	proxy.Reject("limit")
	assert.Equal(t, Rejected, s.State)
	assert.Equal(t, RejectSessionLimit, s.RejectReason)

	s2 := New(2, 0, 0, "", 0)
	s2.NewProxy().Reject("bad-credentials")
	assert.Equal(t, RejectAuthenticationRejected, s2.RejectReason)
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Init:          "INIT",
		Connected:     "CONNECTED",
		Challenged:    "CHALLENGED",
		Authenticated: "AUTHENTICATED",
		Rejected:      "REJECTED",
		Open:          "OPEN",
		TimedOut:      "TIMED_OUT",
		Closed:        "CLOSED",
		State(99):     "UNKNOWN",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
