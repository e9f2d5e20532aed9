// Package collab declares the capability sets the sequencer agent consumes
// from its surrounding runtime: transport, recording archive, recording-log
// metadata, authentication, service control, the control file and the clock.
// None of these are implemented by this module in production; §1/§6 of the
// specification treats them as external collaborators. In-memory fakes live
// in internal/devcollab; the unit tests and cmd/sequencerd use them.
package collab

import (
	"context"
	"errors"
)

// ErrAbort is returned by a Fragment handler to signal back-pressure: the
// caller must not advance the read position past this fragment and should
// retry it on the next tick (§4.3 onSessionMessage, §7 (i)).
var ErrAbort = errors.New("fragment handler requested abort")

// Clock returns the current epoch time in milliseconds. The sequencer caches
// reads of this at millisecond granularity and only refreshes on a "slow
// tick" (see sequencer.Agent.DoWork).
type Clock interface {
	NowMillis() int64
}

// IdleStrategy is invoked by every spin-await inside startup. It receives the
// work count reported by the last poll so strategies can back off when idle.
// Interruption/cancellation checks happen inside Idle.
type IdleStrategy interface {
	Idle(workCount int) error
}

// ControlFile models the shared memory/metadata file a cluster node uses to
// advertise liveness to the outer runner.
type ControlFile interface {
	UpdateActivityTimestamp(nowMs int64)
}

// Fragment is a single decoded unit of bytes read off a transport image or a
// log adapter, with its resulting/consumed position.
type Fragment struct {
	Buf      []byte
	Position int64
}

// Image is a consumer's view of a specific publication session.
type Image interface {
	Position() int64
	IsClosed() bool
	// Poll delivers up to fragmentLimit fragments to handler, returning the
	// work count (fragments delivered).
	Poll(handler func(Fragment) error, fragmentLimit int) (int, error)
}

// Publication is a handle for appending/publishing frames.
type Publication interface {
	// Offer returns the resulting absolute position on success, or a
	// non-positive value to signal back-pressure (the caller must retry).
	Offer(payload []byte) (int64, error)
	IsConnected() bool
	Close() error
}

// Counter is an externally observable, monotonically-advancing position
// counter (recording-position, commit-position, module-state, cluster-role).
type Counter interface {
	Get() int64
	Set(v int64)
	// CompareAndSet performs an ordered store when the current value equals
	// expect.
	CompareAndSet(expect, update int64) bool
}

// Transport is the publish/subscribe substrate. Production implementations
// live outside this module (UDP/IPC media driver); internal/devcollab has an
// in-memory one. grpcmember does not implement Transport: it carries only
// the member-status and service-control RPCs.
type Transport interface {
	AddPublication(channel string, streamID int32) (Publication, error)
	AddExclusivePublication(channel string, streamID int32) (Publication, error)
	AddSubscription(channel string, streamID int32) error
	RemoveSubscription(channel string, streamID int32) error
	Image(sessionID int64) (Image, error)
	Counter(id int32) (Counter, error)
	// ConductorDuty is invoked between idle-strategy polls during spin-awaits
	// so the underlying driver client can make cooperative progress.
	ConductorDuty() int
}

// RecordingDescriptor names a single archived recording.
type RecordingDescriptor struct {
	RecordingID    int64
	StartPosition  int64
	StopPosition   int64 // -1 (MAX) if open-ended
	Channel        string
	StreamID       int32
}

// Archive is the recording/replay substrate backing the replicated log.
type Archive interface {
	ListRecording(recordingID int64) (RecordingDescriptor, bool, error)
	StartRecording(channel string, streamID int32, isLocal bool) (subscriptionID int64, err error)
	StopRecording(subscriptionID int64) error
	// StartReplay begins replaying recordingID from startPosition for length
	// bytes (length < 0 means "to the end"); the returned session id must be
	// usable to obtain an Image via Transport.Image.
	StartReplay(recordingID, startPosition, length int64, replayChannel string, replayStreamID int32) (sessionID int64, err error)
	AddRecordedExclusivePublication(channel string, streamID int32) (Publication, int64, error)
	LastErrorResponse() error
}

// RecordingLog is the metadata store of per-term recording boundaries.
type RecordingLog interface {
	AppendTerm(recordingID, logPosition, leadershipTermID, timestampMs int64) error
	AppendSnapshot(recordingID, logPosition, leadershipTermID, timestampMs, termPosition int64) error
	CommitLeadershipTermPosition(leadershipTermID, termPosition int64) error
	CreateRecoveryPlan() (RecoveryPlanData, error)
}

// RecoveryPlanData is the raw shape RecordingLog hands back; recovery.Plan
// wraps it with the replay-driving behaviour of §4.7.
type RecoveryPlanData struct {
	HasSnapshot      bool
	SnapshotStep     SnapshotStep
	TermSteps        []TermStep
}

type SnapshotStep struct {
	RecordingID      int64
	LogPosition      int64
	LeadershipTermID int64
	TimestampMs      int64
	TermPosition     int64
}

type TermStep struct {
	RecordingID      int64
	StartPosition    int64
	StopPosition     int64 // -1 means open-ended (MAX)
	LogPositionBase  int64
	LeadershipTermID int64
}

// SessionProxy is handed to the authenticator so it can drive a pending
// session's state without reaching into sequencer internals.
type SessionProxy interface {
	Authenticate()
	Challenge(responsePayload []byte)
	Reject(reason string)
}

// Authenticator validates and challenges connecting clients.
type Authenticator interface {
	OnConnectRequest(sessionID int64, credentials []byte, nowMs int64)
	OnProcessConnectedSession(proxy SessionProxy, nowMs int64)
	OnProcessChallengedSession(proxy SessionProxy, nowMs int64)
	OnChallengeResponse(sessionID int64, credentials []byte, nowMs int64, proxy SessionProxy)
}

// ServiceControl is the downward/upward RPC pair between the sequencer and
// its co-hosted service-replica processes.
type ServiceControl interface {
	JoinLog(ctx context.Context, termID, commitPosID, sessionID int64, streamID int32, channel string) error
	// PollAcks delivers any outstanding ACKs to handler, returning the count
	// consumed this call.
	PollAcks(handler func(logPosition, termID int64, serviceID int32, action int32)) int
}

// TerminationHook is invoked when the agent reaches a terminal
// consensus-state (SHUTDOWN or ABORT applied).
type TerminationHook interface {
	OnTerminate(reason string)
}

// RecoveryStateCounter carries the (leadershipTermId, termPosition,
// timestamp, termCount) tuple allocated once at startup (§6).
type RecoveryStateCounter interface {
	Set(leadershipTermID, termPosition, timestampMs, termCount int64)
}
