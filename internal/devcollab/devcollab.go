// Package devcollab provides in-memory implementations of every collab.*
// interface, the way cmd/kv wires an in-process StateMachine
// for its demo binary (cmd/kv/statemachine.go). Production deployments plug
// in real Aeron/Archive media-driver bindings instead (§1/§6 out of scope);
// this package exists so cmd/sequencerd can run a single-node node directly
// and so the sequencer package's tests have a concrete, shared fake to drive
// against instead of a dozen bespoke mocks per test file.
package devcollab

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kamma-cc/aeron/collab"
)

// NewCorrelationID mints a correlation id from a random UUID, the way the
// pb/peer.go mints session/request ids with an ad hoc object-id generator
// (pb/peer.go); this module uses google/uuid instead. The top bit is cleared
// so the result is always a positive int64.
func NewCorrelationID() int64 {
	id := uuid.New()
	return int64(binary.BigEndian.Uint64(id[:8]) &^ (1 << 63))
}

func newRecordingID() int64 {
	return NewCorrelationID()
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// BackoffIdle spins briefly then sleeps, the common "busy poll with backoff"
// idle strategy; it never errors, so it never aborts a caller's spin-wait.
type BackoffIdle struct{ MaxSleep time.Duration }

func (b BackoffIdle) Idle(workCount int) error {
	if workCount > 0 {
		return nil
	}
	sleep := b.MaxSleep
	if sleep <= 0 {
		sleep = time.Millisecond
	}
	time.Sleep(sleep)
	return nil
}

// ControlFile stores the last activity timestamp in memory.
type ControlFile struct {
	ts int64
}

func (c *ControlFile) UpdateActivityTimestamp(nowMs int64) { atomic.StoreInt64(&c.ts, nowMs) }
func (c *ControlFile) ActivityTimestamp() int64            { return atomic.LoadInt64(&c.ts) }

// Counter is an in-memory atomic position counter.
type Counter struct {
	v int64
}

func (c *Counter) Get() int64 { return atomic.LoadInt64(&c.v) }
func (c *Counter) Set(v int64) { atomic.StoreInt64(&c.v, v) }
func (c *Counter) CompareAndSet(expect, update int64) bool {
	return atomic.CompareAndSwapInt64(&c.v, expect, update)
}

// RecoveryStateCounter stores the tuple set once at startup (§6).
type RecoveryStateCounter struct {
	mu                                           sync.Mutex
	LeadershipTermID, TermPosition, Timestamp, TermCount int64
}

func (r *RecoveryStateCounter) Set(leadershipTermID, termPosition, timestampMs, termCount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LeadershipTermID, r.TermPosition, r.Timestamp, r.TermCount = leadershipTermID, termPosition, timestampMs, termCount
}

// buffer is a simple append-only byte-frame log shared by Publication/Image.
type buffer struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (b *buffer) offer(payload []byte) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, nil
	}
	cp := append([]byte(nil), payload...)
	b.frames = append(b.frames, cp)
	return int64(len(b.frames)), nil
}

func (b *buffer) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Publication is an in-memory collab.Publication backed by a buffer.
type Publication struct {
	buf *buffer
}

func (p *Publication) Offer(payload []byte) (int64, error) { return p.buf.offer(payload) }
func (p *Publication) IsConnected() bool                   { return true }
func (p *Publication) Close() error                        { p.buf.close(); return nil }

// Position reports the number of frames offered so far; sequencer.Agent uses
// this via the collab.Publication type assertion for the leader's own term
// position.
func (p *Publication) Position() int64 {
	p.buf.mu.Lock()
	defer p.buf.mu.Unlock()
	return int64(len(p.buf.frames))
}

// Image is an in-memory collab.Image reading forward through a buffer.
type Image struct {
	buf    *buffer
	cursor int
}

func (im *Image) Position() int64 {
	im.buf.mu.Lock()
	defer im.buf.mu.Unlock()
	return int64(im.cursor)
}

func (im *Image) IsClosed() bool {
	im.buf.mu.Lock()
	defer im.buf.mu.Unlock()
	return im.buf.closed && im.cursor >= len(im.buf.frames)
}

func (im *Image) Poll(handler func(collab.Fragment) error, fragmentLimit int) (int, error) {
	im.buf.mu.Lock()
	frames := im.buf.frames[im.cursor:]
	im.buf.mu.Unlock()

	work := 0
	for _, f := range frames {
		if work >= fragmentLimit {
			break
		}
		if err := handler(collab.Fragment{Buf: f, Position: int64(im.cursor + 1)}); err != nil {
			if err == collab.ErrAbort {
				return work, err
			}
			return work, err
		}
		im.cursor++
		work++
	}
	return work, nil
}

// Transport is an in-memory, single-process implementation of
// collab.Transport: channel+streamID pairs map to a shared buffer, and every
// subscriber session id is just the stream id (there is exactly one
// publisher per channel in this in-memory model).
type Transport struct {
	mu          sync.Mutex
	buffers     map[string]*buffer
	byStreamID  map[int32]*buffer
	replayStart map[int32]int64
}

func NewTransport() *Transport {
	return &Transport{
		buffers:     make(map[string]*buffer),
		byStreamID:  make(map[int32]*buffer),
		replayStart: make(map[int32]int64),
	}
}

func key(channel string, streamID int32) string {
	return channel + "#" + strconv.Itoa(int(streamID))
}

func (t *Transport) bufferFor(channel string, streamID int32) *buffer {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(channel, streamID)
	b, ok := t.buffers[k]
	if !ok {
		b = &buffer{}
		t.buffers[k] = b
		t.byStreamID[streamID] = b
	}
	return b
}

func (t *Transport) AddPublication(channel string, streamID int32) (collab.Publication, error) {
	return &Publication{buf: t.bufferFor(channel, streamID)}, nil
}

func (t *Transport) AddExclusivePublication(channel string, streamID int32) (collab.Publication, error) {
	return &Publication{buf: t.bufferFor(channel, streamID)}, nil
}

func (t *Transport) AddSubscription(channel string, streamID int32) error {
	t.bufferFor(channel, streamID)
	return nil
}

func (t *Transport) RemoveSubscription(channel string, streamID int32) error { return nil }

// Image resolves a session id to the buffer registered under the matching
// stream id; callers in this module key sessions by stream id (see
// sequencer/election.go), which this fake mirrors directly. If no
// publication/subscription has touched that stream id yet, a fresh empty
// buffer is registered so the image is still obtainable. When Archive.
// StartReplay has registered a starting cursor for this stream id (a replay
// resuming partway through a recording), the returned Image starts there
// instead of at position zero.
func (t *Transport) Image(sessionID int64) (collab.Image, error) {
	t.mu.Lock()
	streamID := int32(sessionID)
	b, ok := t.byStreamID[streamID]
	if !ok {
		b = &buffer{}
		t.byStreamID[streamID] = b
	}
	cursor := int(t.replayStart[streamID])
	delete(t.replayStart, streamID)
	t.mu.Unlock()
	return &Image{buf: b, cursor: cursor}, nil
}

// registerReplay points streamID's image at an already-recorded buffer
// starting from startPosition, so the next Image() call for that stream id
// reads the recording instead of a fresh empty buffer.
func (t *Transport) registerReplay(streamID int32, b *buffer, startPosition int64) {
	t.mu.Lock()
	t.byStreamID[streamID] = b
	t.replayStart[streamID] = startPosition
	t.mu.Unlock()
}

func (t *Transport) Counter(id int32) (collab.Counter, error) { return &Counter{}, nil }

func (t *Transport) ConductorDuty() int { return 0 }

// Archive is an in-memory implementation of collab.Archive. A recording is
// the same buffer its Transport publication writes to, not a separate copy,
// so what the leader appends is exactly what a later replay reads back;
// recording ids are minted with NewCorrelationID rather than a sequential
// counter, so replaying against a stale/mismatched id is exercised the same
// way it would be against a real archive.
type Archive struct {
	mu         sync.Mutex
	transport  *Transport
	recordings map[int64]*buffer
}

func NewArchive(transport *Transport) *Archive {
	return &Archive{transport: transport, recordings: make(map[int64]*buffer)}
}

func (a *Archive) ListRecording(recordingID int64) (collab.RecordingDescriptor, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.recordings[recordingID]
	if !ok {
		return collab.RecordingDescriptor{}, false, nil
	}
	return collab.RecordingDescriptor{RecordingID: recordingID, StopPosition: int64(len(b.frames))}, true, nil
}

func (a *Archive) StartRecording(channel string, streamID int32, isLocal bool) (int64, error) {
	b := a.transport.bufferFor(channel, streamID)
	a.mu.Lock()
	defer a.mu.Unlock()
	id := newRecordingID()
	a.recordings[id] = b
	return id, nil
}

func (a *Archive) StopRecording(subscriptionID int64) error { return nil }

// StartReplay points replayStreamID's transport image at the recorded
// buffer, starting from startPosition, and returns replayStreamID itself as
// the session id (recovery.Pipeline.recoverTerm asserts this for term
// steps).
func (a *Archive) StartReplay(recordingID, startPosition, length int64, replayChannel string, replayStreamID int32) (int64, error) {
	a.mu.Lock()
	b, ok := a.recordings[recordingID]
	a.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("devcollab: unknown recording %d", recordingID)
	}
	a.transport.registerReplay(replayStreamID, b, startPosition)
	return int64(replayStreamID), nil
}

func (a *Archive) AddRecordedExclusivePublication(channel string, streamID int32) (collab.Publication, int64, error) {
	a.mu.Lock()
	id := newRecordingID()
	b := &buffer{}
	a.recordings[id] = b
	a.mu.Unlock()
	return &Publication{buf: b}, id, nil
}

func (a *Archive) LastErrorResponse() error { return nil }

// RecordingLog is an in-memory metadata store: no terms or snapshots exist
// until AppendTerm/AppendSnapshot is called, so CreateRecoveryPlan on a fresh
// node returns an empty (cold-start) plan.
type RecordingLog struct {
	mu    sync.Mutex
	terms []collab.TermStep
	snap  *collab.SnapshotStep
}

func NewRecordingLog() *RecordingLog { return &RecordingLog{} }

func (r *RecordingLog) AppendTerm(recordingID, logPosition, leadershipTermID, timestampMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terms = append(r.terms, collab.TermStep{
		RecordingID:      recordingID,
		StartPosition:    0,
		StopPosition:     -1,
		LogPositionBase:  logPosition,
		LeadershipTermID: leadershipTermID,
	})
	return nil
}

func (r *RecordingLog) AppendSnapshot(recordingID, logPosition, leadershipTermID, timestampMs, termPosition int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = &collab.SnapshotStep{
		RecordingID:      recordingID,
		LogPosition:      logPosition,
		LeadershipTermID: leadershipTermID,
		TimestampMs:      timestampMs,
		TermPosition:     termPosition,
	}
	return nil
}

// CommitLeadershipTermPosition closes out the matching open term step
// (StopPosition == -1) at termPosition, so a later CreateRecoveryPlan call
// (e.g. after a restart) reports that term as bounded rather than "replay to
// end of recording" forever.
func (r *RecordingLog) CommitLeadershipTermPosition(leadershipTermID, termPosition int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.terms {
		if r.terms[i].LeadershipTermID == leadershipTermID && r.terms[i].StopPosition < 0 {
			r.terms[i].StopPosition = r.terms[i].StartPosition + termPosition
		}
	}
	return nil
}

func (r *RecordingLog) CreateRecoveryPlan() (collab.RecoveryPlanData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := collab.RecoveryPlanData{TermSteps: append([]collab.TermStep(nil), r.terms...)}
	if r.snap != nil {
		data.HasSnapshot = true
		data.SnapshotStep = *r.snap
	}
	return data, nil
}

// AllowAllAuthenticator admits every connecting session without a challenge,
// suitable for single-node development (§4.3's challenge path is still fully
// implemented in session/sequencer; this is just the simplest policy).
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) OnConnectRequest(sessionID int64, credentials []byte, nowMs int64) {}

func (AllowAllAuthenticator) OnProcessConnectedSession(proxy collab.SessionProxy, nowMs int64) {
	proxy.Authenticate()
}

func (AllowAllAuthenticator) OnProcessChallengedSession(proxy collab.SessionProxy, nowMs int64) {}

func (AllowAllAuthenticator) OnChallengeResponse(sessionID int64, credentials []byte, nowMs int64, proxy collab.SessionProxy) {
	proxy.Authenticate()
}

// LogTermination calls the optional OnTerminateFunc and does nothing
// further; cmd/sequencerd passes a func that logs the reason.
type LogTermination struct {
	OnTerminateFunc func(reason string)
}

func (l LogTermination) OnTerminate(reason string) {
	if l.OnTerminateFunc != nil {
		l.OnTerminateFunc(reason)
	}
}

var _ collab.Clock = SystemClock{}
var _ collab.IdleStrategy = BackoffIdle{}
var _ collab.ControlFile = (*ControlFile)(nil)
var _ collab.Counter = (*Counter)(nil)
var _ collab.RecoveryStateCounter = (*RecoveryStateCounter)(nil)
var _ collab.Transport = (*Transport)(nil)
var _ collab.Archive = (*Archive)(nil)
var _ collab.RecordingLog = (*RecordingLog)(nil)
var _ collab.Authenticator = AllowAllAuthenticator{}
var _ collab.TerminationHook = LogTermination{}
