// Package wire defines the fixed-layout peer-to-peer member-status messages
// and the replicated-log record envelopes named in §6. Message structs are
// hand-authored in the pre-codegen gogo/protobuf style: field tags drive
// gogo's reflection-based marshaler directly, so no protoc step is needed
// (grounded on the gogo/protobuf dependency the pack's atomix-raft-storage
// teacher carries).
package wire

import "github.com/gogo/protobuf/proto"

// RequestVote is sent by a candidate to every peer during election (§4.2).
type RequestVote struct {
	TermId           int64 `protobuf:"varint,1,opt,name=term_id,json=termId,proto3" json:"term_id,omitempty"`
	LastBaseLogPosition int64 `protobuf:"varint,2,opt,name=last_base_log_position,json=lastBaseLogPosition,proto3" json:"last_base_log_position,omitempty"`
	LastTermPosition int64 `protobuf:"varint,3,opt,name=last_term_position,json=lastTermPosition,proto3" json:"last_term_position,omitempty"`
	CandidateId      int32 `protobuf:"varint,4,opt,name=candidate_id,json=candidateId,proto3" json:"candidate_id,omitempty"`
}

func (m *RequestVote) Reset()         { *m = RequestVote{} }
func (m *RequestVote) String() string { return proto.CompactTextString(m) }
func (*RequestVote) ProtoMessage()    {}

// Vote is the response to RequestVote.
type Vote struct {
	TermId           int64 `protobuf:"varint,1,opt,name=term_id,json=termId,proto3" json:"term_id,omitempty"`
	LastBaseLogPosition int64 `protobuf:"varint,2,opt,name=last_base_log_position,json=lastBaseLogPosition,proto3" json:"last_base_log_position,omitempty"`
	LastTermPosition int64 `protobuf:"varint,3,opt,name=last_term_position,json=lastTermPosition,proto3" json:"last_term_position,omitempty"`
	CandidateId      int32 `protobuf:"varint,4,opt,name=candidate_id,json=candidateId,proto3" json:"candidate_id,omitempty"`
	FollowerId       int32 `protobuf:"varint,5,opt,name=follower_id,json=followerId,proto3" json:"follower_id,omitempty"`
	VoteGranted      bool  `protobuf:"varint,6,opt,name=vote_granted,json=voteGranted,proto3" json:"vote_granted,omitempty"`
}

func (m *Vote) Reset()         { *m = Vote{} }
func (m *Vote) String() string { return proto.CompactTextString(m) }
func (*Vote) ProtoMessage()    {}

// AppendedPosition is sent by a follower to report recording progress (§4.4).
type AppendedPosition struct {
	TermPosition int64 `protobuf:"varint,1,opt,name=term_position,json=termPosition,proto3" json:"term_position,omitempty"`
	TermId       int64 `protobuf:"varint,2,opt,name=term_id,json=termId,proto3" json:"term_id,omitempty"`
	FollowerId   int32 `protobuf:"varint,3,opt,name=follower_id,json=followerId,proto3" json:"follower_id,omitempty"`
}

func (m *AppendedPosition) Reset()         { *m = AppendedPosition{} }
func (m *AppendedPosition) String() string { return proto.CompactTextString(m) }
func (*AppendedPosition) ProtoMessage()    {}

// CommitPosition is broadcast by the leader once quorum advances, or on
// heartbeat interval even without an advance (§4.4).
type CommitPosition struct {
	TermPosition int64 `protobuf:"varint,1,opt,name=term_position,json=termPosition,proto3" json:"term_position,omitempty"`
	LeadershipTermId int64 `protobuf:"varint,2,opt,name=leadership_term_id,json=leadershipTermId,proto3" json:"leadership_term_id,omitempty"`
	LeaderId     int32 `protobuf:"varint,3,opt,name=leader_id,json=leaderId,proto3" json:"leader_id,omitempty"`
	LogSessionId int64 `protobuf:"varint,4,opt,name=log_session_id,json=logSessionId,proto3" json:"log_session_id,omitempty"`
}

func (m *CommitPosition) Reset()         { *m = CommitPosition{} }
func (m *CommitPosition) String() string { return proto.CompactTextString(m) }
func (*CommitPosition) ProtoMessage()    {}

// LogRecordKind enumerates the kinds of records the leader appends and
// followers replay (§6).
type LogRecordKind int32

const (
	RecordSessionOpen LogRecordKind = iota
	RecordSessionMessage
	RecordSessionClose
	RecordTimerEvent
	RecordClusterAction
)

// CloseReasonWire mirrors session.CloseReason on the wire.
type CloseReasonWire int32

const (
	CloseReasonTimeout CloseReasonWire = iota
	CloseReasonUserAction
)

// ClusterActionKind enumerates the control-toggle commands (§4.5/§6).
type ClusterActionKind int32

const (
	ActionNeutral ClusterActionKind = iota
	ActionSuspend
	ActionResume
	ActionSnapshot
	ActionShutdown
	ActionAbort
)

// LogRecord is the envelope every replicated-log entry carries: a kind, the
// leadership term it was appended under, and the absolute log position it
// occupies once appended.
type LogRecord struct {
	Kind             LogRecordKind `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	LeadershipTermId int64         `protobuf:"varint,2,opt,name=leadership_term_id,json=leadershipTermId,proto3" json:"leadership_term_id,omitempty"`
	LogPosition      int64         `protobuf:"varint,3,opt,name=log_position,json=logPosition,proto3" json:"log_position,omitempty"`
	TimestampMs      int64         `protobuf:"varint,4,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`

	SessionID     int64           `protobuf:"varint,5,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	CorrelationID int64           `protobuf:"varint,6,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	ResponseChan  string          `protobuf:"bytes,7,opt,name=response_chan,json=responseChan,proto3" json:"response_chan,omitempty"`
	ResponseStreamID int32        `protobuf:"varint,8,opt,name=response_stream_id,json=responseStreamId,proto3" json:"response_stream_id,omitempty"`
	Payload       []byte          `protobuf:"bytes,9,opt,name=payload,proto3" json:"payload,omitempty"`
	CloseReason   CloseReasonWire `protobuf:"varint,10,opt,name=close_reason,json=closeReason,proto3" json:"close_reason,omitempty"`
	TimerDeadline int64           `protobuf:"varint,11,opt,name=timer_deadline,json=timerDeadline,proto3" json:"timer_deadline,omitempty"`
	Action        ClusterActionKind `protobuf:"varint,12,opt,name=action,proto3" json:"action,omitempty"`
}

func (m *LogRecord) Reset()         { *m = LogRecord{} }
func (m *LogRecord) String() string { return proto.CompactTextString(m) }
func (*LogRecord) ProtoMessage()    {}

// Marshal/Unmarshal use gogo's reflection-based codec; no generated
// MarshalTo/Size methods are required for correctness, only for speed, which
// this agent's modest per-tick volume does not need.
func Marshal(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

func Unmarshal(data []byte, m proto.Message) error {
	return proto.Unmarshal(data, m)
}
