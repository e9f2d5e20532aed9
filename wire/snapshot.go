package wire

import "github.com/gogo/protobuf/proto"

// SnapshotRecordKind enumerates the records written between marker-begin and
// marker-end during a SNAPSHOT action (§4.8).
type SnapshotRecordKind int32

const (
	SnapshotMarkerBegin SnapshotRecordKind = iota
	SnapshotMarkerEnd
	SnapshotSessionRecord
	SnapshotTimerRecord
	SnapshotSequencerStateRecord
)

// SnapshotTypeID matches the SNAPSHOT_TYPE_ID marker tag.
const SnapshotTypeID int64 = 1

// SnapshotRecord is the single envelope used for every record a snapshot
// writes; only the fields relevant to Kind are populated.
type SnapshotRecord struct {
	Kind SnapshotRecordKind `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`

	// marker-begin/end
	SnapshotTypeId   int64 `protobuf:"varint,2,opt,name=snapshot_type_id,json=snapshotTypeId,proto3" json:"snapshot_type_id,omitempty"`
	LogPosition      int64 `protobuf:"varint,3,opt,name=log_position,json=logPosition,proto3" json:"log_position,omitempty"`
	LeadershipTermId int64 `protobuf:"varint,4,opt,name=leadership_term_id,json=leadershipTermId,proto3" json:"leadership_term_id,omitempty"`

	// session record
	SessionId     int64  `protobuf:"varint,5,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	ResponseChan  string `protobuf:"bytes,6,opt,name=response_chan,json=responseChan,proto3" json:"response_chan,omitempty"`
	ResponseStreamId int32 `protobuf:"varint,7,opt,name=response_stream_id,json=responseStreamId,proto3" json:"response_stream_id,omitempty"`
	OpenLogPosition int64 `protobuf:"varint,8,opt,name=open_log_position,json=openLogPosition,proto3" json:"open_log_position,omitempty"`
	TimeOfLastActivity int64 `protobuf:"varint,9,opt,name=time_of_last_activity,json=timeOfLastActivity,proto3" json:"time_of_last_activity,omitempty"`

	// timer record
	CorrelationId int64 `protobuf:"varint,10,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	DeadlineMs    int64 `protobuf:"varint,11,opt,name=deadline_ms,json=deadlineMs,proto3" json:"deadline_ms,omitempty"`

	// sequencer-state record
	NextSessionId int64 `protobuf:"varint,12,opt,name=next_session_id,json=nextSessionId,proto3" json:"next_session_id,omitempty"`
}

func (m *SnapshotRecord) Reset()         { *m = SnapshotRecord{} }
func (m *SnapshotRecord) String() string { return proto.CompactTextString(m) }
func (*SnapshotRecord) ProtoMessage()    {}
