package wire

import (
	"github.com/gogo/protobuf/proto"
	"google.golang.org/grpc/encoding"
)

// gogoCodec adapts gogo/protobuf's reflection-based Marshal/Unmarshal to
// grpc's encoding.Codec interface, registered under the "proto" name so the
// grpcmember transport can exchange the hand-authored message structs in
// this package without a protoc-gen-go code generation step.
type gogoCodec struct{}

func (gogoCodec) Marshal(v interface{}) ([]byte, error) {
	return proto.Marshal(v.(proto.Message))
}

func (gogoCodec) Unmarshal(data []byte, v interface{}) error {
	return proto.Unmarshal(data, v.(proto.Message))
}

func (gogoCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(gogoCodec{})
}

// ServiceAck is the upward ACK a co-hosted service emits after observing a
// log position or completing a cluster action (§4.5/§6).
type ServiceAck struct {
	LogPosition int64 `protobuf:"varint,1,opt,name=log_position,json=logPosition,proto3" json:"log_position,omitempty"`
	TermId      int64 `protobuf:"varint,2,opt,name=term_id,json=termId,proto3" json:"term_id,omitempty"`
	ServiceId   int32 `protobuf:"varint,3,opt,name=service_id,json=serviceId,proto3" json:"service_id,omitempty"`
	Action      ClusterActionKind `protobuf:"varint,4,opt,name=action,proto3" json:"action,omitempty"`
}

func (m *ServiceAck) Reset()         { *m = ServiceAck{} }
func (m *ServiceAck) String() string { return proto.CompactTextString(m) }
func (*ServiceAck) ProtoMessage()    {}

// JoinLog is the downward RPC telling a service to attach to the log (§6).
type JoinLog struct {
	LeadershipTermId int64  `protobuf:"varint,1,opt,name=leadership_term_id,json=leadershipTermId,proto3" json:"leadership_term_id,omitempty"`
	CommitPositionId int64  `protobuf:"varint,2,opt,name=commit_position_id,json=commitPositionId,proto3" json:"commit_position_id,omitempty"`
	SessionId        int64  `protobuf:"varint,3,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	StreamId         int32  `protobuf:"varint,4,opt,name=stream_id,json=streamId,proto3" json:"stream_id,omitempty"`
	Channel          string `protobuf:"bytes,5,opt,name=channel,proto3" json:"channel,omitempty"`
}

func (m *JoinLog) Reset()         { *m = JoinLog{} }
func (m *JoinLog) String() string { return proto.CompactTextString(m) }
func (*JoinLog) ProtoMessage()    {}

// Ack is the empty reply a member-status RPC's gRPC method returns.
type Ack struct{}

func (m *Ack) Reset()         { *m = Ack{} }
func (m *Ack) String() string { return proto.CompactTextString(m) }
func (*Ack) ProtoMessage()    {}
