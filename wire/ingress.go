package wire

import "github.com/gogo/protobuf/proto"

// IngressKind enumerates the client-facing request frames the sequencer's
// ingress image delivers (§4.3). Wire framing for these is otherwise out of
// scope (§1); this envelope is the minimal shape the sequencer needs to
// dispatch.
type IngressKind int32

const (
	IngressConnect IngressKind = iota
	IngressChallengeResponse
	IngressSessionMessage
	IngressKeepAlive
	IngressSessionClose
	IngressAdminQuery
)

// AdminQueryKind enumerates the admin-query sub-requests (§4.3).
type AdminQueryKind int32

const (
	AdminQueryEndpoints AdminQueryKind = iota
	AdminQueryRecordingLog
)

// IngressMessage is the single envelope every client request arrives as.
type IngressMessage struct {
	Kind          IngressKind    `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	CorrelationId int64          `protobuf:"varint,2,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	SessionId     int64          `protobuf:"varint,3,opt,name=session_id,json=sessionId,proto3" json:"session_id,omitempty"`
	ResponseChan  string         `protobuf:"bytes,4,opt,name=response_chan,json=responseChan,proto3" json:"response_chan,omitempty"`
	ResponseStreamId int32       `protobuf:"varint,5,opt,name=response_stream_id,json=responseStreamId,proto3" json:"response_stream_id,omitempty"`
	Credentials   []byte         `protobuf:"bytes,6,opt,name=credentials,proto3" json:"credentials,omitempty"`
	Payload       []byte         `protobuf:"bytes,7,opt,name=payload,proto3" json:"payload,omitempty"`
	AdminQuery    AdminQueryKind `protobuf:"varint,8,opt,name=admin_query,json=adminQuery,proto3" json:"admin_query,omitempty"`
}

func (m *IngressMessage) Reset()         { *m = IngressMessage{} }
func (m *IngressMessage) String() string { return proto.CompactTextString(m) }
func (*IngressMessage) ProtoMessage()    {}

// EgressKind enumerates the server-to-client response frames (§4.3/§7).
type EgressKind int32

const (
	EgressSessionEvent EgressKind = iota
	EgressAdminResponse
	EgressChallenge
)

// SessionEventCode mirrors the codes §4.3/§7 name: SESSION_LIMIT (ERROR) and
// SESSION_REJECTED (AUTHENTICATION_REJECTED), plus a generic OK for
// keep-alive acknowledgement paths some transports expect.
type SessionEventCode int32

const (
	EventOK                       SessionEventCode = iota
	EventErrorSessionLimit
	EventAuthenticationRejected
)

// EgressMessage is the envelope the sequencer writes back to a client.
type EgressMessage struct {
	Kind          EgressKind       `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	CorrelationId int64            `protobuf:"varint,2,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	Code          SessionEventCode `protobuf:"varint,3,opt,name=code,proto3" json:"code,omitempty"`
	Detail        string           `protobuf:"bytes,4,opt,name=detail,proto3" json:"detail,omitempty"`
	Payload       []byte           `protobuf:"bytes,5,opt,name=payload,proto3" json:"payload,omitempty"`
}

func (m *EgressMessage) Reset()         { *m = EgressMessage{} }
func (m *EgressMessage) String() string { return proto.CompactTextString(m) }
func (*EgressMessage) ProtoMessage()    {}
