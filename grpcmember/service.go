// Package grpcmember is a reference gRPC-backed implementation of the
// member-status and service-control adapters named in §6: a hand-rolled
// service/client pair in the pre-protoc-gen-go-grpc style of
// transport_grpc.go, wrapping real google.golang.org/grpc connections and
// carrying the wire.* messages via the gogo codec registered in
// wire/codec.go.
package grpcmember

import (
	"context"

	"google.golang.org/grpc"

	"github.com/kamma-cc/aeron/wire"
)

// MemberStatusServer is implemented by the sequencer agent to answer peer
// RPCs (§4.2/§4.4).
type MemberStatusServer interface {
	RequestVote(ctx context.Context, req *wire.RequestVote) (*wire.Vote, error)
	AppendedPosition(ctx context.Context, req *wire.AppendedPosition) (*wire.Ack, error)
	CommitPosition(ctx context.Context, req *wire.CommitPosition) (*wire.Ack, error)
}

// memberStatusDesc is a hand-authored analogue of what protoc-gen-go-grpc
// would emit for a MemberStatus service; it lets MemberStatusServer be
// registered on a *grpc.Server without a .proto/codegen step.
var memberStatusDesc = grpc.ServiceDesc{
	ServiceName: "aeron.MemberStatus",
	HandlerType: (*MemberStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestVote",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(wire.RequestVote)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(MemberStatusServer).RequestVote(ctx, in)
			},
		},
		{
			MethodName: "AppendedPosition",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(wire.AppendedPosition)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(MemberStatusServer).AppendedPosition(ctx, in)
			},
		},
		{
			MethodName: "CommitPosition",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(wire.CommitPosition)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(MemberStatusServer).CommitPosition(ctx, in)
			},
		},
	},
}

// RegisterMemberStatusServer registers an implementation with a grpc.Server.
func RegisterMemberStatusServer(s *grpc.Server, srv MemberStatusServer) {
	s.RegisterService(&memberStatusDesc, srv)
}

// ServiceControlServer is hosted by the sequencer so co-located services can
// call upward with ACKs (§4.5/§6).
type ServiceControlServer interface {
	Ack(ctx context.Context, req *wire.ServiceAck) (*wire.Ack, error)
}

var serviceControlDesc = grpc.ServiceDesc{
	ServiceName: "aeron.ServiceControl",
	HandlerType: (*ServiceControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ack",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(wire.ServiceAck)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(ServiceControlServer).Ack(ctx, in)
			},
		},
	},
}

// RegisterServiceControlServer registers an implementation with a grpc.Server.
func RegisterServiceControlServer(s *grpc.Server, srv ServiceControlServer) {
	s.RegisterService(&serviceControlDesc, srv)
}

// JoinLogServer is hosted by each co-located service; the sequencer calls
// into it downward once it becomes leader/follower (§4.2 "signal services to
// join the log").
type JoinLogServer interface {
	JoinLog(ctx context.Context, req *wire.JoinLog) (*wire.Ack, error)
}

var joinLogDesc = grpc.ServiceDesc{
	ServiceName: "aeron.JoinLog",
	HandlerType: (*JoinLogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "JoinLog",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(wire.JoinLog)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(JoinLogServer).JoinLog(ctx, in)
			},
		},
	},
}

// RegisterJoinLogServer registers an implementation with a grpc.Server.
func RegisterJoinLogServer(s *grpc.Server, srv JoinLogServer) {
	s.RegisterService(&joinLogDesc, srv)
}
