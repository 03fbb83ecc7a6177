// Package rpc exposes the scheduling service over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the REST
// API, so no generated code is needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "scheduler.v1.MeetingService"

// full method names
const (
	MethodRegister         = "/" + ServiceName + "/Register"
	MethodLogin            = "/" + ServiceName + "/Login"
	MethodCreateMeeting    = "/" + ServiceName + "/CreateMeeting"
	MethodUpdateMeeting    = "/" + ServiceName + "/UpdateMeeting"
	MethodDeleteMeeting    = "/" + ServiceName + "/DeleteMeeting"
	MethodGetMeeting       = "/" + ServiceName + "/GetMeeting"
	MethodListMeetings     = "/" + ServiceName + "/ListMeetings"
	MethodListParticipants = "/" + ServiceName + "/ListParticipants"
	MethodCheckConflicts   = "/" + ServiceName + "/CheckConflicts"
)

// PublicMethods skip authentication.
var PublicMethods = []string{MethodRegister, MethodLogin}

type MeetingServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateMeeting(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateMeeting(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteMeeting(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMeeting(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMeetings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListParticipants(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckConflicts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(MeetingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if icpt == nil {
				return call(srv.(MeetingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return icpt(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(MeetingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MeetingServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Register", MeetingServer.Register),
		method("Login", MeetingServer.Login),
		method("CreateMeeting", MeetingServer.CreateMeeting),
		method("UpdateMeeting", MeetingServer.UpdateMeeting),
		method("DeleteMeeting", MeetingServer.DeleteMeeting),
		method("GetMeeting", MeetingServer.GetMeeting),
		method("ListMeetings", MeetingServer.ListMeetings),
		method("ListParticipants", MeetingServer.ListParticipants),
		method("CheckConflicts", MeetingServer.CheckConflicts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduler/v1/meeting.proto",
}

func RegisterMeetingServer(s grpc.ServiceRegistrar, srv MeetingServer) {
	s.RegisterService(&ServiceDesc, srv)
}
