package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/scheduling"
	"meeting-scheduler-api/internal/wire"
)

type Server struct {
	svc *scheduling.Service
	log *slog.Logger
}

var _ MeetingServer = (*Server)(nil)

func NewServer(svc *scheduling.Service, log *slog.Logger) *Server {
	return &Server{svc: svc, log: log}
}

type idRequest struct {
	ID string `json:"id"`
}

type updateRequest struct {
	ID string `json:"id"`
	wire.MeetingRequest
}

func actor(ctx context.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(ctx)
	if !ok {
		return model.Actor{}, status.Error(codes.Unauthenticated, "no token")
	}
	return a, nil
}

func decodeReq(in *structpb.Struct, v any) error {
	if err := fromStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	return nil
}

func (s *Server) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *Server) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.RegisterRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	u, tok, err := s.svc.Register(ctx, scheduling.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: model.Role(req.Role),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, wire.AuthResponse{Token: tok, User: wire.NewUser(u)})
}

func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req wire.LoginRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	u, tok, err := s.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, wire.AuthResponse{Token: tok, User: wire.NewUser(u)})
}

func (s *Server) CreateMeeting(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req wire.MeetingRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	m, err := s.svc.CreateMeeting(ctx, a, req.Input())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.meeting(ctx, m)
}

func (s *Server) UpdateMeeting(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req updateRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	m, err := s.svc.UpdateMeeting(ctx, a, req.ID, req.Patch())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.meeting(ctx, m)
}

func (s *Server) DeleteMeeting(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req idRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	if err := s.svc.DeleteMeeting(ctx, a, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, wire.Message{Message: "Meeting deleted successfully"})
}

func (s *Server) GetMeeting(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req idRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	m, err := s.svc.GetMeeting(ctx, a, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.meeting(ctx, m)
}

func (s *Server) ListMeetings(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	ms, err := s.svc.ListMeetingsFor(ctx, a)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	users, err := s.svc.UsersFor(ctx, ms...)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, map[string][]wire.Meeting{"meetings": wire.NewMeetings(ms, users)})
}

func (s *Server) ListParticipants(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	users, err := s.svc.Participants(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out := make([]wire.UserRef, len(users))
	for i, u := range users {
		out[i] = wire.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return s.reply(ctx, map[string][]wire.UserRef{"participants": out})
}

func (s *Server) CheckConflicts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req wire.MeetingRequest
	if err := decodeReq(in, &req); err != nil {
		return nil, err
	}
	reports, err := s.svc.CheckConflicts(ctx, a, req.Input(), req.ExcludeMeetingID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	users, err := s.svc.UsersForReports(ctx, reports)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, map[string][]wire.Conflict{"conflicts": wire.NewConflicts(reports, users)})
}

func (s *Server) meeting(ctx context.Context, m *model.Meeting) (*structpb.Struct, error) {
	users, err := s.svc.UsersFor(ctx, *m)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, map[string]wire.Meeting{"meeting": wire.NewMeeting(m, users)})
}
