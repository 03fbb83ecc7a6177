package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/wire"
)

// toStatus maps service errors onto gRPC codes. Validation problems and
// conflict reports ride along as a Struct detail.
func (s *Server) toStatus(ctx context.Context, err error) error {
	var (
		verr *model.ValidationError
		cerr *model.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return withDetail(status.New(codes.InvalidArgument, verr.Error()), wire.NewValidationBody(verr))
	case errors.As(err, &cerr):
		users, uerr := s.svc.UsersForReports(ctx, cerr.Reports)
		if uerr != nil {
			s.log.WarnContext(ctx, "resolve conflict users", "error", uerr)
		}
		return withDetail(status.New(codes.AlreadyExists, wire.ConflictMessage), wire.ConflictBody{
			Message:   wire.ConflictMessage,
			Conflicts: wire.NewConflicts(cerr.Reports, users),
		})
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, model.ErrPermission):
		return status.Error(codes.PermissionDenied, "not authorized")
	case errors.Is(err, model.ErrBadCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, model.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, "user already exists")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		s.log.ErrorContext(ctx, "rpc failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func withDetail(st *status.Status, body any) error {
	detail, err := toStruct(body)
	if err != nil {
		return st.Err()
	}
	withd, err := st.WithDetails(detail)
	if err != nil {
		return st.Err()
	}
	return withd.Err()
}

// ConflictsFrom extracts the conflict reports carried by an AlreadyExists
// status, if any.
func ConflictsFrom(err error) ([]wire.Conflict, bool) {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.AlreadyExists {
		return nil, false
	}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		var body wire.ConflictBody
		if err := fromStruct(s, &body); err == nil && body.Conflicts != nil {
			return body.Conflicts, true
		}
	}
	return nil, false
}
