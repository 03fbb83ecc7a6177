package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"meeting-scheduler-api/internal/model"
)

type ctxKey string

const (
	actorKey  ctxKey = "actor"
	holderKey ctxKey = "actor-holder"
)

// Authenticator turns a raw bearer token into the acting identity.
type Authenticator interface {
	Authenticate(raw string) (model.Actor, error)
}

// actorHolder lets outer middleware see who a request was made by.
type actorHolder struct {
	actor model.Actor
	set   bool
}

func withHolder(ctx context.Context, h *actorHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

func WithActor(ctx context.Context, a model.Actor) context.Context {
	if h, ok := ctx.Value(holderKey).(*actorHolder); ok {
		h.actor, h.set = a, true
	}
	return context.WithValue(ctx, actorKey, a)
}

func ActorFrom(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey).(model.Actor)
	return a, ok
}

func bearer(header string) string {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == header {
		return ""
	}
	return strings.TrimSpace(raw)
}

// RequireAuth rejects requests without a valid token with 401 so the
// browser client drops its session.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				unauthorized(w, "No token, authorization denied")
				return
			}
			actor, err := a.Authenticate(raw)
			if err != nil {
				unauthorized(w, "Token is not valid")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// Auth is the gRPC counterpart of RequireAuth. Methods listed in open skip
// the check.
func Auth(a Authenticator, open ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		actor, err := a.Authenticate(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}
		return next(WithActor(ctx, actor), req)
	}
}
