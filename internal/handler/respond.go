package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/wire"
)

const (
	maxBody = 1 << 20

	// statusClientClosed is nginx's code for a client that went away.
	statusClientClosed = 499
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func message(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, wire.Message{Message: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return model.Invalid("malformed request body")
	}
	return nil
}

// actor is set by RequireAuth on every route that calls this.
func actor(r *http.Request) model.Actor {
	a, _ := middleware.ActorFrom(r.Context())
	return a
}

// fail maps service errors onto the client's status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *model.ValidationError
		cerr *model.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, wire.NewValidationBody(verr))
	case errors.As(err, &cerr):
		users, uerr := h.svc.UsersForReports(r.Context(), cerr.Reports)
		if uerr != nil {
			h.log.WarnContext(r.Context(), "resolve conflict users", "error", uerr)
		}
		writeJSON(w, http.StatusConflict, wire.ConflictBody{
			Message:   wire.ConflictMessage,
			Conflicts: wire.NewConflicts(cerr.Reports, users),
		})
	case errors.Is(err, model.ErrNotFound):
		message(w, http.StatusNotFound, "Not found")
	case errors.Is(err, model.ErrPermission):
		message(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, model.ErrBadCredentials):
		message(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, model.ErrEmailTaken):
		message(w, http.StatusConflict, "User already exists")
	case errors.Is(err, context.DeadlineExceeded):
		h.log.WarnContext(r.Context(), "request timed out", "method", r.Method, "path", r.URL.Path)
		message(w, http.StatusGatewayTimeout, "Request timed out")
	case errors.Is(err, context.Canceled):
		h.log.DebugContext(r.Context(), "request cancelled", "method", r.Method, "path", r.URL.Path)
		message(w, statusClientClosed, "Request cancelled")
	default:
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message(w, http.StatusInternalServerError, "Server error")
	}
}
