package handler

import (
	"net/http"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/scheduling"
	"meeting-scheduler-api/internal/wire"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, tok, err := h.svc.Register(r.Context(), scheduling.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: model.Role(req.Role),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.AuthResponse{Token: tok, User: wire.NewUser(u)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, tok, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.AuthResponse{Token: tok, User: wire.NewUser(u)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]wire.User{"user": wire.NewUser(u)})
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Participants(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]wire.UserRef, len(users))
	for i, u := range users {
		out[i] = wire.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	writeJSON(w, http.StatusOK, map[string][]wire.UserRef{"participants": out})
}
