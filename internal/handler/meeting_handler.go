package handler

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meeting-scheduler-api/internal/calendar"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/wire"
)

func (h *Handler) listMeetings(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListMeetingsFor(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.svc.UsersFor(r.Context(), ms...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]wire.Meeting{"meetings": wire.NewMeetings(ms, users)})
}

func (h *Handler) getMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMeeting(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeMeeting(w, r, http.StatusOK, m)
}

func (h *Handler) createMeeting(w http.ResponseWriter, r *http.Request) {
	var req wire.MeetingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.CreateMeeting(r.Context(), actor(r), req.Input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeMeeting(w, r, http.StatusCreated, m)
}

func (h *Handler) updateMeeting(w http.ResponseWriter, r *http.Request) {
	var req wire.MeetingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.UpdateMeeting(r.Context(), actor(r), chi.URLParam(r, "id"), req.Patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeMeeting(w, r, http.StatusOK, m)
}

func (h *Handler) deleteMeeting(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMeeting(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	message(w, http.StatusOK, "Meeting deleted successfully")
}

func (h *Handler) checkConflicts(w http.ResponseWriter, r *http.Request) {
	var req wire.MeetingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reports, err := h.svc.CheckConflicts(r.Context(), actor(r), req.Input(), req.ExcludeMeetingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.svc.UsersForReports(r.Context(), reports)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]wire.Conflict{"conflicts": wire.NewConflicts(reports, users)})
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListMeetingsFor(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.svc.UsersFor(r.Context(), ms...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// buffered so an encoding error can still become a 500
	var buf bytes.Buffer
	if err := calendar.Encode(&buf, ms, users, h.now()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetings.ics"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) writeMeeting(w http.ResponseWriter, r *http.Request, code int, m *model.Meeting) {
	users, err := h.svc.UsersFor(r.Context(), *m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, code, map[string]wire.Meeting{"meeting": wire.NewMeeting(m, users)})
}
