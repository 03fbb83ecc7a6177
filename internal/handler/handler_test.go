package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/handler"
	"meeting-scheduler-api/internal/scheduling"
	"meeting-scheduler-api/internal/store"
)

func setup(t *testing.T) chi.Router {
	t.Helper()
	st := store.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := scheduling.New(st, auth.NewIssuer("test-secret", time.Hour), scheduling.WithLogger(log))
	return handler.New(svc, log).Routes(handler.Options{AllowedOrigins: []string{"*"}})
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type account struct {
	ID    string
	Token string
}

func register(t *testing.T, h http.Handler, role string) account {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "User " + role,
		"email":    fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8]),
		"password": "testpass123",
		"role":     role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"_id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	decodeBody(t, rec, &out)
	return account{ID: out.User.ID, Token: out.Token}
}

type meetingJSON struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Organizer   struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	} `json:"organizer"`
	Participants []struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"participants"`
}

func meetingBody(title, from, to string, participants ...string) map[string]any {
	if participants == nil {
		participants = []string{}
	}
	return map[string]any{"title": title, "startTime": from, "endTime": to, "participants": participants}
}

func create(t *testing.T, h http.Handler, org account, body map[string]any) meetingJSON {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/meetings", org.Token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Meeting meetingJSON `json:"meeting"`
	}
	decodeBody(t, rec, &out)
	return out.Meeting
}

// ----- auth -----

func TestHealth(t *testing.T) {
	h := setup(t)
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterLoginMe(t *testing.T) {
	h := setup(t)
	email := fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8])

	rec := do(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Login User", "email": email, "password": "testpass123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"role":"PARTICIPANT"`) {
		t.Errorf("default role missing: %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Again", "email": email, "password": "testpass123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "wrongpass"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "testpass123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var lr struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &lr)

	rec = do(t, h, http.MethodGet, "/api/auth/me", lr.Token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), email) {
		t.Errorf("me: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	h := setup(t)
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "X", "email": "a@b.com", "password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var out struct {
		Message string `json:"message"`
		Errors  []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	decodeBody(t, rec, &out)
	if out.Message == "" || len(out.Errors) != 1 || out.Errors[0].Msg == "" {
		t.Errorf("body: %+v", out)
	}
}

func TestUnauthorized(t *testing.T) {
	h := setup(t)
	for _, token := range []string{"", "garbage"} {
		rec := do(t, h, http.MethodGet, "/api/meetings", token, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: %d", token, rec.Code)
		}
	}
}

// ----- meetings -----

func TestCreateAndList(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")
	p := register(t, h, "PARTICIPANT")

	m := create(t, h, org, meetingBody("Planning", "2030-01-07T10:00", "2030-01-07T11:00", p.ID))
	if m.ID == "" || m.Organizer.ID != org.ID || m.Organizer.Name == "" {
		t.Errorf("meeting: %+v", m)
	}
	if len(m.Participants) != 1 || m.Participants[0].ID != p.ID || m.Participants[0].Email == "" {
		t.Errorf("participants not populated: %+v", m.Participants)
	}
	if m.StartTime != "2030-01-07T10:00:00Z" {
		t.Errorf("startTime = %s", m.StartTime)
	}

	for _, acc := range []account{org, p} {
		rec := do(t, h, http.MethodGet, "/api/meetings", acc.Token, nil)
		var out struct {
			Meetings []meetingJSON `json:"meetings"`
		}
		decodeBody(t, rec, &out)
		if len(out.Meetings) != 1 || out.Meetings[0].ID != m.ID {
			t.Errorf("list for %s: %+v", acc.ID, out.Meetings)
		}
	}

	rec := do(t, h, http.MethodGet, "/api/meetings/"+m.ID, p.Token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get as participant: %d", rec.Code)
	}
	stranger := register(t, h, "PARTICIPANT")
	rec = do(t, h, http.MethodGet, "/api/meetings/"+m.ID, stranger.Token, nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"Not found"`) {
		t.Errorf("get as stranger: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateForbiddenForParticipant(t *testing.T) {
	h := setup(t)
	p := register(t, h, "PARTICIPANT")
	rec := do(t, h, http.MethodPost, "/api/meetings", p.Token, meetingBody("x", "2030-01-07T10:00", "2030-01-07T11:00"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")

	tests := []struct {
		name string
		body any
	}{
		{"start equals end", meetingBody("x", "2030-01-07T10:00", "2030-01-07T10:00")},
		{"empty title", meetingBody("", "2030-01-07T10:00", "2030-01-07T11:00")},
		{"bad time", meetingBody("x", "soon", "2030-01-07T11:00")},
		{"unknown participant", meetingBody("x", "2030-01-07T10:00", "2030-01-07T11:00", uuid.New().String())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/meetings", org.Token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/meetings", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+org.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: %d", rec.Code)
	}
}

func TestConflictResponse(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")
	other := register(t, h, "ORGANIZER")
	p := register(t, h, "PARTICIPANT")

	a := create(t, h, org, meetingBody("A", "2030-01-07T10:00:00Z", "2030-01-07T11:00:00Z", p.ID))

	rec := do(t, h, http.MethodPost, "/api/meetings", other.Token,
		meetingBody("B", "2030-01-07T10:30:00Z", "2030-01-07T11:30:00Z", p.ID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Message   string `json:"message"`
		Conflicts []struct {
			Participant struct {
				ID   string `json:"_id"`
				Name string `json:"name"`
			} `json:"participant"`
			ConflictingMeetings []struct {
				ID        string `json:"_id"`
				Title     string `json:"title"`
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
			} `json:"conflictingMeetings"`
		} `json:"conflicts"`
	}
	decodeBody(t, rec, &out)
	if out.Message == "" || len(out.Conflicts) != 1 {
		t.Fatalf("body: %+v", out)
	}
	c := out.Conflicts[0]
	if c.Participant.ID != p.ID || c.Participant.Name == "" {
		t.Errorf("participant: %+v", c.Participant)
	}
	if len(c.ConflictingMeetings) != 1 || c.ConflictingMeetings[0].ID != a.ID ||
		c.ConflictingMeetings[0].StartTime != "2030-01-07T10:00:00Z" {
		t.Errorf("conflicting meetings: %+v", c.ConflictingMeetings)
	}

	// touching is not overlapping
	create(t, h, other, meetingBody("C", "2030-01-07T11:00:00Z", "2030-01-07T12:00:00Z", p.ID))
}

func TestCheckEndpoint(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")
	p := register(t, h, "PARTICIPANT")
	a := create(t, h, org, meetingBody("A", "2030-01-07T10:00", "2030-01-07T11:00", p.ID))

	body := meetingBody("probe", "2030-01-07T10:30", "2030-01-07T11:30", p.ID)
	rec := do(t, h, http.MethodPost, "/api/meetings/check", org.Token, body)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), a.ID) {
		t.Fatalf("check: %d %s", rec.Code, rec.Body.String())
	}

	body["excludeMeetingId"] = a.ID
	rec = do(t, h, http.MethodPost, "/api/meetings/check", org.Token, body)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"conflicts":[]}` {
		t.Errorf("check excluding self: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateMeeting(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")
	p := register(t, h, "PARTICIPANT")
	m := create(t, h, org, meetingBody("A", "2030-01-07T10:00", "2030-01-07T11:00", p.ID))

	rec := do(t, h, http.MethodPut, "/api/meetings/"+m.ID, org.Token, map[string]string{"description": "agenda"})
	if rec.Code != http.StatusOK {
		t.Fatalf("description-only update: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Meeting meetingJSON `json:"meeting"`
	}
	decodeBody(t, rec, &out)
	if out.Meeting.Description != "agenda" || out.Meeting.Title != "A" || len(out.Meeting.Participants) != 1 {
		t.Errorf("partial update lost fields: %+v", out.Meeting)
	}

	rec = do(t, h, http.MethodPut, "/api/meetings/"+m.ID, p.Token, map[string]string{"title": "hijack"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("participant update: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/meetings/"+m.ID, org.Token, nil)
	if strings.Contains(rec.Body.String(), "hijack") {
		t.Error("forbidden update was applied")
	}

	rec = do(t, h, http.MethodPut, "/api/meetings/"+uuid.New().String(), org.Token, map[string]string{"title": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/meetings/"+m.ID, org.Token, map[string]string{"endTime": "2030-01-07T09:00"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid interval: %d", rec.Code)
	}
}

func TestDeleteMeeting(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")
	other := register(t, h, "ORGANIZER")
	m := create(t, h, org, meetingBody("A", "2030-01-07T10:00", "2030-01-07T11:00"))

	if rec := do(t, h, http.MethodDelete, "/api/meetings/"+m.ID, other.Token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign delete: %d", rec.Code)
	}
	rec := do(t, h, http.MethodDelete, "/api/meetings/"+m.ID, org.Token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "message") {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, "/api/meetings/"+m.ID, org.Token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: %d", rec.Code)
	}
}

func TestParticipantsAndCalendar(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")
	p := register(t, h, "PARTICIPANT")
	m := create(t, h, org, meetingBody("Standup", "2030-01-07T10:00", "2030-01-07T10:15", p.ID))

	rec := do(t, h, http.MethodGet, "/api/users/participants", org.Token, nil)
	var out struct {
		Participants []struct {
			ID string `json:"_id"`
		} `json:"participants"`
	}
	decodeBody(t, rec, &out)
	if len(out.Participants) != 1 || out.Participants[0].ID != p.ID {
		t.Errorf("participants: %+v", out.Participants)
	}

	rec = do(t, h, http.MethodGet, "/api/meetings/calendar.ics", p.Token, nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("calendar: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, "UID:"+m.ID) || !strings.Contains(body, "SUMMARY:Standup") {
		t.Errorf("calendar body: %s", body)
	}
}

func TestConcurrentCreates(t *testing.T) {
	h := setup(t)
	p := register(t, h, "PARTICIPANT")

	const n = 8
	orgs := make([]account, n)
	for i := range orgs {
		orgs[i] = register(t, h, "ORGANIZER")
	}

	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := meetingBody(fmt.Sprintf("m-%d", i), "2030-01-07T10:00", "2030-01-07T11:00", p.ID)
			codes <- do(t, h, http.MethodPost, "/api/meetings", orgs[i].Token, body).Code
		}(i)
	}
	wg.Wait()
	close(codes)

	created, conflicted := 0, 0
	for c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Errorf("unexpected status %d", c)
		}
	}
	if created != 1 || conflicted != n-1 {
		t.Errorf("created=%d conflicted=%d", created, conflicted)
	}
}

func TestContextErrors(t *testing.T) {
	h := setup(t)
	org := register(t, h, "ORGANIZER")

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"deadline", expired, http.StatusGatewayTimeout},
		{"cancelled", cancelled, 499},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := json.Marshal(meetingBody("Late", "2030-01-07T10:00", "2030-01-07T11:00"))
			req := httptest.NewRequest(http.MethodPost, "/api/meetings", bytes.NewReader(b)).WithContext(tt.ctx)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+org.Token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("got %d %s, want %d", rec.Code, rec.Body.String(), tt.want)
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/meetings", org.Token, nil)
	var out struct {
		Meetings []meetingJSON `json:"meetings"`
	}
	decodeBody(t, rec, &out)
	if len(out.Meetings) != 0 {
		t.Errorf("aborted creates left %d meetings", len(out.Meetings))
	}
}
