// Package wire holds the JSON shapes shared by the HTTP API and the gRPC
// Struct messages. Field names follow what the browser client reads.
package wire

import (
	"strings"
	"time"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/scheduling"
)

// layouts accepted for incoming times; datetime-local inputs arrive without
// a zone and are read as UTC
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Time decodes any of the accepted layouts and always encodes as RFC 3339.
type Time struct{ time.Time }

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func ParseTime(s string) (time.Time, error) {
	var err error
	for _, l := range layouts {
		var t time.Time
		if t, err = time.ParseInLocation(l, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, model.Invalid("invalid time %q", s)
}

type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type User struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt Time   `json:"createdAt"`
}

type Meeting struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartTime    Time      `json:"startTime"`
	EndTime      Time      `json:"endTime"`
	Organizer    UserRef   `json:"organizer"`
	Participants []UserRef `json:"participants"`
	CreatedAt    Time      `json:"createdAt"`
	UpdatedAt    Time      `json:"updatedAt"`
}

type ConflictingMeeting struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	StartTime Time   `json:"startTime"`
	EndTime   Time   `json:"endTime"`
}

type Conflict struct {
	Participant         UserRef              `json:"participant"`
	ConflictingMeetings []ConflictingMeeting `json:"conflictingMeetings"`
}

// MeetingRequest is the body of create, update and check calls. Absent
// fields stay nil so an update only touches what was sent.
type MeetingRequest struct {
	Title            *string   `json:"title"`
	Description      *string   `json:"description"`
	StartTime        *Time     `json:"startTime"`
	EndTime          *Time     `json:"endTime"`
	Participants     *[]string `json:"participants"`
	ExcludeMeetingID string    `json:"excludeMeetingId,omitempty"`
}

func (r MeetingRequest) Input() scheduling.MeetingInput {
	var in scheduling.MeetingInput
	if r.Title != nil {
		in.Title = *r.Title
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.StartTime != nil {
		in.StartTime = r.StartTime.Time
	}
	if r.EndTime != nil {
		in.EndTime = r.EndTime.Time
	}
	if r.Participants != nil {
		in.ParticipantIDs = *r.Participants
	}
	return in
}

func (r MeetingRequest) Patch() model.MeetingPatch {
	p := model.MeetingPatch{
		Title:          r.Title,
		Description:    r.Description,
		ParticipantIDs: r.Participants,
	}
	if r.StartTime != nil {
		p.StartTime = &r.StartTime.Time
	}
	if r.EndTime != nil {
		p.EndTime = &r.EndTime.Time
	}
	return p
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Message struct {
	Message string `json:"message"`
}

type FieldError struct {
	Msg string `json:"msg"`
}

type ValidationBody struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

type ConflictBody struct {
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts"`
}

func NewUser(u *model.User) User {
	return User{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role), CreatedAt: Time{u.CreatedAt}}
}

// ref falls back to a bare id when the user row is gone.
func ref(id string, users map[string]model.User) UserRef {
	u, ok := users[id]
	if !ok {
		return UserRef{ID: id}
	}
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

func NewMeeting(m *model.Meeting, users map[string]model.User) Meeting {
	out := Meeting{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		StartTime:    Time{m.StartTime},
		EndTime:      Time{m.EndTime},
		Organizer:    ref(m.OrganizerID, users),
		Participants: make([]UserRef, 0, len(m.ParticipantIDs)),
		CreatedAt:    Time{m.CreatedAt},
		UpdatedAt:    Time{m.UpdatedAt},
	}
	for _, id := range m.ParticipantIDs {
		out.Participants = append(out.Participants, ref(id, users))
	}
	return out
}

func NewMeetings(ms []model.Meeting, users map[string]model.User) []Meeting {
	out := make([]Meeting, len(ms))
	for i := range ms {
		out[i] = NewMeeting(&ms[i], users)
	}
	return out
}

func NewConflicts(reports []model.ConflictReport, users map[string]model.User) []Conflict {
	out := make([]Conflict, len(reports))
	for i, r := range reports {
		p := ref(r.ParticipantID, users)
		p.Email = ""
		c := Conflict{Participant: p, ConflictingMeetings: make([]ConflictingMeeting, len(r.Meetings))}
		for j, m := range r.Meetings {
			c.ConflictingMeetings[j] = ConflictingMeeting{
				ID: m.ID, Title: m.Title, StartTime: Time{m.StartTime}, EndTime: Time{m.EndTime},
			}
		}
		out[i] = c
	}
	return out
}

func NewValidationBody(v *model.ValidationError) ValidationBody {
	b := ValidationBody{Message: "Validation failed", Errors: make([]FieldError, len(v.Problems))}
	for i, p := range v.Problems {
		b.Errors[i] = FieldError{Msg: p}
	}
	if len(v.Problems) > 0 {
		b.Message = v.Problems[0]
	}
	return b
}

const ConflictMessage = "Scheduling conflict detected"
