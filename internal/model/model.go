package model

import (
	"strings"
	"time"

	"meeting-scheduler-api/internal/interval"
)

type Role string

const (
	RoleOrganizer   Role = "ORGANIZER"
	RoleParticipant Role = "PARTICIPANT"
)

func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleParticipant
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated identity a request runs as.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsOrganizer() bool { return a.Role == RoleOrganizer }

type Meeting struct {
	ID             string
	Title          string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	OrganizerID    string
	ParticipantIDs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (m *Meeting) Interval() interval.Interval {
	return interval.New(m.StartTime, m.EndTime)
}

// Attendees returns the organizer followed by the invited participants,
// without duplicates.
func (m *Meeting) Attendees() []string {
	return Dedupe(append([]string{m.OrganizerID}, m.ParticipantIDs...))
}

// Involves reports whether userID organizes or is invited to m.
func (m *Meeting) Involves(userID string) bool {
	if m.OrganizerID == userID {
		return true
	}
	for _, id := range m.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (m *Meeting) Validate() error {
	var v ValidationError
	if strings.TrimSpace(m.Title) == "" {
		v.Add("title is required")
	}
	if m.StartTime.IsZero() || m.EndTime.IsZero() {
		v.Add("startTime and endTime are required")
	} else if !m.Interval().Valid() {
		v.Add("endTime must be after startTime")
	}
	return v.OrNil()
}

func (m Meeting) Clone() Meeting {
	m.ParticipantIDs = append([]string(nil), m.ParticipantIDs...)
	return m
}

// MeetingPatch holds the mutable fields of a meeting; nil means unchanged.
type MeetingPatch struct {
	Title          *string
	Description    *string
	StartTime      *time.Time
	EndTime        *time.Time
	ParticipantIDs *[]string
}

func (p MeetingPatch) Apply(m Meeting) Meeting {
	m = m.Clone()
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.StartTime != nil {
		m.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		m.EndTime = *p.EndTime
	}
	if p.ParticipantIDs != nil {
		m.ParticipantIDs = Dedupe(*p.ParticipantIDs)
	}
	return m
}

// ConflictReport lists one participant's existing meetings that overlap a
// proposed interval, ordered by start time.
type ConflictReport struct {
	ParticipantID string
	Meetings      []Meeting
}

// Dedupe keeps the first occurrence of each id and drops empty ones.
func Dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
