// Package events publishes meeting lifecycle events to a RabbitMQ topic
// exchange.
package events

import (
	"context"
	"time"

	"meeting-scheduler-api/internal/model"
)

const (
	KeyCreated = "meeting.created"
	KeyUpdated = "meeting.updated"
	KeyDeleted = "meeting.deleted"
)

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

type MeetingEvent struct {
	Event   string      `json:"event"`
	Version int         `json:"version"`
	Data    MeetingData `json:"data"`
}

type MeetingData struct {
	MeetingID      string   `json:"meeting_id"`
	OrganizerID    string   `json:"organizer_id"`
	ParticipantIDs []string `json:"participant_ids"`
	Title          string   `json:"title"`
	Start          int64    `json:"start"`
	End            int64    `json:"end"`
	OccurredAt     int64    `json:"occurred_at"`
}

func NewMeetingEvent(key string, m *model.Meeting) MeetingEvent {
	return MeetingEvent{
		Event:   key,
		Version: 1,
		Data: MeetingData{
			MeetingID:      m.ID,
			OrganizerID:    m.OrganizerID,
			ParticipantIDs: append([]string{}, m.ParticipantIDs...),
			Title:          m.Title,
			Start:          m.StartTime.Unix(),
			End:            m.EndTime.Unix(),
			OccurredAt:     time.Now().Unix(),
		},
	}
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }
func (Nop) Close() error                                 { return nil }
