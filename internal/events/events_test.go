package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/model"
)

func TestNewMeetingEvent(t *testing.T) {
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	m := &model.Meeting{
		ID: "m1", Title: "Planning", OrganizerID: "org",
		StartTime: start, EndTime: start.Add(time.Hour),
		ParticipantIDs: []string{"a", "b"},
	}
	ev := events.NewMeetingEvent(events.KeyCreated, m)
	m.ParticipantIDs[0] = "mutated"

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["event"] != "meeting.created" || got["version"] != float64(1) {
		t.Errorf("envelope: %v", got)
	}
	data := got["data"].(map[string]any)
	if data["meeting_id"] != "m1" || data["start"] != float64(start.Unix()) {
		t.Errorf("data: %v", data)
	}
	if ids := data["participant_ids"].([]any); ids[0] != "a" {
		t.Errorf("event shares participant slice with meeting: %v", ids)
	}
}

func TestNop(t *testing.T) {
	var p events.Publisher = events.Nop{}
	if err := p.PublishJSON(context.Background(), events.KeyDeleted, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	ev := events.NewMeetingEvent(events.KeyDeleted, &model.Meeting{
		ID: "m1", Title: "Planning", OrganizerID: "org",
		StartTime: start, EndTime: start.Add(time.Hour),
		ParticipantIDs: []string{"a", "b"},
	})

	if err := events.LogNotifier(log)(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per participant, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"action":"cancelled"`) || !strings.Contains(lines[0], `"start":"2030-01-01T09:00:00Z"`) {
		t.Errorf("line: %s", lines[0])
	}

	buf.Reset()
	ev.Event = "meeting.unknown"
	if err := events.LogNotifier(log)(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "notify participant") {
		t.Error("unknown events should not notify")
	}
}
