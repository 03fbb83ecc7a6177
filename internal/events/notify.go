package events

import (
	"context"
	"log/slog"
	"time"
)

var verbs = map[string]string{
	KeyCreated: "invited to",
	KeyUpdated: "updated",
	KeyDeleted: "cancelled",
}

// LogNotifier returns a Handler that logs one notice per participant. It
// stands in for an email or push channel.
func LogNotifier(log *slog.Logger) Handler {
	return func(ctx context.Context, ev MeetingEvent) error {
		verb, ok := verbs[ev.Event]
		if !ok {
			log.WarnContext(ctx, "unknown event", "event", ev.Event)
			return nil
		}
		for _, uid := range ev.Data.ParticipantIDs {
			log.InfoContext(ctx, "notify participant",
				"user_id", uid,
				"action", verb,
				"meeting_id", ev.Data.MeetingID,
				"title", ev.Data.Title,
				"start", time.Unix(ev.Data.Start, 0).UTC().Format(time.RFC3339),
			)
		}
		return nil
	}
}
