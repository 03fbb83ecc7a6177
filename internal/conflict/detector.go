// Package conflict decides which attendees of a proposed meeting are already
// busy. It never writes.
package conflict

import (
	"context"
	"fmt"
	"sort"

	"meeting-scheduler-api/internal/interval"
	"meeting-scheduler-api/internal/model"
)

// Source is the read side of the meeting store the detector needs.
type Source interface {
	FindByParticipant(ctx context.Context, userID string) ([]model.Meeting, error)
}

// Candidate is the meeting being proposed.
type Candidate struct {
	Interval       interval.Interval
	OrganizerID    string
	ParticipantIDs []string
	// set on update so a meeting never conflicts with itself
	ExcludeID string
}

// Detect returns one report per attendee that has at least one meeting
// overlapping c.Interval. The organizer counts as an attendee. Reports follow
// attendee order (organizer first, then participants as given) and each
// report's meetings are sorted by start time, then id.
func Detect(ctx context.Context, src Source, c Candidate) ([]model.ConflictReport, error) {
	attendees := model.Dedupe(append([]string{c.OrganizerID}, c.ParticipantIDs...))

	var reports []model.ConflictReport
	for _, uid := range attendees {
		existing, err := src.FindByParticipant(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("meetings for %s: %w", uid, err)
		}

		var busy []model.Meeting
		for _, m := range existing {
			if m.ID == c.ExcludeID && c.ExcludeID != "" {
				continue
			}
			if interval.Overlaps(m.Interval(), c.Interval) {
				busy = append(busy, m)
			}
		}
		if len(busy) == 0 {
			continue
		}
		SortByStart(busy)
		reports = append(reports, model.ConflictReport{ParticipantID: uid, Meetings: busy})
	}
	return reports, nil
}

// SortByStart orders meetings by start time, breaking ties by id.
func SortByStart(ms []model.Meeting) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].StartTime.Equal(ms[j].StartTime) {
			return ms[i].StartTime.Before(ms[j].StartTime)
		}
		return ms[i].ID < ms[j].ID
	})
}
