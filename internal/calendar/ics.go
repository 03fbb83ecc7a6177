// Package calendar renders meetings as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"meeting-scheduler-api/internal/model"
)

const productID = "-//meeting-scheduler-api//EN"

// Encode writes ms as one VCALENDAR. users resolves organizer and attendee
// addresses; unknown ids are left out.
func Encode(w io.Writer, ms []model.Meeting, users map[string]model.User, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	for i := range ms {
		cal.Children = append(cal.Children, toEvent(&ms[i], users, now))
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func toEvent(m *model.Meeting, users map[string]model.User, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, m.ID)
	ve.Props.SetText(ical.PropSummary, m.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, m.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, m.EndTime.UTC())
	if m.Description != "" {
		ve.Props.SetText(ical.PropDescription, m.Description)
	}
	if !m.UpdatedAt.IsZero() {
		ve.Props.SetDateTime(ical.PropLastModified, m.UpdatedAt.UTC())
	}

	if u, ok := users[m.OrganizerID]; ok {
		ve.Props.Add(address(ical.PropOrganizer, u))
	}
	for _, id := range m.ParticipantIDs {
		if u, ok := users[id]; ok {
			ve.Props.Add(address(ical.PropAttendee, u))
		}
	}
	return ve
}

func address(name string, u model.User) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = "mailto:" + u.Email
	if u.Name != "" {
		p.Params.Set(ical.ParamCommonName, u.Name)
	}
	return p
}
