// Package scheduling owns the meeting workflow: permission checks,
// validation, conflict rejection and the atomic check-then-write.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/conflict"
	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

// updates retry when the attendee set changed between reading the meeting
// and taking the locks
const maxLockAttempts = 3

var errStaleLocks = errors.New("attendees changed while locking")

type Service struct {
	store  store.Store
	issuer *auth.Issuer
	pub    events.Publisher
	log    *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func New(st store.Store, issuer *auth.Issuer, opts ...Option) *Service {
	s := &Service{
		store:  st,
		issuer: issuer,
		pub:    events.Nop{},
		log:    slog.Default(),
		tracer: otel.Tracer("meeting-scheduler-api/scheduling"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// MeetingInput is a create request, or a full replacement on check.
type MeetingInput struct {
	Title          string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	ParticipantIDs []string
}

func (s *Service) CreateMeeting(ctx context.Context, actor model.Actor, in MeetingInput) (m *model.Meeting, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.CreateMeeting")
	defer func() { s.end(span, err) }()

	if !actor.IsOrganizer() {
		return nil, model.ErrPermission
	}
	m = &model.Meeting{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		StartTime:      in.StartTime.UTC(),
		EndTime:        in.EndTime.UTC(),
		OrganizerID:    actor.ID,
		ParticipantIDs: withoutUser(in.ParticipantIDs, actor.ID),
	}
	if err := s.validate(ctx, m); err != nil {
		return nil, err
	}

	err = s.store.Atomically(ctx, m.Attendees(), func(tx store.Tx) error {
		reports, err := conflict.Detect(ctx, tx, candidate(m, ""))
		if err != nil {
			return err
		}
		if len(reports) > 0 {
			return &model.ConflictError{Reports: reports}
		}
		_, err = tx.Create(ctx, m)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	span.SetAttributes(attribute.String("meeting.id", m.ID))
	s.log.InfoContext(ctx, "meeting created", "meeting_id", m.ID, "organizer_id", m.OrganizerID,
		"participants", len(m.ParticipantIDs))
	s.publish(ctx, events.KeyCreated, m)
	return m, nil
}

func (s *Service) UpdateMeeting(ctx context.Context, actor model.Actor, id string, p model.MeetingPatch) (out *model.Meeting, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.UpdateMeeting", trace.WithAttributes(attribute.String("meeting.id", id)))
	defer func() { s.end(span, err) }()

	if !actor.IsOrganizer() {
		return nil, model.ErrPermission
	}
	p = normalizePatch(p, actor.ID)

	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		cur, err := s.owned(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		next := p.Apply(*cur)
		if err := s.validate(ctx, &next); err != nil {
			return nil, err
		}

		locked := next.Attendees()
		err = s.store.Atomically(ctx, locked, func(tx store.Tx) error {
			cur, err := tx.Get(ctx, id)
			if err != nil {
				return err
			}
			next := p.Apply(*cur)
			if !subset(next.Attendees(), locked) {
				return errStaleLocks
			}
			reports, err := conflict.Detect(ctx, tx, candidate(&next, id))
			if err != nil {
				return err
			}
			if len(reports) > 0 {
				return &model.ConflictError{Reports: reports}
			}
			out, err = tx.Update(ctx, id, p)
			return err
		})
		if errors.Is(err, errStaleLocks) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update meeting %s: %w", id, err)
		}

		s.log.InfoContext(ctx, "meeting updated", "meeting_id", id, "organizer_id", actor.ID)
		s.publish(ctx, events.KeyUpdated, out)
		return out, nil
	}
	return nil, fmt.Errorf("update meeting %s: %w", id, errStaleLocks)
}

func (s *Service) DeleteMeeting(ctx context.Context, actor model.Actor, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.DeleteMeeting", trace.WithAttributes(attribute.String("meeting.id", id)))
	defer func() { s.end(span, err) }()

	if !actor.IsOrganizer() {
		return model.ErrPermission
	}
	cur, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.store.Atomically(ctx, []string{cur.OrganizerID}, func(tx store.Tx) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete meeting %s: %w", id, err)
	}

	s.log.InfoContext(ctx, "meeting deleted", "meeting_id", id, "organizer_id", actor.ID)
	s.publish(ctx, events.KeyDeleted, cur)
	return nil
}

// GetMeeting returns a meeting the actor organizes or is invited to. Anyone
// else gets ErrNotFound so ids cannot be probed.
func (s *Service) GetMeeting(ctx context.Context, actor model.Actor, id string) (*model.Meeting, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Involves(actor.ID) {
		return nil, model.ErrNotFound
	}
	return m, nil
}

// ListMeetingsFor returns, by start time, the meetings an organizer runs or
// the meetings a participant is invited to or organizes.
func (s *Service) ListMeetingsFor(ctx context.Context, actor model.Actor) (ms []model.Meeting, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.ListMeetingsFor")
	defer func() { s.end(span, err) }()

	if actor.IsOrganizer() {
		return s.store.ListByOrganizer(ctx, actor.ID)
	}
	return s.store.FindByParticipant(ctx, actor.ID)
}

// CheckConflicts runs detection for a proposed meeting without writing.
// excludeID names the meeting being edited, if any.
func (s *Service) CheckConflicts(ctx context.Context, actor model.Actor, in MeetingInput, excludeID string) (reports []model.ConflictReport, err error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.CheckConflicts")
	defer func() { s.end(span, err) }()

	if !actor.IsOrganizer() {
		return nil, model.ErrPermission
	}
	if excludeID != "" {
		if _, err := s.owned(ctx, actor, excludeID); err != nil {
			return nil, err
		}
	}
	m := &model.Meeting{
		Title:          strings.TrimSpace(in.Title),
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		OrganizerID:    actor.ID,
		ParticipantIDs: withoutUser(in.ParticipantIDs, actor.ID),
	}
	if err := s.validate(ctx, m); err != nil {
		return nil, err
	}
	return conflict.Detect(ctx, s.store, candidate(m, excludeID))
}

func (s *Service) Participants(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsersByRole(ctx, model.RoleParticipant)
}

// UsersFor resolves the organizer and participants of every meeting.
func (s *Service) UsersFor(ctx context.Context, ms ...model.Meeting) (map[string]model.User, error) {
	var ids []string
	for i := range ms {
		ids = append(ids, ms[i].Attendees()...)
	}
	return s.store.UsersByIDs(ctx, model.Dedupe(ids))
}

func (s *Service) UsersForReports(ctx context.Context, reports []model.ConflictReport) (map[string]model.User, error) {
	ids := make([]string, len(reports))
	for i, r := range reports {
		ids[i] = r.ParticipantID
	}
	return s.store.UsersByIDs(ctx, ids)
}

// owned loads a meeting and checks the actor organizes it.
func (s *Service) owned(ctx context.Context, actor model.Actor, id string) (*model.Meeting, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.OrganizerID != actor.ID {
		return nil, model.ErrPermission
	}
	return m, nil
}

func (s *Service) validate(ctx context.Context, m *model.Meeting) error {
	var v model.ValidationError
	if err := m.Validate(); err != nil {
		var inner *model.ValidationError
		if errors.As(err, &inner) {
			v.Problems = append(v.Problems, inner.Problems...)
		}
	}

	var wellFormed []string
	for _, id := range m.ParticipantIDs {
		if _, err := uuid.Parse(id); err != nil {
			v.Add("invalid participant id %q", id)
			continue
		}
		wellFormed = append(wellFormed, id)
	}
	if len(wellFormed) > 0 {
		known, err := s.store.UsersByIDs(ctx, wellFormed)
		if err != nil {
			return err
		}
		for _, id := range wellFormed {
			if _, ok := known[id]; !ok {
				v.Add("unknown participant %s", id)
			}
		}
	}
	return v.OrNil()
}

func (s *Service) publish(ctx context.Context, key string, m *model.Meeting) {
	if err := s.pub.PublishJSON(ctx, key, events.NewMeetingEvent(key, m)); err != nil {
		s.log.WarnContext(ctx, "publish event failed", "key", key, "meeting_id", m.ID, "error", err)
	}
}

func (s *Service) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func candidate(m *model.Meeting, excludeID string) conflict.Candidate {
	return conflict.Candidate{
		Interval:       m.Interval(),
		OrganizerID:    m.OrganizerID,
		ParticipantIDs: m.ParticipantIDs,
		ExcludeID:      excludeID,
	}
}

func normalizePatch(p model.MeetingPatch, organizerID string) model.MeetingPatch {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.StartTime != nil {
		t := p.StartTime.UTC()
		p.StartTime = &t
	}
	if p.EndTime != nil {
		t := p.EndTime.UTC()
		p.EndTime = &t
	}
	if p.ParticipantIDs != nil {
		ids := withoutUser(*p.ParticipantIDs, organizerID)
		p.ParticipantIDs = &ids
	}
	return p
}

// the organizer is always an attendee, never listed as a participant
func withoutUser(ids []string, userID string) []string {
	out := []string{}
	for _, id := range model.Dedupe(ids) {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

func subset(ids, of []string) bool {
	set := make(map[string]bool, len(of))
	for _, id := range of {
		set[id] = true
	}
	for _, id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}
