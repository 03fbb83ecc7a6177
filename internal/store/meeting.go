package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"meeting-scheduler-api/internal/model"
)

// pgQueries runs meeting and user statements against a pool or a tx.
type pgQueries struct {
	q querier
}

const meetingCols = `m.id, m.title, m.description, m.start_time, m.end_time,
	m.organizer_id, m.created_at, m.updated_at`

func (s pgQueries) Create(ctx context.Context, m *model.Meeting) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	m.ID = uuid.New().String()
	m.ParticipantIDs = model.Dedupe(m.ParticipantIDs)

	err := s.q.QueryRow(ctx,
		`INSERT INTO meetings (id, title, description, start_time, end_time, organizer_id)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at, updated_at`,
		m.ID, m.Title, m.Description, m.StartTime, m.EndTime, m.OrganizerID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return "", err
	}
	if err := s.insertParticipants(ctx, m.ID, m.ParticipantIDs); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s pgQueries) insertParticipants(ctx context.Context, meetingID string, ids []string) error {
	for i, uid := range ids {
		_, err := s.q.Exec(ctx,
			`INSERT INTO meeting_participants (meeting_id, user_id, position) VALUES ($1,$2,$3)`,
			meetingID, uid, i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s pgQueries) Get(ctx context.Context, id string) (*model.Meeting, error) {
	ms, err := s.queryMeetings(ctx, `SELECT `+meetingCols+` FROM meetings m WHERE m.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, model.ErrNotFound
	}
	return &ms[0], nil
}

func (s pgQueries) Update(ctx context.Context, id string, p model.MeetingPatch) (*model.Meeting, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := p.Apply(*cur)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	err = s.q.QueryRow(ctx,
		`UPDATE meetings
		 SET title=$1, description=$2, start_time=$3, end_time=$4, updated_at=NOW()
		 WHERE id=$5
		 RETURNING updated_at`,
		next.Title, next.Description, next.StartTime, next.EndTime, id,
	).Scan(&next.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if p.ParticipantIDs != nil {
		if _, err := s.q.Exec(ctx, `DELETE FROM meeting_participants WHERE meeting_id=$1`, id); err != nil {
			return nil, err
		}
		if err := s.insertParticipants(ctx, id, next.ParticipantIDs); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

func (s pgQueries) Delete(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM meetings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s pgQueries) FindByParticipant(ctx context.Context, userID string) ([]model.Meeting, error) {
	return s.queryMeetings(ctx,
		`SELECT `+meetingCols+` FROM meetings m
		 WHERE m.organizer_id = $1
		    OR EXISTS (SELECT 1 FROM meeting_participants p WHERE p.meeting_id = m.id AND p.user_id = $1)
		 ORDER BY m.start_time, m.id`, userID)
}

func (s pgQueries) ListAll(ctx context.Context) ([]model.Meeting, error) {
	return s.queryMeetings(ctx, `SELECT `+meetingCols+` FROM meetings m ORDER BY m.start_time, m.id`)
}

func (s pgQueries) ListByOrganizer(ctx context.Context, userID string) ([]model.Meeting, error) {
	return s.queryMeetings(ctx,
		`SELECT `+meetingCols+` FROM meetings m WHERE m.organizer_id = $1 ORDER BY m.start_time, m.id`, userID)
}

// queryMeetings scans meeting rows and then loads their participants in one
// extra round trip.
func (s pgQueries) queryMeetings(ctx context.Context, sql string, args ...any) ([]model.Meeting, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Meeting{}
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Description, &m.StartTime, &m.EndTime,
			&m.OrganizerID, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.ParticipantIDs = []string{}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	return out, s.loadParticipants(ctx, out)
}

func (s pgQueries) loadParticipants(ctx context.Context, ms []model.Meeting) error {
	ids := make([]string, len(ms))
	idx := make(map[string]int, len(ms))
	for i := range ms {
		ids[i] = ms[i].ID
		idx[ms[i].ID] = i
	}

	rows, err := s.q.Query(ctx,
		`SELECT meeting_id, user_id FROM meeting_participants
		 WHERE meeting_id = ANY($1)
		 ORDER BY meeting_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var mid, uid string
		if err := rows.Scan(&mid, &uid); err != nil {
			return err
		}
		i := idx[mid]
		ms[i].ParticipantIDs = append(ms[i].ParticipantIDs, uid)
	}
	return rows.Err()
}
