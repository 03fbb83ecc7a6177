package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meeting-scheduler-api/internal/conflict"
	"meeting-scheduler-api/internal/model"
)

// Memory keeps everything in process. Reads take a shared lock and return
// copies, so callers always see a consistent snapshot.
type Memory struct {
	mu       sync.RWMutex
	meetings map[string]model.Meeting
	users    map[string]model.User
	locks    *userLocks
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		meetings: make(map[string]model.Meeting),
		users:    make(map[string]model.User),
		locks:    newUserLocks(),
		now:      time.Now,
	}
}

func (s *Memory) Close() {}

func (s *Memory) Get(_ context.Context, id string) (*model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := m.Clone()
	return &c, nil
}

func (s *Memory) FindByParticipant(_ context.Context, userID string) ([]model.Meeting, error) {
	return s.filter(func(m *model.Meeting) bool { return m.Involves(userID) }), nil
}

func (s *Memory) ListAll(_ context.Context) ([]model.Meeting, error) {
	return s.filter(func(*model.Meeting) bool { return true }), nil
}

func (s *Memory) ListByOrganizer(_ context.Context, userID string) ([]model.Meeting, error) {
	return s.filter(func(m *model.Meeting) bool { return m.OrganizerID == userID }), nil
}

func (s *Memory) filter(keep func(*model.Meeting) bool) []model.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Meeting{}
	for _, m := range s.meetings {
		if keep(&m) {
			out = append(out, m.Clone())
		}
	}
	conflict.SortByStart(out)
	return out
}

func (s *Memory) Create(ctx context.Context, m *model.Meeting) (string, error) {
	tx := s.begin()
	id, err := tx.Create(ctx, m)
	if err != nil {
		return "", err
	}
	s.commit(tx)
	return id, nil
}

func (s *Memory) Update(ctx context.Context, id string, p model.MeetingPatch) (*model.Meeting, error) {
	tx := s.begin()
	m, err := tx.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.commit(tx)
	return m, nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}

func (s *Memory) Atomically(ctx context.Context, userIDs []string, fn func(tx Tx) error) error {
	unlock, err := s.locks.lock(ctx, userIDs)
	if err != nil {
		return err
	}
	defer unlock()

	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	// a request that timed out must not leave anything behind
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

// ----- transactions -----

// memTx buffers writes; a nil entry marks a deletion.
type memTx struct {
	s       *Memory
	pending map[string]*model.Meeting
}

func (s *Memory) begin() *memTx {
	return &memTx{s: s, pending: make(map[string]*model.Meeting)}
}

func (s *Memory) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range tx.pending {
		if m == nil {
			delete(s.meetings, id)
			continue
		}
		s.meetings[id] = m.Clone()
	}
}

func (tx *memTx) Get(ctx context.Context, id string) (*model.Meeting, error) {
	if m, ok := tx.pending[id]; ok {
		if m == nil {
			return nil, model.ErrNotFound
		}
		c := m.Clone()
		return &c, nil
	}
	return tx.s.Get(ctx, id)
}

func (tx *memTx) FindByParticipant(ctx context.Context, userID string) ([]model.Meeting, error) {
	base, err := tx.s.FindByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := base[:0]
	for _, m := range base {
		if _, touched := tx.pending[m.ID]; !touched {
			out = append(out, m)
		}
	}
	for _, m := range tx.pending {
		if m != nil && m.Involves(userID) {
			out = append(out, m.Clone())
		}
	}
	conflict.SortByStart(out)
	return out, nil
}

func (tx *memTx) Create(_ context.Context, m *model.Meeting) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	c := m.Clone()
	c.ID = uuid.New().String()
	c.ParticipantIDs = model.Dedupe(c.ParticipantIDs)
	c.CreatedAt = tx.s.now().UTC()
	c.UpdatedAt = c.CreatedAt
	tx.pending[c.ID] = &c

	*m = c.Clone()
	return c.ID, nil
}

func (tx *memTx) Update(ctx context.Context, id string, p model.MeetingPatch) (*model.Meeting, error) {
	cur, err := tx.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := p.Apply(*cur)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.UpdatedAt = tx.s.now().UTC()
	tx.pending[id] = &next

	out := next.Clone()
	return &out, nil
}

func (tx *memTx) Delete(ctx context.Context, id string) error {
	if _, err := tx.Get(ctx, id); err != nil {
		return err
	}
	tx.pending[id] = nil
	return nil
}

// ----- users -----

func (s *Memory) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return model.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if _, dup := s.users[u.ID]; dup {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrEmailTaken)
	}
	u.CreatedAt = s.now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *Memory) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			c := u
			return &c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Memory) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (s *Memory) UsersByIDs(_ context.Context, ids []string) (map[string]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Memory) ListUsersByRole(_ context.Context, role model.Role) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.User{}
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sortUsers(out)
	return out, nil
}
