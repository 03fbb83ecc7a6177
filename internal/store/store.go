// Package store holds meetings and users. Memory and Postgres implement the
// same contract; writers that must not race go through Atomically.
package store

import (
	"context"

	"meeting-scheduler-api/internal/model"
)

// Reader is the read side shared by the store and its transactions.
type Reader interface {
	Get(ctx context.Context, id string) (*model.Meeting, error)
	FindByParticipant(ctx context.Context, userID string) ([]model.Meeting, error)
}

// Tx is a unit of work opened by Atomically. Writes become visible only
// when the surrounding Atomically call returns nil.
type Tx interface {
	Reader
	Create(ctx context.Context, m *model.Meeting) (string, error)
	Update(ctx context.Context, id string, p model.MeetingPatch) (*model.Meeting, error)
	Delete(ctx context.Context, id string) error
}

type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	UsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

type Store interface {
	Tx
	Users
	ListAll(ctx context.Context) ([]model.Meeting, error)
	ListByOrganizer(ctx context.Context, userID string) ([]model.Meeting, error)
	// Atomically runs fn while holding the write lock of every user in
	// userIDs. Locks are taken in sorted order; waiting honours ctx.
	Atomically(ctx context.Context, userIDs []string, fn func(tx Tx) error) error
	Close()
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
	_ Tx    = pgQueries{}
)
