package store

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meeting-scheduler-api/internal/model"
)

//go:embed migrations/001_init.sql
var schema string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	pool *pgxpool.Pool
	pgQueries
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, pgQueries: pgQueries{q: pool}}
}

// Connect opens and pings a pool for dsn.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return NewPostgres(pool), nil
}

func (s *Postgres) Close() { s.pool.Close() }

// Migrate applies the embedded schema. It is idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Atomically serializes writers per user with transaction scoped advisory
// locks, so two requests cannot both pass the overlap check for the same
// participant and then both commit.
func (s *Postgres) Atomically(ctx context.Context, userIDs []string, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, id := range lockOrder(userIDs) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(id)); err != nil {
			return fmt.Errorf("lock %s: %w", id, err)
		}
	}

	if err := fn(pgQueries{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create and Update run their statements in one transaction so a failed
// participant insert leaves nothing behind.
func (s *Postgres) Create(ctx context.Context, m *model.Meeting) (string, error) {
	var id string
	err := s.Atomically(ctx, nil, func(tx Tx) error {
		var err error
		id, err = tx.Create(ctx, m)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Postgres) Update(ctx context.Context, id string, p model.MeetingPatch) (*model.Meeting, error) {
	var out *model.Meeting
	err := s.Atomically(ctx, nil, func(tx Tx) error {
		var err error
		out, err = tx.Update(ctx, id, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockKey(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte("meeting-user:" + id))
	return int64(h.Sum64())
}
