package store

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"meeting-scheduler-api/internal/model"
)

const userCols = `id, name, email, password_hash, role, created_at, updated_at`

func (s pgQueries) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO users (id, name, email, password_hash, role) VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return model.ErrEmailTaken
	}
	return err
}

func (s pgQueries) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.oneUser(ctx, `SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (s pgQueries) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.oneUser(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (s pgQueries) UsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	us, err := s.queryUsers(ctx, `SELECT `+userCols+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.User, len(us))
	for _, u := range us {
		out[u.ID] = u
	}
	return out, nil
}

func (s pgQueries) ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return s.queryUsers(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY name, id`, string(role))
}

func (s pgQueries) oneUser(ctx context.Context, sql string, arg any) (*model.User, error) {
	u := &model.User{}
	var role string
	err := s.q.QueryRow(ctx, sql, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func (s pgQueries) queryUsers(ctx context.Context, sql string, args ...any) ([]model.User, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = model.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func sortUsers(us []model.User) {
	sort.Slice(us, func(i, j int) bool {
		if us[i].Name != us[j].Name {
			return us[i].Name < us[j].Name
		}
		return us[i].ID < us[j].ID
	})
}
