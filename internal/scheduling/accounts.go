package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/model"
)

const minPasswordLen = 8

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// Register creates an account and returns it with a signed token. Role
// defaults to PARTICIPANT.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	var v model.ValidationError
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" {
		v.Add("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		v.Add("a valid email is required")
	}
	if len(in.Password) < minPasswordLen {
		v.Add("password must be at least %d characters", minPasswordLen)
	}
	role := in.Role
	if role == "" {
		role = model.RoleParticipant
	}
	if !role.Valid() {
		v.Add("role must be ORGANIZER or PARTICIPANT")
	}
	if err := v.OrNil(); err != nil {
		return nil, "", err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}

	tok, err := s.issuer.Issue(u)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, tok, nil
}

// Login never says whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", model.Invalid("email and password required")
	}
	u, err := s.store.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", model.ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", model.ErrBadCredentials
	}

	tok, err := s.issuer.Issue(u)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, tok, nil
}

func (s *Service) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	return s.store.UserByID(ctx, actor.ID)
}

// Authenticate turns a bearer token into the acting identity.
func (s *Service) Authenticate(raw string) (model.Actor, error) {
	c, err := s.issuer.Parse(raw)
	if err != nil {
		return model.Actor{}, err
	}
	return c.Actor(), nil
}
