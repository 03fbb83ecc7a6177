package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrPermission     = errors.New("permission denied")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid credentials")
)

// ValidationError collects every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

// OrNil returns v as an error only when it holds problems.
func (v *ValidationError) OrNil() error {
	if len(v.Problems) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	return strings.Join(v.Problems, "; ")
}

func Invalid(format string, args ...any) error {
	v := &ValidationError{}
	v.Add(format, args...)
	return v
}

// ConflictError rejects a write because attendees are already busy.
type ConflictError struct {
	Reports []ConflictReport
}

func (c *ConflictError) Error() string {
	ids := make([]string, len(c.Reports))
	for i, r := range c.Reports {
		ids[i] = r.ParticipantID
	}
	return "scheduling conflict for " + strings.Join(ids, ", ")
}
