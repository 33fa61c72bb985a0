// Package session answers one question for the admin surface: is the
// current session authenticated. How a session is established is outside
// this module.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidToken is returned when a presented token fails verification.
var ErrInvalidToken = errors.New("session: invalid token")

// Session describes the current admin session.
type Session struct {
	Authenticated bool
	Subject       string
	ExpiresAt     time.Time
}

// Gate reports the current session.
type Gate interface {
	Session(ctx context.Context) (Session, error)
}

// Static is a Gate with a fixed answer.
type Static struct {
	Authenticated bool
	Subject       string
}

func (s Static) Session(context.Context) (Session, error) {
	if !s.Authenticated {
		return Session{}, nil
	}
	return Session{Authenticated: true, Subject: s.Subject}, nil
}

// Authenticated reports whether g considers the session authenticated. Any
// error counts as unauthenticated.
func Authenticated(ctx context.Context, g Gate) bool {
	if g == nil {
		return false
	}
	s, err := g.Session(ctx)
	return err == nil && s.Authenticated
}
