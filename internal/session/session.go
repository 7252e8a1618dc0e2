// Package session describes the operator on whose behalf commands are sent.
// A Session is passed explicitly to whatever needs it; there is no global
// current-user state.
package session

import (
	"context"

	"github.com/kiwari-pos/terminal/internal/auth"
)

// Fallback attribution used when no session is available.
const (
	UnknownOperatorID   = "unknown"
	UnknownOperatorName = "Unknown"
)

// Session is the authenticated operator and the token used to reach the backend.
type Session struct {
	UserID      string
	DisplayName string
	Role        string
	Token       string
}

// FromClaims builds a Session from validated token claims.
func FromClaims(c *auth.Claims, token string) *Session {
	if c == nil {
		return nil
	}
	return &Session{
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		Role:        c.Role,
		Token:       token,
	}
}

// Operator returns the id and display name to attribute a command to.
// It never fails: a nil session or blank fields degrade to the unknown operator.
func (s *Session) Operator() (id, name string) {
	id, name = UnknownOperatorID, UnknownOperatorName
	if s == nil {
		return id, name
	}
	if s.UserID != "" {
		id = s.UserID
	}
	if s.DisplayName != "" {
		name = s.DisplayName
	}
	return id, name
}

// BearerToken returns the token to forward upstream, or "" for a nil session.
func (s *Session) BearerToken() string {
	if s == nil {
		return ""
	}
	return s.Token
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
