package session

import (
	"context"
	"strings"
	"time"
)

// Session is the server-side login state. Handlers read it from the request
// context; the cookie only carries ID.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DisplayName prefers the email local part, then the name claim.
func (s Session) DisplayName() string {
	if local, _, ok := strings.Cut(strings.TrimSpace(s.Email), "@"); ok && local != "" {
		return local
	}
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "User"
}

// Anonymous is the session used when login is disabled.
func Anonymous() Session {
	return Session{ID: "anonymous", Name: "Local user", Anonymous: true}
}

type ctxSessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxSessionKey{}).(Session)
	return s, ok
}
