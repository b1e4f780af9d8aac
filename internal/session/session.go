package session

import (
	"context"

	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

// Session is resolved once per request for the selected PLWD and passed
// down through the request context.
type Session struct {
	User         *user.User
	PLWD         *plwd.PLWD
	Member       bool
	Grants       []string
	Decision     access.Decision
	Capabilities access.Capabilities
}

func (s *Session) Subject() access.Subject {
	return access.Subject{
		UserID: s.User.ID,
		Role:   s.User.Role,
		PLWD:   s.PLWD.Ref(),
		Grants: s.Grants,
	}
}

func (s *Session) Can(c access.Capability) bool {
	return s.Capabilities.Allows(c)
}

// IsOwner reports whether the session user is the PLWD's primary caretaker.
func (s *Session) IsOwner() bool {
	return s.PLWD.IsOwnedBy(s.User.ID)
}

type ctxKey string

const contextSessionKey ctxKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextSessionKey).(*Session)
	return s, ok && s != nil
}
