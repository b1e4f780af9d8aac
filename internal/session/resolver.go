package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

type UserFinder interface {
	GetByAuth0ID(ctx context.Context, subject string) (*user.User, error)
}

type PLWDFinder interface {
	GetByID(ctx context.Context, id string) (*plwd.PLWD, error)
}

// MembershipFinder returns the stored grants of a user for a PLWD and
// whether a membership exists at all.
type MembershipFinder interface {
	GrantsFor(ctx context.Context, userID, plwdID string) ([]string, bool, error)
}

type Resolver struct {
	users       UserFinder
	plwds       PLWDFinder
	memberships MembershipFinder
	logger      *slog.Logger
}

func NewResolver(users UserFinder, plwds PLWDFinder, memberships MembershipFinder, logger *slog.Logger) *Resolver {
	return &Resolver{
		users:       users,
		plwds:       plwds,
		memberships: memberships,
		logger:      logger,
	}
}

// Resolve builds the session for an authenticated subject and a PLWD.
func (r *Resolver) Resolve(ctx context.Context, subject, plwdID string) (*Session, error) {
	u, err := r.users.GetByAuth0ID(ctx, subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, fmt.Errorf("resolve session user: %w", err)
	}
	return r.ResolveForUser(ctx, u, plwdID)
}

// ResolveForUser is Resolve for a user that is already loaded.
func (r *Resolver) ResolveForUser(ctx context.Context, u *user.User, plwdID string) (*Session, error) {
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	if plwdID == "" {
		return nil, internal.ErrPLWDNotFound
	}

	p, err := r.plwds.GetByID(ctx, plwdID)
	if err != nil {
		if errors.Is(err, plwd.ErrNotFound) {
			return nil, internal.ErrPLWDNotFound
		}
		return nil, fmt.Errorf("resolve session plwd: %w", err)
	}

	grants, member, err := r.memberships.GrantsFor(ctx, u.ID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve session membership: %w", err)
	}

	if !member && !u.IsAdmin() && !p.IsOwnedBy(u.ID) {
		r.logger.WarnContext(ctx, "access denied: not in carecircle", "user_id", u.ID, "plwd_id", p.ID)
		return nil, internal.ErrNotInCarecircle
	}

	s := &Session{
		User:   u,
		PLWD:   p,
		Member: member,
		Grants: grants,
	}
	s.Decision = access.Decide(s.Subject())
	s.Capabilities = s.Decision.Capabilities

	if unknown := s.Decision.Grants.Unknown; len(unknown) > 0 {
		r.logger.WarnContext(ctx, "membership holds unrecognized grants",
			"user_id", u.ID,
			"plwd_id", p.ID,
			"unknown", unknown)
	}

	return s, nil
}
