package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	userDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/user"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByAuth0ID(ctx context.Context, auth0ID string) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	Update(ctx context.Context, u *userDatamodel.User) error
}

// MembershipLister returns the carecircles a user belongs to.
type MembershipLister interface {
	MembershipsForUser(ctx context.Context, userID string) ([]Membership, error)
}

type Service struct {
	repo        Repository
	memberships MembershipLister
	logger      *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// SetMembershipLister wires the carecircle side after both services exist.
func (s *Service) SetMembershipLister(l MembershipLister) {
	s.memberships = l
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return FromDataModel(u), nil
}

// GetByAuth0ID finds the onboarded user for a token subject.
func (s *Service) GetByAuth0ID(ctx context.Context, subject string) (*User, error) {
	u, err := s.repo.GetByAuth0ID(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by auth0 id: %w", err)
	}
	return FromDataModel(u), nil
}

func (s *Service) GetProfile(ctx context.Context, u *User) (*MeResponse, error) {
	resp := &MeResponse{User: u, Memberships: []Membership{}}
	if s.memberships == nil {
		return resp, nil
	}
	memberships, err := s.memberships.MembershipsForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	if memberships != nil {
		resp.Memberships = memberships
	}
	return resp, nil
}

// Identity is the caller as asserted by a validated token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// verifiedFor reports whether the token proves ownership of email.
func (id Identity) verifiedFor(email string) bool {
	return id.EmailVerified && id.Email != "" && NormalizeEmail(id.Email) == email
}

var (
	errEmailTaken      = internal.NewConflictError("Email is already registered", internal.ErrCodeInvalidEmail)
	errInviteUnclaimed = internal.NewConflictError("Email has a pending invitation; sign in with that verified address to accept it", internal.ErrCodeInvalidEmail)
)

// Onboard creates or updates the profile of the caller. A placeholder user
// created by an invite is claimed only when the token carries the same
// email and marks it verified.
func (s *Service) Onboard(ctx context.Context, id Identity, dto OnboardDTO) (*User, error) {
	if id.Subject == "" {
		return nil, internal.ErrInvalidToken
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	email := NormalizeEmail(dto.Email)

	existing, err := s.repo.GetByAuth0ID(ctx, id.Subject)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	holder, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}

	switch {
	case existing != nil:
		if holder != nil && holder.ID != existing.ID {
			return nil, errEmailTaken
		}
		return s.updateProfile(ctx, FromDataModel(existing), id.Subject, email, dto)
	case holder == nil:
		return s.createUser(ctx, id.Subject, email, dto)
	}

	claim := FromDataModel(holder)
	if !claim.IsPlaceholder() {
		return nil, errEmailTaken
	}
	if !id.verifiedFor(email) {
		s.logger.Warn("refused to claim placeholder without verified email", "user_id", claim.ID, "subject", id.Subject)
		return nil, errInviteUnclaimed
	}
	u, err := s.updateProfile(ctx, claim, id.Subject, email, dto)
	if err != nil {
		return nil, err
	}
	s.logger.Info("placeholder user claimed", "user_id", u.ID)
	return u, nil
}

func (s *Service) createUser(ctx context.Context, subject, email string, dto OnboardDTO) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:        uuid.NewString(),
		Auth0ID:   subject,
		Email:     email,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Phone:     dto.Phone,
		Picture:   dto.Picture,
		Role:      access.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, ToDataModel(u)); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("user onboarded", "user_id", u.ID)
	return u, nil
}

func (s *Service) updateProfile(ctx context.Context, u *User, subject, email string, dto OnboardDTO) (*User, error) {
	u.Auth0ID = subject
	u.Email = email
	u.FirstName = dto.FirstName
	u.LastName = dto.LastName
	u.Phone = dto.Phone
	if dto.Picture != "" {
		u.Picture = dto.Picture
	}
	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, ToDataModel(u)); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// EnsureByEmail returns the user with this email, creating a placeholder
// when nobody has registered it yet.
func (s *Service) EnsureByEmail(ctx context.Context, email string) (*User, bool, error) {
	email = NormalizeEmail(email)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return FromDataModel(existing), false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up user by email: %w", err)
	}

	now := time.Now().UTC()
	u := &User{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      access.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, ToDataModel(u)); err != nil {
		return nil, false, fmt.Errorf("failed to create placeholder user: %w", err)
	}
	s.logger.Info("placeholder user created", "user_id", u.ID)
	return u, true, nil
}
