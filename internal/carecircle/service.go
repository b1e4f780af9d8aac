package carecircle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/imec-int/monument-plwd-sub001/internal"
	ccDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/carecircle"
	"github.com/imec-int/monument-plwd-sub001/internal/core/events"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
)

type RepositoryAPI interface {
	ListByPLWD(ctx context.Context, plwdID string) ([]*ccDatamodel.MemberRow, error)
	ListByUser(ctx context.Context, userID string) ([]*ccDatamodel.Membership, error)
	GetByID(ctx context.Context, id string) (*ccDatamodel.Membership, error)
	GetByUserAndPLWD(ctx context.Context, userID, plwdID string) (*ccDatamodel.Membership, error)
	Upsert(ctx context.Context, m *ccDatamodel.Membership) error
	Update(ctx context.Context, m *ccDatamodel.Membership) error
	Delete(ctx context.Context, id string) error
}

// UserDirectory resolves invite emails to users.
type UserDirectory interface {
	EnsureByEmail(ctx context.Context, email string) (*user.User, bool, error)
}

type Service struct {
	repo      RepositoryAPI
	users     UserDirectory
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, users UserDirectory, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) ListMembers(ctx context.Context, plwdID string) ([]*Member, error) {
	rows, err := s.repo.ListByPLWD(ctx, plwdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list carecircle: %w", err)
	}

	members := make([]*Member, 0, len(rows))
	for _, row := range rows {
		m, err := FromMemberRow(row)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// Invite adds a user to the session PLWD's carecircle, or updates the
// existing membership of that user.
func (s *Service) Invite(ctx context.Context, sess *session.Session, dto InviteMemberDTO) (*Member, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	grants, err := normalizeGrants(dto.Permissions)
	if err != nil {
		return nil, err
	}

	invitee, created, err := s.users.EnsureByEmail(ctx, dto.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invitee: %w", err)
	}
	if sess.PLWD.IsOwnedBy(invitee.ID) {
		return nil, internal.ErrCaretakerNotMember
	}

	now := time.Now().UTC()
	member := &Member{
		ID:          uuid.NewString(),
		UserID:      invitee.ID,
		PLWDID:      sess.PLWD.ID,
		Affiliation: dto.Affiliation,
		Permissions: grants,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	existing, err := s.repo.GetByUserAndPLWD(ctx, invitee.ID, sess.PLWD.ID)
	switch {
	case err == nil:
		member.ID = existing.ID
		member.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}

	row, err := ToDataModel(member)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save membership: %w", err)
	}

	member.User = &MemberUser{
		Email:     invitee.Email,
		FirstName: invitee.FirstName,
		LastName:  invitee.LastName,
		Phone:     invitee.Phone,
		Picture:   invitee.Picture,
	}

	change := s.change(sess, member)
	change.NewUser = created
	if existing == nil {
		s.publish(ctx, events.NewMemberInvitedEvent(change))
		s.logger.InfoContext(ctx, "carecircle member invited", "membership_id", member.ID, "plwd_id", member.PLWDID, "new_user", created)
	} else {
		s.publish(ctx, events.NewMemberUpdatedEvent(change))
		s.logger.InfoContext(ctx, "carecircle member re-invited", "membership_id", member.ID, "plwd_id", member.PLWDID)
	}
	return member, nil
}

func (s *Service) UpdateMember(ctx context.Context, sess *session.Session, memberID string, dto UpdateMemberDTO) (*Member, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	row, err := s.memberOf(ctx, sess, memberID)
	if err != nil {
		return nil, err
	}
	member, err := FromDataModel(row)
	if err != nil {
		return nil, err
	}

	if dto.Affiliation != nil {
		member.Affiliation = *dto.Affiliation
	}
	if dto.Permissions != nil {
		grants, err := normalizeGrants(dto.Permissions)
		if err != nil {
			return nil, err
		}
		member.Permissions = grants
	}
	member.UpdatedAt = time.Now().UTC()

	updated, err := ToDataModel(member)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}

	s.publish(ctx, events.NewMemberUpdatedEvent(s.change(sess, member)))
	return member, nil
}

func (s *Service) RemoveMember(ctx context.Context, sess *session.Session, memberID string) error {
	row, err := s.memberOf(ctx, sess, memberID)
	if err != nil {
		return err
	}
	member, err := FromDataModel(row)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, row.ID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	s.publish(ctx, events.NewMemberRemovedEvent(s.change(sess, member)))
	s.logger.InfoContext(ctx, "carecircle member removed", "membership_id", row.ID, "plwd_id", row.PLWDID)
	return nil
}

// GrantsFor implements session.MembershipFinder.
func (s *Service) GrantsFor(ctx context.Context, userID, plwdID string) ([]string, bool, error) {
	row, err := s.repo.GetByUserAndPLWD(ctx, userID, plwdID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	grants, err := storedGrants(row)
	if err != nil {
		return nil, false, err
	}
	return grants, true, nil
}

// MembershipsForUser implements user.MembershipLister.
func (s *Service) MembershipsForUser(ctx context.Context, userID string) ([]user.Membership, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]user.Membership, 0, len(rows))
	for _, row := range rows {
		grants, err := storedGrants(row)
		if err != nil {
			return nil, err
		}
		out = append(out, user.Membership{
			ID:          row.ID,
			PLWDID:      row.PLWDID,
			Affiliation: row.Affiliation,
			Permissions: grants,
		})
	}
	return out, nil
}

// PLWDIDsForUser implements plwd.MembershipIndex.
func (s *Service) PLWDIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PLWDID)
	}
	return ids, nil
}

// memberOf loads a membership and checks it belongs to the session PLWD.
func (s *Service) memberOf(ctx context.Context, sess *session.Session, memberID string) (*ccDatamodel.Membership, error) {
	row, err := s.repo.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if row.PLWDID != sess.PLWD.ID {
		return nil, internal.ErrMemberNotFound
	}
	return row, nil
}

func (s *Service) change(sess *session.Session, m *Member) events.MemberChange {
	return events.MemberChange{
		MembershipID: m.ID,
		PLWDID:       m.PLWDID,
		PLWDName:     sess.PLWD.FullName(),
		UserID:       m.UserID,
		ActorID:      sess.User.ID,
		Affiliation:  m.Affiliation,
		Permissions:  m.Permissions,
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "event_type", e.EventType(), "error", err)
	}
}
