package plwd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	plwdDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/plwd"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*plwdDatamodel.PLWD, error)
	ListAll(ctx context.Context) ([]*plwdDatamodel.PLWD, error)
	ListVisible(ctx context.Context, caretakerID string, ids []string) ([]*plwdDatamodel.PLWD, error)
	Create(ctx context.Context, p *plwdDatamodel.PLWD) error
	Update(ctx context.Context, p *plwdDatamodel.PLWD) error
}

// MembershipIndex lists the PLWDs whose carecircle a user belongs to.
type MembershipIndex interface {
	PLWDIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Actor is the caller of a mutating operation.
type Actor struct {
	UserID string
	Role   access.Role
}

type Service struct {
	repo        Repository
	memberships MembershipIndex
	logger      *slog.Logger
}

func NewService(repo Repository, memberships MembershipIndex, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		memberships: memberships,
		logger:      logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*PLWD, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plwd: %w", err)
	}
	return FromDataModel(p), nil
}

// ListForUser returns every PLWD for admins, otherwise the ones the user
// owns or belongs to the carecircle of.
func (s *Service) ListForUser(ctx context.Context, actor Actor) ([]*PLWD, error) {
	var (
		rows []*plwdDatamodel.PLWD
		err  error
	)
	if actor.Role == access.RoleAdmin {
		rows, err = s.repo.ListAll(ctx)
	} else {
		var ids []string
		if s.memberships != nil {
			ids, err = s.memberships.PLWDIDsForUser(ctx, actor.UserID)
			if err != nil {
				return nil, fmt.Errorf("failed to list memberships: %w", err)
			}
		}
		rows, err = s.repo.ListVisible(ctx, actor.UserID, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list plwds: %w", err)
	}

	out := make([]*PLWD, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// Create registers a PLWD owned by the actor.
func (s *Service) Create(ctx context.Context, actor Actor, dto CreatePLWDDTO) (*PLWD, error) {
	if actor.Role != access.RoleAdmin && actor.Role != access.RolePrimaryCaretaker {
		return nil, internal.ErrInsufficientPermissions
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	now := time.Now().UTC()
	p := &PLWD{
		ID:          uuid.NewString(),
		CaretakerID: actor.UserID,
		FirstName:   dto.FirstName,
		LastName:    dto.LastName,
		Email:       dto.Email,
		Phone:       dto.Phone,
		Address:     dto.Address,
		WatchID:     dto.WatchID,
		Picture:     dto.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, ToDataModel(p)); err != nil {
		return nil, fmt.Errorf("failed to create plwd: %w", err)
	}
	s.logger.Info("plwd created", "plwd_id", p.ID, "caretaker_id", p.CaretakerID)
	return p, nil
}

// Update changes the profile. Only the caretaker and admins may do so.
func (s *Service) Update(ctx context.Context, actor Actor, id string, dto UpdatePLWDDTO) (*PLWD, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrPLWDNotFound
		}
		return nil, err
	}
	if actor.Role != access.RoleAdmin && !p.IsOwnedBy(actor.UserID) {
		return nil, internal.ErrInsufficientPermissions
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	dto.apply(p)
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, ToDataModel(p)); err != nil {
		return nil, fmt.Errorf("failed to update plwd: %w", err)
	}
	return p, nil
}
