package postgres

import (
	"context"
	"errors"

	"github.com/imec-int/monument-plwd-sub001/internal/carecircle"
	ccDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/carecircle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CarecircleRepository struct {
	db *gorm.DB
}

func NewCarecircleRepository(db *gorm.DB) carecircle.RepositoryAPI {
	return &CarecircleRepository{db: db}
}

func (r *CarecircleRepository) ListByPLWD(ctx context.Context, plwdID string) ([]*ccDatamodel.MemberRow, error) {
	var rows []*ccDatamodel.MemberRow
	err := r.db.WithContext(ctx).
		Table("carecircles").
		Select("carecircles.*, users.email, users.first_name, users.last_name, users.phone, users.picture").
		Joins("JOIN users ON users.id = carecircles.user_id").
		Where("carecircles.plwd_id = ?", plwdID).
		Order("users.first_name ASC, users.last_name ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *CarecircleRepository) ListByUser(ctx context.Context, userID string) ([]*ccDatamodel.Membership, error) {
	var rows []*ccDatamodel.Membership
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *CarecircleRepository) GetByID(ctx context.Context, id string) (*ccDatamodel.Membership, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *CarecircleRepository) GetByUserAndPLWD(ctx context.Context, userID, plwdID string) (*ccDatamodel.Membership, error) {
	return r.first(ctx, "user_id = ? AND plwd_id = ?", userID, plwdID)
}

func (r *CarecircleRepository) first(ctx context.Context, query string, args ...interface{}) (*ccDatamodel.Membership, error) {
	var m ccDatamodel.Membership
	err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, carecircle.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Upsert inserts the membership or, when the user is already in the
// carecircle, overwrites its affiliation and permissions.
func (r *CarecircleRepository) Upsert(ctx context.Context, m *ccDatamodel.Membership) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "plwd_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"affiliation", "permissions", "updated_at"}),
	}).Create(m).Error
}

func (r *CarecircleRepository) Update(ctx context.Context, m *ccDatamodel.Membership) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *CarecircleRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ccDatamodel.Membership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return carecircle.ErrNotFound
	}
	return nil
}
