package postgres

import (
	"context"
	"errors"

	plwdDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/plwd"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	"gorm.io/gorm"
)

type PLWDRepository struct {
	db *gorm.DB
}

func NewPLWDRepository(db *gorm.DB) plwd.Repository {
	return &PLWDRepository{db: db}
}

func (r *PLWDRepository) GetByID(ctx context.Context, id string) (*plwdDatamodel.PLWD, error) {
	var p plwdDatamodel.PLWD
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, plwd.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PLWDRepository) ListAll(ctx context.Context) ([]*plwdDatamodel.PLWD, error) {
	var rows []*plwdDatamodel.PLWD
	err := r.db.WithContext(ctx).Order("first_name ASC, last_name ASC").Find(&rows).Error
	return rows, err
}

func (r *PLWDRepository) ListVisible(ctx context.Context, caretakerID string, ids []string) ([]*plwdDatamodel.PLWD, error) {
	var rows []*plwdDatamodel.PLWD
	q := r.db.WithContext(ctx).Where("caretaker_id = ?", caretakerID)
	if len(ids) > 0 {
		q = q.Or("id IN ?", ids)
	}
	err := q.Order("first_name ASC, last_name ASC").Find(&rows).Error
	return rows, err
}

func (r *PLWDRepository) Create(ctx context.Context, p *plwdDatamodel.PLWD) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PLWDRepository) Update(ctx context.Context, p *plwdDatamodel.PLWD) error {
	return r.db.WithContext(ctx).Save(p).Error
}
