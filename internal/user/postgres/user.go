package postgres

import (
	"context"
	"errors"

	userDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/user"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) first(ctx context.Context, query string, arg interface{}) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (*userDatamodel.User, error) {
	return r.first(ctx, "auth0_id = ?", auth0ID)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.first(ctx, "LOWER(email) = ?", user.NormalizeEmail(email))
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}
