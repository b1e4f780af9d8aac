package user

import (
	"errors"
	"strings"
	"time"

	"github.com/imec-int/monument-plwd-sub001/internal/access"
	userDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/user"
)

type User struct {
	ID        string      `json:"id"`
	Auth0ID   string      `json:"auth0Id,omitempty"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Phone     string      `json:"phone,omitempty"`
	Picture   string      `json:"picture,omitempty"`
	Role      access.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == access.RoleAdmin
}

func (u *User) IsPrimaryCaretaker() bool {
	return u.Role == access.RolePrimaryCaretaker
}

// IsPlaceholder reports whether the user was invited but never logged in.
func (u *User) IsPlaceholder() bool {
	return u.Auth0ID == ""
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Membership is a user's view of one carecircle they belong to.
type Membership struct {
	ID          string   `json:"id"`
	PLWDID      string   `json:"plwdId"`
	Affiliation string   `json:"affiliation"`
	Permissions []string `json:"permissions"`
}

var ErrNotFound = errors.New("user not found")

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ToDataModel(u *User) *userDatamodel.User {
	var auth0ID *string
	if u.Auth0ID != "" {
		id := u.Auth0ID
		auth0ID = &id
	}
	return &userDatamodel.User{
		ID:        u.ID,
		Auth0ID:   auth0ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Picture:   u.Picture,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	out := &User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Picture:   u.Picture,
		Role:      access.Role(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Auth0ID != nil {
		out.Auth0ID = *u.Auth0ID
	}
	return out
}
