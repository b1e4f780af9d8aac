package user

import (
	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/core/common/validation"
)

// OnboardDTO is the body of POST /users/me.
type OnboardDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

func (d OnboardDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("firstName", d.FirstName).Required().MaxLength(100)
	v.Field("lastName", d.LastName).Required().MaxLength(100)
	v.Field("email", d.Email).Required().Email()
	v.Field("phone", d.Phone).MaxLength(32)
	return v.Validate()
}

type MeResponse struct {
	*User
	Memberships []Membership `json:"memberships"`
}
