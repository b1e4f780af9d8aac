package carecircle

import (
	"errors"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/imec-int/monument-plwd-sub001/internal/core/common/validation"
)

// InviteMemberDTO is the body of POST /plwd/{plwdId}/carecircle-members.
type InviteMemberDTO struct {
	Email       string   `json:"email"`
	Affiliation string   `json:"affiliation"`
	Permissions []string `json:"permissions"`
}

func (d InviteMemberDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("affiliation", d.Affiliation).Required().MaxLength(50)
	return v.Validate()
}

// UpdateMemberDTO changes the fields that are present. A nil Permissions
// keeps the stored grants.
type UpdateMemberDTO struct {
	Affiliation *string  `json:"affiliation,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (d UpdateMemberDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.Affiliation != nil {
		v.Field("affiliation", *d.Affiliation).Required().MaxLength(50)
	}
	return v.Validate()
}

type MembersResponse struct {
	Members []*Member `json:"members"`
}

// normalizeGrants turns a grant error into a field validation error.
func normalizeGrants(tokens []string) ([]string, error) {
	out, err := access.Normalize(tokens)
	if err != nil {
		var grantErr *access.GrantError
		if errors.As(err, &grantErr) {
			return nil, internal.NewValidationFieldError("permissions", grantErr.Error(), internal.ErrCodeInvalidGrant)
		}
		return nil, err
	}
	return out, nil
}
