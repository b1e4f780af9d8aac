package carecircle

import (
	"errors"
	"fmt"
	"time"

	"github.com/imec-int/monument-plwd-sub001/internal/access"
	ccDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/carecircle"
)

// Member is one carecircle membership with the member's contact details.
type Member struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	PLWDID      string      `json:"plwdId"`
	Affiliation string      `json:"affiliation"`
	Permissions []string    `json:"permissions"`
	User        *MemberUser `json:"user,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type MemberUser struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

var ErrNotFound = errors.New("carecircle membership not found")

// storedGrants decodes a row's permissions. Rows that still hold the legacy
// positional form are converted on read, the same way the grant migration
// rewrites them.
func storedGrants(m *ccDatamodel.Membership) ([]string, error) {
	tokens, _, err := access.ReadStoredGrants(m.Permissions)
	if err != nil {
		return nil, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	return tokens, nil
}

func FromDataModel(m *ccDatamodel.Membership) (*Member, error) {
	grants, err := storedGrants(m)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []string{}
	}
	return &Member{
		ID:          m.ID,
		UserID:      m.UserID,
		PLWDID:      m.PLWDID,
		Affiliation: m.Affiliation,
		Permissions: grants,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func FromMemberRow(row *ccDatamodel.MemberRow) (*Member, error) {
	m, err := FromDataModel(&row.Membership)
	if err != nil {
		return nil, err
	}
	m.User = &MemberUser{
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Phone:     row.Phone,
		Picture:   row.Picture,
	}
	return m, nil
}

func ToDataModel(m *Member) (*ccDatamodel.Membership, error) {
	raw, err := access.EncodeGrants(m.Permissions)
	if err != nil {
		return nil, err
	}
	return &ccDatamodel.Membership{
		ID:          m.ID,
		UserID:      m.UserID,
		PLWDID:      m.PLWDID,
		Affiliation: m.Affiliation,
		Permissions: raw,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
