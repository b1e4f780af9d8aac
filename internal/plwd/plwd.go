package plwd

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/imec-int/monument-plwd-sub001/internal/access"
	plwdDatamodel "github.com/imec-int/monument-plwd-sub001/internal/core/datamodel/plwd"
)

// PLWD is a person living with dementia. CaretakerID is the owning user.
type PLWD struct {
	ID          string          `json:"id"`
	CaretakerID string          `json:"caretakerId"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Address     json.RawMessage `json:"address,omitempty"`
	WatchID     string          `json:"watchId,omitempty"`
	Picture     string          `json:"picture,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p *PLWD) Ref() access.PLWDRef {
	return access.PLWDRef{ID: p.ID, CaretakerID: p.CaretakerID}
}

func (p *PLWD) IsOwnedBy(userID string) bool {
	return userID != "" && p.CaretakerID == userID
}

func (p *PLWD) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

var ErrNotFound = errors.New("plwd not found")

func ToDataModel(p *PLWD) *plwdDatamodel.PLWD {
	return &plwdDatamodel.PLWD{
		ID:          p.ID,
		CaretakerID: p.CaretakerID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		WatchID:     p.WatchID,
		Picture:     p.Picture,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromDataModel(p *plwdDatamodel.PLWD) *PLWD {
	return &PLWD{
		ID:          p.ID,
		CaretakerID: p.CaretakerID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		WatchID:     p.WatchID,
		Picture:     p.Picture,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
