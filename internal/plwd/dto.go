package plwd

import (
	"encoding/json"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/core/common/validation"
)

type CreatePLWDDTO struct {
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Address   json.RawMessage `json:"address,omitempty"`
	WatchID   string          `json:"watchId,omitempty"`
	Picture   string          `json:"picture,omitempty"`
}

func (d CreatePLWDDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("firstName", d.FirstName).Required().MaxLength(100)
	v.Field("lastName", d.LastName).MaxLength(100)
	v.Field("email", d.Email).Email()
	v.Field("address", d.Address).Custom(jsonObject("address"))
	return v.Validate()
}

// UpdatePLWDDTO only touches the fields that are present.
type UpdatePLWDDTO struct {
	FirstName *string         `json:"firstName,omitempty"`
	LastName  *string         `json:"lastName,omitempty"`
	Email     *string         `json:"email,omitempty"`
	Phone     *string         `json:"phone,omitempty"`
	Address   json.RawMessage `json:"address,omitempty"`
	WatchID   *string         `json:"watchId,omitempty"`
	Picture   *string         `json:"picture,omitempty"`
}

func (d UpdatePLWDDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	if d.FirstName != nil {
		v.Field("firstName", *d.FirstName).Required().MaxLength(100)
	}
	if d.LastName != nil {
		v.Field("lastName", *d.LastName).MaxLength(100)
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Email()
	}
	v.Field("address", d.Address).Custom(jsonObject("address"))
	return v.Validate()
}

func (d UpdatePLWDDTO) apply(p *PLWD) {
	if d.FirstName != nil {
		p.FirstName = *d.FirstName
	}
	if d.LastName != nil {
		p.LastName = *d.LastName
	}
	if d.Email != nil {
		p.Email = *d.Email
	}
	if d.Phone != nil {
		p.Phone = *d.Phone
	}
	if len(d.Address) > 0 {
		p.Address = d.Address
	}
	if d.WatchID != nil {
		p.WatchID = *d.WatchID
	}
	if d.Picture != nil {
		p.Picture = *d.Picture
	}
}

func jsonObject(field string) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		raw, ok := value.(json.RawMessage)
		if !ok || len(raw) == 0 {
			return nil
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return internal.NewValidationFieldError(field, field+" must be a JSON object", internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

type PLWDListResponse struct {
	PLWDs []*PLWD `json:"plwds"`
}
