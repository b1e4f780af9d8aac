package carecircle

import (
	"encoding/json"
	"time"
)

// Membership is a row of the carecircles table. Permissions holds the grant
// list as JSON, either legacy positional objects or namespaced strings.
type Membership struct {
	ID          string          `gorm:"column:id;primaryKey"`
	UserID      string          `gorm:"column:user_id;not null;uniqueIndex:idx_carecircles_user_plwd"`
	PLWDID      string          `gorm:"column:plwd_id;not null;uniqueIndex:idx_carecircles_user_plwd"`
	Affiliation string          `gorm:"column:affiliation"`
	Permissions json.RawMessage `gorm:"column:permissions;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (Membership) TableName() string {
	return "carecircles"
}

// MemberRow is a membership joined with its user, as listed for a PLWD.
type MemberRow struct {
	Membership
	Email     string `gorm:"column:email"`
	FirstName string `gorm:"column:first_name"`
	LastName  string `gorm:"column:last_name"`
	Phone     string `gorm:"column:phone"`
	Picture   string `gorm:"column:picture"`
}
