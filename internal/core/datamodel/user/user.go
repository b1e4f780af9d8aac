package user

import "time"

// User is a row of the users table. Auth0ID is nil for placeholder users
// created by a carecircle invite and filled in at onboarding.
type User struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Auth0ID   *string   `gorm:"column:auth0_id;uniqueIndex"`
	Email     string    `gorm:"column:email;uniqueIndex;not null"`
	FirstName string    `gorm:"column:first_name"`
	LastName  string    `gorm:"column:last_name"`
	Phone     string    `gorm:"column:phone"`
	Picture   string    `gorm:"column:picture"`
	Role      string    `gorm:"column:role;not null;default:user"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
