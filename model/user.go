package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	FirstName    string    `gorm:"column:first_name;type:varchar(128);not null" json:"first_name"`
	LastName     string    `gorm:"column:last_name;type:varchar(128);not null" json:"last_name"`
	Email        string    `gorm:"column:email;type:varchar(256);uniqueIndex;not null" json:"email"`
	Mobile       *string   `gorm:"column:mobile;type:varchar(32)" json:"mobile"`
	Nationality  string    `gorm:"column:nationality;type:varchar(64)" json:"nationality"`
	Role         string    `gorm:"column:role;type:varchar(16);not null;default:user" json:"role"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(128);not null" json:"-"`
	Purchased    bool      `gorm:"column:purchased;not null;default:false" json:"purchased"`
	ReferredBy   *string   `gorm:"column:referred_by;type:varchar(64)" json:"referred_by,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// SignupDate is the registration timestamp used by the signup-limited
// bonus window.
func (u *User) SignupDate() time.Time {
	return u.CreatedAt
}
