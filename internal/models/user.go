package models

import "time"

type UserRole string

const (
	RoleMember UserRole = "user"
	RoleAdmin  UserRole = "admin"
)

// UserPreference holds the stored consent choice of an authenticated user.
// Users come from Supabase auth; only their preferences live here.
type UserPreference struct {
	UserID      string      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	ConsentMode ConsentMode `gorm:"column:consent_mode;type:text" json:"consent_mode"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (UserPreference) TableName() string { return "chat_user_preferences" }
