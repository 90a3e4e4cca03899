package users

import (
	"strings"
	"time"
)

// Role grants an account its API surface.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts any casing of the role names, defaulting to the
// regular user role for unknown input.
func ParseRole(rawInput string) Role {
	if strings.EqualFold(strings.TrimSpace(rawInput), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Account is the persisted user row.
type Account struct {
	UserID      string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email       string    `gorm:"column:email;size:320"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	Role        Role      `gorm:"column:role;size:32;not null;default:'user'"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "users"
}

// IsAdmin reports whether the account may reach the admin surface.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
