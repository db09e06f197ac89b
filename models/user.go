package models

import (
	"time"
)

// Role IDs as seeded in the roles table.
const (
	RoleUser  = 1
	RoleGuru  = 2
	RoleAdmin = 3
)

type User struct {
	UserID       int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	FirstName    string     `gorm:"column:first_name" json:"first_name"`
	LastName     string     `gorm:"column:last_name" json:"last_name"`
	Email        string     `gorm:"column:email;unique" json:"email"`
	PasswordHash string     `gorm:"column:password_hash" json:"-"`
	Specialty    *string    `gorm:"column:specialty" json:"specialty,omitempty"`
	Country      *string    `gorm:"column:country" json:"country,omitempty"`
	AvatarURL    *string    `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	Bio          *string    `gorm:"column:bio" json:"bio,omitempty"`
	CreateAt     *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt     *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Roles []Role `gorm:"many2many:user_roles;foreignKey:UserID;joinForeignKey:user_id;references:RoleID;joinReferences:role_id" json:"roles,omitempty"`
}

type Role struct {
	RoleID   int        `gorm:"primaryKey;column:role_id" json:"role_id"`
	Role     string     `gorm:"column:role" json:"role"`
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// UserRole is the join table linking users to their roles. A user may hold
// several roles at once (e.g. guru and admin).
type UserRole struct {
	UserID   int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	RoleID   int        `gorm:"primaryKey;column:role_id" json:"role_id"`
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

func (Role) TableName() string {
	return "roles"
}

func (UserRole) TableName() string {
	return "user_roles"
}

// RoleIDs returns the IDs of all roles attached to the user.
func (u *User) RoleIDs() []int {
	ids := make([]int, 0, len(u.Roles))
	for _, role := range u.Roles {
		ids = append(ids, role.RoleID)
	}
	return ids
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(roleID int) bool {
	for _, role := range u.Roles {
		if role.RoleID == roleID {
			return true
		}
	}
	return false
}

// DisplayName returns the user's full name for notifications and emails.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}
