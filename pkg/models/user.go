package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a user's access role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleGuest    Role = "guest"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee, RoleGuest:
		return true
	}
	return false
}

// User represents a CRM user account
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FullName     string    `gorm:"type:varchar(255);not null" json:"fullName"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone        string    `gorm:"type:varchar(50);not null" json:"phone"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(50);default:employee;index" json:"role"`
	ImageURL     string    `gorm:"type:text" json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Actor identifies the authenticated caller of an operation, as carried
// by the JWT (subject id, role, email).
type Actor struct {
	ID    string
	Email string
	Role  Role
}
