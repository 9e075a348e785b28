package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// UserRole represents the role of a platform user
type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleTeacher   UserRole = "teacher"
	RoleReception UserRole = "reception"
	RoleAdmin     UserRole = "admin"
)

// User represents an account on the platform
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	FirstName string    `gorm:"column:first_name;not null;size:50"`
	LastName  string    `gorm:"column:last_name;not null;size:50"`
	Email     string    `gorm:"column:email;unique;not null;size:100;index"`
	Password  string    `gorm:"column:password;not null;size:100"`
	Phone     string    `gorm:"column:phone;size:20"`
	Role      UserRole  `gorm:"column:role;type:varchar(20);not null;default:'student'"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate validates the user before it is persisted
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if len(u.FirstName) < 2 || len(u.FirstName) > 50 {
		return errors.New("first name must be between 2 and 50 characters")
	}
	if len(u.LastName) < 2 || len(u.LastName) > 50 {
		return errors.New("last name must be between 2 and 50 characters")
	}
	if len(u.Email) < 3 || len(u.Email) > 100 {
		return errors.New("email must be between 3 and 100 characters")
	}
	switch u.Role {
	case RoleStudent, RoleTeacher, RoleReception, RoleAdmin:
	default:
		return errors.New("unknown role")
	}
	return nil
}

// FullName returns the display name of the user
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
