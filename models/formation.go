package models

import (
	"gorm.io/gorm"
)

// Formation represents a course offering purchased by students
type Formation struct {
	gorm.Model
	Title       string  `gorm:"not null;size:150"`
	Description string  `gorm:"size:500"`
	Price       float64 `gorm:"not null"`
	Months      int     `gorm:"not null;default:1"` // Duration in months
	IsActive    bool    `gorm:"not null;default:true"`
}

// TableName returns the table name for the Formation model
func (Formation) TableName() string {
	return "formations"
}
