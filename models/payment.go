package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus represents the derived status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // No installment paid yet, nothing overdue
	PaymentStatusPartial   PaymentStatus = "PARTIAL"   // Some installments paid, none overdue
	PaymentStatusCompleted PaymentStatus = "COMPLETED" // Fully paid, terminal
	PaymentStatusOverdue   PaymentStatus = "OVERDUE"   // At least one due date passed unpaid
)

// PaymentType represents how a payment is settled
type PaymentType string

const (
	PaymentTypeComplete    PaymentType = "COMPLETE"    // Single due date, single pay event
	PaymentTypeInstallment PaymentType = "INSTALLMENT" // Scheduled installments
)

// Payment represents a payment owed by a student for a formation
type Payment struct {
	gorm.Model
	UserID       uint          `gorm:"not null;index"`
	User         User          `gorm:"foreignKey:UserID"`
	FormationID  uint          `gorm:"not null;index"`
	Formation    Formation     `gorm:"foreignKey:FormationID"`
	TotalAmount  float64       `gorm:"not null"` // Immutable after creation
	PaymentType  PaymentType   `gorm:"type:varchar(20);not null"`
	Description  string        `gorm:"size:500"`
	DueDate      *time.Time    // Complete type only
	PaidAt       *time.Time    // Complete type only
	Status       PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Version      uint          `gorm:"not null;default:0"` // Optimistic concurrency token
	Installments []Installment `gorm:"foreignKey:PaymentID"`
}

// TableName returns the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
