package models

import (
	"time"

	"gorm.io/gorm"
)

// InstallmentStatus represents the derived status of one installment
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
)

// Installment represents one scheduled partial payment within an installment payment
type Installment struct {
	gorm.Model
	PaymentID         uint              `gorm:"not null;index"`
	InstallmentNumber int               `gorm:"not null"` // 1-based position, fixed at creation
	Amount            float64           `gorm:"not null"`
	DueDate           time.Time         `gorm:"not null"` // Mutable only while unpaid
	PaidAt            *time.Time        // Once set, never reverts to null
	Status            InstallmentStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
}

// TableName returns the table name for the Installment model
func (Installment) TableName() string {
	return "installments"
}

// IsPaid reports whether the installment has been paid
func (i *Installment) IsPaid() bool {
	return i.PaidAt != nil
}
