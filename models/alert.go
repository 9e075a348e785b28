package models

import (
	"gorm.io/gorm"
)

// AlertType represents the kind of payment alert
type AlertType string

const (
	AlertTypePaymentReminder AlertType = "payment_reminder"
	AlertTypePaymentOverdue  AlertType = "payment_overdue"
	AlertTypePaymentDueSoon  AlertType = "payment_due_soon"
	AlertTypePaymentReceived AlertType = "payment_received"
	AlertTypeGeneral         AlertType = "general"
)

// AlertStatus represents the read state of an alert
type AlertStatus string

const (
	AlertStatusUnread AlertStatus = "UNREAD"
	AlertStatusRead   AlertStatus = "READ"
)

// PaymentAlert represents a notification created on a payment transition
// or sent manually by staff
type PaymentAlert struct {
	gorm.Model
	UserID      uint        `gorm:"not null;index"`
	User        User        `gorm:"foreignKey:UserID"`
	FormationID *uint       `gorm:"index"`
	PaymentID   *uint       `gorm:"index"`
	SentBy      uint        `gorm:"not null"` // Acting user
	Message     string      `gorm:"size:500;not null"`
	Type        AlertType   `gorm:"type:varchar(30);not null"`
	Status      AlertStatus `gorm:"type:varchar(10);not null;default:'UNREAD'"`
}

// TableName returns the table name for the PaymentAlert model
func (PaymentAlert) TableName() string {
	return "payment_alerts"
}

// IsRead reports whether the alert has been read.
// Kept as a projection for readers that still expect the old boolean.
func (a *PaymentAlert) IsRead() bool {
	return a.Status == AlertStatusRead
}
