package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"instituteApp/models"

	"gorm.io/gorm"
)

// OverdueSweeperService re-evaluates time-dependent payment statuses in
// batch. It runs periodically and can also be invoked synchronously
// before reads that need fresh overdue status.
type OverdueSweeperService struct {
	db       *gorm.DB
	alerts   *AlertService
	interval time.Duration
	now      func() time.Time
}

// NewOverdueSweeperService creates a new OverdueSweeperService instance
func NewOverdueSweeperService(db *gorm.DB, alerts *AlertService, interval time.Duration) *OverdueSweeperService {
	return &OverdueSweeperService{
		db:       db,
		alerts:   alerts,
		interval: interval,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *OverdueSweeperService) SetClock(now func() time.Time) {
	s.now = now
}

// Start launches the periodic sweep loop
func (s *OverdueSweeperService) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := s.SweepOverdue(s.now()); err != nil {
					log.Printf("Overdue sweep failed: %v", err)
				}
			}
		}
	}()
}

// SweepOverdue recomputes the status of every non-terminal payment at
// the given time and persists only those that changed. Idempotent: a
// second run with the same instant performs no writes. Returns the
// number of payments updated.
func (s *OverdueSweeperService) SweepOverdue(now time.Time) (int, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return 0, errors.New("failed to start transaction")
	}

	// Completed payments are terminal; already overdue payments cannot
	// drift further without a command
	var payments []models.Payment
	if err := tx.Where("status IN ?", []models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusPartial}).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installments.installment_number ASC")
		}).
		Preload("Formation").
		Find(&payments).Error; err != nil {
		tx.Rollback()
		return 0, errors.New("failed to load payments")
	}

	updated := 0
	var flipped []models.Payment
	for i := range payments {
		payment := &payments[i]
		if !models.RefreshStatus(payment, now) {
			continue
		}

		for j := range payment.Installments {
			if err := tx.Save(&payment.Installments[j]).Error; err != nil {
				tx.Rollback()
				return 0, errors.New("failed to update installment")
			}
		}

		result := tx.Model(&models.Payment{}).
			Where("id = ? AND version = ?", payment.ID, payment.Version).
			Updates(map[string]interface{}{
				"status":     payment.Status,
				"updated_at": now,
				"version":    payment.Version + 1,
			})
		if result.Error != nil {
			tx.Rollback()
			return 0, errors.New("failed to update payment")
		}
		if result.RowsAffected == 0 {
			// A concurrent writer took the row; it re-derived the status
			// itself, so skipping it here is safe
			log.Printf("Sweep skipped payment %d: concurrent modification", payment.ID)
			continue
		}
		payment.Version++
		updated++

		if payment.Status == models.PaymentStatusOverdue {
			flipped = append(flipped, *payment)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, errors.New("failed to commit transaction")
	}

	// Alerts are emitted after the batch commit; a failed alert never
	// undoes the status change
	for i := range flipped {
		s.emitOverdueAlert(&flipped[i])
	}

	return updated, nil
}

// emitOverdueAlert notifies the owner of a payment that just became overdue
func (s *OverdueSweeperService) emitOverdueAlert(payment *models.Payment) {
	if s.alerts == nil {
		return
	}

	remaining := models.Summarize(payment).RemainingAmount
	message := fmt.Sprintf("Your payment for %s is overdue, outstanding amount %.2f", payment.Formation.Title, remaining)
	if _, err := s.alerts.Emit(EmitAlertDTO{
		UserID:      payment.UserID,
		FormationID: &payment.FormationID,
		PaymentID:   &payment.ID,
		Message:     message,
		Type:        models.AlertTypePaymentOverdue,
		SentBy:      0, // system actor
	}); err != nil {
		log.Printf("Failed to emit payment_overdue alert for payment %d: %v", payment.ID, err)
	}
}
