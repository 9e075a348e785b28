package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"instituteApp/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateInstallmentDTO represents one scheduled installment at creation
type CreateInstallmentDTO struct {
	Amount  float64   `json:"amount" validate:"required,gt=0"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

// CreatePaymentDTO represents the data for creating a payment
type CreatePaymentDTO struct {
	UserID       uint                   `json:"user_id" validate:"required"`
	FormationID  uint                   `json:"formation_id" validate:"required"`
	TotalAmount  float64                `json:"total_amount" validate:"required,gt=0"`
	PaymentType  models.PaymentType     `json:"payment_type" validate:"required,oneof=COMPLETE INSTALLMENT"`
	Description  string                 `json:"description"`
	DueDate      *time.Time             `json:"due_date,omitempty"`
	Installments []CreateInstallmentDTO `json:"installments,omitempty"`
}

// InstallmentDTO represents an installment in API responses
type InstallmentDTO struct {
	ID                uint       `json:"id"`
	InstallmentNumber int        `json:"installment_number"`
	Amount            float64    `json:"amount"`
	DueDate           time.Time  `json:"due_date"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	Status            string     `json:"status"`
}

// PaymentResponseDTO represents a payment with its derived summary
type PaymentResponseDTO struct {
	ID             uint                  `json:"id"`
	UserID         uint                  `json:"user_id"`
	UserName       string                `json:"user_name,omitempty"`
	UserPhone      string                `json:"user_phone,omitempty"`
	FormationID    uint                  `json:"formation_id"`
	FormationTitle string                `json:"formation_title,omitempty"`
	TotalAmount    float64               `json:"total_amount"`
	PaymentType    string                `json:"payment_type"`
	Description    string                `json:"description,omitempty"`
	DueDate        *time.Time            `json:"due_date,omitempty"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	Status         string                `json:"status"`
	Installments   []InstallmentDTO      `json:"installments,omitempty"`
	Summary        models.PaymentSummary `json:"summary"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// PaymentListFilters represents the supported list filters
type PaymentListFilters struct {
	Status      string
	PaymentType string
	Overdue     bool
}

// StatusStatisticsDTO represents grouped counts and sums by status
type StatusStatisticsDTO struct {
	Status      string  `json:"status"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// PaymentService provides the payment and installment lifecycle operations
type PaymentService struct {
	db        *gorm.DB
	validator *validator.Validate
	alerts    *AlertService
	email     *EmailService
	now       func() time.Time
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(db *gorm.DB, alerts *AlertService, email *EmailService) *PaymentService {
	return &PaymentService{
		db:        db,
		validator: validator.New(),
		alerts:    alerts,
		email:     email,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Used by tests and batch jobs that
// need a fixed evaluation instant.
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

// validateDTO validates a DTO and translates validator tags to messages
func (s *PaymentService) validateDTO(dto interface{}) error {
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "field "+e.Field()+" is required")
			case "gt":
				errorMessages = append(errorMessages, "field "+e.Field()+" must be greater than 0")
			case "oneof":
				errorMessages = append(errorMessages, "field "+e.Field()+" must be one of: "+e.Param())
			default:
				errorMessages = append(errorMessages, "field "+e.Field()+" is invalid")
			}
		}
		return NewValidationError(strings.Join(errorMessages, "; "))
	}
	return nil
}

// toInstallmentDTO converts an Installment model to a DTO
func toInstallmentDTO(installment models.Installment) InstallmentDTO {
	return InstallmentDTO{
		ID:                installment.ID,
		InstallmentNumber: installment.InstallmentNumber,
		Amount:            installment.Amount,
		DueDate:           installment.DueDate,
		PaidAt:            installment.PaidAt,
		Status:            string(installment.Status),
	}
}

// toPaymentResponse converts a Payment model to a response DTO with its summary
func (s *PaymentService) toPaymentResponse(payment *models.Payment) *PaymentResponseDTO {
	response := &PaymentResponseDTO{
		ID:          payment.ID,
		UserID:      payment.UserID,
		FormationID: payment.FormationID,
		TotalAmount: payment.TotalAmount,
		PaymentType: string(payment.PaymentType),
		Description: payment.Description,
		DueDate:     payment.DueDate,
		PaidAt:      payment.PaidAt,
		Status:      string(payment.Status),
		Summary:     models.Summarize(payment),
		CreatedAt:   payment.CreatedAt,
		UpdatedAt:   payment.UpdatedAt,
	}
	if payment.User.ID != 0 {
		response.UserName = payment.User.FullName()
		response.UserPhone = payment.User.Phone
	}
	if payment.Formation.ID != 0 {
		response.FormationTitle = payment.Formation.Title
	}
	for _, installment := range payment.Installments {
		response.Installments = append(response.Installments, toInstallmentDTO(installment))
	}
	return response
}

// loadPayment loads a payment with its installments ordered by number
func (s *PaymentService) loadPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.Preload("User").
		Preload("Formation").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installments.installment_number ASC")
		}).
		First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("payment not found")
		}
		return nil, errors.New("failed to load payment")
	}
	return &payment, nil
}

// savePayment persists the mutable payment fields under the optimistic
// version check. Fails if the row changed since it was loaded.
func (s *PaymentService) savePayment(tx *gorm.DB, payment *models.Payment) error {
	result := tx.Model(&models.Payment{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]interface{}{
			"status":     payment.Status,
			"due_date":   payment.DueDate,
			"paid_at":    payment.PaidAt,
			"updated_at": s.now(),
			"version":    payment.Version + 1,
		})
	if result.Error != nil {
		return errors.New("failed to update payment")
	}
	if result.RowsAffected == 0 {
		return NewInvalidOperationError("payment was modified concurrently, retry the operation")
	}
	payment.Version++
	return nil
}

// Create creates a new payment of either type. For installment payments
// the installment amounts must sum to the total amount within the
// accepted tolerance; this is checked at creation only.
func (s *PaymentService) Create(dto CreatePaymentDTO) (*PaymentResponseDTO, error) {
	if err := s.validateDTO(dto); err != nil {
		return nil, err
	}

	now := s.now()

	payment := &models.Payment{
		UserID:      dto.UserID,
		FormationID: dto.FormationID,
		TotalAmount: dto.TotalAmount,
		PaymentType: dto.PaymentType,
		Description: dto.Description,
	}

	switch dto.PaymentType {
	case models.PaymentTypeComplete:
		if len(dto.Installments) > 0 {
			return nil, NewValidationError("a complete payment cannot carry installments")
		}
		// Due date defaults to creation time
		dueDate := now
		if dto.DueDate != nil {
			dueDate = *dto.DueDate
		}
		payment.DueDate = &dueDate

	case models.PaymentTypeInstallment:
		if len(dto.Installments) == 0 {
			return nil, NewValidationError("installments are required for an installment payment")
		}
		installments := make([]models.Installment, len(dto.Installments))
		for i, item := range dto.Installments {
			if item.Amount <= 0 {
				return nil, NewValidationError(fmt.Sprintf("installment %d amount must be greater than 0", i+1))
			}
			if item.DueDate.IsZero() {
				return nil, NewValidationError(fmt.Sprintf("installment %d due date is required", i+1))
			}
			installments[i] = models.Installment{
				InstallmentNumber: i + 1,
				Amount:            item.Amount,
				DueDate:           item.DueDate,
			}
		}
		if !models.InstallmentAmountsMatch(installments, dto.TotalAmount) {
			return nil, NewValidationError("installment amounts must sum to the total amount")
		}
		payment.Installments = installments
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("failed to start transaction")
	}

	// Check referenced aggregates exist
	var user models.User
	if err := tx.First(&user, dto.UserID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, errors.New("failed to load user")
	}

	var formation models.Formation
	if err := tx.First(&formation, dto.FormationID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("formation not found")
		}
		return nil, errors.New("failed to load formation")
	}

	// Initial status is derived, never hand-set
	models.RefreshStatus(payment, now)

	if err := tx.Create(payment).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("failed to create payment")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("failed to commit transaction")
	}

	payment.User = user
	payment.Formation = formation
	return s.toPaymentResponse(payment), nil
}

// MarkInstallmentPaid records the payment of one installment, identified
// by its zero-based index, and recomputes the aggregate status. Emits a
// payment_received alert addressed to the payment's owner.
func (s *PaymentService) MarkInstallmentPaid(paymentID uint, installmentIndex int, actingUserID uint) (*PaymentResponseDTO, error) {
	now := s.now()

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("failed to start transaction")
	}

	payment, err := s.loadPayment(tx, paymentID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if payment.PaymentType != models.PaymentTypeInstallment {
		tx.Rollback()
		return nil, NewInvalidOperationError("payment is not an installment payment")
	}
	if installmentIndex < 0 || installmentIndex >= len(payment.Installments) {
		tx.Rollback()
		return nil, NewInvalidOperationError("installment index out of range")
	}

	installment := &payment.Installments[installmentIndex]
	if installment.PaidAt != nil {
		tx.Rollback()
		return nil, NewInvalidOperationError("installment already paid")
	}

	installment.PaidAt = &now
	models.RefreshStatus(payment, now)

	// RefreshStatus may have flipped siblings to overdue as well
	for i := range payment.Installments {
		if err := tx.Save(&payment.Installments[i]).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("failed to update installment")
		}
	}
	if err := s.savePayment(tx, payment); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("failed to commit transaction")
	}

	s.emitPaymentReceived(payment, installment.Amount, actingUserID)

	return s.toPaymentResponse(payment), nil
}

// MarkCompletePaymentPaid records the single pay event of a complete
// payment. The status is forced to completed.
func (s *PaymentService) MarkCompletePaymentPaid(paymentID uint, actingUserID uint) (*PaymentResponseDTO, error) {
	now := s.now()

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("failed to start transaction")
	}

	payment, err := s.loadPayment(tx, paymentID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if payment.PaymentType != models.PaymentTypeComplete {
		tx.Rollback()
		return nil, NewInvalidOperationError("payment is not a complete payment")
	}
	if payment.PaidAt != nil {
		tx.Rollback()
		return nil, NewInvalidOperationError("payment already paid")
	}

	payment.PaidAt = &now
	payment.Status = models.PaymentStatusCompleted

	if err := s.savePayment(tx, payment); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("failed to commit transaction")
	}

	s.emitPaymentReceived(payment, payment.TotalAmount, actingUserID)

	return s.toPaymentResponse(payment), nil
}

// UpdateInstallmentDueDate moves the due date of an unpaid installment.
// Amounts are never touched and the sum invariant is not re-checked.
func (s *PaymentService) UpdateInstallmentDueDate(paymentID uint, installmentIndex int, newDueDate time.Time) (*PaymentResponseDTO, error) {
	if newDueDate.IsZero() {
		return nil, NewValidationError("due date is required")
	}

	now := s.now()

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("failed to start transaction")
	}

	payment, err := s.loadPayment(tx, paymentID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if payment.PaymentType != models.PaymentTypeInstallment {
		tx.Rollback()
		return nil, NewInvalidOperationError("payment is not an installment payment")
	}
	if installmentIndex < 0 || installmentIndex >= len(payment.Installments) {
		tx.Rollback()
		return nil, NewInvalidOperationError("installment index out of range")
	}

	installment := &payment.Installments[installmentIndex]
	if installment.PaidAt != nil {
		tx.Rollback()
		return nil, NewInvalidOperationError("cannot change the due date of a paid installment")
	}

	installment.DueDate = newDueDate
	models.RefreshStatus(payment, now)

	for i := range payment.Installments {
		if err := tx.Save(&payment.Installments[i]).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("failed to update installment")
		}
	}
	if err := s.savePayment(tx, payment); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("failed to commit transaction")
	}

	return s.toPaymentResponse(payment), nil
}

// GetByID returns one payment with its computed summary. Status drift
// against the current time is persisted on the way out.
func (s *PaymentService) GetByID(paymentID uint) (*PaymentResponseDTO, error) {
	payment, err := s.loadPayment(s.db, paymentID)
	if err != nil {
		return nil, err
	}

	if models.RefreshStatus(payment, s.now()) {
		tx := s.db.Begin()
		if tx.Error == nil {
			saveErr := s.savePayment(tx, payment)
			for i := range payment.Installments {
				if saveErr != nil {
					break
				}
				saveErr = tx.Save(&payment.Installments[i]).Error
			}
			if saveErr != nil {
				tx.Rollback()
				log.Printf("Failed to persist status drift for payment %d: %v", payment.ID, saveErr)
			} else if err := tx.Commit().Error; err != nil {
				log.Printf("Failed to persist status drift for payment %d: %v", payment.ID, err)
			}
		}
	}

	return s.toPaymentResponse(payment), nil
}

// List returns payments matching the given filters, newest first
func (s *PaymentService) List(filters PaymentListFilters) ([]PaymentResponseDTO, error) {
	query := s.db.Preload("User").
		Preload("Formation").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installments.installment_number ASC")
		}).
		Order("payments.created_at DESC")

	if filters.Overdue {
		query = query.Where("status = ?", models.PaymentStatusOverdue)
	} else if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.PaymentType != "" {
		query = query.Where("payment_type = ?", filters.PaymentType)
	}

	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, errors.New("failed to load payments")
	}

	result := make([]PaymentResponseDTO, len(payments))
	for i := range payments {
		result[i] = *s.toPaymentResponse(&payments[i])
	}
	return result, nil
}

// ListByUser returns all payments owned by a user, newest first
func (s *PaymentService) ListByUser(userID uint) ([]PaymentResponseDTO, error) {
	var payments []models.Payment
	if err := s.db.Where("user_id = ?", userID).
		Preload("Formation").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installments.installment_number ASC")
		}).
		Order("payments.created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, errors.New("failed to load payments")
	}

	result := make([]PaymentResponseDTO, len(payments))
	for i := range payments {
		result[i] = *s.toPaymentResponse(&payments[i])
	}
	return result, nil
}

// Statistics returns counts and amount sums grouped by status
func (s *PaymentService) Statistics() ([]StatusStatisticsDTO, error) {
	var stats []StatusStatisticsDTO
	if err := s.db.Model(&models.Payment{}).
		Select("status, COUNT(*) AS count, SUM(total_amount) AS total_amount").
		Group("status").
		Order("status").
		Scan(&stats).Error; err != nil {
		return nil, errors.New("failed to load statistics")
	}
	return stats, nil
}

// Delete removes a payment, its installments and every alert that
// references it
func (s *PaymentService) Delete(paymentID uint) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.New("failed to start transaction")
	}

	payment, err := s.loadPayment(tx, paymentID)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Where("payment_id = ?", payment.ID).Delete(&models.PaymentAlert{}).Error; err != nil {
		tx.Rollback()
		return errors.New("failed to delete payment alerts")
	}
	if err := tx.Where("payment_id = ?", payment.ID).Delete(&models.Installment{}).Error; err != nil {
		tx.Rollback()
		return errors.New("failed to delete installments")
	}
	if err := tx.Delete(&models.Payment{}, payment.ID).Error; err != nil {
		tx.Rollback()
		return errors.New("failed to delete payment")
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New("failed to commit transaction")
	}
	return nil
}

// SendManualAlert emits a staff-authored alert against a payment that is
// still open
func (s *PaymentService) SendManualAlert(paymentID uint, message string, alertType models.AlertType, actingUserID uint) (*AlertDTO, error) {
	payment, err := s.loadPayment(s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusCompleted {
		return nil, NewInvalidOperationError("payment already completed")
	}

	return s.alerts.Emit(EmitAlertDTO{
		UserID:      payment.UserID,
		FormationID: &payment.FormationID,
		PaymentID:   &payment.ID,
		Message:     message,
		Type:        alertType,
		SentBy:      actingUserID,
	})
}

// emitPaymentReceived notifies the payment owner that money was received.
// Alert and email failures are logged, never propagated: the payment
// transition has already been committed.
func (s *PaymentService) emitPaymentReceived(payment *models.Payment, amount float64, actingUserID uint) {
	message := fmt.Sprintf("Payment of %.2f received for %s", amount, payment.Formation.Title)
	if _, err := s.alerts.Emit(EmitAlertDTO{
		UserID:      payment.UserID,
		FormationID: &payment.FormationID,
		PaymentID:   &payment.ID,
		Message:     message,
		Type:        models.AlertTypePaymentReceived,
		SentBy:      actingUserID,
	}); err != nil {
		log.Printf("Failed to emit payment_received alert for payment %d: %v", payment.ID, err)
	}

	if s.email != nil && payment.User.Email != "" {
		remaining := models.Summarize(payment).RemainingAmount
		if err := s.email.SendPaymentReceivedNotification(payment.User.Email, payment.Formation.Title, amount, remaining); err != nil {
			log.Printf("Failed to send payment received email for payment %d: %v", payment.ID, err)
		}
	}
}
