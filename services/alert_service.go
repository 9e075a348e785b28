package services

import (
	"errors"
	"log"

	"instituteApp/models"

	"gorm.io/gorm"
)

// EmitAlertDTO represents the data for creating a payment alert
type EmitAlertDTO struct {
	UserID      uint             `json:"user_id"`
	FormationID *uint            `json:"formation_id,omitempty"`
	PaymentID   *uint            `json:"payment_id,omitempty"`
	Message     string           `json:"message"`
	Type        models.AlertType `json:"type"`
	SentBy      uint             `json:"-"`
}

// EmitBulkDTO represents the data for creating one alert per user
type EmitBulkDTO struct {
	UserIDs     []uint           `json:"user_ids"`
	FormationID *uint            `json:"formation_id,omitempty"`
	Message     string           `json:"message"`
	Type        models.AlertType `json:"type"`
	SentBy      uint             `json:"-"`
}

// AlertDTO represents an alert in API responses
type AlertDTO struct {
	ID          uint   `json:"id"`
	UserID      uint   `json:"user_id"`
	FormationID *uint  `json:"formation_id,omitempty"`
	PaymentID   *uint  `json:"payment_id,omitempty"`
	SentBy      uint   `json:"sent_by"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	IsRead      bool   `json:"is_read"` // Projection kept for readers expecting the old boolean
	CreatedAt   string `json:"created_at"`
}

// AlertService creates and manages payment alerts
type AlertService struct {
	db    *gorm.DB
	email *EmailService
}

// NewAlertService creates a new AlertService instance
func NewAlertService(db *gorm.DB, email *EmailService) *AlertService {
	return &AlertService{
		db:    db,
		email: email,
	}
}

// toAlertDTO converts a PaymentAlert model to a DTO
func (s *AlertService) toAlertDTO(alert models.PaymentAlert) AlertDTO {
	return AlertDTO{
		ID:          alert.ID,
		UserID:      alert.UserID,
		FormationID: alert.FormationID,
		PaymentID:   alert.PaymentID,
		SentBy:      alert.SentBy,
		Message:     alert.Message,
		Type:        string(alert.Type),
		Status:      string(alert.Status),
		IsRead:      alert.IsRead(),
		CreatedAt:   alert.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// Emit creates and persists an unread alert for a user. A notification
// email is sent best effort: failures are logged, never returned.
func (s *AlertService) Emit(dto EmitAlertDTO) (*AlertDTO, error) {
	if dto.Message == "" {
		return nil, NewValidationError("message is required")
	}
	if dto.Type == "" {
		return nil, NewValidationError("type is required")
	}

	alert := &models.PaymentAlert{
		UserID:      dto.UserID,
		FormationID: dto.FormationID,
		PaymentID:   dto.PaymentID,
		SentBy:      dto.SentBy,
		Message:     dto.Message,
		Type:        dto.Type,
		Status:      models.AlertStatusUnread,
	}

	if err := s.db.Create(alert).Error; err != nil {
		return nil, errors.New("failed to create alert")
	}

	s.sendEmailEcho(alert)

	result := s.toAlertDTO(*alert)
	return &result, nil
}

// EmitBulk creates one alert per user id. Each insertion is independent:
// a failed insert is logged and does not abort the remaining ones.
// Returns the number of alerts created.
func (s *AlertService) EmitBulk(dto EmitBulkDTO) (int, error) {
	if dto.Message == "" {
		return 0, NewValidationError("message is required")
	}
	if dto.Type == "" {
		return 0, NewValidationError("type is required")
	}
	if len(dto.UserIDs) == 0 {
		return 0, NewValidationError("user_ids is required")
	}

	created := 0
	for _, userID := range dto.UserIDs {
		// Skip ids that do not resolve to a user
		var user models.User
		if err := s.db.First(&user, userID).Error; err != nil {
			log.Printf("Bulk alert: skipping user %d: %v", userID, err)
			continue
		}

		alert := &models.PaymentAlert{
			UserID:      userID,
			FormationID: dto.FormationID,
			SentBy:      dto.SentBy,
			Message:     dto.Message,
			Type:        dto.Type,
			Status:      models.AlertStatusUnread,
		}
		if err := s.db.Create(alert).Error; err != nil {
			log.Printf("Bulk alert: failed to create alert for user %d: %v", userID, err)
			continue
		}
		created++

		s.sendEmailEcho(alert)
	}

	return created, nil
}

// MarkRead flips an alert to the read state. Idempotent: marking an
// already read alert is a no-op.
func (s *AlertService) MarkRead(alertID uint) (*AlertDTO, error) {
	var alert models.PaymentAlert
	if err := s.db.First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("alert not found")
		}
		return nil, errors.New("failed to load alert")
	}

	if alert.Status != models.AlertStatusRead {
		alert.Status = models.AlertStatusRead
		if err := s.db.Save(&alert).Error; err != nil {
			return nil, errors.New("failed to update alert")
		}
	}

	result := s.toAlertDTO(alert)
	return &result, nil
}

// ListByUser returns all alerts addressed to a user, newest first
func (s *AlertService) ListByUser(userID uint) ([]AlertDTO, error) {
	var alerts []models.PaymentAlert
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		return nil, errors.New("failed to load alerts")
	}

	result := make([]AlertDTO, len(alerts))
	for i, alert := range alerts {
		result[i] = s.toAlertDTO(alert)
	}
	return result, nil
}

// ListAll returns every alert, newest first
func (s *AlertService) ListAll() ([]AlertDTO, error) {
	var alerts []models.PaymentAlert
	if err := s.db.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, errors.New("failed to load alerts")
	}

	result := make([]AlertDTO, len(alerts))
	for i, alert := range alerts {
		result[i] = s.toAlertDTO(alert)
	}
	return result, nil
}

// sendEmailEcho mirrors a payment alert to the user's mailbox. Email is a
// side channel: any failure here is logged and swallowed.
func (s *AlertService) sendEmailEcho(alert *models.PaymentAlert) {
	if s.email == nil {
		return
	}

	var user models.User
	if err := s.db.First(&user, alert.UserID).Error; err != nil {
		log.Printf("Alert email: failed to load user %d: %v", alert.UserID, err)
		return
	}

	var err error
	switch alert.Type {
	case models.AlertTypePaymentReminder, models.AlertTypePaymentDueSoon:
		err = s.email.SendPaymentReminderNotification(user.Email, alert.Message)
	case models.AlertTypePaymentOverdue:
		if alert.PaymentID != nil {
			var payment models.Payment
			if loadErr := s.db.Preload("Formation").Preload("Installments").First(&payment, *alert.PaymentID).Error; loadErr == nil {
				err = s.email.SendPaymentOverdueNotification(user.Email, payment.Formation.Title, models.Summarize(&payment).RemainingAmount)
				break
			}
		}
		err = s.email.SendPaymentReminderNotification(user.Email, alert.Message)
	default:
		// payment_received and general alerts stay in-app only
		return
	}
	if err != nil {
		log.Printf("Alert email: failed to send to %s: %v", user.Email, err)
	}
}
