package services

import (
	"errors"
	"testing"

	"instituteApp/models"
)

func TestEmitAlert(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedUserAndFormation(t, db)
	alerts := NewAlertService(db, nil)

	created, err := alerts.Emit(EmitAlertDTO{
		UserID:  user.ID,
		Message: "Your next installment is due soon",
		Type:    models.AlertTypePaymentDueSoon,
		SentBy:  1,
	})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if created.Status != string(models.AlertStatusUnread) {
		t.Errorf("status = %v, want UNREAD", created.Status)
	}
	if created.IsRead {
		t.Error("is_read projection = true, want false")
	}
}

func TestEmitAlertRequiresMessageAndType(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedUserAndFormation(t, db)
	alerts := NewAlertService(db, nil)

	var validationErr *ValidationError

	_, err := alerts.Emit(EmitAlertDTO{UserID: user.ID, Type: models.AlertTypeGeneral, SentBy: 1})
	if !errors.As(err, &validationErr) {
		t.Errorf("Emit() without message error = %T, want ValidationError", err)
	}

	_, err = alerts.Emit(EmitAlertDTO{UserID: user.ID, Message: "hello", SentBy: 1})
	if !errors.As(err, &validationErr) {
		t.Errorf("Emit() without type error = %T, want ValidationError", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedUserAndFormation(t, db)
	alerts := NewAlertService(db, nil)

	created, err := alerts.Emit(EmitAlertDTO{
		UserID:  user.ID,
		Message: "Payment reminder",
		Type:    models.AlertTypePaymentReminder,
		SentBy:  1,
	})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	first, err := alerts.MarkRead(created.ID)
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if !first.IsRead {
		t.Error("alert not read after MarkRead()")
	}

	// Second call is a no-op, not an error
	second, err := alerts.MarkRead(created.ID)
	if err != nil {
		t.Fatalf("second MarkRead() error = %v", err)
	}
	if !second.IsRead {
		t.Error("alert unread after second MarkRead()")
	}
}

func TestMarkReadMissingAlert(t *testing.T) {
	db := setupTestDB(t)
	alerts := NewAlertService(db, nil)

	_, err := alerts.MarkRead(12345)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("MarkRead() error = %T, want NotFoundError", err)
	}
}

func TestEmitBulkToleratesBadIDs(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedUserAndFormation(t, db)
	alerts := NewAlertService(db, nil)

	other := &models.User{
		FirstName: "Karim",
		LastName:  "Bensaid",
		Email:     "karim.bulk@example.com",
		Password:  "hashed-password",
		Role:      models.RoleStudent,
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	// 9999 does not resolve to a user; the two valid ids still get alerts
	created, err := alerts.EmitBulk(EmitBulkDTO{
		UserIDs: []uint{user.ID, 9999, other.ID},
		Message: "Classes resume on Monday",
		Type:    models.AlertTypeGeneral,
		SentBy:  1,
	})
	if err != nil {
		t.Fatalf("EmitBulk() error = %v", err)
	}
	if created != 2 {
		t.Errorf("EmitBulk() created = %d, want 2", created)
	}

	var count int64
	db.Model(&models.PaymentAlert{}).Count(&count)
	if count != 2 {
		t.Errorf("alert count = %d, want 2", count)
	}
}

func TestListByUser(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedUserAndFormation(t, db)
	alerts := NewAlertService(db, nil)

	for _, message := range []string{"first", "second"} {
		if _, err := alerts.Emit(EmitAlertDTO{
			UserID:  user.ID,
			Message: message,
			Type:    models.AlertTypeGeneral,
			SentBy:  1,
		}); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	list, err := alerts.ListByUser(user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("alert count = %d, want 2", len(list))
	}
}
