package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"instituteApp/database"
	"instituteApp/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// seedUserAndFormation creates the collaborator rows payments reference
func seedUserAndFormation(t *testing.T, db *gorm.DB) (*models.User, *models.Formation) {
	t.Helper()

	user := &models.User{
		FirstName: "Amina",
		LastName:  "Haddad",
		Email:     fmt.Sprintf("%s@example.com", t.Name()),
		Password:  "hashed-password",
		Role:      models.RoleStudent,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	formation := &models.Formation{
		Title:    "Web Development",
		Price:    900,
		Months:   3,
		IsActive: true,
	}
	if err := db.Create(formation).Error; err != nil {
		t.Fatalf("failed to create formation: %v", err)
	}

	return user, formation
}

// newTestServices builds the payment service stack on a test database
// with a fixed clock
func newTestServices(t *testing.T, db *gorm.DB, now time.Time) (*PaymentService, *OverdueSweeperService) {
	t.Helper()

	alerts := NewAlertService(db, nil)
	payments := NewPaymentService(db, alerts, nil)
	payments.SetClock(func() time.Time { return now })
	sweeper := NewOverdueSweeperService(db, alerts, time.Hour)
	sweeper.SetClock(func() time.Time { return now })
	return payments, sweeper
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func installmentsOf(amounts []float64, dueDates []time.Time) []CreateInstallmentDTO {
	installments := make([]CreateInstallmentDTO, len(amounts))
	for i := range amounts {
		installments[i] = CreateInstallmentDTO{Amount: amounts[i], DueDate: dueDates[i]}
	}
	return installments
}

func TestCreateCompletePaymentDefaultsDueDate(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	response, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 1000,
		PaymentType: models.PaymentTypeComplete,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if response.Status != string(models.PaymentStatusPending) {
		t.Errorf("status = %v, want PENDING", response.Status)
	}
	if response.DueDate == nil || !response.DueDate.Equal(baseTime) {
		t.Errorf("due date = %v, want creation time %v", response.DueDate, baseTime)
	}
}

func TestMarkCompletePaymentPaid(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	created, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 1000,
		PaymentType: models.PaymentTypeComplete,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	paid, err := payments.MarkCompletePaymentPaid(created.ID, 42)
	if err != nil {
		t.Fatalf("MarkCompletePaymentPaid() error = %v", err)
	}

	if paid.Status != string(models.PaymentStatusCompleted) {
		t.Errorf("status = %v, want COMPLETED", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Error("paidAt not set")
	}
	if paid.Summary.RemainingAmount != 0 {
		t.Errorf("remaining amount = %v, want 0", paid.Summary.RemainingAmount)
	}

	// One payment_received alert addressed to the owner
	var alerts []models.PaymentAlert
	if err := db.Where("payment_id = ?", created.ID).Find(&alerts).Error; err != nil {
		t.Fatalf("failed to load alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alert count = %d, want 1", len(alerts))
	}
	if alerts[0].Type != models.AlertTypePaymentReceived {
		t.Errorf("alert type = %v, want payment_received", alerts[0].Type)
	}
	if alerts[0].UserID != user.ID {
		t.Errorf("alert user = %d, want %d", alerts[0].UserID, user.ID)
	}
	if alerts[0].SentBy != 42 {
		t.Errorf("alert sentBy = %d, want 42", alerts[0].SentBy)
	}

	// Re-paying fails
	if _, err := payments.MarkCompletePaymentPaid(created.ID, 42); err == nil {
		t.Error("second MarkCompletePaymentPaid() succeeded, want InvalidOperationError")
	} else {
		var invalidOp *InvalidOperationError
		if !errors.As(err, &invalidOp) {
			t.Errorf("second MarkCompletePaymentPaid() error = %T, want InvalidOperationError", err)
		}
	}
}

func TestInstallmentLifecycle(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, sweeper := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)
	day2 := baseTime.AddDate(0, 0, 2)
	day3 := baseTime.AddDate(0, 0, 3)

	created, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  900,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300, 300}, []time.Time{day1, day2, day3}),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != string(models.PaymentStatusPending) {
		t.Errorf("status after creation = %v, want PENDING", created.Status)
	}

	// Paying the first installment makes the payment partial
	partial, err := payments.MarkInstallmentPaid(created.ID, 0, user.ID)
	if err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}
	if partial.Status != string(models.PaymentStatusPartial) {
		t.Errorf("status after first payment = %v, want PARTIAL", partial.Status)
	}
	if partial.Summary.PaidInstallments != 1 || partial.Summary.RemainingAmount != 600 {
		t.Errorf("summary = %+v, want 1 paid and 600 remaining", partial.Summary)
	}

	// Past the second due date the sweep flips the payment to overdue
	afterDay2 := day2.AddDate(0, 0, 1)
	updated, err := sweeper.SweepOverdue(afterDay2)
	if err != nil {
		t.Fatalf("SweepOverdue() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("SweepOverdue() updated = %d, want 1", updated)
	}

	var payment models.Payment
	if err := db.Preload("Installments").First(&payment, created.ID).Error; err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	if payment.Status != models.PaymentStatusOverdue {
		t.Errorf("status after sweep = %v, want OVERDUE", payment.Status)
	}

	// The sweep emitted an overdue alert
	var alerts []models.PaymentAlert
	if err := db.Where("payment_id = ? AND type = ?", created.ID, models.AlertTypePaymentOverdue).Find(&alerts).Error; err != nil {
		t.Fatalf("failed to load alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("overdue alert count = %d, want 1", len(alerts))
	}
}

func TestCreateInstallmentSumMismatch(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)

	_, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 900,
		PaymentType: models.PaymentTypeInstallment,
		Installments: installmentsOf(
			[]float64{300, 300, 290},
			[]time.Time{day1, day1.AddDate(0, 0, 1), day1.AddDate(0, 0, 2)},
		),
	})
	if err == nil {
		t.Fatal("Create() succeeded with mismatched amounts, want ValidationError")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("Create() error = %T, want ValidationError", err)
	}
}

func TestCreateInstallmentPaymentRequiresInstallments(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	_, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 900,
		PaymentType: models.PaymentTypeInstallment,
	})
	if err == nil {
		t.Fatal("Create() succeeded with no installments, want ValidationError")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("Create() error = %T, want ValidationError", err)
	}
}

func TestMarkInstallmentPaidTwice(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)
	created, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  600,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300}, []time.Time{day1, day1.AddDate(0, 1, 0)}),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := payments.MarkInstallmentPaid(created.ID, 0, user.ID); err != nil {
		t.Fatalf("first MarkInstallmentPaid() error = %v", err)
	}

	_, err = payments.MarkInstallmentPaid(created.ID, 0, user.ID)
	if err == nil {
		t.Fatal("second MarkInstallmentPaid() succeeded, want InvalidOperationError")
	}
	var invalidOp *InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Errorf("second MarkInstallmentPaid() error = %T, want InvalidOperationError", err)
	}

	// The paid installment keeps its original paidAt
	var payment models.Payment
	if err := db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("installments.installment_number ASC")
	}).First(&payment, created.ID).Error; err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	if payment.Installments[0].PaidAt == nil {
		t.Error("paidAt reverted to null")
	}
}

func TestMarkInstallmentPaidWrongType(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	created, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 1000,
		PaymentType: models.PaymentTypeComplete,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = payments.MarkInstallmentPaid(created.ID, 0, user.ID)
	var invalidOp *InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Errorf("MarkInstallmentPaid() on complete payment error = %T, want InvalidOperationError", err)
	}

	_, err = payments.MarkInstallmentPaid(9999, 0, user.ID)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("MarkInstallmentPaid() on missing payment error = %T, want NotFoundError", err)
	}
}

func TestUpdateInstallmentDueDate(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)
	day2 := baseTime.AddDate(0, 0, 2)
	created, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  600,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300}, []time.Time{day1, day2}),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Moving an unpaid installment succeeds and leaves the amount alone
	newDue := day2.AddDate(0, 1, 0)
	updated, err := payments.UpdateInstallmentDueDate(created.ID, 1, newDue)
	if err != nil {
		t.Fatalf("UpdateInstallmentDueDate() error = %v", err)
	}
	if !updated.Installments[1].DueDate.Equal(newDue) {
		t.Errorf("due date = %v, want %v", updated.Installments[1].DueDate, newDue)
	}
	if updated.Installments[1].Amount != 300 {
		t.Errorf("amount = %v, want 300 untouched", updated.Installments[1].Amount)
	}

	// Editing a paid installment fails
	if _, err := payments.MarkInstallmentPaid(created.ID, 0, user.ID); err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}
	_, err = payments.UpdateInstallmentDueDate(created.ID, 0, newDue)
	if err == nil {
		t.Fatal("UpdateInstallmentDueDate() on paid installment succeeded, want InvalidOperationError")
	}
	var invalidOp *InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Errorf("UpdateInstallmentDueDate() error = %T, want InvalidOperationError", err)
	}
}

func TestSweepOverdueIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, sweeper := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)
	if _, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  600,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300}, []time.Time{day1, day1.AddDate(0, 1, 0)}),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sweepTime := day1.AddDate(0, 0, 1)

	first, err := sweeper.SweepOverdue(sweepTime)
	if err != nil {
		t.Fatalf("first SweepOverdue() error = %v", err)
	}
	if first != 1 {
		t.Errorf("first sweep updated = %d, want 1", first)
	}

	second, err := sweeper.SweepOverdue(sweepTime)
	if err != nil {
		t.Fatalf("second SweepOverdue() error = %v", err)
	}
	if second != 0 {
		t.Errorf("second sweep updated = %d, want 0", second)
	}
}

func TestStatusNeverDriftsAfterOperations(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)
	day2 := baseTime.AddDate(0, 0, 2)
	created, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  600,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300}, []time.Time{day1, day2}),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	checkNoDrift := func(step string) {
		var payment models.Payment
		if err := db.Preload("Installments").First(&payment, created.ID).Error; err != nil {
			t.Fatalf("%s: failed to reload payment: %v", step, err)
		}
		derived := models.DerivePaymentStatus(&payment, baseTime)
		if payment.Status != derived {
			t.Errorf("%s: persisted status %v diverges from derived %v", step, payment.Status, derived)
		}
	}

	checkNoDrift("after create")

	if _, err := payments.MarkInstallmentPaid(created.ID, 0, user.ID); err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}
	checkNoDrift("after first installment paid")

	if _, err := payments.MarkInstallmentPaid(created.ID, 1, user.ID); err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}
	checkNoDrift("after all installments paid")

	var payment models.Payment
	if err := db.First(&payment, created.ID).Error; err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	if payment.Status != models.PaymentStatusCompleted {
		t.Errorf("final status = %v, want COMPLETED", payment.Status)
	}
}

func TestDeletePaymentCascadesAlerts(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	day1 := baseTime.AddDate(0, 0, 1)
	created, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  600,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300}, []time.Time{day1, day1.AddDate(0, 1, 0)}),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Paying creates an alert referencing the payment
	if _, err := payments.MarkInstallmentPaid(created.ID, 0, user.ID); err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}

	var before int64
	db.Model(&models.PaymentAlert{}).Where("payment_id = ?", created.ID).Count(&before)
	if before == 0 {
		t.Fatal("no alerts created before delete")
	}

	if err := payments.Delete(created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var after int64
	db.Model(&models.PaymentAlert{}).Where("payment_id = ?", created.ID).Count(&after)
	if after != 0 {
		t.Errorf("alert count after delete = %d, want 0", after)
	}

	if _, err := payments.GetByID(created.ID); err == nil {
		t.Error("GetByID() succeeded after delete, want NotFoundError")
	}
}

func TestSavePaymentVersionConflict(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	created, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 1000,
		PaymentType: models.PaymentTypeComplete,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var stale models.Payment
	if err := db.First(&stale, created.ID).Error; err != nil {
		t.Fatalf("failed to load payment: %v", err)
	}

	// Another writer bumps the version behind our back
	if err := db.Model(&models.Payment{}).
		Where("id = ?", created.ID).
		Update("version", stale.Version+1).Error; err != nil {
		t.Fatalf("failed to bump version: %v", err)
	}

	err = payments.savePayment(db, &stale)
	if err == nil {
		t.Fatal("savePayment() with stale version succeeded, want conflict error")
	}
	var invalidOp *InvalidOperationError
	if !errors.As(err, &invalidOp) {
		t.Errorf("savePayment() error = %T, want InvalidOperationError", err)
	}
}

func TestStatistics(t *testing.T) {
	db := setupTestDB(t)
	user, formation := seedUserAndFormation(t, db)
	payments, _ := newTestServices(t, db, baseTime)

	if _, err := payments.Create(CreatePaymentDTO{
		UserID:      user.ID,
		FormationID: formation.ID,
		TotalAmount: 1000,
		PaymentType: models.PaymentTypeComplete,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	day1 := baseTime.AddDate(0, 0, 1)
	created, err := payments.Create(CreatePaymentDTO{
		UserID:       user.ID,
		FormationID:  formation.ID,
		TotalAmount:  600,
		PaymentType:  models.PaymentTypeInstallment,
		Installments: installmentsOf([]float64{300, 300}, []time.Time{day1, day1.AddDate(0, 1, 0)}),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := payments.MarkInstallmentPaid(created.ID, 0, user.ID); err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}

	stats, err := payments.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}

	byStatus := make(map[string]StatusStatisticsDTO)
	for _, s := range stats {
		byStatus[s.Status] = s
	}
	if byStatus["PENDING"].Count != 1 || byStatus["PENDING"].TotalAmount != 1000 {
		t.Errorf("PENDING stats = %+v, want count 1 amount 1000", byStatus["PENDING"])
	}
	if byStatus["PARTIAL"].Count != 1 || byStatus["PARTIAL"].TotalAmount != 600 {
		t.Errorf("PARTIAL stats = %+v, want count 1 amount 600", byStatus["PARTIAL"])
	}
}
