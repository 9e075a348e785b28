package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"instituteApp/middleware"
	"instituteApp/models"
	"instituteApp/services"
	"instituteApp/utils"

	"github.com/gin-gonic/gin"
)

// PaymentController handles the payment and installment lifecycle routes
type PaymentController struct {
	paymentService *services.PaymentService
	sweeper        *services.OverdueSweeperService
}

// NewPaymentController creates a new PaymentController instance
func NewPaymentController(paymentService *services.PaymentService, sweeper *services.OverdueSweeperService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		sweeper:        sweeper,
	}
}

// respondError maps a service error to an HTTP status
func respondError(ctx *gin.Context, err error) {
	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	var invalidOpErr *services.InvalidOperationError

	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalidOpErr):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		utils.LogError("Internal error: %v", err)
		utils.GetMetrics().RecordError(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// paymentIDParam parses the :id path parameter
func paymentIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return 0, false
	}
	return uint(id), true
}

// CreatePayment handles the payment creation request
func (c *PaymentController) CreatePayment(ctx *gin.Context) {
	var dto services.CreatePaymentDTO
	if err := ctx.ShouldBindJSON(&dto); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	payment, err := c.paymentService.Create(dto)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.GetMetrics().RecordPaymentOperation("create", nil)
	ctx.JSON(http.StatusCreated, payment)
}

// ListPayments handles the payment list request with optional filters
func (c *PaymentController) ListPayments(ctx *gin.Context) {
	filters := services.PaymentListFilters{
		Status:      ctx.Query("status"),
		PaymentType: ctx.Query("paymentType"),
		Overdue:     ctx.Query("overdue") == "true",
	}

	payments, err := c.paymentService.List(filters)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, payments)
}

// GetPayment handles the single payment request. Students can only read
// their own payments.
func (c *PaymentController) GetPayment(ctx *gin.Context) {
	paymentID, ok := paymentIDParam(ctx)
	if !ok {
		return
	}

	payment, err := c.paymentService.GetByID(paymentID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if middleware.GetRole(ctx) == models.RoleStudent {
		userID, _ := middleware.GetUserID(ctx)
		if payment.UserID != userID {
			ctx.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
	}

	ctx.JSON(http.StatusOK, payment)
}

// PayInstallmentRequest represents the body of an installment pay request
type PayInstallmentRequest struct {
	InstallmentIndex int `json:"installment_index"`
}

// PayInstallment handles the request to mark one installment paid
func (c *PaymentController) PayInstallment(ctx *gin.Context) {
	paymentID, ok := paymentIDParam(ctx)
	if !ok {
		return
	}

	var req PayInstallmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actingUserID, _ := middleware.GetUserID(ctx)

	payment, err := c.paymentService.MarkInstallmentPaid(paymentID, req.InstallmentIndex, actingUserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.GetMetrics().RecordPaymentOperation("pay_installment", nil)
	ctx.JSON(http.StatusOK, payment)
}

// UpdateDueDateRequest represents the body of a due-date edit request
type UpdateDueDateRequest struct {
	InstallmentIndex int       `json:"installment_index"`
	DueDate          time.Time `json:"due_date"`
}

// UpdateInstallmentDueDate handles the request to move an unpaid
// installment's due date
func (c *PaymentController) UpdateInstallmentDueDate(ctx *gin.Context) {
	paymentID, ok := paymentIDParam(ctx)
	if !ok {
		return
	}

	var req UpdateDueDateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	payment, err := c.paymentService.UpdateInstallmentDueDate(paymentID, req.InstallmentIndex, req.DueDate)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, payment)
}

// PayCompletePayment handles the request to mark a complete payment paid
func (c *PaymentController) PayCompletePayment(ctx *gin.Context) {
	paymentID, ok := paymentIDParam(ctx)
	if !ok {
		return
	}

	actingUserID, _ := middleware.GetUserID(ctx)

	payment, err := c.paymentService.MarkCompletePaymentPaid(paymentID, actingUserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.GetMetrics().RecordPaymentOperation("complete", nil)
	ctx.JSON(http.StatusOK, payment)
}

// ListOverduePayments sweeps, then lists payments that are overdue
func (c *PaymentController) ListOverduePayments(ctx *gin.Context) {
	updated, err := c.sweeper.SweepOverdue(time.Now())
	if err != nil {
		respondError(ctx, err)
		return
	}
	if updated > 0 {
		utils.GetMetrics().RecordPaymentOperation("sweep", nil)
	}

	payments, err := c.paymentService.List(services.PaymentListFilters{Overdue: true})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, payments)
}

// GetStatistics handles the grouped statistics request
func (c *PaymentController) GetStatistics(ctx *gin.Context) {
	stats, err := c.paymentService.Statistics()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

// GetMyPayments returns the authenticated caller's payments
func (c *PaymentController) GetMyPayments(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payments, err := c.paymentService.ListByUser(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, payments)
}

// SendAlertRequest represents the body of a manual alert request
type SendAlertRequest struct {
	PaymentID uint   `json:"payment_id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

// SendAlert handles the manual payment alert request
func (c *PaymentController) SendAlert(ctx *gin.Context) {
	var req SendAlertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.PaymentID == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "payment_id is required"})
		return
	}

	alertType := models.AlertType(req.Type)
	if alertType == "" {
		alertType = models.AlertTypePaymentReminder
	}

	actingUserID, _ := middleware.GetUserID(ctx)

	alert, err := c.paymentService.SendManualAlert(req.PaymentID, req.Message, alertType, actingUserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.GetMetrics().RecordPaymentOperation("alert", nil)
	ctx.JSON(http.StatusCreated, alert)
}

// DeletePayment removes a payment and its alerts
func (c *PaymentController) DeletePayment(ctx *gin.Context) {
	paymentID, ok := paymentIDParam(ctx)
	if !ok {
		return
	}

	if err := c.paymentService.Delete(paymentID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Payment deleted"})
}
