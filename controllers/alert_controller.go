package controllers

import (
	"net/http"
	"strconv"

	"instituteApp/middleware"
	"instituteApp/services"

	"github.com/gin-gonic/gin"
)

// AlertController handles the payment alert routes
type AlertController struct {
	alertService *services.AlertService
}

// NewAlertController creates a new AlertController instance
func NewAlertController(alertService *services.AlertService) *AlertController {
	return &AlertController{alertService: alertService}
}

// GetMyAlerts returns the authenticated caller's alerts
func (c *AlertController) GetMyAlerts(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	alerts, err := c.alertService.ListByUser(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, alerts)
}

// GetAllAlerts returns every alert for staff review
func (c *AlertController) GetAllAlerts(ctx *gin.Context) {
	alerts, err := c.alertService.ListAll()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, alerts)
}

// MarkRead flips an alert to the read state
func (c *AlertController) MarkRead(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	alert, err := c.alertService.MarkRead(uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, alert)
}

// EmitBulk creates one alert per target user
func (c *AlertController) EmitBulk(ctx *gin.Context) {
	var dto services.EmitBulkDTO
	if err := ctx.ShouldBindJSON(&dto); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actingUserID, _ := middleware.GetUserID(ctx)
	dto.SentBy = actingUserID

	created, err := c.alertService.EmitBulk(dto)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"created": created})
}
