package controllers

import (
	"net/http"

	"instituteApp/utils"

	"github.com/gin-gonic/gin"
)

// MetricsController exposes the in-process metrics snapshot
type MetricsController struct{}

// NewMetricsController creates a new MetricsController instance
func NewMetricsController() *MetricsController {
	return &MetricsController{}
}

// GetMetrics returns the current metrics snapshot
func (c *MetricsController) GetMetrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
}
