package controllers

import (
	"net/http"

	"instituteApp/services"

	"github.com/gin-gonic/gin"
)

// FormationController handles the formation catalog routes
type FormationController struct {
	formationService *services.FormationService
}

// NewFormationController creates a new FormationController instance
func NewFormationController(formationService *services.FormationService) *FormationController {
	return &FormationController{formationService: formationService}
}

// CreateFormation handles the formation creation request
func (c *FormationController) CreateFormation(ctx *gin.Context) {
	var dto services.CreateFormationDTO
	if err := ctx.ShouldBindJSON(&dto); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	formation, err := c.formationService.Create(dto)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, formation)
}

// ListFormations returns all active formations
func (c *FormationController) ListFormations(ctx *gin.Context) {
	formations, err := c.formationService.List()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, formations)
}
