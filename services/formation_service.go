package services

import (
	"errors"
	"strings"

	"instituteApp/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateFormationDTO represents the data for creating a formation
type CreateFormationDTO struct {
	Title       string  `json:"title" validate:"required,min=2,max=150"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Months      int     `json:"months" validate:"required,gt=0"`
}

// FormationDTO represents a formation in API responses
type FormationDTO struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Months      int     `json:"months"`
	IsActive    bool    `json:"is_active"`
}

// FormationService provides methods for the formation catalog
type FormationService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewFormationService creates a new FormationService instance
func NewFormationService(db *gorm.DB) *FormationService {
	return &FormationService{
		db:        db,
		validator: validator.New(),
	}
}

// Create creates a new formation
func (s *FormationService) Create(dto CreateFormationDTO) (*FormationDTO, error) {
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "field "+e.Field()+" is required")
			case "gt":
				errorMessages = append(errorMessages, "field "+e.Field()+" must be greater than 0")
			default:
				errorMessages = append(errorMessages, "field "+e.Field()+" is invalid")
			}
		}
		return nil, NewValidationError(strings.Join(errorMessages, "; "))
	}

	formation := &models.Formation{
		Title:       dto.Title,
		Description: dto.Description,
		Price:       dto.Price,
		Months:      dto.Months,
		IsActive:    true,
	}

	if err := s.db.Create(formation).Error; err != nil {
		return nil, errors.New("failed to create formation")
	}

	result := s.toDTO(formation)
	return &result, nil
}

// List returns all active formations
func (s *FormationService) List() ([]FormationDTO, error) {
	var formations []models.Formation
	if err := s.db.Where("is_active = ?", true).
		Order("title ASC").
		Find(&formations).Error; err != nil {
		return nil, errors.New("failed to load formations")
	}

	result := make([]FormationDTO, len(formations))
	for i := range formations {
		result[i] = s.toDTO(&formations[i])
	}
	return result, nil
}

// FindByID returns the formation with the given id
func (s *FormationService) FindByID(id uint) (*FormationDTO, error) {
	var formation models.Formation
	if err := s.db.First(&formation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("formation not found")
		}
		return nil, errors.New("failed to load formation")
	}
	result := s.toDTO(&formation)
	return &result, nil
}

func (s *FormationService) toDTO(formation *models.Formation) FormationDTO {
	return FormationDTO{
		ID:          formation.ID,
		Title:       formation.Title,
		Description: formation.Description,
		Price:       formation.Price,
		Months:      formation.Months,
		IsActive:    formation.IsActive,
	}
}
