package services

import (
	"errors"

	"instituteApp/database"
	"instituteApp/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db *database.Database
}

type UserDTO struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

type CreateUserRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Phone     string `json:"phone" validate:"omitempty,min=6,max=20"`
	Role      string `json:"role" validate:"omitempty,oneof=student teacher reception admin"`
}

func NewUserService(db *database.Database) *UserService {
	return &UserService{db: db}
}

// CreateUserInternal creates a new user
func (h *UserService) CreateUserInternal(req CreateUserRequest) (*models.User, error) {
	// Reject duplicate emails
	var existingUser models.User
	if err := h.db.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existingUser).Error; err == nil {
		return nil, errors.New("user with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := models.UserRole(req.Role)
	if role == "" {
		role = models.RoleStudent
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashedPassword),
		Phone:     req.Phone,
		Role:      role,
	}

	if err := h.db.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// FindByEmail returns the user with the given email
func (h *UserService) FindByEmail(email string) (*models.User, error) {
	return h.db.GetUserByEmail(email)
}

// FindByID returns the user with the given id
func (h *UserService) FindByID(id uint) (*models.User, error) {
	return h.db.GetUserByID(id)
}

// ToDTO converts a User model to its DTO
func (h *UserService) ToDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      string(user.Role),
	}
}
