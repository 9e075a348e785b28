package controllers

import (
	"net/http"
	"regexp"
	"time"

	"instituteApp/config"
	"instituteApp/database"
	"instituteApp/middleware"
	"instituteApp/models"
	"instituteApp/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthController struct {
	userHandler *services.UserService
	validate    *validator.Validate
	config      *config.Config
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type SignUpRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50,alpha"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,alpha"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,password"`
	Phone     string `json:"phone" validate:"omitempty,min=6,max=20"`
	Role      string `json:"role" validate:"omitempty,oneof=student teacher reception admin"`
}

type Token struct {
	Token  string `json:"token"`
	Email  string `json:"email"`
	UserID uint   `json:"userId"`
}

type AuthResponse struct {
	Token Token            `json:"token"`
	User  services.UserDTO `json:"user"`
}

func NewAuthController(db *database.Database, cfg *config.Config) *AuthController {
	validate := validator.New()

	// Custom password validation
	validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		password := fl.Field().String()
		hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
		hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
		hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
		hasSpecial := regexp.MustCompile(`[!@#$%^&*]`).MatchString(password)

		return hasNumber && hasUpper && hasLower && hasSpecial
	})

	return &AuthController{
		userHandler: services.NewUserService(db),
		validate:    validate,
		config:      cfg,
	}
}

// GetJWTKey returns the configured JWT signing key
func (c *AuthController) GetJWTKey() string {
	return c.config.JWT.SecretKey
}

// SignIn authenticates a user and issues a JWT with the role claim
func (c *AuthController) SignIn(ctx *gin.Context) {
	var req SignInRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := c.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrors.Error()})
		return
	}

	user, err := c.userHandler.FindByEmail(req.Email)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := c.issueToken(user)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	ctx.JSON(http.StatusOK, AuthResponse{
		Token: Token{Token: token, Email: user.Email, UserID: user.ID},
		User:  c.userHandler.ToDTO(user),
	})
}

// SignUp registers a new account. Public sign-up always creates a
// student; staff roles can only be assigned by an admin caller.
func (c *AuthController) SignUp(ctx *gin.Context) {
	var req SignUpRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := c.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrors.Error()})
		return
	}

	role := req.Role
	if role != "" && role != string(models.RoleStudent) {
		if middleware.GetRole(ctx) != models.RoleAdmin {
			role = string(models.RoleStudent)
		}
	}

	user, err := c.userHandler.CreateUserInternal(services.CreateUserRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Role:      role,
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := c.issueToken(user)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	ctx.JSON(http.StatusCreated, AuthResponse{
		Token: Token{Token: token, Email: user.Email, UserID: user.ID},
		User:  c.userHandler.ToDTO(user),
	})
}

// issueToken signs a JWT for the user
func (c *AuthController) issueToken(user *models.User) (string, error) {
	expiresAt := time.Now().Add(time.Duration(c.config.JWT.ExpiresIn) * time.Hour)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.config.JWT.SecretKey))
}
