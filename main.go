package main

import (
	"fmt"
	"log"
	"time"

	"instituteApp/config"
	"instituteApp/controllers"
	"instituteApp/database"
	"instituteApp/middleware"
	"instituteApp/models"
	"instituteApp/services"

	"github.com/gin-gonic/gin"
)

func initOverdueSweeper(db *database.Database, alertService *services.AlertService, cfg *config.Config) *services.OverdueSweeperService {
	interval := time.Duration(cfg.Sweep.Interval) * time.Minute
	sweeper := services.NewOverdueSweeperService(db.DB, alertService, interval)
	sweeper.Start()
	log.Println("Overdue sweeper started")
	return sweeper
}

func main() {
	// Load the configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to the database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Build the services
	emailService := services.NewEmailService(cfg)
	alertService := services.NewAlertService(db.DB, emailService)
	paymentService := services.NewPaymentService(db.DB, alertService, emailService)
	formationService := services.NewFormationService(db.DB)

	// Start the overdue sweeper
	sweeper := initOverdueSweeper(db, alertService, cfg)

	// Build the controllers
	authController := controllers.NewAuthController(db, cfg)
	paymentController := controllers.NewPaymentController(paymentService, sweeper)
	alertController := controllers.NewAlertController(alertService)
	formationController := controllers.NewFormationController(formationService)
	metricsController := controllers.NewMetricsController()

	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RateLimit())

	// Public auth routes
	router.POST("/api/auth/signUp", authController.SignUp)
	router.POST("/api/auth/signIn", authController.SignIn)

	// Protected routes
	api := router.Group("/api")
	api.Use(middleware.Auth([]byte(authController.GetJWTKey())))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleReception)
	admin := middleware.RequireRoles(models.RoleAdmin)

	// Payment routes
	api.POST("/payments/create", staff, paymentController.CreatePayment)
	api.GET("/payments", staff, paymentController.ListPayments)
	api.GET("/payments/overdue", staff, paymentController.ListOverduePayments)
	api.GET("/payments/statistics", staff, paymentController.GetStatistics)
	api.GET("/payments/my-payments", paymentController.GetMyPayments)
	api.GET("/payments/:id", paymentController.GetPayment)
	api.PUT("/payments/:id/installment/pay", staff, paymentController.PayInstallment)
	api.PUT("/payments/:id/installment/due-date", staff, paymentController.UpdateInstallmentDueDate)
	api.PUT("/payments/:id/complete/pay", staff, paymentController.PayCompletePayment)
	api.POST("/payments/send-alert", staff, paymentController.SendAlert)
	api.DELETE("/payments/:id", admin, paymentController.DeletePayment)

	// Alert routes
	api.GET("/alerts", staff, alertController.GetAllAlerts)
	api.GET("/alerts/my-alerts", alertController.GetMyAlerts)
	api.PUT("/alerts/:id/read", alertController.MarkRead)
	api.POST("/alerts/bulk", staff, alertController.EmitBulk)

	// Formation routes
	api.POST("/formations", admin, formationController.CreateFormation)
	api.GET("/formations", formationController.ListFormations)

	// Metrics
	api.GET("/metrics", admin, metricsController.GetMetrics)

	// Start the server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
