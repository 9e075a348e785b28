package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"instituteApp/config"
	"instituteApp/models"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database represents the database connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// GetDB returns the GORM instance
func (d *Database) GetDB() *gorm.DB {
	return d.DB
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Connect opens the database connection and runs migrations
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.DBName,
	)

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Info,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// Connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %v", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// SQL migrations
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run SQL migrations: %v", err)
	}

	// Model auto-migration
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %v", err)
	}

	return db, nil
}

// runMigrations runs the SQL migrations
func runMigrations(cfg *config.Config) error {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.DBName,
	)

	m, err := migrate.New(
		"file://migrations",
		dsn,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %v", err)
	}

	return nil
}

// AutoMigrate runs the model auto-migration
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Formation{},
		&models.Payment{},
		&models.Installment{},
		&models.PaymentAlert{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %v", err)
	}

	return nil
}

// User helpers
func (d *Database) CreateUser(user *models.User) error {
	return d.DB.Create(user).Error
}

func (d *Database) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := d.DB.First(&user, id).Error
	return &user, err
}

func (d *Database) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := d.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

// Formation helpers
func (d *Database) CreateFormation(formation *models.Formation) error {
	return d.DB.Create(formation).Error
}

func (d *Database) GetFormationByID(id uint) (*models.Formation, error) {
	var formation models.Formation
	err := d.DB.First(&formation, id).Error
	return &formation, err
}

// Payment helpers
func (d *Database) CreatePayment(payment *models.Payment) error {
	return d.DB.Create(payment).Error
}

func (d *Database) GetPaymentByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := d.DB.Preload("Installments").First(&payment, id).Error
	return &payment, err
}

// Alert helpers
func (d *Database) CreateAlert(alert *models.PaymentAlert) error {
	return d.DB.Create(alert).Error
}

func (d *Database) GetAlertByID(id uint) (*models.PaymentAlert, error) {
	var alert models.PaymentAlert
	err := d.DB.First(&alert, id).Error
	return &alert, err
}
