package database

import (
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"loginflow/backend/internal/config"
	"loginflow/backend/internal/models"
	"loginflow/backend/pkg/utils"
)

var DB *gorm.DB

func InitDatabase(cfg *config.Config) error {
	var err error

	dsn := cfg.GetDSN()

	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connected successfully")

	return AutoMigrate()
}

func AutoMigrate() error {
	err := DB.AutoMigrate(
		&models.User{},
		&models.SiteRecord{},
		&models.ReplayRun{},
		&models.SessionMirror{},
	)

	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migration completed")

	return SeedDefaultData()
}

func SeedDefaultData() error {
	var admin models.User
	err := DB.Where("username = ?", "admin").First(&admin).Error
	if err == gorm.ErrRecordNotFound {
		hashed, err := utils.HashPassword("admin123")
		if err != nil {
			return fmt.Errorf("failed to hash default admin password: %w", err)
		}
		admin = models.User{
			Username: "admin",
			Email:    "admin@loginflow.local",
			Password: hashed,
			Status:   1,
		}
		if err := DB.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to create default admin: %w", err)
		}
		log.Println("Default admin user created")
	}
	return nil
}
