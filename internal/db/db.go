// Package db provides database connection and management functionality
package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// Setup opens the PostgreSQL database described by the DB_* settings and
// migrates the schema.
func Setup() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		viper.GetString("DB_HOST"),
		viper.GetString("DB_USER"),
		viper.GetString("DB_PASSWORD"),
		viper.GetString("DB_NAME"),
		viper.GetString("DB_PORT"),
		viper.GetString("DB_SSLMODE"),
	)

	conn, err := Open(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"host": viper.GetString("DB_HOST"),
		"name": viper.GetString("DB_NAME"),
	}).Info("Database initialized successfully")
	return conn, nil
}

// Open connects through the given dialector and runs migrations.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates the tables of every model.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
