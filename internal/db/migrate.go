package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/router-for-me/QuotaCardService/internal/models"
)

// Migrate creates or updates the schema for the credential tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(&models.APIKey{})
}
