package models

import "time"

// APIKey represents an API-access credential that cards can be redeemed onto.
type APIKey struct {
	ID string `gorm:"type:text;primaryKey"` // Primary key.

	Name   string `gorm:"type:text;not null"`             // Display name for the key.
	APIKey string `gorm:"type:text;not null;uniqueIndex"` // Full API key string.

	// IsAggregated marks pooled credentials. Only aggregated keys may receive
	// quota/combo card grants.
	IsAggregated bool `gorm:"not null;default:false"`

	QuotaLimit float64    `gorm:"type:decimal(20,10);not null;default:0"` // Issued quota allowance.
	ExpiresAt  *time.Time // Optional expiration timestamp.

	Active     bool       `gorm:"not null;default:true"` // Whether the key is enabled.
	LastUsedAt *time.Time // Last successful usage time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
