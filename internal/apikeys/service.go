// Package apikeys implements the credential collaborator contract on top of
// the relational API key table.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/router-for-me/QuotaCardService/internal/models"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
	"github.com/router-for-me/QuotaCardService/internal/util"
)

// Service exposes credential reads and quota/expiry mutations over GORM.
type Service struct {
	db *gorm.DB
}

// NewService wires a credential service with its database dependency.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

var _ redemption.CredentialService = (*Service)(nil)

// GetCredential loads a credential view by ID.
func (s *Service) GetCredential(ctx context.Context, id string) (*redemption.Credential, error) {
	var key models.APIKey
	if errFind := s.db.WithContext(ctx).First(&key, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, redemption.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("apikeys: get credential: %w", errFind)
	}
	return &redemption.Credential{
		ID:           key.ID,
		Name:         key.Name,
		QuotaLimit:   key.QuotaLimit,
		ExpiresAt:    key.ExpiresAt,
		IsAggregated: key.IsAggregated,
	}, nil
}

// IncreaseQuotaLimit raises the quota limit by amount and returns the new
// limit as stored, not recomputed locally.
func (s *Service) IncreaseQuotaLimit(ctx context.Context, id string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("apikeys: increase amount must be positive")
	}
	var newLimit float64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key models.APIKey
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&key, "id = ?", id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return redemption.ErrCredentialNotFound
			}
			return errFind
		}
		newLimit = key.QuotaLimit + amount
		return tx.Model(&key).Update("quota_limit", newLimit).Error
	})
	if errTx != nil {
		return 0, errTx
	}
	log.Infof("increased quota limit of key %s by %v to %v", util.HideKeyID(id), amount, newLimit)
	return newLimit, nil
}

// DeductQuotaLimit lowers the quota limit by up to amount, clamping the limit
// at zero, and returns the amount actually deducted.
func (s *Service) DeductQuotaLimit(ctx context.Context, id string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("apikeys: deduct amount must be positive")
	}
	var actual float64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key models.APIKey
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&key, "id = ?", id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return redemption.ErrCredentialNotFound
			}
			return errFind
		}
		actual = amount
		if key.QuotaLimit < amount {
			actual = key.QuotaLimit
		}
		if actual <= 0 {
			actual = 0
			return nil
		}
		return tx.Model(&key).Update("quota_limit", key.QuotaLimit-actual).Error
	})
	if errTx != nil {
		return 0, errTx
	}
	log.Infof("deducted %v quota from key %s", actual, util.HideKeyID(id))
	return actual, nil
}

// ExtendExpiry pushes the credential expiry out by amount units and returns
// the new expiry. Extension is applied on top of the current expiry when it is
// still in the future, otherwise on top of now.
func (s *Service) ExtendExpiry(ctx context.Context, id string, amount int, unit string) (time.Time, error) {
	if amount <= 0 {
		return time.Time{}, fmt.Errorf("apikeys: extend amount must be positive")
	}
	if !models.ValidTimeUnit(unit) {
		return time.Time{}, fmt.Errorf("apikeys: unknown time unit %q", unit)
	}
	var newExpiry time.Time
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key models.APIKey
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&key, "id = ?", id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return redemption.ErrCredentialNotFound
			}
			return errFind
		}
		base := time.Now().UTC()
		if key.ExpiresAt != nil && key.ExpiresAt.After(base) {
			base = key.ExpiresAt.UTC()
		}
		switch unit {
		case models.TimeUnitHours:
			newExpiry = base.Add(time.Duration(amount) * time.Hour)
		case models.TimeUnitDays:
			newExpiry = base.AddDate(0, 0, amount)
		case models.TimeUnitMonths:
			newExpiry = base.AddDate(0, amount, 0)
		}
		return tx.Model(&key).Update("expires_at", newExpiry).Error
	})
	if errTx != nil {
		return time.Time{}, errTx
	}
	log.Infof("extended expiry of key %s by %d %s to %s", util.HideKeyID(id), amount, unit, newExpiry.Format(time.RFC3339))
	return newExpiry, nil
}
