package apikeys

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/router-for-me/QuotaCardService/internal/models"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.APIKey{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewService(db)
}

func seedKey(t *testing.T, s *Service, key *models.APIKey) {
	t.Helper()
	if errCreate := s.db.Create(key).Error; errCreate != nil {
		t.Fatalf("seed key: %v", errCreate)
	}
}

func TestService_GetCredential(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	seedKey(t, s, &models.APIKey{
		ID:           "key-1",
		Name:         "main key",
		APIKey:       "sk-test-1",
		IsAggregated: true,
		QuotaLimit:   25,
		ExpiresAt:    &expires,
		Active:       true,
	})

	cred, errGet := s.GetCredential(ctx, "key-1")
	if errGet != nil {
		t.Fatalf("get credential: %v", errGet)
	}
	if cred.Name != "main key" || cred.QuotaLimit != 25 || !cred.IsAggregated {
		t.Fatalf("credential view mismatch: %+v", cred)
	}
	if cred.ExpiresAt == nil || !cred.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry mismatch: %v, want %v", cred.ExpiresAt, expires)
	}

	if _, err := s.GetCredential(ctx, "ghost"); !errors.Is(err, redemption.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestService_IncreaseQuotaLimit(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	seedKey(t, s, &models.APIKey{ID: "key-1", Name: "k", APIKey: "sk-1", QuotaLimit: 10})

	newLimit, errInc := s.IncreaseQuotaLimit(ctx, "key-1", 40)
	if errInc != nil {
		t.Fatalf("increase: %v", errInc)
	}
	if newLimit != 50 {
		t.Fatalf("new limit = %v, want 50", newLimit)
	}
	cred, _ := s.GetCredential(ctx, "key-1")
	if cred.QuotaLimit != 50 {
		t.Fatalf("stored limit = %v, want 50", cred.QuotaLimit)
	}

	if _, err := s.IncreaseQuotaLimit(ctx, "key-1", 0); err == nil {
		t.Fatalf("non-positive amount should fail")
	}
	if _, err := s.IncreaseQuotaLimit(ctx, "ghost", 10); !errors.Is(err, redemption.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestService_DeductQuotaLimitClampsAtZero(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	seedKey(t, s, &models.APIKey{ID: "key-1", Name: "k", APIKey: "sk-1", QuotaLimit: 30})

	actual, errDeduct := s.DeductQuotaLimit(ctx, "key-1", 50)
	if errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	if actual != 30 {
		t.Fatalf("actual = %v, want 30 (clamped to remaining quota)", actual)
	}
	cred, _ := s.GetCredential(ctx, "key-1")
	if cred.QuotaLimit != 0 {
		t.Fatalf("stored limit = %v, want 0", cred.QuotaLimit)
	}

	// Nothing left: the deduction is a no-op reporting zero.
	actual, errDeduct = s.DeductQuotaLimit(ctx, "key-1", 5)
	if errDeduct != nil {
		t.Fatalf("deduct from empty: %v", errDeduct)
	}
	if actual != 0 {
		t.Fatalf("actual = %v, want 0", actual)
	}

	if _, err := s.DeductQuotaLimit(ctx, "ghost", 5); !errors.Is(err, redemption.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestService_ExtendExpiryFromFutureBase(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	seedKey(t, s, &models.APIKey{ID: "key-1", Name: "k", APIKey: "sk-1", ExpiresAt: &future})

	newExpiry, errExt := s.ExtendExpiry(ctx, "key-1", 7, models.TimeUnitDays)
	if errExt != nil {
		t.Fatalf("extend: %v", errExt)
	}
	if want := future.AddDate(0, 0, 7); !newExpiry.Equal(want) {
		t.Fatalf("new expiry = %v, want %v (stacked on current expiry)", newExpiry, want)
	}
}

func TestService_ExtendExpiryFromNowWhenLapsed(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-24 * time.Hour)
	seedKey(t, s, &models.APIKey{ID: "key-1", Name: "k", APIKey: "sk-1", ExpiresAt: &past})

	before := time.Now().UTC()
	newExpiry, errExt := s.ExtendExpiry(ctx, "key-1", 12, models.TimeUnitHours)
	if errExt != nil {
		t.Fatalf("extend: %v", errExt)
	}
	after := time.Now().UTC()
	if newExpiry.Before(before.Add(12*time.Hour)) || newExpiry.After(after.Add(12*time.Hour)) {
		t.Fatalf("lapsed expiry must extend from now, got %v", newExpiry)
	}
}

func TestService_ExtendExpiryMonthsAndValidation(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	seedKey(t, s, &models.APIKey{ID: "key-1", Name: "k", APIKey: "sk-1", ExpiresAt: &future})

	newExpiry, errExt := s.ExtendExpiry(ctx, "key-1", 2, models.TimeUnitMonths)
	if errExt != nil {
		t.Fatalf("extend: %v", errExt)
	}
	if want := future.AddDate(0, 2, 0); !newExpiry.Equal(want) {
		t.Fatalf("new expiry = %v, want %v", newExpiry, want)
	}

	if _, err := s.ExtendExpiry(ctx, "key-1", 0, models.TimeUnitDays); err == nil {
		t.Fatalf("non-positive amount should fail")
	}
	if _, err := s.ExtendExpiry(ctx, "key-1", 1, "weeks"); err == nil {
		t.Fatalf("unknown unit should fail")
	}
	if _, err := s.ExtendExpiry(ctx, "ghost", 1, models.TimeUnitDays); !errors.Is(err, redemption.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}
