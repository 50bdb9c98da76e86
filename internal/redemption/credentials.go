package redemption

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialNotFound reports an unknown target credential.
var ErrCredentialNotFound = errors.New("credential not found")

// Credential is the view of a target credential the engine needs to validate
// and snapshot a redemption.
type Credential struct {
	ID           string     // Credential identifier.
	Name         string     // Display name, snapshotted into the ledger.
	QuotaLimit   float64    // Current quota limit.
	ExpiresAt    *time.Time // Current expiry; nil means no expiry.
	IsAggregated bool       // Pooled credential flag; gates quota/combo grants.
}

// CredentialService is the external credential-management collaborator. The
// engine receives an implementation at construction; mutation calls are not
// idempotent, so the engine invokes each at most once per redemption.
type CredentialService interface {
	// GetCredential loads a credential or returns ErrCredentialNotFound.
	GetCredential(ctx context.Context, id string) (*Credential, error)
	// IncreaseQuotaLimit raises the quota limit and returns the new limit.
	IncreaseQuotaLimit(ctx context.Context, id string, amount float64) (float64, error)
	// DeductQuotaLimit lowers the quota limit, clamping at zero, and returns
	// the amount actually deducted.
	DeductQuotaLimit(ctx context.Context, id string, amount float64) (float64, error)
	// ExtendExpiry pushes the expiry out by amount units and returns the new
	// expiry. Unit is hours, days, or months.
	ExtendExpiry(ctx context.Context, id string, amount int, unit string) (time.Time, error)
}
