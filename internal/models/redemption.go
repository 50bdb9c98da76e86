package models

import "time"

// Redemption record statuses.
const (
	RedemptionStatusActive  = "active"
	RedemptionStatusRevoked = "revoked"
)

// Redemption is the ledger entry written when a card is applied to a credential.
// It is immutable except for the one-time active -> revoked transition.
type Redemption struct {
	ID string // Unique identifier, assigned at redemption.

	CardID   string // Back-reference to the redeemed card.
	CardCode string // Card code snapshot.
	CardType string // Card type snapshot.

	UserID     string // Redeeming user ID.
	Username   string // Redeeming username snapshot.
	APIKeyID   string // Target credential ID.
	APIKeyName string // Target credential name snapshot.

	QuotaAdded float64 // Quota actually granted.
	TimeAdded  int     // Time actually granted.
	TimeUnit   string  // Unit for TimeAdded.

	BeforeQuota  float64    // Credential quota limit before the grant.
	AfterQuota   float64    // Credential quota limit after the grant (collaborator-reported).
	BeforeExpiry *time.Time // Credential expiry before the grant.
	AfterExpiry  *time.Time // Credential expiry after the grant (collaborator-reported).

	Timestamp time.Time // Redemption time.
	Status    string    // active | revoked.

	RevokedAt           *time.Time // Revocation time.
	RevokedBy           string     // Revoking actor.
	RevokeReason        string     // Revocation reason.
	ActualQuotaDeducted float64    // Quota actually clawed back; may be clamped below QuotaAdded.
}
