package models

import "time"

// Card types supported by the card service.
const (
	// CardTypeQuota grants a quota increase only.
	CardTypeQuota = "quota"
	// CardTypeTime grants a validity extension only.
	CardTypeTime = "time"
	// CardTypeCombo grants both quota and time.
	CardTypeCombo = "combo"
)

// Card statuses. A card holds exactly one status at any time.
const (
	CardStatusUnused   = "unused"
	CardStatusRedeemed = "redeemed"
	CardStatusRevoked  = "revoked"
	CardStatusExpired  = "expired"
)

// Time units accepted for time/combo cards.
const (
	TimeUnitHours  = "hours"
	TimeUnitDays   = "days"
	TimeUnitMonths = "months"
)

// ValidCardType reports whether t is a known card type.
func ValidCardType(t string) bool {
	return t == CardTypeQuota || t == CardTypeTime || t == CardTypeCombo
}

// ValidTimeUnit reports whether u is a known time unit.
func ValidTimeUnit(u string) bool {
	return u == TimeUnitHours || u == TimeUnitDays || u == TimeUnitMonths
}

// CardStatuses lists every card status, used for stats and index iteration.
var CardStatuses = []string{CardStatusUnused, CardStatusRedeemed, CardStatusRevoked, CardStatusExpired}

// Card represents a single-use quota/time grant token.
type Card struct {
	ID   string // Unique identifier, assigned at creation.
	Code string // Human-facing code, CC_XXXX_XXXX_XXXX.
	Type string // quota | time | combo.

	QuotaAmount float64 // Quota granted on redemption; >0 for quota/combo.
	TimeAmount  int     // Time granted on redemption; >0 for time/combo.
	TimeUnit    string  // hours | days | months.

	Status    string     // unused | redeemed | revoked | expired.
	ExpiresAt *time.Time // Card validity deadline; nil means never expires.

	CreatedBy string    // Actor who issued the card.
	CreatedAt time.Time // Creation timestamp.
	Note      string    // Free-form issuance note.

	RedeemedBy         string     // Redeeming user ID.
	RedeemedByUsername string     // Redeeming username snapshot.
	RedeemedAPIKeyID   string     // Target credential ID.
	RedeemedAPIKeyName string     // Target credential name snapshot.
	RedeemedAt         *time.Time // Redemption time.

	RevokedAt    *time.Time // Revocation time.
	RevokedBy    string     // Revoking actor.
	RevokeReason string     // Revocation reason.
}
