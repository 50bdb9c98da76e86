package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/QuotaCardService/internal/cards"
	"github.com/router-for-me/QuotaCardService/internal/models"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
)

// respondDomainError maps card/redemption domain errors onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	var validation *cards.ValidationError
	var state *cards.StateError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.Is(err, cards.ErrCardNotFound),
		errors.Is(err, redemption.ErrRedemptionNotFound),
		errors.Is(err, redemption.ErrCredentialNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &state):
		c.JSON(http.StatusConflict, gin.H{"error": state.Error()})
	case errors.Is(err, redemption.ErrAlreadyRevoked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cards.ErrCardExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, redemption.ErrNotAggregated):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parsePagination reads limit/offset query parameters with sane bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 100
	offset = 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if v, errParse := strconv.Atoi(raw); errParse == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		if v, errParse := strconv.Atoi(raw); errParse == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// formatCard maps a card model into a response payload.
func formatCard(card *models.Card) gin.H {
	return gin.H{
		"id":                    card.ID,
		"code":                  card.Code,
		"type":                  card.Type,
		"quota_amount":          card.QuotaAmount,
		"time_amount":           card.TimeAmount,
		"time_unit":             card.TimeUnit,
		"status":                card.Status,
		"expires_at":            card.ExpiresAt,
		"created_by":            card.CreatedBy,
		"created_at":            card.CreatedAt,
		"note":                  card.Note,
		"redeemed_by":           card.RedeemedBy,
		"redeemed_by_username":  card.RedeemedByUsername,
		"redeemed_api_key_id":   card.RedeemedAPIKeyID,
		"redeemed_api_key_name": card.RedeemedAPIKeyName,
		"redeemed_at":           card.RedeemedAt,
		"revoked_at":            card.RevokedAt,
		"revoked_by":            card.RevokedBy,
		"revoke_reason":         card.RevokeReason,
	}
}

// formatRedemption maps a ledger entry into a response payload.
func formatRedemption(rec *models.Redemption) gin.H {
	return gin.H{
		"id":                    rec.ID,
		"card_id":               rec.CardID,
		"card_code":             rec.CardCode,
		"card_type":             rec.CardType,
		"user_id":               rec.UserID,
		"username":              rec.Username,
		"api_key_id":            rec.APIKeyID,
		"api_key_name":          rec.APIKeyName,
		"quota_added":           rec.QuotaAdded,
		"time_added":            rec.TimeAdded,
		"time_unit":             rec.TimeUnit,
		"before_quota":          rec.BeforeQuota,
		"after_quota":           rec.AfterQuota,
		"before_expiry":         rec.BeforeExpiry,
		"after_expiry":          rec.AfterExpiry,
		"timestamp":             rec.Timestamp,
		"status":                rec.Status,
		"revoked_at":            rec.RevokedAt,
		"revoked_by":            rec.RevokedBy,
		"revoke_reason":         rec.RevokeReason,
		"actual_quota_deducted": rec.ActualQuotaDeducted,
	}
}

// parseExpiresAt parses an optional RFC 3339 card validity deadline.
func parseExpiresAt(raw string) (*time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, true
	}
	t, errParse := time.Parse(time.RFC3339, trimmed)
	if errParse != nil {
		return nil, false
	}
	return &t, true
}
