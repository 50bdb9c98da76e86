package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/QuotaCardService/internal/cards"
	"github.com/router-for-me/QuotaCardService/internal/models"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
)

// CardFrontHandler handles card endpoints for end users.
type CardFrontHandler struct {
	engine *redemption.Engine
}

// NewCardFrontHandler constructs a CardFrontHandler.
func NewCardFrontHandler(engine *redemption.Engine) *CardFrontHandler {
	return &CardFrontHandler{engine: engine}
}

// Identity headers are populated by the authentication layer in front of this
// service.
const (
	headerUserID   = "X-User-ID"
	headerUsername = "X-Username"
)

// redeemCardRequest defines the request body for card redemption.
type redeemCardRequest struct {
	Code     string `json:"code"`       // Card code, CC_XXXX_XXXX_XXXX.
	APIKeyID string `json:"api_key_id"` // Target credential ID.
}

// Redeem applies a card to one of the user's credentials.
func (h *CardFrontHandler) Redeem(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(headerUserID))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	username := strings.TrimSpace(c.GetHeader(headerUsername))

	var body redeemCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.Code)
	apiKeyID := strings.TrimSpace(body.APIKeyID)
	if code == "" || apiKeyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and api_key_id are required"})
		return
	}

	result, errRedeem := h.engine.Redeem(c.Request.Context(), code, apiKeyID, userID, username)
	if errRedeem != nil {
		respondRedeemError(c, errRedeem)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redemption": result})
}

// ListRedemptions returns the user's own redemption history, newest first.
func (h *CardFrontHandler) ListRedemptions(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(headerUserID))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, offset := parsePagination(c)
	list, total, errList := h.engine.Redemptions(c.Request.Context(), userID, "", limit, offset)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query redemptions failed"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, rec := range list {
		out = append(out, formatRedemption(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"redemptions": out,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// respondRedeemError maps redemption failures onto HTTP statuses.
func respondRedeemError(c *gin.Context, err error) {
	var state *cards.StateError
	switch {
	case errors.Is(err, cards.ErrCardNotFound), errors.Is(err, redemption.ErrCredentialNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &state):
		c.JSON(http.StatusConflict, gin.H{"error": state.Error()})
	case errors.Is(err, cards.ErrCardExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, redemption.ErrNotAggregated):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
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

// formatRedemption maps a ledger entry into the user-facing payload. Revocation
// actor details stay admin-only.
func formatRedemption(rec *models.Redemption) gin.H {
	return gin.H{
		"id":            rec.ID,
		"card_code":     rec.CardCode,
		"card_type":     rec.CardType,
		"api_key_id":    rec.APIKeyID,
		"api_key_name":  rec.APIKeyName,
		"quota_added":   rec.QuotaAdded,
		"time_added":    rec.TimeAdded,
		"time_unit":     rec.TimeUnit,
		"before_quota":  rec.BeforeQuota,
		"after_quota":   rec.AfterQuota,
		"before_expiry": rec.BeforeExpiry,
		"after_expiry":  rec.AfterExpiry,
		"timestamp":     rec.Timestamp,
		"status":        rec.Status,
	}
}
