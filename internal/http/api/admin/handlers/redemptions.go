package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/QuotaCardService/internal/redemption"
)

// RedemptionHandler handles admin operations for the redemption ledger.
type RedemptionHandler struct {
	engine *redemption.Engine
}

// NewRedemptionHandler wires a redemption handler with the engine.
func NewRedemptionHandler(engine *redemption.Engine) *RedemptionHandler {
	return &RedemptionHandler{engine: engine}
}

// List returns ledger entries scoped by user_id or api_key_id, or all when
// neither filter is given, newest first.
func (h *RedemptionHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	apiKeyID := strings.TrimSpace(c.Query("api_key_id"))
	limit, offset := parsePagination(c)
	list, total, errList := h.engine.Redemptions(c.Request.Context(), userID, apiKeyID, limit, offset)
	if errList != nil {
		respondDomainError(c, errList)
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

// revokeRequest captures the payload for revoking a redemption.
type revokeRequest struct {
	RevokedBy string `json:"revoked_by"` // Revoking actor; defaults to admin.
	Reason    string `json:"reason"`     // Revocation reason.
}

// Revoke reverses the quota effect of an active redemption.
func (h *RedemptionHandler) Revoke(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var body revokeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	actor := strings.TrimSpace(body.RevokedBy)
	if actor == "" {
		actor = "admin"
	}
	result, errRevoke := h.engine.Revoke(c.Request.Context(), id, actor, body.Reason)
	if errRevoke != nil {
		respondDomainError(c, errRevoke)
		return
	}
	c.JSON(http.StatusOK, result)
}
