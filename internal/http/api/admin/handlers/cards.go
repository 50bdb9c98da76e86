package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/QuotaCardService/internal/cards"
)

// CardHandler handles admin operations for quota/time cards.
type CardHandler struct {
	manager *cards.Manager
}

// NewCardHandler wires a card handler with the lifecycle manager.
func NewCardHandler(manager *cards.Manager) *CardHandler {
	return &CardHandler{manager: manager}
}

// createCardRequest captures the payload for creating a single card.
type createCardRequest struct {
	Type        string  `json:"type"`         // quota | time | combo.
	QuotaAmount float64 `json:"quota_amount"` // Required for quota/combo.
	TimeAmount  int     `json:"time_amount"`  // Required for time/combo.
	TimeUnit    string  `json:"time_unit"`    // hours | days | months.
	ExpiresAt   string  `json:"expires_at"`   // Optional RFC 3339 validity deadline.
	Note        string  `json:"note"`         // Optional issuance note.
	CreatedBy   string  `json:"created_by"`   // Issuing actor; defaults to admin.
}

func (r *createCardRequest) toParams(c *gin.Context) (cards.CreateParams, bool) {
	expiresAt, ok := parseExpiresAt(r.ExpiresAt)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires_at"})
		return cards.CreateParams{}, false
	}
	createdBy := strings.TrimSpace(r.CreatedBy)
	if createdBy == "" {
		createdBy = "admin"
	}
	return cards.CreateParams{
		Type:        strings.TrimSpace(r.Type),
		QuotaAmount: r.QuotaAmount,
		TimeAmount:  r.TimeAmount,
		TimeUnit:    strings.TrimSpace(r.TimeUnit),
		ExpiresAt:   expiresAt,
		Note:        r.Note,
		CreatedBy:   createdBy,
	}, true
}

// Create validates input and issues a new card.
func (h *CardHandler) Create(c *gin.Context) {
	var body createCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	params, ok := body.toParams(c)
	if !ok {
		return
	}
	card, errCreate := h.manager.Create(c.Request.Context(), params)
	if errCreate != nil {
		respondDomainError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatCard(card))
}

// batchCreateCardRequest captures the payload for batch card creation.
type batchCreateCardRequest struct {
	createCardRequest
	Count int `json:"count"` // Number of cards to create.
}

// BatchCreate issues multiple cards from one configuration. Creation is not
// transactional: cards created before a failure remain valid, and the response
// reports how many succeeded.
func (h *CardHandler) BatchCreate(c *gin.Context) {
	var body batchCreateCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Count <= 0 || body.Count > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 1000"})
		return
	}
	params, ok := body.toParams(c)
	if !ok {
		return
	}
	created, errBatch := h.manager.CreateBatch(c.Request.Context(), params, body.Count)
	out := make([]gin.H, 0, len(created))
	for _, card := range created {
		out = append(out, formatCard(card))
	}
	if errBatch != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "batch create incomplete",
			"created": len(created),
			"cards":   out,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cards": out, "created": len(created)})
}

// List returns cards filtered by status, newest first, paginated.
func (h *CardHandler) List(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	limit, offset := parsePagination(c)
	list, total, errList := h.manager.List(c.Request.Context(), status, limit, offset)
	if errList != nil {
		respondDomainError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, card := range list {
		out = append(out, formatCard(card))
	}
	c.JSON(http.StatusOK, gin.H{
		"cards":  out,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get fetches a single card by ID.
func (h *CardHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	card, errGet := h.manager.GetByID(c.Request.Context(), id)
	if errGet != nil {
		respondDomainError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, formatCard(card))
}

// Delete removes an unused card. Cards with redemption history cannot be
// deleted.
func (h *CardHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if errDel := h.manager.Delete(c.Request.Context(), id); errDel != nil {
		respondDomainError(c, errDel)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats returns card counts per status.
func (h *CardHandler) Stats(c *gin.Context) {
	stats, errStats := h.manager.Stats(c.Request.Context())
	if errStats != nil {
		respondDomainError(c, errStats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
