// Package admin registers the administrative HTTP routes.
package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/router-for-me/QuotaCardService/internal/cards"
	"github.com/router-for-me/QuotaCardService/internal/http/api/admin/handlers"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
)

// RegisterAdminRoutes mounts card and redemption administration under
// /v0/admin, gated by a static bearer token.
func RegisterAdminRoutes(engine *gin.Engine, manager *cards.Manager, redeemer *redemption.Engine, adminToken string) {
	cardHandler := handlers.NewCardHandler(manager)
	redemptionHandler := handlers.NewRedemptionHandler(redeemer)

	group := engine.Group("/v0/admin", tokenMiddleware(adminToken))
	group.POST("/cards", cardHandler.Create)
	group.POST("/cards/batch", cardHandler.BatchCreate)
	group.GET("/cards", cardHandler.List)
	group.GET("/cards/stats", cardHandler.Stats)
	group.GET("/cards/:id", cardHandler.Get)
	group.DELETE("/cards/:id", cardHandler.Delete)
	group.GET("/redemptions", redemptionHandler.List)
	group.POST("/redemptions/:id/revoke", redemptionHandler.Revoke)
}

// tokenMiddleware enforces the configured admin bearer token. Full session
// handling lives in an external component; this is the minimal gate for the
// administrative surface.
func tokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := strings.TrimSpace(c.GetHeader("Authorization"))
		supplied = strings.TrimPrefix(supplied, "Bearer ")
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
