// Package front registers the user-facing HTTP routes.
package front

import (
	"github.com/gin-gonic/gin"

	"github.com/router-for-me/QuotaCardService/internal/http/api/front/handlers"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
)

// RegisterFrontRoutes mounts the user-facing card endpoints under /v0.
func RegisterFrontRoutes(engine *gin.Engine, redeemer *redemption.Engine) {
	cardHandler := handlers.NewCardFrontHandler(redeemer)
	group := engine.Group("/v0")
	group.POST("/cards/redeem", cardHandler.Redeem)
	group.GET("/redemptions", cardHandler.ListRedemptions)
}
