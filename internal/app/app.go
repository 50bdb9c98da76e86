// Package app wires the card service together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/QuotaCardService/internal/apikeys"
	"github.com/router-for-me/QuotaCardService/internal/cards"
	"github.com/router-for-me/QuotaCardService/internal/config"
	"github.com/router-for-me/QuotaCardService/internal/db"
	"github.com/router-for-me/QuotaCardService/internal/http/api/admin"
	"github.com/router-for-me/QuotaCardService/internal/http/api/front"
	"github.com/router-for-me/QuotaCardService/internal/logging"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
	"github.com/router-for-me/QuotaCardService/internal/store"
)

// RunServer boots the card service: config, logging, credential database,
// card store, and the HTTP surface. It blocks until ctx is cancelled, then
// shuts the server down gracefully.
func RunServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging)

	conn, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	cardStore, err := store.Open(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := cardStore.Close(); errClose != nil {
			log.Warnf("close card store: %v", errClose)
		}
	}()

	credentials := apikeys.NewService(conn)
	manager := cards.NewManager(cardStore)
	redeemer := redemption.NewEngine(cardStore, credentials)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		if errPing := cardStore.HealthCheck(c.Request.Context()); errPing != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	admin.RegisterAdminRoutes(engine, manager, redeemer, cfg.AdminToken)
	front.RegisterFrontRoutes(engine, redeemer)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("card service listening on %s", cfg.Listen)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	log.Info("card service stopped")
	return nil
}

// Migrate opens the database and runs migrations without starting the server.
func Migrate(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}
