package app

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nc-warden.io/warden/internal/api"
	"nc-warden.io/warden/internal/api/handlers"
	"nc-warden.io/warden/internal/api/middleware"
	"nc-warden.io/warden/internal/config"
)

// NewRouter assembles the serve-mode engine: liveness probe at the
// root, everything else under /api/v1 behind token auth and the
// OpenAPI request validator.
func NewRouter(cfg *config.Config, server *handlers.Server) (*gin.Engine, error) {
	doc, err := api.LoadSpec()
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(buildCORSConfig(cfg.Server.CORSOrigins)))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	validator, err := middleware.NewOpenAPIValidator(doc, "/api/v1")
	if err != nil {
		return nil, fmt.Errorf("init openapi validator: %w", err)
	}

	apiGroup := router.Group("/api/v1")
	apiGroup.Use(middleware.BearerAuth(cfg.Server.AuthTokenHash))
	apiGroup.Use(validator)
	server.RegisterRoutes(apiGroup)

	return router, nil
}

// buildCORSConfig translates the configured origin list. A sole "*"
// opts into allow-all; a "*" mixed into a longer list is stripped
// because gin-cors rejects that combination.
func buildCORSConfig(origins []string) cors.Config {
	out := cors.DefaultConfig()
	out.AllowHeaders = append(out.AllowHeaders, "Authorization", middleware.RequestIDHeader)

	if len(origins) == 1 && origins[0] == "*" {
		out.AllowAllOrigins = true
		return out
	}

	kept := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin != "*" {
			kept = append(kept, origin)
		}
	}
	out.AllowOrigins = kept
	return out
}
